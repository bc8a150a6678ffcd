package handler

import (
	"errors"
	"net/http"

	"geolink/internal/models"
	"geolink/internal/repository"
	"geolink/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// VisitHandler обслуживает публичную часть: consent-страницу и коллбэк разрешения
type VisitHandler struct {
	linkService  service.LinkService
	visitService service.VisitService
	logger       *zap.Logger
}

func NewVisitHandler(linkService service.LinkService, visitService service.VisitService, logger *zap.Logger) *VisitHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VisitHandler{
		linkService:  linkService,
		visitService: visitService,
		logger:       logger,
	}
}

type ResolveVisitRequest struct {
	VisitID   string   `json:"visit_id" binding:"required"`
	Consented bool     `json:"consented"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// ConsentPage обрабатывает GET /l/:slug: находит ссылку, открывает
// pending-визит и отдаёт consent-страницу с зашитым visit id
func (h *VisitHandler) ConsentPage(c *gin.Context) {
	slug := c.Param("slug")

	link, err := h.linkService.GetLinkBySlug(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			// Для незнакомого слага визит не открывается
			c.HTML(http.StatusNotFound, "error.html", gin.H{
				"Title":   "Not found",
				"Message": "This link does not exist.",
			})
			return
		}
		h.logger.Error("Не удалось получить ссылку", zap.String("slug", slug), zap.Error(err))
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Title":   "Something went wrong",
			"Message": "Please try again later.",
		})
		return
	}

	visitID, err := h.visitService.OpenPending(c.Request.Context(), &models.OpenVisitInput{
		LinkID:    link.ID,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
	})
	if err != nil {
		// Доставка посетителя важнее телеметрии: если визит открыть не
		// удалось, просто редиректим на целевой адрес
		h.logger.Error("Не удалось открыть pending-визит",
			zap.String("slug", slug),
			zap.Error(err),
		)
		c.Redirect(http.StatusFound, link.TargetURL)
		return
	}

	// Каждая загрузка страницы создаёт новый pending-визит, поэтому ответ
	// нельзя отдавать из какого-либо кэша
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")

	c.HTML(http.StatusOK, "consent.html", gin.H{
		"VisitID":   visitID,
		"Slug":      slug,
		"TargetURL": link.TargetURL,
	})
}

// ResolveVisit обрабатывает POST /api/visit - коллбэк из браузера посетителя.
// Для незнакомого или уже разрешённого визита отвечает так же, как для
// успешного: {ok:true}
func (h *VisitHandler) ResolveVisit(c *gin.Context) {
	var req ResolveVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	outcome := &models.VisitOutcome{
		Consented: req.Consented,
		Reason:    req.Reason,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Accuracy:  req.Accuracy,
	}

	err := h.visitService.Resolve(c.Request.Context(), req.VisitID, outcome)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCoordinates) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_coordinates",
				Message: "Consented resolution requires finite latitude, longitude and accuracy",
			})
			return
		}
		h.logger.Error("Не удалось разрешить визит", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to resolve visit",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// HealthCheck обрабатывает GET /health
func (h *VisitHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
