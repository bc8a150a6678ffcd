package handler

import (
	"errors"
	"fmt"
	"net/http"

	"geolink/internal/models"
	"geolink/internal/repository"
	"geolink/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LinkHandler обслуживает админскую часть: дашборд, создание ссылок,
// страницу деталей с историей визитов
type LinkHandler struct {
	linkService  service.LinkService
	visitService service.VisitService
	baseURL      string
	logger       *zap.Logger
}

func NewLinkHandler(linkService service.LinkService, visitService service.VisitService, baseURL string, logger *zap.Logger) *LinkHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkHandler{
		linkService:  linkService,
		visitService: visitService,
		baseURL:      baseURL,
		logger:       logger,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// visitView - подготовленная к показу строка визита (IP уже замаскирован
// сервисом, координаты и время отформатированы)
type visitView struct {
	Time      string
	State     models.VisitState
	Reason    string
	IPAddress string
	Location  string
	Referer   string
	UserAgent string
}

// Dashboard обрабатывает GET /: список последних ссылок
func (h *LinkHandler) Dashboard(c *gin.Context) {
	links, err := h.linkService.ListLinks(c.Request.Context(), 50)
	if err != nil {
		h.logger.Error("Не удалось получить список ссылок", zap.Error(err))
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Title":   "Something went wrong",
			"Message": "Failed to load links.",
		})
		return
	}

	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"Links": links,
	})
}

// CreateLink обрабатывает POST /create: валидирует форму и редиректит на
// страницу деталей созданной ссылки
func (h *LinkHandler) CreateLink(c *gin.Context) {
	var input models.CreateLinkInput
	if err := c.ShouldBind(&input); err != nil {
		c.HTML(http.StatusBadRequest, "error.html", gin.H{
			"Title":   "Invalid request",
			"Message": "Target URL is required.",
		})
		return
	}

	link, err := h.linkService.CreateLink(c.Request.Context(), &input)
	if err != nil {
		if errors.Is(err, service.ErrInvalidURL) {
			c.HTML(http.StatusBadRequest, "error.html", gin.H{
				"Title":   "Invalid URL",
				"Message": "Target URL must start with http:// or https://.",
			})
			return
		}
		h.logger.Error("Не удалось создать ссылку", zap.Error(err))
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Title":   "Something went wrong",
			"Message": "Failed to create link.",
		})
		return
	}

	c.Redirect(http.StatusSeeOther, "/links/"+link.Slug)
}

// LinkDetail обрабатывает GET /links/:slug: ссылка + история визитов
func (h *LinkHandler) LinkDetail(c *gin.Context) {
	slug := c.Param("slug")

	link, err := h.linkService.GetLinkBySlug(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			c.HTML(http.StatusNotFound, "error.html", gin.H{
				"Title":   "Not found",
				"Message": "This link does not exist.",
			})
			return
		}
		h.logger.Error("Не удалось получить ссылку", zap.String("slug", slug), zap.Error(err))
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Title":   "Something went wrong",
			"Message": "Failed to load link.",
		})
		return
	}

	visits, err := h.visitService.VisitsForLink(c.Request.Context(), link.ID, 100)
	if err != nil {
		h.logger.Error("Не удалось получить визиты", zap.Int64("link_id", link.ID), zap.Error(err))
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Title":   "Something went wrong",
			"Message": "Failed to load visits.",
		})
		return
	}

	views := make([]visitView, 0, len(visits))
	for _, v := range visits {
		view := visitView{
			Time:      v.CreatedAt.Format("2006-01-02 15:04:05"),
			State:     v.State(),
			IPAddress: v.IPAddress,
			Location:  "—",
			Referer:   v.Referer,
			UserAgent: v.UserAgent,
		}
		if v.DeclineReason != nil {
			view.Reason = *v.DeclineReason
		}
		if v.Latitude != nil && v.Longitude != nil && v.Accuracy != nil {
			view.Location = fmt.Sprintf("%.5f, %.5f (±%.0fm)", *v.Latitude, *v.Longitude, *v.Accuracy)
		}
		views = append(views, view)
	}

	c.HTML(http.StatusOK, "detail.html", gin.H{
		"Link":        link,
		"TrackingURL": h.baseURL + "/l/" + link.Slug,
		"Visits":      views,
	})
}
