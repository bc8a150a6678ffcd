package handler

import (
	"geolink/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func NewRouter(
	linkService service.LinkService,
	visitService service.VisitService,
	authMiddleware gin.HandlerFunc,
	baseURL string,
	logger *zap.Logger,
) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.Default()
	router.SetHTMLTemplate(loadTemplates())

	// Middleware для логгирования
	router.Use(func(c *gin.Context) {
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
		)
		c.Next()
	})

	visitHandler := NewVisitHandler(linkService, visitService, logger)
	linkHandler := NewLinkHandler(linkService, visitService, baseURL, logger)

	// Публичные роуты: трекинг и коллбэк разрешения, без аутентификации
	router.GET("/health", visitHandler.HealthCheck)
	router.GET("/l/:slug", visitHandler.ConsentPage)
	router.POST("/api/visit", visitHandler.ResolveVisit)

	// Админские роуты: stateless Basic auth на каждый запрос
	admin := router.Group("/")
	if authMiddleware != nil {
		admin.Use(authMiddleware)
	}
	{
		admin.GET("/", linkHandler.Dashboard)
		admin.POST("/create", linkHandler.CreateLink)
		admin.GET("/links/:slug", linkHandler.LinkDetail)
	}

	return router
}
