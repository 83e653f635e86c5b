package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/prismbi/prism-backend/internal/http/handlers"
	httpMW "github.com/prismbi/prism-backend/internal/http/middleware"
	"github.com/prismbi/prism-backend/internal/observability"
	"github.com/prismbi/prism-backend/internal/platform/logger"
)

type RouterConfig struct {
	ServiceName string
	Log         *logger.Logger
	Metrics     *observability.Metrics

	ActorMiddleware *httpMW.ActorMiddleware

	DashboardHandler *httpH.DashboardHandler
	VersionHandler   *httpH.VersionHandler
	ImportHandler    *httpH.ImportHandler
	HealthHandler    *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.CORS())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	if cfg.ActorMiddleware != nil {
		api.Use(cfg.ActorMiddleware.Attach())
	}
	{
		// Dashboards
		if cfg.DashboardHandler != nil {
			api.GET("/dashboard", cfg.DashboardHandler.List)
			api.GET("/dashboard/:id", cfg.DashboardHandler.Get)
			api.PUT("/dashboard/:id", cfg.DashboardHandler.Update)
		}

		// Version history
		if cfg.VersionHandler != nil {
			api.GET("/dashboard/:id/versions", cfg.VersionHandler.List)
			api.GET("/dashboard/:id/versions/:version_id", cfg.VersionHandler.Get)
			api.PUT("/dashboard/:id/versions/:version_id", cfg.VersionHandler.UpdateComment)
		}
		if cfg.DashboardHandler != nil {
			api.POST("/dashboard/:id/versions/:version_id/restore", cfg.DashboardHandler.Restore)
		}

		// Bundle import
		if cfg.ImportHandler != nil {
			api.POST("/dashboard/import", cfg.ImportHandler.Import)
		}
	}

	return r
}
