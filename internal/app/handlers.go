package app

import (
	httpH "github.com/prismbi/prism-backend/internal/http/handlers"
	httpMW "github.com/prismbi/prism-backend/internal/http/middleware"
	"github.com/prismbi/prism-backend/internal/observability"
	"github.com/prismbi/prism-backend/internal/platform/logger"
)

type Handlers struct {
	Dashboard *httpH.DashboardHandler
	Version   *httpH.VersionHandler
	Import    *httpH.ImportHandler
	Health    *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, r Repos, s Services, metrics *observability.Metrics) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Dashboard: httpH.NewDashboardHandler(s.Aggregate, r.Dashboard, s.Localizer, metrics, log),
		Version:   httpH.NewVersionHandler(s.Aggregate, log),
		Import:    httpH.NewImportHandler(s.Importer, metrics, log),
		Health:    httpH.NewHealthHandler(),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config) *httpMW.ActorMiddleware {
	return httpMW.NewActorMiddleware(log, cfg.JWTSecretKey)
}
