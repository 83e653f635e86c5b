package app

import (
	"gorm.io/gorm"

	redisclient "github.com/prismbi/prism-backend/internal/clients/redis"
	"github.com/prismbi/prism-backend/internal/data/aggregates"
	"github.com/prismbi/prism-backend/internal/importer"
	"github.com/prismbi/prism-backend/internal/observability"
	"github.com/prismbi/prism-backend/internal/platform/logger"
	"github.com/prismbi/prism-backend/internal/services"
)

type Services struct {
	EventBus  redisclient.EventBus
	Aggregate *aggregates.DashboardAggregate
	Importer  *importer.Importer
	Localizer services.ContentLocalizer
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")

	var sink aggregates.EventSink = aggregates.NoopSink()
	var bus redisclient.EventBus
	if cfg.RedisAddr != "" {
		var err error
		bus, err = redisclient.NewEventBus(log)
		if err != nil {
			log.Warn("redis event bus unavailable, mutations will not fan out", "error", err)
		} else {
			sink = bus
		}
	}
	sink = withSinkMetrics(sink, metrics)

	aggCfg := aggregates.Config{
		RetainVersions:  cfg.RetainVersions,
		LayoutSchemaKey: cfg.LayoutSchemaKey,
	}
	tx := aggregates.NewGormTxRunner(db)

	agg := aggregates.NewDashboardAggregate(
		aggCfg,
		tx,
		r.Dashboard,
		r.DashboardSlice,
		r.Slice,
		r.Version,
		r.User,
		aggregates.AllowAll(),
		sink,
		log,
	)
	if metrics != nil {
		agg.SetHooks(metrics)
	}

	imp := importer.NewImporter(
		tx,
		r.Dashboard,
		r.DashboardSlice,
		r.Slice,
		r.Dataset,
		r.Database,
		r.Version,
		sink,
		importer.NativeFilterMigrator{},
		cfg.RetainVersions,
		cfg.LayoutSchemaKey,
		log,
	)

	return Services{
		EventBus:  bus,
		Aggregate: agg,
		Importer:  imp,
		Localizer: services.NewContentLocalizer(cfg.LocalizationEnabled, log),
	}
}
