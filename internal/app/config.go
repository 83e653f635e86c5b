package app

import (
	"github.com/prismbi/prism-backend/internal/platform/envutil"
	"github.com/prismbi/prism-backend/internal/platform/logger"
)

type Config struct {
	Port         string
	JWTSecretKey string

	// RetainVersions bounds the per-dashboard version log; 0 keeps
	// everything.
	RetainVersions  int
	LayoutSchemaKey string

	LocalizationEnabled bool

	MetricsAddr string
	RedisAddr   string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Port:                envutil.GetEnv("PORT", "8080", log),
		JWTSecretKey:        envutil.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		RetainVersions:      envutil.GetEnvAsInt("DASHBOARD_VERSION_RETENTION", 20, log),
		LayoutSchemaKey:     envutil.GetEnv("DASHBOARD_LAYOUT_SCHEMA_KEY", "v2", log),
		LocalizationEnabled: envutil.GetEnvAsBool("ENABLE_CONTENT_LOCALIZATION", false, log),
		MetricsAddr:         envutil.GetEnv("METRICS_ADDR", ":9090", log),
		RedisAddr:           envutil.GetEnv("REDIS_ADDR", "", log),
	}
}
