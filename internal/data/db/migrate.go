package db

import (
	types "github.com/prismbi/prism-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Identity
		&types.User{},

		// Catalog: connections -> datasets -> charts
		&types.Database{},
		&types.Dataset{},
		&types.Slice{},

		// Dashboards, the chart link table and the version log
		&types.Dashboard{},
		&types.DashboardSlice{},
		&types.DashboardVersion{},
	)
}
