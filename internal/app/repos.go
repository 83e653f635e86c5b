package app

import (
	"gorm.io/gorm"

	repobi "github.com/prismbi/prism-backend/internal/data/repos/bi"
	repouser "github.com/prismbi/prism-backend/internal/data/repos/user"
	"github.com/prismbi/prism-backend/internal/platform/logger"
)

type Repos struct {
	Dashboard      repobi.DashboardRepo
	DashboardSlice repobi.DashboardSliceRepo
	Slice          repobi.SliceRepo
	Dataset        repobi.DatasetRepo
	Database       repobi.DatabaseRepo
	Version        repobi.VersionStore
	User           repouser.UserRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Dashboard:      repobi.NewDashboardRepo(db, log),
		DashboardSlice: repobi.NewDashboardSliceRepo(db, log),
		Slice:          repobi.NewSliceRepo(db, log),
		Dataset:        repobi.NewDatasetRepo(db, log),
		Database:       repobi.NewDatabaseRepo(db, log),
		Version:        repobi.NewVersionStore(db, log),
		User:           repouser.NewUserRepo(db, log),
	}
}
