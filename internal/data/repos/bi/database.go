package bi

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/prismbi/prism-backend/internal/domain"
	"github.com/prismbi/prism-backend/internal/pkg/dbctx"
	"github.com/prismbi/prism-backend/internal/platform/logger"
)

type DatabaseRepo interface {
	UpsertByUUID(dbc dbctx.Context, row *types.Database) error
	GetByUUIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Database, error)
}

type databaseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDatabaseRepo(db *gorm.DB, baseLog *logger.Logger) DatabaseRepo {
	return &databaseRepo{db: db, log: baseLog.With("repo", "DatabaseRepo")}
}

func (r *databaseRepo) UpsertByUUID(dbc dbctx.Context, row *types.Database) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.UUID == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "uuid"}},
			DoUpdates: clause.Assignments(map[string]any{
				"database_name":  row.DatabaseName,
				"sqlalchemy_uri": row.SQLAlchemyURI,
				"updated_at":     now,
			}),
		}).
		Create(row).Error
}

func (r *databaseRepo) GetByUUIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Database, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []*types.Database
	if err := t.WithContext(dbc.Ctx).
		Where("uuid IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
