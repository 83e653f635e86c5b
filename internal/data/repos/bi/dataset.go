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

type DatasetRepo interface {
	UpsertByUUID(dbc dbctx.Context, row *types.Dataset) error
	GetByUUIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Dataset, error)
	SetManagedExternally(dbc dbctx.Context, ids []int64, managed bool) error
}

type datasetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDatasetRepo(db *gorm.DB, baseLog *logger.Logger) DatasetRepo {
	return &datasetRepo{db: db, log: baseLog.With("repo", "DatasetRepo")}
}

func (r *datasetRepo) UpsertByUUID(dbc dbctx.Context, row *types.Dataset) error {
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
				"table_name":   row.TableName_,
				"table_schema": row.Schema,
				"database_id":  row.DatabaseID,
				"updated_at":   now,
			}),
		}).
		Create(row).Error
}

func (r *datasetRepo) GetByUUIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Dataset, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []*types.Dataset
	if err := t.WithContext(dbc.Ctx).
		Where("uuid IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *datasetRepo) SetManagedExternally(dbc dbctx.Context, ids []int64, managed bool) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.Dataset{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"is_managed_externally": managed,
			"updated_at":            time.Now().UTC(),
		}).Error
}
