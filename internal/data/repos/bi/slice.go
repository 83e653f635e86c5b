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

type SliceRepo interface {
	Create(dbc dbctx.Context, row *types.Slice) error
	UpsertByUUID(dbc dbctx.Context, row *types.Slice) error
	GetByIDs(dbc dbctx.Context, ids []int64) ([]*types.Slice, error)
	GetByUUIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Slice, error)
	DeleteByIDs(dbc dbctx.Context, ids []int64) error
	SetManagedExternally(dbc dbctx.Context, ids []int64, managed bool) error
}

type sliceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSliceRepo(db *gorm.DB, baseLog *logger.Logger) SliceRepo {
	return &sliceRepo{db: db, log: baseLog.With("repo", "SliceRepo")}
}

func (r *sliceRepo) Create(dbc dbctx.Context, row *types.Slice) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil
	}
	if row.UUID == uuid.Nil {
		row.UUID = uuid.New()
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	return t.WithContext(dbc.Ctx).Create(row).Error
}

func (r *sliceRepo) UpsertByUUID(dbc dbctx.Context, row *types.Slice) error {
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
				"slice_name": row.SliceName,
				"viz_type":   row.VizType,
				"dataset_id": row.DatasetID,
				"params":     row.Params,
				"updated_at": now,
			}),
		}).
		Create(row).Error
}

func (r *sliceRepo) GetByIDs(dbc dbctx.Context, ids []int64) ([]*types.Slice, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []*types.Slice
	if err := t.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *sliceRepo) GetByUUIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Slice, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []*types.Slice
	if err := t.WithContext(dbc.Ctx).
		Where("uuid IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *sliceRepo) DeleteByIDs(dbc dbctx.Context, ids []int64) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.Slice{}).Error
}

func (r *sliceRepo) SetManagedExternally(dbc dbctx.Context, ids []int64, managed bool) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.Slice{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"is_managed_externally": managed,
			"updated_at":            time.Now().UTC(),
		}).Error
}
