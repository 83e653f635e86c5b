package bi

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/prismbi/prism-backend/internal/domain"
	"github.com/prismbi/prism-backend/internal/pkg/dbctx"
	"github.com/prismbi/prism-backend/internal/platform/logger"
)

type DashboardRepo interface {
	Create(dbc dbctx.Context, row *types.Dashboard) error
	Save(dbc dbctx.Context, row *types.Dashboard) error
	GetByID(dbc dbctx.Context, id int64) (*types.Dashboard, error)
	GetByUUID(dbc dbctx.Context, id uuid.UUID) (*types.Dashboard, error)
	List(dbc dbctx.Context, limit, offset int) ([]*types.Dashboard, error)
	SlugTaken(dbc dbctx.Context, slug string, excludeID int64) (bool, error)
	Delete(dbc dbctx.Context, id int64) error
}

type dashboardRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDashboardRepo(db *gorm.DB, baseLog *logger.Logger) DashboardRepo {
	return &dashboardRepo{db: db, log: baseLog.With("repo", "DashboardRepo")}
}

func (r *dashboardRepo) Create(dbc dbctx.Context, row *types.Dashboard) error {
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

func (r *dashboardRepo) Save(dbc dbctx.Context, row *types.Dashboard) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.ID == 0 {
		return nil
	}
	row.UpdatedAt = time.Now().UTC()
	return t.WithContext(dbc.Ctx).Save(row).Error
}

func (r *dashboardRepo) GetByID(dbc dbctx.Context, id int64) (*types.Dashboard, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == 0 {
		return nil, nil
	}
	row := &types.Dashboard{}
	if err := t.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return row, nil
}

func (r *dashboardRepo) GetByUUID(dbc dbctx.Context, id uuid.UUID) (*types.Dashboard, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	row := &types.Dashboard{}
	if err := t.WithContext(dbc.Ctx).
		Where("uuid = ?", id).
		Limit(1).
		Find(row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return row, nil
}

func (r *dashboardRepo) List(dbc dbctx.Context, limit, offset int) ([]*types.Dashboard, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var rows []*types.Dashboard
	if err := t.WithContext(dbc.Ctx).
		Order("updated_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *dashboardRepo) SlugTaken(dbc dbctx.Context, slug string, excludeID int64) (bool, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return false, nil
	}
	var n int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.Dashboard{}).
		Where("slug = ? AND id <> ?", slug, excludeID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes the dashboard together with its link rows and its whole
// version log. Foreign keys are not enforced by the migrator, so the
// cascade lives here.
func (r *dashboardRepo) Delete(dbc dbctx.Context, id int64) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == 0 {
		return nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("dashboard_id = ?", id).
		Delete(&types.DashboardVersion{}).Error; err != nil {
		return err
	}
	if err := t.WithContext(dbc.Ctx).
		Where("dashboard_id = ?", id).
		Delete(&types.DashboardSlice{}).Error; err != nil {
		return err
	}
	return t.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Delete(&types.Dashboard{}).Error
}
