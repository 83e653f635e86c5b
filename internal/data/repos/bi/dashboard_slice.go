package bi

import (
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/prismbi/prism-backend/internal/domain"
	"github.com/prismbi/prism-backend/internal/pkg/dbctx"
	"github.com/prismbi/prism-backend/internal/platform/logger"
)

// DashboardSliceRepo is the only writer of the dashboard<->chart link
// table. Synchronization from a layout tree always goes through
// ReplaceForDashboard so no observer can see a partial link set.
type DashboardSliceRepo interface {
	ReplaceForDashboard(dbc dbctx.Context, dashboardID int64, sliceIDs []int64) error
	DeleteForDashboard(dbc dbctx.Context, dashboardID int64) error
	BulkInsert(dbc dbctx.Context, rows []types.DashboardSlice) error
	InsertMissing(dbc dbctx.Context, rows []types.DashboardSlice) error
	ListSliceIDs(dbc dbctx.Context, dashboardID int64) ([]int64, error)
}

type dashboardSliceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDashboardSliceRepo(db *gorm.DB, baseLog *logger.Logger) DashboardSliceRepo {
	return &dashboardSliceRepo{db: db, log: baseLog.With("repo", "DashboardSliceRepo")}
}

func (r *dashboardSliceRepo) ReplaceForDashboard(dbc dbctx.Context, dashboardID int64, sliceIDs []int64) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if dashboardID == 0 {
		return nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("dashboard_id = ?", dashboardID).
		Delete(&types.DashboardSlice{}).Error; err != nil {
		return err
	}
	if len(sliceIDs) == 0 {
		return nil
	}
	rows := make([]types.DashboardSlice, 0, len(sliceIDs))
	for _, sliceID := range sliceIDs {
		rows = append(rows, types.DashboardSlice{DashboardID: dashboardID, SliceID: sliceID})
	}
	return t.WithContext(dbc.Ctx).Create(&rows).Error
}

func (r *dashboardSliceRepo) DeleteForDashboard(dbc dbctx.Context, dashboardID int64) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if dashboardID == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Where("dashboard_id = ?", dashboardID).
		Delete(&types.DashboardSlice{}).Error
}

func (r *dashboardSliceRepo) BulkInsert(dbc dbctx.Context, rows []types.DashboardSlice) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).Create(&rows).Error
}

// InsertMissing inserts link rows, silently skipping pairs already
// present. Used by the non-overwrite import path.
func (r *dashboardSliceRepo) InsertMissing(dbc dbctx.Context, rows []types.DashboardSlice) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dashboard_id"}, {Name: "slice_id"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

func (r *dashboardSliceRepo) ListSliceIDs(dbc dbctx.Context, dashboardID int64) ([]int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if dashboardID == 0 {
		return nil, nil
	}
	var ids []int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.DashboardSlice{}).
		Where("dashboard_id = ?", dashboardID).
		Pluck("slice_id", &ids).Error; err != nil {
		return nil, err
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
