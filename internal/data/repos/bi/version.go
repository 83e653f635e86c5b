package bi

import (
	"strings"
	"time"

	"gorm.io/gorm"

	types "github.com/prismbi/prism-backend/internal/domain"
	"github.com/prismbi/prism-backend/internal/pkg/dbctx"
	"github.com/prismbi/prism-backend/internal/platform/logger"
)

// VersionStore is the append-only persistence for dashboard snapshots.
// Rows are only ever inserted, trimmed by retention, or touched through
// UpdateComment.
type VersionStore interface {
	Create(dbc dbctx.Context, row *types.DashboardVersion) error
	NextVersionNumber(dbc dbctx.Context, dashboardID int64) (int, error)
	ListForDashboard(dbc dbctx.Context, dashboardID int64) ([]*types.DashboardVersion, error)
	GetByID(dbc dbctx.Context, versionID int64) (*types.DashboardVersion, error)
	UpdateComment(dbc dbctx.Context, versionID, dashboardID int64, comment *string) (*types.DashboardVersion, error)
	Trim(dbc dbctx.Context, dashboardID int64, keepN int) error
}

type versionStore struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVersionStore(db *gorm.DB, baseLog *logger.Logger) VersionStore {
	return &versionStore{db: db, log: baseLog.With("repo", "VersionStore")}
}

func (r *versionStore) Create(dbc dbctx.Context, row *types.DashboardVersion) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.DashboardID == 0 || row.VersionNumber <= 0 {
		return nil
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	row.Comment = normalizeComment(row.Comment)
	return t.WithContext(dbc.Ctx).Create(row).Error
}

// NextVersionNumber allocates max+1 for the dashboard. It must run inside
// the same transaction that inserts the snapshot; concurrent savers then
// either serialize on the dashboard row or trip the unique index and
// retry.
func (r *versionStore) NextVersionNumber(dbc dbctx.Context, dashboardID int64) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var maxNumber int
	if err := t.WithContext(dbc.Ctx).
		Model(&types.DashboardVersion{}).
		Where("dashboard_id = ?", dashboardID).
		Select("COALESCE(MAX(version_number), 0)").
		Scan(&maxNumber).Error; err != nil {
		return 0, err
	}
	return maxNumber + 1, nil
}

func (r *versionStore) ListForDashboard(dbc dbctx.Context, dashboardID int64) ([]*types.DashboardVersion, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if dashboardID == 0 {
		return nil, nil
	}
	var rows []*types.DashboardVersion
	if err := t.WithContext(dbc.Ctx).
		Where("dashboard_id = ?", dashboardID).
		Order("version_number DESC, created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *versionStore) GetByID(dbc dbctx.Context, versionID int64) (*types.DashboardVersion, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if versionID == 0 {
		return nil, nil
	}
	row := &types.DashboardVersion{}
	if err := t.WithContext(dbc.Ctx).
		Where("id = ?", versionID).
		Limit(1).
		Find(row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return row, nil
}

// UpdateComment mutates the one mutable field of a snapshot. The update
// only applies when the version belongs to dashboardID; a mismatch
// returns nil so callers surface 404 instead of leaking cross-dashboard
// writes.
func (r *versionStore) UpdateComment(dbc dbctx.Context, versionID, dashboardID int64, comment *string) (*types.DashboardVersion, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if versionID == 0 || dashboardID == 0 {
		return nil, nil
	}
	normalized := normalizeComment(comment)
	res := t.WithContext(dbc.Ctx).
		Model(&types.DashboardVersion{}).
		Where("id = ? AND dashboard_id = ?", versionID, dashboardID).
		Update("comment", normalized)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return r.GetByID(dbc, versionID)
}

// Trim deletes all but the keepN most-recent snapshots for the dashboard
// in one bulk statement. keepN <= 0 means unlimited retention.
func (r *versionStore) Trim(dbc dbctx.Context, dashboardID int64, keepN int) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if dashboardID == 0 || keepN <= 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).Exec(`
		DELETE FROM dashboard_versions
		WHERE dashboard_id = ?
		  AND id NOT IN (
			SELECT id FROM (
				SELECT id FROM dashboard_versions
				WHERE dashboard_id = ?
				ORDER BY version_number DESC
				LIMIT ?
			) AS keep
		  )`,
		dashboardID, dashboardID, keepN,
	).Error
}

func normalizeComment(comment *string) *string {
	if comment == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*comment)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
