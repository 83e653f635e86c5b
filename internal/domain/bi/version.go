package bi

import (
	"time"

	"gorm.io/datatypes"
)

// DashboardVersion is an append-only snapshot of a dashboard's layout and
// metadata taken after every successful save. Rows are never rewritten;
// Comment is the only mutable field. Restores produce new versions rather
// than editing historical ones.
type DashboardVersion struct {
	ID          int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	DashboardID int64 `gorm:"column:dashboard_id;not null;uniqueIndex:uq_dashboard_version_number" json:"dashboard_id"`

	// Monotonically increasing per dashboard, starting at 1. Allocated as
	// max+1 inside the same transaction that inserts the row.
	VersionNumber int `gorm:"column:version_number;not null;uniqueIndex:uq_dashboard_version_number" json:"version_number"`

	PositionJSON datatypes.JSON `gorm:"column:position_json" json:"position_json,omitempty"`
	MetadataJSON datatypes.JSON `gorm:"column:metadata_json" json:"metadata_json,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	CreatedBy *int64    `gorm:"column:created_by" json:"created_by,omitempty"`
	Comment   *string   `gorm:"column:comment;type:text" json:"comment,omitempty"`
}

func (DashboardVersion) TableName() string { return "dashboard_versions" }
