package bi

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Dashboard is the aggregate root this subsystem versions and restores.
// The chart association is modeled through DashboardSlice directly; the
// link table is the single source of truth for "which charts does this
// dashboard contain" and is only ever rewritten from the layout tree.
type Dashboard struct {
	ID   int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	Slug *string   `gorm:"uniqueIndex" json:"slug,omitempty"`

	DashboardTitle string `gorm:"column:dashboard_title;not null" json:"dashboard_title"`
	Description    string `gorm:"column:description;type:text" json:"description,omitempty"`
	CSS            string `gorm:"column:css;type:text" json:"css,omitempty"`

	PositionJSON datatypes.JSON `gorm:"column:position_json" json:"position_json,omitempty"`
	Metadata     datatypes.JSON `gorm:"column:json_metadata" json:"json_metadata,omitempty"`

	// LocalizedContent maps localizable field -> locale -> translated value.
	LocalizedContent datatypes.JSON `gorm:"column:localized_content" json:"localized_content,omitempty"`
	CustomTags       datatypes.JSON `gorm:"column:custom_tags" json:"custom_tags,omitempty"`

	Published            bool   `gorm:"column:published;not null;default:false" json:"published"`
	CertifiedBy          string `gorm:"column:certified_by" json:"certified_by,omitempty"`
	CertificationDetails string `gorm:"column:certification_details" json:"certification_details,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Dashboard) TableName() string { return "dashboards" }

// DashboardSlice is one row of the dashboard<->chart link table.
type DashboardSlice struct {
	ID          int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	DashboardID int64 `gorm:"column:dashboard_id;not null;uniqueIndex:uq_dashboard_slice" json:"dashboard_id"`
	SliceID     int64 `gorm:"column:slice_id;not null;uniqueIndex:uq_dashboard_slice" json:"slice_id"`
}

func (DashboardSlice) TableName() string { return "dashboard_slices" }
