package bi

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Slice is a single chart. "Slice" is the legacy name and survives in the
// link table and the API; the layout tree calls the same thing a CHART
// component.
type Slice struct {
	ID   int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`

	SliceName string `gorm:"column:slice_name;not null" json:"slice_name"`
	VizType   string `gorm:"column:viz_type;index" json:"viz_type,omitempty"`
	DatasetID *int64 `gorm:"column:dataset_id;index" json:"dataset_id,omitempty"`

	Params datatypes.JSON `gorm:"column:params" json:"params,omitempty"`

	// Set for charts delivered by a template bundle; such charts are not
	// editable through the regular API.
	IsManagedExternally bool `gorm:"column:is_managed_externally;not null;default:false" json:"is_managed_externally"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Slice) TableName() string { return "slices" }
