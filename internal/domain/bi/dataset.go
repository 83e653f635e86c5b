package bi

import (
	"time"

	"github.com/google/uuid"
)

// Dataset is the logical table a chart queries.
type Dataset struct {
	ID   int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`

	TableName_ string `gorm:"column:table_name;not null" json:"table_name"`
	Schema     string `gorm:"column:table_schema" json:"schema,omitempty"`
	DatabaseID *int64 `gorm:"column:database_id;index" json:"database_id,omitempty"`

	IsManagedExternally bool `gorm:"column:is_managed_externally;not null;default:false" json:"is_managed_externally"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Dataset) TableName() string { return "datasets" }

// Database is the physical connection backing datasets.
type Database struct {
	ID   int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`

	DatabaseName string `gorm:"column:database_name;uniqueIndex;not null" json:"database_name"`
	SQLAlchemyURI string `gorm:"column:sqlalchemy_uri" json:"sqlalchemy_uri,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Database) TableName() string { return "dbs" }
