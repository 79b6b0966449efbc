package schema

import "time"

// Protocol represents the protocol table - a singleton row of protocol-wide
// counters. Every counter is recomputable from the other tables; the row is a
// materialized convenience, not a source of truth.
type Protocol struct {
	// ID is the singleton key ("sunset-protocol")
	ID string `gorm:"column:id;primaryKey;type:text"`
	// TotalProjects is the number of registered projects
	TotalProjects int64 `gorm:"column:total_projects;not null;default:0"`
	// ActiveProjects is the number of projects whose sunset has not been triggered
	ActiveProjects int64 `gorm:"column:active_projects;not null;default:0"`
	// SunsetProjects is the number of projects with a triggered sunset
	SunsetProjects int64 `gorm:"column:sunset_projects;not null;default:0"`
	// TotalDeposited is the protocol-wide cumulative deposits in wei
	TotalDeposited string `gorm:"column:total_deposited;not null;default:0;type:numeric(78,0)"`
	// TotalClaimed is the protocol-wide cumulative claims in wei
	TotalClaimed string `gorm:"column:total_claimed;not null;default:0;type:numeric(78,0)"`

	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Protocol model
func (Protocol) TableName() string {
	return "protocol"
}
