package schema

import (
	"time"

	"gorm.io/datatypes"
)

// SunsetEventKind represents a step in the sunset lifecycle
type SunsetEventKind string

const (
	SunsetEventKindAnnounced SunsetEventKind = "announced"
	SunsetEventKindCancelled SunsetEventKind = "cancelled"
	SunsetEventKindExecuted  SunsetEventKind = "executed"
	SunsetEventKindTriggered SunsetEventKind = "triggered"
)

// SunsetEvent represents the sunset_events table - append-only audit trail of
// sunset lifecycle transitions
type SunsetEvent struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Token references the project this event relates to
	Token string `gorm:"column:token;not null;type:text;index:idx_sunset_events_token"`
	// Kind identifies the lifecycle step (announced, cancelled, executed, triggered)
	Kind SunsetEventKind `gorm:"column:kind;not null;type:text"`
	// Actor is the address that initiated the transition (nil for vault-triggered snapshots)
	Actor *string `gorm:"column:actor;type:text"`
	// ExecutableAt is the earliest execution time (announced events only)
	ExecutableAt *time.Time `gorm:"column:executable_at;type:timestamptz"`
	// Reason is the free-form announcement reason (announced events only)
	Reason *string `gorm:"column:reason;type:text"`
	// ActualBalance is the vault balance snapshot (triggered events only)
	ActualBalance *string `gorm:"column:actual_balance;type:numeric(78,0)"`
	// SnapshotSupply is the token supply snapshot (triggered events only)
	SnapshotSupply *string `gorm:"column:snapshot_supply;type:numeric(78,0)"`
	// TxHash and LogIndex form the idempotency key of the originating chain event
	TxHash   string `gorm:"column:tx_hash;not null;type:text;uniqueIndex:idx_sunset_events_tx_hash_log_index,priority:1"`
	LogIndex uint   `gorm:"column:log_index;not null;uniqueIndex:idx_sunset_events_tx_hash_log_index,priority:2"`
	// BlockNumber is the block number where this event was recorded
	BlockNumber uint64 `gorm:"column:block_number;not null;type:bigint"`
	// Timestamp is the blockchain timestamp of the event
	Timestamp time.Time `gorm:"column:timestamp;not null;type:timestamptz"`
	// Raw contains the complete raw event data as JSON
	Raw datatypes.JSON `gorm:"column:raw;type:jsonb"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the SunsetEvent model
func (SunsetEvent) TableName() string {
	return "sunset_events"
}
