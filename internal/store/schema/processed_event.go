package schema

import (
	"time"

	"github.com/sunset-protocol/sunset-indexer/internal/domain"
)

// ProcessedEvent records the (tx_hash, log_index) key of every applied chain
// event. A row is inserted in the same transaction as the derived-state
// mutation, so replayed deliveries are detected and skipped.
type ProcessedEvent struct {
	TxHash    string           `gorm:"column:tx_hash;primaryKey;type:text"`
	LogIndex  uint             `gorm:"column:log_index;primaryKey"`
	EventType domain.EventType `gorm:"column:event_type;not null;type:text"`
	Token     string           `gorm:"column:token;not null;type:text;index:idx_processed_events_token"`
	CreatedAt time.Time        `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the ProcessedEvent model
func (ProcessedEvent) TableName() string {
	return "processed_events"
}
