package schema

import (
	"time"

	"gorm.io/datatypes"
)

// Claim represents the claims table - one row per holder payout after a sunset.
// The unique (token, holder) index enforces the claim-once invariant.
type Claim struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Token references the sunset project
	Token string `gorm:"column:token;not null;type:text;uniqueIndex:idx_claims_token_holder,priority:1"`
	// Holder is the claiming token holder's address
	Holder string `gorm:"column:holder;not null;type:text;uniqueIndex:idx_claims_token_holder,priority:2"`
	// Amount is the claimed payout in wei
	Amount string `gorm:"column:amount;not null;type:numeric(78,0)"`
	// TxHash and LogIndex form the idempotency key of the originating chain event
	TxHash   string `gorm:"column:tx_hash;not null;type:text;uniqueIndex:idx_claims_tx_hash_log_index,priority:1"`
	LogIndex uint   `gorm:"column:log_index;not null;uniqueIndex:idx_claims_tx_hash_log_index,priority:2"`
	// BlockNumber is the block number where this event was recorded
	BlockNumber uint64 `gorm:"column:block_number;not null;type:bigint"`
	// Timestamp is the blockchain timestamp of the claim
	Timestamp time.Time `gorm:"column:timestamp;not null;type:timestamptz"`
	// Raw contains the complete raw event data as JSON
	Raw datatypes.JSON `gorm:"column:raw;type:jsonb"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Claim model
func (Claim) TableName() string {
	return "claims"
}
