package schema

import (
	"time"

	"gorm.io/datatypes"
)

// DepositSource identifies which contract reported the deposit
type DepositSource string

const (
	// DepositSourceFee is a FeeDeposited event from the registry
	DepositSourceFee DepositSource = "fee"
	// DepositSourceVault is a Deposited event from the vault
	DepositSourceVault DepositSource = "vault"
)

// Deposit represents the deposits table - append-only record of every deposit event
type Deposit struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Token references the project this deposit belongs to
	Token string `gorm:"column:token;not null;type:text;index:idx_deposits_token"`
	// Source identifies the emitting contract (fee or vault)
	Source DepositSource `gorm:"column:source;not null;type:text"`
	// Amount is the deposited amount in wei
	Amount string `gorm:"column:amount;not null;type:numeric(78,0)"`
	// NewBalance is the vault balance after the deposit (vault deposits only)
	NewBalance *string `gorm:"column:new_balance;type:numeric(78,0)"`
	// Meaningful indicates the deposit met the registry minimum and reset the inactivity clock
	Meaningful bool `gorm:"column:meaningful;not null;default:false"`
	// TxHash and LogIndex form the idempotency key of the originating chain event
	TxHash   string `gorm:"column:tx_hash;not null;type:text;uniqueIndex:idx_deposits_tx_hash_log_index,priority:1"`
	LogIndex uint   `gorm:"column:log_index;not null;uniqueIndex:idx_deposits_tx_hash_log_index,priority:2"`
	// BlockNumber is the block number where this event was recorded
	BlockNumber uint64 `gorm:"column:block_number;not null;type:bigint"`
	// Timestamp is the blockchain timestamp of the deposit
	Timestamp time.Time `gorm:"column:timestamp;not null;type:timestamptz"`
	// Raw contains the complete raw event data as JSON for debugging and analysis
	Raw datatypes.JSON `gorm:"column:raw;type:jsonb"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Deposit model
func (Deposit) TableName() string {
	return "deposits"
}
