package schema

import (
	"time"

	"github.com/sunset-protocol/sunset-indexer/internal/domain"
)

// Project represents the projects table - the primary derived entity for a
// registered token's coverage and sunset state
type Project struct {
	// Token is the project's token contract address (checksummed, primary key)
	Token string `gorm:"column:token;primaryKey;type:text"`
	// Chain identifies the blockchain network (e.g., "eip155:8453")
	Chain domain.Chain `gorm:"column:chain;not null;type:text"`
	// Owner is the registered project owner's address
	Owner string `gorm:"column:owner;not null;type:text;index:idx_projects_owner"`
	// FeeSplitter is the fee splitter contract routing trading fees to the vault
	FeeSplitter string `gorm:"column:fee_splitter;not null;type:text"`
	// Tier is the coverage tier chosen at registration (0 standard, 1 premium)
	Tier domain.Tier `gorm:"column:tier;not null;type:smallint"`
	// Active is false once the project's sunset has been triggered in the vault
	Active bool `gorm:"column:active;not null;default:true"`
	// RegisteredAt is the blockchain timestamp of the registration event
	RegisteredAt time.Time `gorm:"column:registered_at;not null;type:timestamptz"`
	// TotalDeposited is the cumulative sum of all deposits in wei (string to support uint256)
	TotalDeposited string `gorm:"column:total_deposited;not null;default:0;type:numeric(78,0)"`
	// ActualBalance is the vault's authoritative current balance in wei
	ActualBalance string `gorm:"column:actual_balance;not null;default:0;type:numeric(78,0)"`
	// DepositCount is the number of recorded deposits
	DepositCount int64 `gorm:"column:deposit_count;not null;default:0"`
	// LastDepositAt is the timestamp of the last meaningful deposit (resets the inactivity clock)
	LastDepositAt *time.Time `gorm:"column:last_deposit_at;type:timestamptz"`

	// Sunset lifecycle
	SunsetState        domain.SunsetState `gorm:"column:sunset_state;not null;default:Active;type:text;index:idx_projects_sunset_state"`
	SunsetAnnouncedAt  *time.Time         `gorm:"column:sunset_announced_at;type:timestamptz"`
	SunsetExecutableAt *time.Time         `gorm:"column:sunset_executable_at;type:timestamptz"`
	SunsetReason       *string            `gorm:"column:sunset_reason;type:text"`
	SunsetAnnouncedBy  *string            `gorm:"column:sunset_announced_by;type:text"`
	SunsetExecutedAt   *time.Time         `gorm:"column:sunset_executed_at;type:timestamptz"`
	SunsetExecutedBy   *string            `gorm:"column:sunset_executed_by;type:text"`

	// Vault snapshot, set exactly once when the sunset is triggered
	SunsetTriggeredAt *time.Time `gorm:"column:sunset_triggered_at;type:timestamptz"`
	SnapshotBalance   *string    `gorm:"column:snapshot_balance;type:numeric(78,0)"`
	SnapshotSupply    *string    `gorm:"column:snapshot_supply;type:numeric(78,0)"`
	SnapshotBlock     *uint64    `gorm:"column:snapshot_block;type:bigint"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`

	// Associations
	Deposits     []Deposit     `gorm:"foreignKey:Token;references:Token;constraint:OnDelete:CASCADE"`
	Claims       []Claim       `gorm:"foreignKey:Token;references:Token;constraint:OnDelete:CASCADE"`
	SunsetEvents []SunsetEvent `gorm:"foreignKey:Token;references:Token;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Project model
func (Project) TableName() string {
	return "projects"
}
