package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Chain represents the blockchain network identifier using CAIP-2 format
type Chain string

const (
	ChainBaseMainnet Chain = "eip155:8453"
	ChainBaseSepolia Chain = "eip155:84532"
)

// IsValidChain checks if a chain is valid
func IsValidChain(chain Chain) bool {
	return chain == ChainBaseMainnet || chain == ChainBaseSepolia
}

// Contract identifies which protocol contract emitted an event
type Contract string

const (
	ContractRegistry Contract = "registry"
	ContractVault    Contract = "vault"
)

// EventType represents the type of protocol event
type EventType string

const (
	// Registry events
	EventTypeProjectRegistered EventType = "project_registered"
	EventTypeFeeDeposited      EventType = "fee_deposited"
	EventTypeSunsetAnnounced   EventType = "sunset_announced"
	EventTypeSunsetCancelled   EventType = "sunset_cancelled"
	EventTypeSunsetExecuted    EventType = "sunset_executed"

	// Vault events
	EventTypeDeposited       EventType = "deposited"
	EventTypeSunsetTriggered EventType = "sunset_triggered"
	EventTypeClaimed         EventType = "claimed"
)

// Tier is the coverage tier chosen at registration
type Tier uint8

const (
	TierStandard Tier = 0
	TierPremium  Tier = 1
)

// String returns the human-readable tier name
func (t Tier) String() string {
	if t == TierPremium {
		return "Premium"
	}
	return "Standard"
}

// Valid checks if the tier is one of the known values
func (t Tier) Valid() bool {
	return t == TierStandard || t == TierPremium
}

// SunsetState is the lifecycle state of a project's sunset.
// Active -> Announced -> Executed; Announced -> Active via cancellation.
type SunsetState string

const (
	SunsetStateActive    SunsetState = "Active"
	SunsetStateAnnounced SunsetState = "Announced"
	SunsetStateExecuted  SunsetState = "Executed"
)

// EventParams carries the decoded parameters of a protocol event.
// Only the fields relevant to the event type are set; amounts are decimal
// strings to support the full uint256 range.
type EventParams struct {
	Owner          string `json:"owner,omitempty"`
	FeeSplitter    string `json:"fee_splitter,omitempty"`
	Tier           Tier   `json:"tier,omitempty"`
	Amount         string `json:"amount,omitempty"`
	NewBalance     string `json:"new_balance,omitempty"`
	Meaningful     bool   `json:"meaningful,omitempty"`
	AnnouncedBy    string `json:"announced_by,omitempty"`
	ExecutableAt   int64  `json:"executable_at,omitempty"`
	Reason         string `json:"reason,omitempty"`
	CancelledBy    string `json:"cancelled_by,omitempty"`
	ExecutedBy     string `json:"executed_by,omitempty"`
	ActualBalance  string `json:"actual_balance,omitempty"`
	SnapshotSupply string `json:"snapshot_supply,omitempty"`
	Holder         string `json:"holder,omitempty"`
}

// ProtocolEvent represents a normalized protocol event
// This is the standard format published to NATS
type ProtocolEvent struct {
	Chain       Chain       `json:"chain"`                // e.g., "eip155:8453"
	Contract    Contract    `json:"contract"`             // registry or vault
	EventType   EventType   `json:"event_type"`           // see EventType constants
	Token       string      `json:"token"`                // project token address
	Params      EventParams `json:"params"`               // decoded event parameters
	TxHash      string      `json:"tx_hash"`              // transaction hash
	LogIndex    uint        `json:"log_index"`            // log index within the block
	BlockNumber uint64      `json:"block_number"`         // block number
	BlockHash   *string     `json:"block_hash,omitempty"` // block hash (optional, nil if not available)
	Timestamp   time.Time   `json:"timestamp"`            // block timestamp
}

// Valid performs structural validation of the event
func (e *ProtocolEvent) Valid() bool {
	if !IsValidChain(e.Chain) {
		return false
	}
	if !common.IsHexAddress(e.Token) {
		return false
	}
	if e.TxHash == "" {
		return false
	}

	// Validate different fields based on event type
	switch e.EventType {
	case EventTypeProjectRegistered:
		return common.IsHexAddress(e.Params.Owner) &&
			common.IsHexAddress(e.Params.FeeSplitter) &&
			e.Params.Tier.Valid()
	case EventTypeFeeDeposited:
		return validAmount(e.Params.Amount)
	case EventTypeDeposited:
		return validAmount(e.Params.Amount) && validAmount(e.Params.NewBalance)
	case EventTypeSunsetAnnounced:
		return common.IsHexAddress(e.Params.AnnouncedBy) && e.Params.ExecutableAt > 0
	case EventTypeSunsetCancelled:
		return common.IsHexAddress(e.Params.CancelledBy)
	case EventTypeSunsetExecuted:
		return common.IsHexAddress(e.Params.ExecutedBy)
	case EventTypeSunsetTriggered:
		return validAmount(e.Params.ActualBalance) && validAmount(e.Params.SnapshotSupply)
	case EventTypeClaimed:
		return common.IsHexAddress(e.Params.Holder) && validAmount(e.Params.Amount)
	default:
		return false
	}
}

// Key returns the idempotency key for the event
func (e *ProtocolEvent) Key() EventKey {
	return EventKey{TxHash: e.TxHash, LogIndex: e.LogIndex}
}

// EventKey is the (txHash, logIndex) idempotency key of a chain event
type EventKey struct {
	TxHash   string `json:"tx_hash"`
	LogIndex uint   `json:"log_index"`
}

// NormalizeAddress normalizes an address to its EIP-55 checksummed form
func NormalizeAddress(address string) string {
	return common.HexToAddress(address).Hex()
}

// ParseAmount parses a decimal wei string into a big.Int.
// Empty or malformed strings yield zero.
func ParseAmount(s string) *big.Int {
	if s == "" {
		return new(big.Int)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return new(big.Int)
	}
	return v
}

// validAmount checks if a string is a valid non-negative decimal amount
func validAmount(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
