// Package dto defines the REST response shapes. Wei amounts are decimal
// strings so uint256 values survive JSON round-trips intact.
package dto

import (
	"github.com/sunset-protocol/sunset-indexer/internal/scoring"
)

// ScoreResponse is the health score payload. Score and Breakdown are omitted
// for unregistered tokens; Registered disambiguates that case from a score of
// zero.
type ScoreResponse struct {
	Token      string             `json:"token"`
	Registered bool               `json:"registered"`
	Score      *int               `json:"score,omitempty"`
	Status     scoring.Status     `json:"status,omitempty"`
	Breakdown  *scoring.Breakdown `json:"breakdown,omitempty"`
}

// CoverageDetail groups the vault coverage numbers
type CoverageDetail struct {
	Deposited  string  `json:"deposited"`
	Actual     string  `json:"actual"`
	Multiplier float64 `json:"multiplier"`
	Effective  string  `json:"effective"`
}

// TriggerDetail reports one trigger path's eligibility
type TriggerDetail struct {
	CanTrigger           bool  `json:"canTrigger"`
	TimeRemainingSeconds int64 `json:"timeRemainingSeconds"`
}

// TriggersDetail groups both sunset trigger paths
type TriggersDetail struct {
	Owner     TriggerDetail `json:"owner"`
	Community TriggerDetail `json:"community"`
}

// SunsetDetail reports the announced-sunset countdown. CountdownSeconds is
// zero once the grace period has elapsed, never negative.
type SunsetDetail struct {
	State            string `json:"state"`
	Announced        bool   `json:"announced"`
	AnnouncedAt      *int64 `json:"announcedAt,omitempty"`
	AnnouncedBy      string `json:"announcedBy,omitempty"`
	ExecutableAt     *int64 `json:"executableAt,omitempty"`
	CountdownSeconds *int64 `json:"countdownSeconds,omitempty"`
	CanExecute       *bool  `json:"canExecute,omitempty"`
	Reason           string `json:"reason,omitempty"`
	ExecutedAt       *int64 `json:"executedAt,omitempty"`
	ExecutedBy       string `json:"executedBy,omitempty"`
}

// SnapshotDetail reports the vault snapshot taken when a sunset is triggered
type SnapshotDetail struct {
	Triggered   bool    `json:"triggered"`
	TriggeredAt *int64  `json:"triggeredAt,omitempty"`
	Balance     string  `json:"balance,omitempty"`
	Supply      string  `json:"supply,omitempty"`
	Block       *uint64 `json:"block,omitempty"`
}

// CoverageResponse is the full coverage payload for one token
type CoverageResponse struct {
	Token      string          `json:"token"`
	Registered bool            `json:"registered"`
	Tier       *int            `json:"tier,omitempty"`
	TierName   string          `json:"tierName,omitempty"`
	Coverage   *CoverageDetail `json:"coverage,omitempty"`
	Triggers   *TriggersDetail `json:"triggers,omitempty"`
	Sunset     *SunsetDetail   `json:"sunset,omitempty"`
	Snapshot   *SnapshotDetail `json:"snapshot,omitempty"`
}

// ProjectResponse is the project detail payload
type ProjectResponse struct {
	Token        string          `json:"token"`
	Registered   bool            `json:"registered"`
	Chain        string          `json:"chain,omitempty"`
	Owner        string          `json:"owner,omitempty"`
	FeeSplitter  string          `json:"feeSplitter,omitempty"`
	Tier         *int            `json:"tier,omitempty"`
	TierName     string          `json:"tierName,omitempty"`
	Active       *bool           `json:"active,omitempty"`
	RegisteredAt *int64          `json:"registeredAt,omitempty"`
	DepositCount *int64          `json:"depositCount,omitempty"`
	Score        *ScoreBody      `json:"score,omitempty"`
	Coverage     *CoverageDetail `json:"coverage,omitempty"`
	Sunset       *SunsetDetail   `json:"sunset,omitempty"`
	Snapshot     *SnapshotDetail `json:"snapshot,omitempty"`
}

// ScoreBody is the embedded score block inside project payloads
type ScoreBody struct {
	Score     int               `json:"score"`
	Status    scoring.Status    `json:"status"`
	Breakdown scoring.Breakdown `json:"breakdown"`
}

// ProjectListResponse is the paginated project listing
type ProjectListResponse struct {
	Projects []*ProjectResponse `json:"projects"`
	Total    int64              `json:"total"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

// ClaimableResponse reports a holder's claim standing for a token
type ClaimableResponse struct {
	Token      string `json:"token"`
	Holder     string `json:"holder"`
	Registered bool   `json:"registered"`
	Triggered  bool   `json:"triggered"`
	HasClaimed bool   `json:"hasClaimed"`
	Claimable  string `json:"claimable"`
	CanClaim   bool   `json:"canClaim"`
}

// ProtocolResponse reports the protocol-wide counters
type ProtocolResponse struct {
	TotalProjects  int64  `json:"totalProjects"`
	ActiveProjects int64  `json:"activeProjects"`
	SunsetProjects int64  `json:"sunsetProjects"`
	TotalDeposited string `json:"totalDeposited"`
	TotalClaimed   string `json:"totalClaimed"`
}

// ReindexResponse reports the outcome of a backfill run
type ReindexResponse struct {
	Token     string `json:"token"`
	FromBlock uint64 `json:"fromBlock"`
	ToBlock   uint64 `json:"toBlock"`
	Applied   int    `json:"applied"`
	Skipped   int    `json:"skipped"`
}
