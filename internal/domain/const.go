package domain

import "time"

const (
	// Blockchain constants
	ETHEREUM_ZERO_ADDRESS = "0x0000000000000000000000000000000000000000"

	// ProtocolID is the singleton key for the protocol-wide aggregate
	ProtocolID = "sunset-protocol"
)

const (
	// AnnouncementPeriod is the mandatory delay between announcing and executing a sunset
	AnnouncementPeriod = 48 * time.Hour

	// MinCoveragePeriod is the minimum registration age before the owner can
	// trigger a sunset; also the ramp for the time-registered score factor
	MinCoveragePeriod = 30 * 24 * time.Hour

	// InactivityThreshold is the time without a meaningful deposit after which
	// the community can trigger a sunset
	InactivityThreshold = 120 * 24 * time.Hour
)

// MinMeaningfulDepositWei is the registry's minimum deposit (0.01 ETH) that
// resets the inactivity clock. The registry enforces it on-chain and reports
// the outcome via the FeeDeposited `meaningful` flag; the indexer trusts the
// flag rather than re-deriving it.
const MinMeaningfulDepositWei = "10000000000000000"
