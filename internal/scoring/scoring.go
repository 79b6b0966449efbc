// Package scoring holds the canonical health-score and coverage arithmetic.
// Every caller (REST handlers, chain-backed reads, store-backed reads) must
// delegate here; the formula exists exactly once.
package scoring

import (
	"math"
	"math/big"
	"time"

	"github.com/sunset-protocol/sunset-indexer/internal/domain"
)

// Score factor caps and status thresholds
const (
	coverageFactorMax = 40.0
	activityFactorMax = 40.0
	timeFactorMax     = 20.0

	healthyThreshold = 70
	atRiskThreshold  = 40
)

// Status is the human-readable health classification
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusAtRisk   Status = "at-risk"
	StatusCritical Status = "critical"
	StatusSunset   Status = "sunset"
)

// Breakdown reports the individual score factors before rounding
type Breakdown struct {
	Coverage       float64 `json:"coverage"`
	Activity       float64 `json:"activity"`
	TimeRegistered float64 `json:"timeRegistered"`
}

// HealthScore is the normalized health view of a project
type HealthScore struct {
	Score     int       `json:"score"`
	Status    Status    `json:"status"`
	Breakdown Breakdown `json:"breakdown"`
}

// Input is the project snapshot the calculator operates on. Amounts are
// integer wei; nil amounts are treated as zero.
type Input struct {
	Active                bool
	Announced             bool
	Triggered             bool
	RegisteredAt          time.Time
	LastMeaningfulDeposit time.Time
	TotalDeposited        *big.Int
	ActualBalance         *big.Int
}

// ComputeScore produces the health score for a project snapshot.
//
// Precedence is strict: a triggered or executed sunset dominates everything
// and yields {0, sunset}; a pending announcement yields {10, critical};
// otherwise the three factors (coverage 40, activity 40, time registered 20)
// are summed and rounded once at the end.
func ComputeScore(in Input, now time.Time) HealthScore {
	if in.Triggered || !in.Active {
		return HealthScore{Score: 0, Status: StatusSunset}
	}

	if in.Announced {
		return HealthScore{Score: 10, Status: StatusCritical}
	}

	breakdown := Breakdown{
		Coverage:       coverageFactor(in.ActualBalance, in.TotalDeposited),
		Activity:       activityFactor(now.Sub(in.LastMeaningfulDeposit)),
		TimeRegistered: timeFactor(now.Sub(in.RegisteredAt)),
	}

	total := breakdown.Coverage + breakdown.Activity + breakdown.TimeRegistered
	score := int(math.Round(total))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return HealthScore{
		Score:     score,
		Status:    statusForScore(score),
		Breakdown: breakdown,
	}
}

// coverageFactor is min(actualBalance/totalDeposited*40, 40), or 0 when
// nothing was ever deposited.
func coverageFactor(actual, deposited *big.Int) float64 {
	if deposited == nil || deposited.Sign() <= 0 {
		return 0
	}
	if actual == nil || actual.Sign() <= 0 {
		return 0
	}

	ratio, _ := new(big.Float).Quo(
		new(big.Float).SetInt(actual),
		new(big.Float).SetInt(deposited),
	).Float64()

	return math.Min(ratio*coverageFactorMax, coverageFactorMax)
}

// activityFactor is a step function on the time since the last meaningful
// deposit, against the 120-day inactivity threshold.
func activityFactor(sinceDeposit time.Duration) float64 {
	switch {
	case sinceDeposit > domain.InactivityThreshold:
		return 0
	case sinceDeposit > domain.InactivityThreshold/2:
		return 20
	case sinceDeposit > domain.InactivityThreshold/4:
		return 30
	default:
		return activityFactorMax
	}
}

// timeFactor ramps linearly to 20 over the 30-day minimum coverage period
func timeFactor(registered time.Duration) float64 {
	if registered >= domain.MinCoveragePeriod {
		return timeFactorMax
	}
	if registered <= 0 {
		return 0
	}
	return math.Floor(float64(registered) * timeFactorMax / float64(domain.MinCoveragePeriod))
}

func statusForScore(score int) Status {
	switch {
	case score >= healthyThreshold:
		return StatusHealthy
	case score >= atRiskThreshold:
		return StatusAtRisk
	default:
		return StatusCritical
	}
}

// TierMultiplier returns the display multiplier for a coverage tier
func TierMultiplier(tier domain.Tier) float64 {
	if tier == domain.TierPremium {
		return 1.5
	}
	return 1.2
}

// EffectiveCoverage is actualBalance scaled by the tier multiplier, computed
// with exact integer ratios over wei (6/5 for Standard, 3/2 for Premium) so
// no precision is lost before display formatting.
func EffectiveCoverage(actual *big.Int, tier domain.Tier) *big.Int {
	if actual == nil || actual.Sign() <= 0 {
		return new(big.Int)
	}

	num, den := big.NewInt(6), big.NewInt(5)
	if tier == domain.TierPremium {
		num, den = big.NewInt(3), big.NewInt(2)
	}

	result := new(big.Int).Mul(actual, num)
	return result.Div(result, den)
}

// CanOwnerTrigger reports whether the project owner may announce a sunset:
// the project must be in the Active sunset state and registered for at least
// the minimum coverage period. timeRemaining is zero once eligible.
func CanOwnerTrigger(state domain.SunsetState, registeredAt, now time.Time) (bool, time.Duration) {
	if state != domain.SunsetStateActive {
		return false, 0
	}
	return eligibleAfter(now.Sub(registeredAt), domain.MinCoveragePeriod)
}

// CanCommunityTrigger reports whether the community may trigger a sunset due
// to inactivity: the project must be in the Active sunset state with no
// meaningful deposit for the inactivity threshold.
func CanCommunityTrigger(state domain.SunsetState, lastMeaningfulDeposit, now time.Time) (bool, time.Duration) {
	if state != domain.SunsetStateActive {
		return false, 0
	}
	return eligibleAfter(now.Sub(lastMeaningfulDeposit), domain.InactivityThreshold)
}

func eligibleAfter(elapsed, threshold time.Duration) (bool, time.Duration) {
	if elapsed >= threshold {
		return true, 0
	}
	return false, threshold - elapsed
}

// CanClaim is the local claim-eligibility predicate: the sunset must have
// been triggered, the holder must not have claimed before, and there must be
// something to claim.
func CanClaim(triggered bool, hasClaimed bool, claimable *big.Int) bool {
	return triggered && !hasClaimed && claimable != nil && claimable.Sign() > 0
}
