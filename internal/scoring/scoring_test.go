package scoring

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sunset-protocol/sunset-indexer/internal/domain"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func wei(s string) *big.Int {
	v, _ := new(big.Int).SetString(s, 10)
	return v
}

func daysAgo(d int) time.Time {
	return now.Add(-time.Duration(d) * 24 * time.Hour)
}

// healthyInput is a fully covered, active, long-registered project
func healthyInput() Input {
	return Input{
		Active:                true,
		RegisteredAt:          daysAgo(60),
		LastMeaningfulDeposit: daysAgo(10),
		TotalDeposited:        wei("1000000000000000000"),
		ActualBalance:         wei("1000000000000000000"),
	}
}

func TestComputeScore(t *testing.T) {
	tests := []struct {
		name           string
		input          func() Input
		expectedScore  int
		expectedStatus Status
	}{
		{
			name:           "fully covered active project scores 100",
			input:          healthyInput,
			expectedScore:  100,
			expectedStatus: StatusHealthy,
		},
		{
			name: "fresh project loses only the time factor",
			input: func() Input {
				in := healthyInput()
				in.RegisteredAt = daysAgo(1)
				in.LastMeaningfulDeposit = daysAgo(1)
				return in
			},
			expectedScore:  80,
			expectedStatus: StatusHealthy,
		},
		{
			name: "stale project loses the activity factor",
			input: func() Input {
				in := healthyInput()
				in.RegisteredAt = daysAgo(200)
				in.LastMeaningfulDeposit = daysAgo(130)
				return in
			},
			expectedScore:  60,
			expectedStatus: StatusAtRisk,
		},
		{
			name: "half coverage halves the coverage factor",
			input: func() Input {
				in := healthyInput()
				in.ActualBalance = wei("500000000000000000")
				return in
			},
			expectedScore:  80,
			expectedStatus: StatusHealthy,
		},
		{
			name: "drained vault drops the coverage factor entirely",
			input: func() Input {
				in := healthyInput()
				in.ActualBalance = wei("0")
				return in
			},
			expectedScore:  60,
			expectedStatus: StatusAtRisk,
		},
		{
			name: "no deposits ever means zero coverage",
			input: func() Input {
				in := healthyInput()
				in.TotalDeposited = wei("0")
				in.ActualBalance = wei("0")
				return in
			},
			expectedScore:  60,
			expectedStatus: StatusAtRisk,
		},
		{
			name: "overfunded vault is capped at the factor maximum",
			input: func() Input {
				in := healthyInput()
				in.ActualBalance = wei("9000000000000000000")
				return in
			},
			expectedScore:  100,
			expectedStatus: StatusHealthy,
		},
		{
			name: "announced sunset pins the score at 10",
			input: func() Input {
				in := healthyInput()
				in.Announced = true
				return in
			},
			expectedScore:  10,
			expectedStatus: StatusCritical,
		},
		{
			name: "triggered sunset dominates everything",
			input: func() Input {
				in := healthyInput()
				in.Announced = true
				in.Triggered = true
				return in
			},
			expectedScore:  0,
			expectedStatus: StatusSunset,
		},
		{
			name: "executed sunset reads as sunset",
			input: func() Input {
				in := healthyInput()
				in.Active = false
				return in
			},
			expectedScore:  0,
			expectedStatus: StatusSunset,
		},
		{
			name: "critical threshold",
			input: func() Input {
				in := healthyInput()
				in.ActualBalance = wei("0")
				in.LastMeaningfulDeposit = daysAgo(130)
				return in
			},
			expectedScore:  20,
			expectedStatus: StatusCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComputeScore(tt.input(), now)
			assert.Equal(t, tt.expectedScore, result.Score)
			assert.Equal(t, tt.expectedStatus, result.Status)
		})
	}
}

func TestComputeScore_NilAmounts(t *testing.T) {
	result := ComputeScore(Input{
		Active:                true,
		RegisteredAt:          daysAgo(60),
		LastMeaningfulDeposit: daysAgo(1),
	}, now)
	assert.Equal(t, 60, result.Score)
	assert.Equal(t, float64(0), result.Breakdown.Coverage)
}

func TestActivityFactor_Steps(t *testing.T) {
	tests := []struct {
		name     string
		since    time.Duration
		expected float64
	}{
		{name: "recent deposit", since: 10 * 24 * time.Hour, expected: 40},
		{name: "over a quarter of the threshold", since: 31 * 24 * time.Hour, expected: 30},
		{name: "over half the threshold", since: 61 * 24 * time.Hour, expected: 20},
		{name: "past the threshold", since: 121 * 24 * time.Hour, expected: 0},
		{name: "exactly at the threshold", since: domain.InactivityThreshold, expected: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, activityFactor(tt.since))
		})
	}
}

func TestTimeFactor_Ramp(t *testing.T) {
	assert.Equal(t, float64(0), timeFactor(0))
	assert.Equal(t, float64(10), timeFactor(15*24*time.Hour))
	assert.Equal(t, float64(20), timeFactor(domain.MinCoveragePeriod))
	assert.Equal(t, float64(20), timeFactor(365*24*time.Hour))
}

func TestTierMultiplier(t *testing.T) {
	assert.Equal(t, 1.2, TierMultiplier(domain.TierStandard))
	assert.Equal(t, 1.5, TierMultiplier(domain.TierPremium))
}

func TestEffectiveCoverage(t *testing.T) {
	tests := []struct {
		name     string
		actual   *big.Int
		tier     domain.Tier
		expected string
	}{
		{name: "standard tier", actual: wei("1000000000000000000"), tier: domain.TierStandard, expected: "1200000000000000000"},
		{name: "premium tier", actual: wei("1000000000000000000"), tier: domain.TierPremium, expected: "1500000000000000000"},
		{name: "integer division truncates", actual: wei("5"), tier: domain.TierPremium, expected: "7"},
		{name: "nil balance", actual: nil, tier: domain.TierStandard, expected: "0"},
		{name: "zero balance", actual: wei("0"), tier: domain.TierPremium, expected: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EffectiveCoverage(tt.actual, tt.tier).String())
		})
	}
}

func TestCanOwnerTrigger(t *testing.T) {
	can, remaining := CanOwnerTrigger(domain.SunsetStateActive, daysAgo(31), now)
	assert.True(t, can)
	assert.Equal(t, time.Duration(0), remaining)

	can, remaining = CanOwnerTrigger(domain.SunsetStateActive, daysAgo(29), now)
	assert.False(t, can)
	assert.Equal(t, 24*time.Hour, remaining)

	can, remaining = CanOwnerTrigger(domain.SunsetStateAnnounced, daysAgo(100), now)
	assert.False(t, can)
	assert.Equal(t, time.Duration(0), remaining)
}

func TestCanCommunityTrigger(t *testing.T) {
	can, remaining := CanCommunityTrigger(domain.SunsetStateActive, daysAgo(121), now)
	assert.True(t, can)
	assert.Equal(t, time.Duration(0), remaining)

	can, remaining = CanCommunityTrigger(domain.SunsetStateActive, daysAgo(100), now)
	assert.False(t, can)
	assert.Equal(t, 20*24*time.Hour, remaining)

	can, _ = CanCommunityTrigger(domain.SunsetStateExecuted, daysAgo(365), now)
	assert.False(t, can)
}

func TestCanClaim(t *testing.T) {
	assert.True(t, CanClaim(true, false, wei("10")))
	assert.False(t, CanClaim(false, false, wei("10")))
	assert.False(t, CanClaim(true, true, wei("10")))
	assert.False(t, CanClaim(true, false, wei("0")))
	assert.False(t, CanClaim(true, false, nil))
}
