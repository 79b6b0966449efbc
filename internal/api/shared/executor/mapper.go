package executor

import (
	"math/big"
	"time"

	"github.com/sunset-protocol/sunset-indexer/internal/api/shared/dto"
	"github.com/sunset-protocol/sunset-indexer/internal/domain"
	"github.com/sunset-protocol/sunset-indexer/internal/scoring"
)

// Snapshot-to-response mapping. All time fields go out as unix seconds; all
// wei amounts as decimal strings.

func scoreInput(s *Snapshot) scoring.Input {
	return scoring.Input{
		Active:                s.Active,
		Announced:             s.SunsetState == domain.SunsetStateAnnounced,
		Triggered:             s.Triggered,
		RegisteredAt:          s.RegisteredAt,
		LastMeaningfulDeposit: s.LastMeaningfulDeposit,
		TotalDeposited:        s.TotalDeposited,
		ActualBalance:         s.ActualBalance,
	}
}

func buildScoreResponse(s *Snapshot, now time.Time) *dto.ScoreResponse {
	response := &dto.ScoreResponse{
		Token:      s.Token,
		Registered: s.Registered,
	}
	if !s.Registered {
		return response
	}

	health := scoring.ComputeScore(scoreInput(s), now)
	response.Score = &health.Score
	response.Status = health.Status
	response.Breakdown = &health.Breakdown
	return response
}

func buildCoverageResponse(s *Snapshot, now time.Time) *dto.CoverageResponse {
	response := &dto.CoverageResponse{
		Token:      s.Token,
		Registered: s.Registered,
	}
	if !s.Registered {
		return response
	}

	tier := int(s.Tier)
	response.Tier = &tier
	response.TierName = s.Tier.String()
	response.Coverage = buildCoverageDetail(s)
	response.Triggers = buildTriggers(s, now)
	response.Sunset = buildSunsetDetail(s, now)
	response.Snapshot = buildSnapshotDetail(s)
	return response
}

func buildProjectResponse(s *Snapshot, now time.Time) *dto.ProjectResponse {
	response := &dto.ProjectResponse{
		Token:      s.Token,
		Registered: s.Registered,
	}
	if !s.Registered {
		return response
	}

	tier := int(s.Tier)
	active := s.Active
	registeredAt := s.RegisteredAt.Unix()
	depositCount := s.DepositCount

	response.Chain = string(s.Chain)
	response.Owner = s.Owner
	response.FeeSplitter = s.FeeSplitter
	response.Tier = &tier
	response.TierName = s.Tier.String()
	response.Active = &active
	response.RegisteredAt = &registeredAt
	response.DepositCount = &depositCount
	response.Coverage = buildCoverageDetail(s)
	response.Sunset = buildSunsetDetail(s, now)
	response.Snapshot = buildSnapshotDetail(s)

	health := scoring.ComputeScore(scoreInput(s), now)
	response.Score = &dto.ScoreBody{
		Score:     health.Score,
		Status:    health.Status,
		Breakdown: health.Breakdown,
	}
	return response
}

func buildCoverageDetail(s *Snapshot) *dto.CoverageDetail {
	return &dto.CoverageDetail{
		Deposited:  weiString(s.TotalDeposited),
		Actual:     weiString(s.ActualBalance),
		Multiplier: scoring.TierMultiplier(s.Tier),
		Effective:  scoring.EffectiveCoverage(s.ActualBalance, s.Tier).String(),
	}
}

func buildTriggers(s *Snapshot, now time.Time) *dto.TriggersDetail {
	ownerCan, ownerRemaining := scoring.CanOwnerTrigger(s.SunsetState, s.RegisteredAt, now)
	communityCan, communityRemaining := scoring.CanCommunityTrigger(s.SunsetState, s.LastMeaningfulDeposit, now)

	return &dto.TriggersDetail{
		Owner: dto.TriggerDetail{
			CanTrigger:           ownerCan,
			TimeRemainingSeconds: int64(ownerRemaining / time.Second),
		},
		Community: dto.TriggerDetail{
			CanTrigger:           communityCan,
			TimeRemainingSeconds: int64(communityRemaining / time.Second),
		},
	}
}

func buildSunsetDetail(s *Snapshot, now time.Time) *dto.SunsetDetail {
	detail := &dto.SunsetDetail{
		State:     string(s.SunsetState),
		Announced: s.SunsetState == domain.SunsetStateAnnounced,
		Reason:    s.Reason,
	}
	if s.SunsetState == domain.SunsetStateExecuted {
		detail.ExecutedBy = s.ExecutedBy
		if s.ExecutedAt != nil {
			executedAt := s.ExecutedAt.Unix()
			detail.ExecutedAt = &executedAt
		}
		return detail
	}
	if !detail.Announced {
		return detail
	}

	detail.AnnouncedBy = s.AnnouncedBy
	if s.AnnouncedAt != nil {
		announcedAt := s.AnnouncedAt.Unix()
		detail.AnnouncedAt = &announcedAt
	}
	if s.ExecutableAt != nil {
		executableAt := s.ExecutableAt.Unix()
		detail.ExecutableAt = &executableAt

		countdown := int64(s.ExecutableAt.Sub(now) / time.Second)
		if countdown < 0 {
			countdown = 0
		}
		canExecute := countdown == 0
		detail.CountdownSeconds = &countdown
		detail.CanExecute = &canExecute
	}
	return detail
}

func buildSnapshotDetail(s *Snapshot) *dto.SnapshotDetail {
	detail := &dto.SnapshotDetail{Triggered: s.Triggered}
	if !s.Triggered {
		return detail
	}

	if s.TriggeredAt != nil {
		triggeredAt := s.TriggeredAt.Unix()
		detail.TriggeredAt = &triggeredAt
	}
	if s.SnapshotBalance != nil {
		detail.Balance = s.SnapshotBalance.String()
	}
	if s.SnapshotSupply != nil {
		detail.Supply = s.SnapshotSupply.String()
	}
	if s.SnapshotBlock != nil {
		block := *s.SnapshotBlock
		detail.Block = &block
	}
	return detail
}

func weiString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
