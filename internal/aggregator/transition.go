package aggregator

import (
	"fmt"
	"math/big"
	"time"

	"gorm.io/datatypes"

	"github.com/sunset-protocol/sunset-indexer/internal/domain"
	"github.com/sunset-protocol/sunset-indexer/internal/store"
	"github.com/sunset-protocol/sunset-indexer/internal/store/schema"
)

// Transition computes the store mutation for one event given the current
// project state. It is a pure function: no I/O, no clock, no side effects.
//
// project is nil when the token has never been seen; vault events for an
// unseen token create the project lazily. hasClaimed reports whether the
// event's holder already has a claim row (Claimed events only). raw is the
// serialized source event kept on audit rows.
//
// A domain.ErrInvariantViolation return means the event contradicts the
// current state and must be skipped without mutating anything.
func Transition(project *schema.Project, hasClaimed bool, e *domain.ProtocolEvent, raw []byte) (*store.Mutation, error) {
	token := domain.NormalizeAddress(e.Token)

	m := &store.Mutation{
		Key:       e.Key(),
		EventType: e.EventType,
		Token:     token,
	}

	// Work on a copy so a rejected transition leaves the caller's state alone
	var current schema.Project
	exists := project != nil
	if exists {
		current = *project
	} else {
		current = newLazyProject(token, e)
	}

	switch e.EventType {
	case domain.EventTypeProjectRegistered:
		if exists && current.Owner != "" {
			return nil, fmt.Errorf("%w: project %s already registered", domain.ErrInvariantViolation, token)
		}
		current.Owner = domain.NormalizeAddress(e.Params.Owner)
		current.FeeSplitter = domain.NormalizeAddress(e.Params.FeeSplitter)
		current.Tier = e.Params.Tier
		current.Active = true
		current.RegisteredAt = e.Timestamp
		current.SunsetState = domain.SunsetStateActive
		m.Protocol = store.ProtocolDelta{Projects: 1, Active: 1}

	case domain.EventTypeFeeDeposited:
		amount := domain.ParseAmount(e.Params.Amount)
		current.TotalDeposited = addWei(current.TotalDeposited, amount)
		current.DepositCount++
		if e.Params.Meaningful {
			// lastMeaningfulDeposit is monotonically non-decreasing
			if current.LastDepositAt == nil || e.Timestamp.After(*current.LastDepositAt) {
				ts := e.Timestamp
				current.LastDepositAt = &ts
			}
		}
		m.Deposit = depositRow(token, schema.DepositSourceFee, e, nil, raw)

	case domain.EventTypeDeposited:
		// newBalance is vault-reported ground truth, not an increment
		current.ActualBalance = e.Params.NewBalance
		current.DepositCount++
		newBalance := e.Params.NewBalance
		m.Deposit = depositRow(token, schema.DepositSourceVault, e, &newBalance, raw)
		m.Protocol = store.ProtocolDelta{Deposited: domain.ParseAmount(e.Params.Amount)}

	case domain.EventTypeSunsetAnnounced:
		if current.SunsetState != domain.SunsetStateActive {
			return nil, fmt.Errorf("%w: announce for %s in state %s", domain.ErrInvariantViolation, token, current.SunsetState)
		}
		announcedAt := e.Timestamp
		executableAt := time.Unix(e.Params.ExecutableAt, 0).UTC()
		announcedBy := domain.NormalizeAddress(e.Params.AnnouncedBy)
		current.SunsetState = domain.SunsetStateAnnounced
		current.SunsetAnnouncedAt = &announcedAt
		current.SunsetExecutableAt = &executableAt
		current.SunsetAnnouncedBy = &announcedBy
		if e.Params.Reason != "" {
			reason := e.Params.Reason
			current.SunsetReason = &reason
		}
		m.SunsetEvent = &schema.SunsetEvent{
			Token:        token,
			Kind:         schema.SunsetEventKindAnnounced,
			Actor:        &announcedBy,
			ExecutableAt: &executableAt,
			Reason:       current.SunsetReason,
			TxHash:       e.TxHash,
			LogIndex:     e.LogIndex,
			BlockNumber:  e.BlockNumber,
			Timestamp:    e.Timestamp,
			Raw:          datatypes.JSON(raw),
		}

	case domain.EventTypeSunsetCancelled:
		if current.SunsetState != domain.SunsetStateAnnounced {
			return nil, fmt.Errorf("%w: cancel for %s in state %s", domain.ErrInvariantViolation, token, current.SunsetState)
		}
		cancelledBy := domain.NormalizeAddress(e.Params.CancelledBy)
		current.SunsetState = domain.SunsetStateActive
		current.SunsetAnnouncedAt = nil
		current.SunsetExecutableAt = nil
		current.SunsetAnnouncedBy = nil
		current.SunsetReason = nil
		m.SunsetEvent = &schema.SunsetEvent{
			Token:       token,
			Kind:        schema.SunsetEventKindCancelled,
			Actor:       &cancelledBy,
			TxHash:      e.TxHash,
			LogIndex:    e.LogIndex,
			BlockNumber: e.BlockNumber,
			Timestamp:   e.Timestamp,
			Raw:         datatypes.JSON(raw),
		}

	case domain.EventTypeSunsetExecuted:
		if current.SunsetState != domain.SunsetStateAnnounced {
			return nil, fmt.Errorf("%w: execute for %s in state %s", domain.ErrInvariantViolation, token, current.SunsetState)
		}
		if current.SunsetExecutableAt != nil && e.Timestamp.Before(*current.SunsetExecutableAt) {
			return nil, fmt.Errorf("%w: execute for %s before executable time %s", domain.ErrInvariantViolation, token, current.SunsetExecutableAt)
		}
		executedBy := domain.NormalizeAddress(e.Params.ExecutedBy)
		executedAt := e.Timestamp
		current.SunsetState = domain.SunsetStateExecuted
		current.Active = false
		current.SunsetExecutedAt = &executedAt
		current.SunsetExecutedBy = &executedBy
		m.Protocol = store.ProtocolDelta{Active: -1, Sunset: 1}
		m.SunsetEvent = &schema.SunsetEvent{
			Token:       token,
			Kind:        schema.SunsetEventKindExecuted,
			Actor:       &executedBy,
			TxHash:      e.TxHash,
			LogIndex:    e.LogIndex,
			BlockNumber: e.BlockNumber,
			Timestamp:   e.Timestamp,
			Raw:         datatypes.JSON(raw),
		}

	case domain.EventTypeSunsetTriggered:
		// First trigger wins; the snapshot is immutable once set
		if current.SnapshotSupply != nil {
			return nil, fmt.Errorf("%w: snapshot for %s already set", domain.ErrInvariantViolation, token)
		}
		triggeredAt := e.Timestamp
		snapshotBalance := e.Params.ActualBalance
		snapshotSupply := e.Params.SnapshotSupply
		snapshotBlock := e.BlockNumber
		current.ActualBalance = e.Params.ActualBalance
		current.SunsetTriggeredAt = &triggeredAt
		current.SnapshotBalance = &snapshotBalance
		current.SnapshotSupply = &snapshotSupply
		current.SnapshotBlock = &snapshotBlock
		m.SunsetEvent = &schema.SunsetEvent{
			Token:          token,
			Kind:           schema.SunsetEventKindTriggered,
			ActualBalance:  &snapshotBalance,
			SnapshotSupply: &snapshotSupply,
			TxHash:         e.TxHash,
			LogIndex:       e.LogIndex,
			BlockNumber:    e.BlockNumber,
			Timestamp:      e.Timestamp,
			Raw:            datatypes.JSON(raw),
		}

	case domain.EventTypeClaimed:
		holder := domain.NormalizeAddress(e.Params.Holder)
		if hasClaimed {
			return nil, fmt.Errorf("%w: holder %s already claimed for %s", domain.ErrInvariantViolation, holder, token)
		}
		amount := domain.ParseAmount(e.Params.Amount)
		current.ActualBalance = subWei(current.ActualBalance, amount)
		m.Claim = &schema.Claim{
			Token:       token,
			Holder:      holder,
			Amount:      e.Params.Amount,
			TxHash:      e.TxHash,
			LogIndex:    e.LogIndex,
			BlockNumber: e.BlockNumber,
			Timestamp:   e.Timestamp,
			Raw:         datatypes.JSON(raw),
		}
		m.Protocol = store.ProtocolDelta{Claimed: amount}

	default:
		return nil, fmt.Errorf("%w: unknown event type %q", domain.ErrMalformedEvent, e.EventType)
	}

	m.Project = &current
	return m, nil
}

// newLazyProject builds the placeholder row for a token whose vault events
// arrive before its registration. Owner stays empty until ProjectRegistered.
func newLazyProject(token string, e *domain.ProtocolEvent) schema.Project {
	return schema.Project{
		Token:          token,
		Chain:          e.Chain,
		Tier:           domain.TierStandard,
		Active:         true,
		RegisteredAt:   e.Timestamp,
		TotalDeposited: "0",
		ActualBalance:  "0",
		SunsetState:    domain.SunsetStateActive,
	}
}

func depositRow(token string, source schema.DepositSource, e *domain.ProtocolEvent, newBalance *string, raw []byte) *schema.Deposit {
	return &schema.Deposit{
		Token:       token,
		Source:      source,
		Amount:      e.Params.Amount,
		NewBalance:  newBalance,
		Meaningful:  e.Params.Meaningful,
		TxHash:      e.TxHash,
		LogIndex:    e.LogIndex,
		BlockNumber: e.BlockNumber,
		Timestamp:   e.Timestamp,
		Raw:         datatypes.JSON(raw),
	}
}

func addWei(current string, delta *big.Int) string {
	return new(big.Int).Add(domain.ParseAmount(current), delta).String()
}

// subWei subtracts clamping at zero; the vault never pays out more than it
// holds, so a negative result indicates upstream data drift, not debt.
func subWei(current string, delta *big.Int) string {
	result := new(big.Int).Sub(domain.ParseAmount(current), delta)
	if result.Sign() < 0 {
		return "0"
	}
	return result.String()
}
