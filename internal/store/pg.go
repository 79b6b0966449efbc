package store

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sunset-protocol/sunset-indexer/internal/domain"
	"github.com/sunset-protocol/sunset-indexer/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values fall back to defaults.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// AutoMigrate creates or updates all derived-state tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&schema.Project{},
		&schema.Deposit{},
		&schema.Claim{},
		&schema.SunsetEvent{},
		&schema.Protocol{},
		&schema.ProcessedEvent{},
		&schema.KeyValueStore{},
	)
}

// GetProject retrieves a project by its token address
func (s *pgStore) GetProject(ctx context.Context, token string) (*schema.Project, error) {
	var project schema.Project
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &project, nil
}

// ListProjects retrieves a page of projects ordered by registration time
func (s *pgStore) ListProjects(ctx context.Context, limit, offset int) ([]*schema.Project, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&schema.Project{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	var projects []*schema.Project
	err := s.db.WithContext(ctx).
		Order("registered_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&projects).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}

	return projects, total, nil
}

// GetProtocol retrieves the singleton protocol counters row
func (s *pgStore) GetProtocol(ctx context.Context) (*schema.Protocol, error) {
	var protocol schema.Protocol
	err := s.db.WithContext(ctx).Where("id = ?", domain.ProtocolID).First(&protocol).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get protocol: %w", err)
	}
	return &protocol, nil
}

// GetClaim retrieves a holder's claim for a token
func (s *pgStore) GetClaim(ctx context.Context, token string, holder string) (*schema.Claim, error) {
	var claim schema.Claim
	err := s.db.WithContext(ctx).Where("token = ? AND holder = ?", token, holder).First(&claim).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return &claim, nil
}

// ListDeposits retrieves a token's deposits, newest first
func (s *pgStore) ListDeposits(ctx context.Context, token string, limit int) ([]*schema.Deposit, error) {
	var deposits []*schema.Deposit
	err := s.db.WithContext(ctx).
		Where("token = ?", token).
		Order("block_number DESC, log_index DESC").
		Limit(limit).
		Find(&deposits).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits: %w", err)
	}
	return deposits, nil
}

// ListSunsetEvents retrieves a token's sunset lifecycle events, oldest first
func (s *pgStore) ListSunsetEvents(ctx context.Context, token string) ([]*schema.SunsetEvent, error) {
	var events []*schema.SunsetEvent
	err := s.db.WithContext(ctx).
		Where("token = ?", token).
		Order("block_number ASC, log_index ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sunset events: %w", err)
	}
	return events, nil
}

// IsEventProcessed checks whether an event key was already applied
func (s *pgStore) IsEventProcessed(ctx context.Context, key domain.EventKey) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&schema.ProcessedEvent{}).
		Where("tx_hash = ? AND log_index = ?", key.TxHash, key.LogIndex).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return count > 0, nil
}

// ApplyMutation applies all writes of a mutation in a single transaction.
// The processed-event key is inserted first; a conflict there means the event
// was already applied and the whole transaction is abandoned.
func (s *pgStore) ApplyMutation(ctx context.Context, m *Mutation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		processed := schema.ProcessedEvent{
			TxHash:    m.Key.TxHash,
			LogIndex:  m.Key.LogIndex,
			EventType: m.EventType,
			Token:     m.Token,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&processed)
		if res.Error != nil {
			return fmt.Errorf("failed to record processed event: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrDuplicateEvent
		}

		if m.Project != nil {
			if err := tx.Save(m.Project).Error; err != nil {
				return fmt.Errorf("failed to upsert project: %w", err)
			}
		}

		if m.Deposit != nil {
			if err := tx.Create(m.Deposit).Error; err != nil {
				return fmt.Errorf("failed to create deposit: %w", err)
			}
		}

		if m.Claim != nil {
			if err := tx.Create(m.Claim).Error; err != nil {
				return fmt.Errorf("failed to create claim: %w", err)
			}
		}

		if m.SunsetEvent != nil {
			if err := tx.Create(m.SunsetEvent).Error; err != nil {
				return fmt.Errorf("failed to create sunset event: %w", err)
			}
		}

		if !m.Protocol.IsZero() {
			if err := applyProtocolDelta(tx, m.Protocol); err != nil {
				return err
			}
		}

		return nil
	})
}

// applyProtocolDelta adjusts the singleton protocol row under a row lock,
// creating it lazily on the first event.
func applyProtocolDelta(tx *gorm.DB, delta ProtocolDelta) error {
	var protocol schema.Protocol
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", domain.ProtocolID).
		First(&protocol).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load protocol: %w", err)
		}
		protocol = schema.Protocol{
			ID:             domain.ProtocolID,
			TotalDeposited: "0",
			TotalClaimed:   "0",
		}
	}

	protocol.TotalProjects += delta.Projects
	protocol.ActiveProjects += delta.Active
	protocol.SunsetProjects += delta.Sunset
	if delta.Deposited != nil {
		protocol.TotalDeposited = addAmount(protocol.TotalDeposited, delta.Deposited)
	}
	if delta.Claimed != nil {
		protocol.TotalClaimed = addAmount(protocol.TotalClaimed, delta.Claimed)
	}

	if err := tx.Save(&protocol).Error; err != nil {
		return fmt.Errorf("failed to save protocol: %w", err)
	}
	return nil
}

func addAmount(current string, delta *big.Int) string {
	sum := new(big.Int).Add(domain.ParseAmount(current), delta)
	return sum.String()
}

// GetBlockCursor retrieves the last processed block number for a chain
func (s *pgStore) GetBlockCursor(ctx context.Context, chain string) (uint64, error) {
	key := fmt.Sprintf("block_cursor:%s", chain)

	var kv schema.KeyValueStore
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get block cursor: %w", err)
	}

	blockNumber, err := strconv.ParseUint(kv.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse block cursor: %w", err)
	}

	return blockNumber, nil
}

// SetBlockCursor stores the last processed block number for a chain
func (s *pgStore) SetBlockCursor(ctx context.Context, chain string, blockNumber uint64) error {
	key := fmt.Sprintf("block_cursor:%s", chain)
	value := strconv.FormatUint(blockNumber, 10)

	kv := schema.KeyValueStore{
		Key:   key,
		Value: value,
	}

	err := s.db.WithContext(ctx).Save(&kv).Error
	if err != nil {
		return fmt.Errorf("failed to set block cursor: %w", err)
	}

	return nil
}
