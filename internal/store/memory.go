package store

import (
	"context"
	"sort"
	"sync"

	"github.com/sunset-protocol/sunset-indexer/internal/domain"
	"github.com/sunset-protocol/sunset-indexer/internal/store/schema"
)

// memoryStore is an in-memory Store implementation. It backs the aggregator
// tests and light single-process deployments that do not need Postgres.
type memoryStore struct {
	mu sync.RWMutex

	projects     map[string]*schema.Project
	deposits     []*schema.Deposit
	claims       []*schema.Claim
	sunsetEvents []*schema.SunsetEvent
	protocol     *schema.Protocol
	processed    map[domain.EventKey]struct{}
	cursors      map[string]uint64
	nextID       uint64
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() Store {
	return &memoryStore{
		projects:  make(map[string]*schema.Project),
		processed: make(map[domain.EventKey]struct{}),
		cursors:   make(map[string]uint64),
		nextID:    1,
	}
}

func (s *memoryStore) GetProject(_ context.Context, token string) (*schema.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	project, ok := s.projects[token]
	if !ok {
		return nil, nil
	}
	copied := *project
	return &copied, nil
}

func (s *memoryStore) ListProjects(_ context.Context, limit, offset int) ([]*schema.Project, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*schema.Project, 0, len(s.projects))
	for _, p := range s.projects {
		copied := *p
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].RegisteredAt.Before(all[j].RegisteredAt)
	})

	total := int64(len(all))
	if offset >= len(all) {
		return []*schema.Project{}, total, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (s *memoryStore) GetProtocol(_ context.Context) (*schema.Protocol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.protocol == nil {
		return nil, nil
	}
	copied := *s.protocol
	return &copied, nil
}

func (s *memoryStore) GetClaim(_ context.Context, token string, holder string) (*schema.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.claims {
		if c.Token == token && c.Holder == holder {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) ListDeposits(_ context.Context, token string, limit int) ([]*schema.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var deposits []*schema.Deposit
	for _, d := range s.deposits {
		if d.Token == token {
			copied := *d
			deposits = append(deposits, &copied)
		}
	}
	sort.Slice(deposits, func(i, j int) bool {
		if deposits[i].BlockNumber != deposits[j].BlockNumber {
			return deposits[i].BlockNumber > deposits[j].BlockNumber
		}
		return deposits[i].LogIndex > deposits[j].LogIndex
	})
	if limit > 0 && limit < len(deposits) {
		deposits = deposits[:limit]
	}
	return deposits, nil
}

func (s *memoryStore) ListSunsetEvents(_ context.Context, token string) ([]*schema.SunsetEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*schema.SunsetEvent
	for _, e := range s.sunsetEvents {
		if e.Token == token {
			copied := *e
			events = append(events, &copied)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})
	return events, nil
}

func (s *memoryStore) IsEventProcessed(_ context.Context, key domain.EventKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.processed[key]
	return ok, nil
}

func (s *memoryStore) ApplyMutation(_ context.Context, m *Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.processed[m.Key]; ok {
		return domain.ErrDuplicateEvent
	}
	s.processed[m.Key] = struct{}{}

	if m.Project != nil {
		copied := *m.Project
		s.projects[copied.Token] = &copied
	}
	if m.Deposit != nil {
		copied := *m.Deposit
		copied.ID = s.nextID
		s.nextID++
		s.deposits = append(s.deposits, &copied)
	}
	if m.Claim != nil {
		copied := *m.Claim
		copied.ID = s.nextID
		s.nextID++
		s.claims = append(s.claims, &copied)
	}
	if m.SunsetEvent != nil {
		copied := *m.SunsetEvent
		copied.ID = s.nextID
		s.nextID++
		s.sunsetEvents = append(s.sunsetEvents, &copied)
	}

	if !m.Protocol.IsZero() {
		if s.protocol == nil {
			s.protocol = &schema.Protocol{
				ID:             domain.ProtocolID,
				TotalDeposited: "0",
				TotalClaimed:   "0",
			}
		}
		s.protocol.TotalProjects += m.Protocol.Projects
		s.protocol.ActiveProjects += m.Protocol.Active
		s.protocol.SunsetProjects += m.Protocol.Sunset
		if m.Protocol.Deposited != nil {
			s.protocol.TotalDeposited = addAmount(s.protocol.TotalDeposited, m.Protocol.Deposited)
		}
		if m.Protocol.Claimed != nil {
			s.protocol.TotalClaimed = addAmount(s.protocol.TotalClaimed, m.Protocol.Claimed)
		}
	}

	return nil
}

func (s *memoryStore) GetBlockCursor(_ context.Context, chain string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cursors[chain], nil
}

func (s *memoryStore) SetBlockCursor(_ context.Context, chain string, blockNumber uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors[chain] = blockNumber
	return nil
}
