package repository

import (
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Proton-105/tapcoin-engine/internal/domain"
)

type memoryEntry struct {
	mu      sync.Mutex
	account *domain.Account
}

// MemoryAccountStore keeps accounts in process. Each account has its own
// mutex so different accounts never contend.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[int64]*memoryEntry
}

var _ AccountStore = (*MemoryAccountStore)(nil)

func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{accounts: make(map[int64]*memoryEntry)}
}

func (s *MemoryAccountStore) entry(id int64) (*memoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.accounts[id]
	return e, ok
}

func (s *MemoryAccountStore) Get(_ context.Context, id int64) (*domain.Account, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.account.Clone(), nil
}

func (s *MemoryAccountStore) Create(_ context.Context, a *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ID]; ok {
		return ErrAccountExists
	}
	s.accounts[a.ID] = &memoryEntry{account: a.Clone()}
	return nil
}

// Mutate runs fn on a private copy and swaps it in only when fn succeeds.
func (s *MemoryAccountStore) Mutate(ctx context.Context, id int64, fn MutateFunc) (*domain.Account, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	next := e.account.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	e.account = next
	return next.Clone(), nil
}

func (s *MemoryAccountStore) ListAutoclickerDue(_ context.Context, now time.Time) ([]int64, error) {
	s.mu.RLock()
	entries := make(map[int64]*memoryEntry, len(s.accounts))
	for id, e := range s.accounts {
		entries[id] = e
	}
	s.mu.RUnlock()

	var ids []int64
	for id, e := range entries {
		e.mu.Lock()
		due := !e.account.Banned && e.account.IsEffective(domain.BoosterAutoclicker, now)
		e.mu.Unlock()
		if due {
			ids = append(ids, id)
		}
	}

	slices.Sort(ids)
	return ids, nil
}

func (s *MemoryAccountStore) CountActiveReferrals(_ context.Context, referrerID int64, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.accounts {
		e.mu.Lock()
		a := e.account
		if a.ReferredBy != nil && *a.ReferredBy == referrerID && !a.LastActiveAt.Before(since) {
			count++
		}
		e.mu.Unlock()
	}
	return count, nil
}

// MemoryPromoStore keeps promo codes in process.
type MemoryPromoStore struct {
	mu    sync.Mutex
	codes map[string]*PromoCode
}

var _ PromoStore = (*MemoryPromoStore)(nil)

func NewMemoryPromoStore() *MemoryPromoStore {
	return &MemoryPromoStore{codes: make(map[string]*PromoCode)}
}

func clonePromo(p *PromoCode) *PromoCode {
	c := *p
	c.UsedBy = slices.Clone(p.UsedBy)
	if p.ExpiresAt != nil {
		exp := *p.ExpiresAt
		c.ExpiresAt = &exp
	}
	return &c
}

func (s *MemoryPromoStore) Get(_ context.Context, code string) (*PromoCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.codes[strings.ToUpper(code)]
	if !ok {
		return nil, ErrPromoNotFound
	}
	return clonePromo(p), nil
}

func (s *MemoryPromoStore) Create(_ context.Context, p *PromoCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToUpper(p.Code)
	if _, ok := s.codes[key]; ok {
		return ErrPromoExists
	}
	c := clonePromo(p)
	c.Code = key
	s.codes[key] = c
	return nil
}

func (s *MemoryPromoStore) Claim(_ context.Context, code string, accountID int64, now time.Time) (*PromoCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.codes[strings.ToUpper(code)]
	if !ok {
		return nil, ErrPromoNotFound
	}
	if err := p.checkClaim(accountID, now); err != nil {
		return nil, err
	}

	p.UsedBy = append(p.UsedBy, accountID)
	return clonePromo(p), nil
}

func (s *MemoryPromoStore) Release(_ context.Context, code string, accountID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.codes[strings.ToUpper(code)]
	if !ok {
		return ErrPromoNotFound
	}
	if i := slices.Index(p.UsedBy, accountID); i >= 0 {
		p.UsedBy = slices.Delete(p.UsedBy, i, i+1)
	}
	return nil
}

// MemoryAggregate is a lock-free in-process aggregate.
type MemoryAggregate struct {
	coins atomic.Int64
	taps  atomic.Int64
	users atomic.Int64
}

var _ AggregateCounter = (*MemoryAggregate)(nil)

func NewMemoryAggregate() *MemoryAggregate {
	return &MemoryAggregate{}
}

func (m *MemoryAggregate) Add(_ context.Context, d Delta) error {
	m.coins.Add(d.Coins)
	m.taps.Add(d.Taps)
	m.users.Add(d.Users)
	return nil
}

func (m *MemoryAggregate) Snapshot(context.Context) (Aggregate, error) {
	return Aggregate{
		TotalCoins: m.coins.Load(),
		TotalTaps:  m.taps.Load(),
		TotalUsers: m.users.Load(),
	}, nil
}
