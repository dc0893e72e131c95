package transaction

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is the in-process implementation of Repository. All
// mutators run under one lock, which gives the same per-id serialization the
// PG implementation gets from conditional UPDATEs.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]Transaction
	seq  map[string]int
	next int

	idGen func() string
	now   func() time.Time
}

// NewMemoryRepository builds an empty in-memory transaction repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  make(map[string]Transaction),
		seq:   make(map[string]int),
		idGen: uuid.NewString,
		now:   time.Now,
	}
}

// WithIDGenerator overrides id generation, for deterministic tests.
func (m *MemoryRepository) WithIDGenerator(gen func() string) *MemoryRepository {
	m.idGen = gen
	return m
}

// WithClock overrides the clock, for deterministic tests.
func (m *MemoryRepository) WithClock(now func() time.Time) *MemoryRepository {
	m.now = now
	return m
}

func (m *MemoryRepository) Create(ctx context.Context, params CreateParams) (Transaction, error) {
	if params.Amount <= 0 {
		return Transaction{}, fmt.Errorf("transaction: non-positive amount %d", params.Amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.now().UTC()
	t := Transaction{
		ID:          m.idGen(),
		Title:       params.Title,
		Amount:      params.Amount,
		Description: params.Description,
		Buyer:       params.Buyer,
		Seller:      params.Seller,
		Stage:       StageContractSent,
		Status:      StatusInProgress,
		AgreementID: params.AgreementID,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	m.next++
	m.byID[t.ID] = t
	m.seq[t.ID] = m.next
	return t, nil
}

func (m *MemoryRepository) GetByID(ctx context.Context, id string) (Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.byID[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return t, nil
}

func (m *MemoryRepository) List(ctx context.Context, filter Filter) ([]Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Transaction, 0, 8)
	for _, t := range m.byID {
		if t.Buyer.ProfileID != filter.ProfileID && t.Seller.ProfileID != filter.ProfileID {
			continue
		}
		if filter.Bucket != "" && t.Status != filter.Bucket {
			continue
		}
		out = append(out, t)
	}
	// newest first, matching the PG ordering
	sort.Slice(out, func(i, j int) bool {
		return m.seq[out[i].ID] > m.seq[out[j].ID]
	})
	return out, nil
}

func (m *MemoryRepository) ApplyStage(ctx context.Context, id string, from, to Stage, status Status) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.byID[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if t.Stage != from || t.Status != StatusInProgress {
		return Transaction{}, ErrConflict
	}

	t.Stage = to
	t.Status = status
	t.UpdatedAt = m.now().UTC()
	m.byID[id] = t
	return t, nil
}

func (m *MemoryRepository) MarkDisputed(ctx context.Context, id, details string, hasEvidence bool) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.byID[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if t.Status != StatusInProgress {
		return Transaction{}, ErrConflict
	}

	t.Status = StatusDisputed
	t.DisputeDetails = details
	t.HasEvidence = hasEvidence
	t.UpdatedAt = m.now().UTC()
	m.byID[id] = t
	return t, nil
}

func (m *MemoryRepository) SettleDispute(ctx context.Context, id string) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.byID[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if t.Status != StatusDisputed {
		return Transaction{}, ErrConflict
	}

	t.Stage = StageCompleted
	t.Status = StatusCompleted
	t.UpdatedAt = m.now().UTC()
	m.byID[id] = t
	return t, nil
}
