package listing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is the in-process implementation of Repository.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]Listing
	seq  map[string]int
	next int

	idGen func() string
	now   func() time.Time
}

// NewMemoryRepository builds an empty in-memory listing repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  make(map[string]Listing),
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

func (m *MemoryRepository) Create(ctx context.Context, params CreateParams) (Listing, error) {
	if params.Price <= 0 {
		return Listing{}, fmt.Errorf("listing: non-positive price %d", params.Price)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l := Listing{
		ID:          m.idGen(),
		SellerID:    params.SellerID,
		SellerPhone: params.SellerPhone,
		Title:       params.Title,
		Kind:        params.Kind,
		Price:       params.Price,
		Terms:       params.Terms,
		Description: params.Description,
		Status:      StatusActive,
		CreatedAt:   m.now().UTC(),
	}
	m.next++
	m.byID[l.ID] = l
	m.seq[l.ID] = m.next
	return l, nil
}

func (m *MemoryRepository) GetByID(ctx context.Context, id string) (Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.byID[id]
	if !ok {
		return Listing{}, ErrNotFound
	}
	return l, nil
}

func (m *MemoryRepository) ListActiveBySeller(ctx context.Context, sellerPhone string) ([]Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Listing, 0, 8)
	for _, l := range m.byID {
		if l.SellerPhone == sellerPhone && l.Status == StatusActive {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return m.seq[out[i].ID] > m.seq[out[j].ID]
	})
	return out, nil
}

func (m *MemoryRepository) Deactivate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	l.Status = StatusInactive
	m.byID[id] = l
	return nil
}
