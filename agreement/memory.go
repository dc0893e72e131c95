package agreement

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
	byID map[string]Agreement
	seq  map[string]int
	next int

	idGen func() string
	now   func() time.Time
}

// NewMemoryRepository builds an empty in-memory agreement repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  make(map[string]Agreement),
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

func (m *MemoryRepository) Create(ctx context.Context, params CreateParams) (Agreement, error) {
	if params.Amount <= 0 {
		return Agreement{}, fmt.Errorf("agreement: non-positive amount %d", params.Amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a := Agreement{
		ID:        m.idGen(),
		Title:     params.Title,
		Amount:    params.Amount,
		Type:      params.Type,
		Terms:     params.Terms,
		Sender:    params.Sender,
		Receiver:  params.Receiver,
		Status:    StatusPending,
		ListingID: params.ListingID,
		CreatedAt: m.now().UTC(),
	}
	m.next++
	m.byID[a.ID] = a
	m.seq[a.ID] = m.next
	return a, nil
}

func (m *MemoryRepository) GetByID(ctx context.Context, id string) (Agreement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.byID[id]
	if !ok {
		return Agreement{}, ErrNotFound
	}
	return a, nil
}

func (m *MemoryRepository) ListForProfile(ctx context.Context, profileID string) ([]Agreement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Agreement, 0, 8)
	for _, a := range m.byID {
		if a.Sender.ProfileID != profileID && a.Receiver.ProfileID != profileID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return m.seq[out[i].ID] > m.seq[out[j].ID]
	})
	return out, nil
}

func (m *MemoryRepository) Respond(ctx context.Context, id string, status Status, feedback string) (Agreement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok {
		return Agreement{}, ErrNotFound
	}
	if a.Status != StatusPending {
		return Agreement{}, ErrAlreadyResolved
	}

	ts := m.now().UTC()
	a.Status = status
	a.Feedback = feedback
	a.RespondedAt = &ts
	m.byID[id] = a
	return a, nil
}
