package notification

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is the in-process implementation of Repository.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]Notification
	seq  map[string]int
	next int

	idGen func() string
	now   func() time.Time
}

// NewMemoryRepository builds an empty in-memory notification repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  make(map[string]Notification),
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

func (m *MemoryRepository) Create(ctx context.Context, params CreateParams) (Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := Notification{
		ID:          m.idGen(),
		RecipientID: params.RecipientID,
		Type:        params.Type,
		Title:       params.Title,
		Message:     params.Message,
		RelatedID:   params.RelatedID,
		CreatedAt:   m.now().UTC(),
	}
	m.next++
	m.byID[n.ID] = n
	m.seq[n.ID] = m.next
	return n, nil
}

func (m *MemoryRepository) GetByID(ctx context.Context, id string) (Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.byID[id]
	if !ok {
		return Notification{}, ErrNotFound
	}
	return n, nil
}

func (m *MemoryRepository) ListForRecipient(ctx context.Context, recipientID string) ([]Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Notification, 0, 8)
	for _, n := range m.byID {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return m.seq[out[i].ID] > m.seq[out[j].ID]
	})
	return out, nil
}

func (m *MemoryRepository) MarkRead(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	n.Read = true
	m.byID[id] = n
	return nil
}

func (m *MemoryRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, n := range m.byID {
		if n.RecipientID == recipientID && !n.Read {
			count++
		}
	}
	return count, nil
}
