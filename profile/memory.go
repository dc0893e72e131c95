package profile

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is the in-process implementation of Repository. It is the
// canonical store for single-process embeddings and for tests.
type MemoryRepository struct {
	mu        sync.RWMutex
	byID      map[string]Profile
	byPhone   map[string]string
	currentID string

	idGen func() string
	now   func() time.Time
}

// NewMemoryRepository builds an empty in-memory profile repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]Profile),
		byPhone: make(map[string]string),
		idGen:   uuid.NewString,
		now:     time.Now,
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

func (m *MemoryRepository) Create(ctx context.Context, params CreateParams) (Profile, error) {
	if !params.Role.Valid() {
		return Profile{}, fmt.Errorf("profile: invalid role %q", params.Role)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byPhone[params.Phone]; exists {
		return Profile{}, ErrDuplicatePhone
	}

	p := Profile{
		ID:           m.idGen(),
		Name:         params.Name,
		Role:         params.Role,
		Phone:        params.Phone,
		Email:        params.Email,
		PasscodeHash: params.PasscodeHash,
		CreatedAt:    m.now().UTC(),
	}
	m.byID[p.ID] = p
	m.byPhone[p.Phone] = p.ID
	return p, nil
}

func (m *MemoryRepository) GetByID(ctx context.Context, id string) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byID[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryRepository) GetByPhone(ctx context.Context, phone string) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byPhone[phone]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return m.byID[id], nil
}

func (m *MemoryRepository) List(ctx context.Context) ([]Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	profiles := make([]Profile, 0, len(m.byID))
	for _, p := range m.byID {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].CreatedAt.Equal(profiles[j].CreatedAt) {
			return profiles[i].ID < profiles[j].ID
		}
		return profiles[i].CreatedAt.Before(profiles[j].CreatedAt)
	})
	return profiles, nil
}

func (m *MemoryRepository) SetCurrent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	m.currentID = id
	return nil
}

func (m *MemoryRepository) Current(ctx context.Context) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.currentID == "" {
		return Profile{}, ErrNotFound
	}
	return m.byID[m.currentID], nil
}
