package repository

import (
	"context"
	"sync"
	"time"

	"salon/internal/domain"
	"salon/internal/models"
)

// MemoryStateRepository is the single-process fallback for bot state.
// Idle conversations expire after ttl like their redis counterparts.
type MemoryStateRepository struct {
	mu         sync.Mutex
	states     map[int64]*models.ChatState
	rateLimits map[int64]*rateLimitEntry
	ttl        time.Duration
	now        func() time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

var _ domain.StateRepository = (*MemoryStateRepository)(nil)

func NewMemoryStateRepository(ttl time.Duration) *MemoryStateRepository {
	return &MemoryStateRepository{
		states:     make(map[int64]*models.ChatState),
		rateLimits: make(map[int64]*rateLimitEntry),
		ttl:        ttl,
		now:        time.Now,
	}
}

func (r *MemoryStateRepository) GetState(_ context.Context, chatID int64) (*models.ChatState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.states[chatID]
	if !ok {
		return nil, nil
	}
	if r.ttl > 0 && r.now().Sub(state.UpdatedAt) > r.ttl {
		delete(r.states, chatID)
		return nil, nil
	}
	cp := *state
	return &cp, nil
}

func (r *MemoryStateRepository) SetState(_ context.Context, state *models.ChatState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *state
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = r.now()
	}
	r.states[state.ChatID] = &cp
	return nil
}

func (r *MemoryStateRepository) ClearState(_ context.Context, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, chatID)
	return nil
}

func (r *MemoryStateRepository) CheckRateLimit(_ context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.rateLimits[chatID]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.rateLimits[chatID] = entry
	}
	entry.count++
	return entry.count <= limit, nil
}
