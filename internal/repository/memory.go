package repository

import (
	"context"
	"sync"

	"points_bot/internal/model"
)

// MemoryBackend keeps the persisted ledger in memory. Tests use it as a
// stand-in for the file and Postgres backends.
type MemoryBackend struct {
	mu      sync.Mutex
	current []*model.User
	backup  []*model.User
	saves   int
	// SaveErr, when set, is returned by every Save.
	SaveErr error
	// LoadErr, when set, is returned by Load.
	LoadErr error
}

func NewMemoryBackend(users ...*model.User) *MemoryBackend {
	return &MemoryBackend{current: cloneUsers(users)}
}

func (b *MemoryBackend) Load(_ context.Context) ([]*model.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.LoadErr != nil {
		return nil, b.LoadErr
	}
	return cloneUsers(b.current), nil
}

func (b *MemoryBackend) Save(_ context.Context, users []*model.User) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.SaveErr != nil {
		return b.SaveErr
	}
	b.backup = b.current
	b.current = cloneUsers(users)
	b.saves++
	return nil
}

// Snapshot returns the last saved ledger and the backup taken before it.
func (b *MemoryBackend) Snapshot() (current, backup []*model.User) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return cloneUsers(b.current), cloneUsers(b.backup)
}

func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.saves
}

func cloneUsers(users []*model.User) []*model.User {
	if users == nil {
		return nil
	}
	out := make([]*model.User, len(users))
	for i, u := range users {
		out[i] = u.Clone()
	}
	return out
}
