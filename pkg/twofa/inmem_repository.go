package twofa

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// InMemoryUserRepository keeps records in a map. Used by tests and the
// memory persistence mode.
type InMemoryUserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]UserRecord
}

func NewInMemoryUserRepository(users ...UserRecord) *InMemoryUserRepository {
	r := &InMemoryUserRepository{users: make(map[uuid.UUID]UserRecord, len(users))}
	for _, u := range users {
		r.users[u.ID] = cloneRecord(u)
	}
	return r
}

func (r *InMemoryUserRepository) CreateUser(ctx context.Context, user UserRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = cloneRecord(user)
	return nil
}

func (r *InMemoryUserRepository) GetUser(ctx context.Context, userID uuid.UUID) (UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.users[userID]
	if !ok {
		return UserRecord{}, ErrRecordNotFound
	}
	return cloneRecord(rec), nil
}

func (r *InMemoryUserRepository) UpdateTwoFactor(ctx context.Context, userID uuid.UUID, update TwoFactorUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.users[userID]
	if !ok {
		return ErrRecordNotFound
	}
	applyUpdate(&rec, update)
	r.users[userID] = rec
	return nil
}

func (r *InMemoryUserRepository) ReplaceBackupCodes(ctx context.Context, userID uuid.UUID, codes string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.users[userID]
	if !ok {
		return false, ErrRecordNotFound
	}
	if !rec.TwoFactorEnabled {
		return false, nil
	}
	rec.TwoFactorBackupCodes = &codes
	r.users[userID] = rec
	return true, nil
}

func (r *InMemoryUserRepository) RemoveBackupCodeIfPresent(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.users[userID]
	if !ok {
		return false, ErrRecordNotFound
	}
	removed, err := removeCode(&rec, code)
	if err != nil || !removed {
		return false, err
	}
	r.users[userID] = rec
	return true, nil
}
