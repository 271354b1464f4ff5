package twofa

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
)

const usersFileName = "users.json"

// FileUserRepository implements UserTwoFactorRepository on a JSON file.
// Every write rewrites the whole file through a temp file and rename.
type FileUserRepository struct {
	dataDir string
	users   map[uuid.UUID]UserRecord
	mutex   sync.RWMutex
}

// NewFileUserRepository creates the data directory if needed and loads any existing users.
func NewFileUserRepository(dataDir string) (*FileUserRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileUserRepository{
		dataDir: dataDir,
		users:   make(map[uuid.UUID]UserRecord),
	}

	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

func (r *FileUserRepository) CreateUser(ctx context.Context, user UserRecord) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	prev, existed := r.users[user.ID]
	r.users[user.ID] = cloneRecord(user)

	if err := r.save(); err != nil {
		if existed {
			r.users[user.ID] = prev
		} else {
			delete(r.users, user.ID)
		}
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (r *FileUserRepository) GetUser(ctx context.Context, userID uuid.UUID) (UserRecord, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	rec, ok := r.users[userID]
	if !ok {
		return UserRecord{}, ErrRecordNotFound
	}
	return cloneRecord(rec), nil
}

func (r *FileUserRepository) UpdateTwoFactor(ctx context.Context, userID uuid.UUID, update TwoFactorUpdate) error {
	return r.mutate(userID, func(rec *UserRecord) (bool, error) {
		applyUpdate(rec, update)
		return true, nil
	})
}

func (r *FileUserRepository) ReplaceBackupCodes(ctx context.Context, userID uuid.UUID, codes string) (bool, error) {
	var replaced bool
	err := r.mutate(userID, func(rec *UserRecord) (bool, error) {
		if !rec.TwoFactorEnabled {
			return false, nil
		}
		rec.TwoFactorBackupCodes = &codes
		replaced = true
		return true, nil
	})
	return replaced, err
}

func (r *FileUserRepository) RemoveBackupCodeIfPresent(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	var removed bool
	err := r.mutate(userID, func(rec *UserRecord) (bool, error) {
		var err error
		removed, err = removeCode(rec, code)
		return removed, err
	})
	return removed, err
}

// mutate runs fn on a copy of the record under the write lock and persists
// it when fn reports a change. The in-memory map is left untouched if the
// save fails.
func (r *FileUserRepository) mutate(userID uuid.UUID, fn func(rec *UserRecord) (bool, error)) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	prev, ok := r.users[userID]
	if !ok {
		return ErrRecordNotFound
	}

	rec := cloneRecord(prev)
	changed, err := fn(&rec)
	if err != nil || !changed {
		return err
	}

	r.users[userID] = rec
	if err := r.save(); err != nil {
		// Rollback
		r.users[userID] = prev
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// load reads users from file
func (r *FileUserRepository) load() error {
	filePath := filepath.Join(r.dataDir, usersFileName)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var users []UserRecord
	if err := json.Unmarshal(data, &users); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	r.users = make(map[uuid.UUID]UserRecord, len(users))
	for _, u := range users {
		r.users[u.ID] = u
	}

	return nil
}

// save writes users to file atomically
func (r *FileUserRepository) save() error {
	users := make([]UserRecord, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID.String() < users[j].ID.String() })

	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tempFile := filepath.Join(r.dataDir, usersFileName+".tmp")
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	finalFile := filepath.Join(r.dataDir, usersFileName)
	if err := os.Rename(tempFile, finalFile); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
