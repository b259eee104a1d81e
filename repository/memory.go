package repository

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ruteri/wallet-kernel/interfaces"
)

// MemoryRepository is a process-local UserRepository, used by tests and by
// deployments without a data directory.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*interfaces.UserEntity
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]*interfaces.UserEntity)}
}

func (r *MemoryRepository) Create(_ context.Context, user *interfaces.UserEntity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.Username]; ok {
		return fmt.Errorf("%w: %s", interfaces.ErrUserExists, user.Username)
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	stored := cloneUser(user)
	stored.WalletTransactions = nil
	r.users[user.Username] = stored
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, username string) (*interfaces.UserEntity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[username]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrUserNotFound, username)
	}
	return cloneUser(user), nil
}

func (r *MemoryRepository) Update(_ context.Context, user *interfaces.UserEntity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[user.Username]
	if !ok {
		return fmt.Errorf("%w: %s", interfaces.ErrUserNotFound, user.Username)
	}
	user.UpdatedAt = time.Now().UTC()
	stored.EncryptedPassword = bytes.Clone(user.EncryptedPassword)
	stored.Salt = bytes.Clone(user.Salt)
	stored.KycStatus = user.KycStatus
	stored.UpdatedAt = user.UpdatedAt
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[username]; !ok {
		return fmt.Errorf("%w: %s", interfaces.ErrUserNotFound, username)
	}
	delete(r.users, username)
	return nil
}

func (r *MemoryRepository) List(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.users))
	for name := range r.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (r *MemoryRepository) AppendWalletTransaction(_ context.Context, username string, tx interfaces.WalletTxInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[username]
	if !ok {
		return fmt.Errorf("%w: %s", interfaces.ErrUserNotFound, username)
	}
	tx.Date = tx.Date.UTC()
	user.WalletTransactions = append(user.WalletTransactions, tx)
	return nil
}

func cloneUser(u *interfaces.UserEntity) *interfaces.UserEntity {
	c := *u
	c.EncryptedPassword = bytes.Clone(u.EncryptedPassword)
	c.Salt = bytes.Clone(u.Salt)
	c.WalletTransactions = slices.Clone(u.WalletTransactions)
	return &c
}
