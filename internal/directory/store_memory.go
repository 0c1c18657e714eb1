package directory

import (
	"context"
	"strings"
	"sync"

	"github.com/cdobey/legitify/internal/sentinel"
	id "github.com/cdobey/legitify/pkg/domain"
)

// InMemoryStore holds directory records in memory for tests and development.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[id.UserID]*User
	byEmail map[string]*User
}

// NewInMemoryStore constructs an empty in-memory directory.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[id.UserID]*User),
		byEmail: make(map[string]*User),
	}
}

// Put inserts or replaces a user record.
func (s *InMemoryStore) Put(user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyUser := *user
	s.byID[user.ID] = &copyUser
	s.byEmail[normalizeEmail(user.Email)] = &copyUser
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyUser := *user
	return &copyUser, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, userID id.UserID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byID[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyUser := *user
	return &copyUser, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
