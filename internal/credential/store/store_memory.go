package store

import (
	"context"
	"sort"
	"sync"

	"github.com/cdobey/legitify/internal/credential/models"
	"github.com/cdobey/legitify/internal/sentinel"
	id "github.com/cdobey/legitify/pkg/domain"
)

// InMemoryStore stores credentials in memory for tests and development.
type InMemoryStore struct {
	mu          sync.RWMutex
	credentials map[id.CredentialID]*models.Credential
}

// NewInMemoryStore constructs an empty in-memory credential store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{credentials: make(map[id.CredentialID]*models.Credential)}
}

func (s *InMemoryStore) Save(_ context.Context, credential *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.credentials[credential.ID]; ok {
		return sentinel.ErrConflict
	}
	copyCred := cloneCredential(credential)
	s.credentials[credential.ID] = copyCred
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, credentialID id.CredentialID) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	credential, ok := s.credentials[credentialID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneCredential(credential), nil
}

func (s *InMemoryStore) ListByHolderAndStatus(_ context.Context, holderID id.UserID, status models.Status) ([]*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Credential
	for _, credential := range s.credentials {
		if credential.HolderID == holderID && credential.Status == status {
			out = append(out, cloneCredential(credential))
		}
	}
	sortCredentials(out)
	return out, nil
}

func (s *InMemoryStore) ListByHolder(_ context.Context, holderID id.UserID) ([]*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Credential
	for _, credential := range s.credentials {
		if credential.HolderID == holderID {
			out = append(out, cloneCredential(credential))
		}
	}
	sortCredentials(out)
	return out, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, credentialID id.CredentialID, expected, next models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	credential, ok := s.credentials[credentialID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if credential.Status != expected {
		return sentinel.ErrInvalidState
	}
	credential.Status = next
	return nil
}

// sortCredentials orders by CreatedAt ascending, then ID, for stable
// enumeration during verification scans.
func sortCredentials(credentials []*models.Credential) {
	sort.Slice(credentials, func(i, j int) bool {
		if credentials[i].CreatedAt.Equal(credentials[j].CreatedAt) {
			return credentials[i].ID < credentials[j].ID
		}
		return credentials[i].CreatedAt.Before(credentials[j].CreatedAt)
	})
}

func cloneCredential(credential *models.Credential) *models.Credential {
	copyCred := *credential
	if credential.Attributes != nil {
		copyCred.Attributes = make(map[string]string, len(credential.Attributes))
		for k, v := range credential.Attributes {
			copyCred.Attributes[k] = v
		}
	}
	if credential.FileBytes != nil {
		copyCred.FileBytes = append([]byte(nil), credential.FileBytes...)
	}
	if credential.LedgerTimestamp != nil {
		ts := *credential.LedgerTimestamp
		copyCred.LedgerTimestamp = &ts
	}
	return &copyCred
}
