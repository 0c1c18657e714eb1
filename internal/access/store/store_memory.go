package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cdobey/legitify/internal/access/models"
	"github.com/cdobey/legitify/internal/sentinel"
	id "github.com/cdobey/legitify/pkg/domain"
)

// InMemoryStore is a thread-safe in-memory implementation of Store.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.AccessRequestID]*models.AccessRequest
}

// NewInMemoryStore creates an empty in-memory access request store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		requests: make(map[id.AccessRequestID]*models.AccessRequest),
	}
}

func (s *InMemoryStore) Save(_ context.Context, request *models.AccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[request.ID]; exists {
		return sentinel.ErrConflict
	}
	s.requests[request.ID] = cloneRequest(request)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, requestID id.AccessRequestID) (*models.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	request, exists := s.requests[requestID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return cloneRequest(request), nil
}

func (s *InMemoryStore) FindNonTerminal(_ context.Context, credentialID id.CredentialID, verifierID id.UserID) (*models.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, request := range s.requests {
		if request.CredentialID != credentialID || request.VerifierID != verifierID {
			continue
		}
		if request.Status == models.StatusDenied {
			continue
		}
		return cloneRequest(request), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, requestID id.AccessRequestID, expected, next models.Status, grantedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, exists := s.requests[requestID]
	if !exists {
		return sentinel.ErrNotFound
	}
	if request.Status != expected {
		return sentinel.ErrInvalidState
	}
	request.Status = next
	if next == models.StatusGranted && grantedAt != nil {
		ts := *grantedAt
		request.GrantedAt = &ts
	}
	return nil
}

func (s *InMemoryStore) ListByVerifier(_ context.Context, verifierID id.UserID) ([]*models.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.AccessRequest
	for _, request := range s.requests {
		if request.VerifierID == verifierID {
			result = append(result, cloneRequest(request))
		}
	}
	sortRequests(result)
	return result, nil
}

func (s *InMemoryStore) ListByCredentialAndStatus(_ context.Context, credentialID id.CredentialID, status models.Status) ([]*models.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.AccessRequest
	for _, request := range s.requests {
		if request.CredentialID == credentialID && request.Status == status {
			result = append(result, cloneRequest(request))
		}
	}
	sortRequests(result)
	return result, nil
}

func sortRequests(requests []*models.AccessRequest) {
	sort.Slice(requests, func(i, j int) bool {
		if !requests[i].RequestedAt.Equal(requests[j].RequestedAt) {
			return requests[i].RequestedAt.Before(requests[j].RequestedAt)
		}
		return strings.Compare(requests[i].ID.String(), requests[j].ID.String()) < 0
	})
}

func cloneRequest(r *models.AccessRequest) *models.AccessRequest {
	clone := *r
	if r.GrantedAt != nil {
		ts := *r.GrantedAt
		clone.GrantedAt = &ts
	}
	return &clone
}
