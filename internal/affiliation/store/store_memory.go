package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cdobey/legitify/internal/affiliation/models"
	"github.com/cdobey/legitify/internal/sentinel"
	id "github.com/cdobey/legitify/pkg/domain"
)

// InMemoryStore is a thread-safe in-memory implementation of Store.
type InMemoryStore struct {
	mu           sync.RWMutex
	affiliations map[id.AffiliationID]*models.Affiliation
}

// NewInMemoryStore creates an empty in-memory affiliation store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		affiliations: make(map[id.AffiliationID]*models.Affiliation),
	}
}

func (s *InMemoryStore) Save(_ context.Context, affiliation *models.Affiliation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.affiliations[affiliation.ID]; exists {
		return sentinel.ErrConflict
	}
	s.affiliations[affiliation.ID] = cloneAffiliation(affiliation)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, affiliationID id.AffiliationID) (*models.Affiliation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	affiliation, exists := s.affiliations[affiliationID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return cloneAffiliation(affiliation), nil
}

func (s *InMemoryStore) FindNonTerminal(_ context.Context, userID id.UserID, orgID id.OrgID, scope models.Scope) (*models.Affiliation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, affiliation := range s.affiliations {
		if affiliation.UserID != userID || affiliation.OrgID != orgID || affiliation.Scope != scope {
			continue
		}
		if affiliation.Status == models.StatusRejected {
			continue
		}
		return cloneAffiliation(affiliation), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, affiliationID id.AffiliationID, expected, next models.Status, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	affiliation, exists := s.affiliations[affiliationID]
	if !exists {
		return sentinel.ErrNotFound
	}
	if affiliation.Status != expected {
		return sentinel.ErrInvalidState
	}
	affiliation.Status = next
	ts := updatedAt
	affiliation.UpdatedAt = &ts
	return nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.Affiliation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Affiliation
	for _, affiliation := range s.affiliations {
		if affiliation.UserID == userID {
			result = append(result, cloneAffiliation(affiliation))
		}
	}
	sortAffiliations(result)
	return result, nil
}

func (s *InMemoryStore) ListByOrgAndStatus(_ context.Context, orgID id.OrgID, status models.Status) ([]*models.Affiliation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Affiliation
	for _, affiliation := range s.affiliations {
		if affiliation.OrgID == orgID && affiliation.Status == status {
			result = append(result, cloneAffiliation(affiliation))
		}
	}
	sortAffiliations(result)
	return result, nil
}

func sortAffiliations(affiliations []*models.Affiliation) {
	sort.Slice(affiliations, func(i, j int) bool {
		if !affiliations[i].CreatedAt.Equal(affiliations[j].CreatedAt) {
			return affiliations[i].CreatedAt.Before(affiliations[j].CreatedAt)
		}
		return strings.Compare(affiliations[i].ID.String(), affiliations[j].ID.String()) < 0
	})
}

func cloneAffiliation(a *models.Affiliation) *models.Affiliation {
	clone := *a
	if a.UpdatedAt != nil {
		ts := *a.UpdatedAt
		clone.UpdatedAt = &ts
	}
	return &clone
}
