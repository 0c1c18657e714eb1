package service

import (
	"context"
	"time"

	"github.com/cdobey/legitify/internal/affiliation/models"
	"github.com/cdobey/legitify/internal/directory"
	id "github.com/cdobey/legitify/pkg/domain"
)

// Store defines the persistence operations the service depends on.
type Store interface {
	Save(ctx context.Context, affiliation *models.Affiliation) error
	FindByID(ctx context.Context, affiliationID id.AffiliationID) (*models.Affiliation, error)
	FindNonTerminal(ctx context.Context, userID id.UserID, orgID id.OrgID, scope models.Scope) (*models.Affiliation, error)
	UpdateStatus(ctx context.Context, affiliationID id.AffiliationID, expected, next models.Status, updatedAt time.Time) error
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Affiliation, error)
	ListByOrgAndStatus(ctx context.Context, orgID id.OrgID, status models.Status) ([]*models.Affiliation, error)
}

// Directory resolves user identities for authorization checks.
type Directory interface {
	FindByID(ctx context.Context, userID id.UserID) (*directory.User, error)
}
