// Package store provides persistence for affiliation records.
package store

import (
	"context"
	"time"

	"github.com/cdobey/legitify/internal/affiliation/models"
	id "github.com/cdobey/legitify/pkg/domain"
)

// Store defines the persistence contract for affiliations.
//
// Implementations must return sentinel errors from internal/sentinel so the
// service layer can translate them into domain errors exactly once.
type Store interface {
	// Save persists a new affiliation. Returns sentinel.ErrConflict when a
	// record with the same ID already exists.
	Save(ctx context.Context, affiliation *models.Affiliation) error

	// FindByID retrieves an affiliation by ID. Returns sentinel.ErrNotFound
	// when absent.
	FindByID(ctx context.Context, affiliationID id.AffiliationID) (*models.Affiliation, error)

	// FindNonTerminal returns the pending or active record for the
	// (user, org, scope) triple, or sentinel.ErrNotFound when none exists.
	FindNonTerminal(ctx context.Context, userID id.UserID, orgID id.OrgID, scope models.Scope) (*models.Affiliation, error)

	// UpdateStatus transitions an affiliation from expected to next as a
	// single compare-and-set. Returns sentinel.ErrNotFound when the ID is
	// unknown and sentinel.ErrInvalidState when the stored status no longer
	// matches expected.
	UpdateStatus(ctx context.Context, affiliationID id.AffiliationID, expected, next models.Status, updatedAt time.Time) error

	// ListByUser returns all affiliations for a user ordered by creation
	// time ascending, ties broken by ID.
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Affiliation, error)

	// ListByOrgAndStatus returns the organization's affiliations in the
	// given status, ordered by creation time ascending, ties broken by ID.
	ListByOrgAndStatus(ctx context.Context, orgID id.OrgID, status models.Status) ([]*models.Affiliation, error)
}
