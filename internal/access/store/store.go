// Package store provides persistence for access requests.
package store

import (
	"context"
	"time"

	"github.com/cdobey/legitify/internal/access/models"
	id "github.com/cdobey/legitify/pkg/domain"
)

// Store defines the persistence contract for access requests. Implementations
// signal failures with internal/sentinel errors.
type Store interface {
	// Save persists a new access request. Returns sentinel.ErrConflict when
	// a record with the same ID already exists.
	Save(ctx context.Context, request *models.AccessRequest) error

	// FindByID retrieves a request by ID. Returns sentinel.ErrNotFound when
	// absent.
	FindByID(ctx context.Context, requestID id.AccessRequestID) (*models.AccessRequest, error)

	// FindNonTerminal returns the pending or granted request for the
	// (credential, verifier) pair, or sentinel.ErrNotFound when none exists.
	FindNonTerminal(ctx context.Context, credentialID id.CredentialID, verifierID id.UserID) (*models.AccessRequest, error)

	// UpdateStatus transitions a request from expected to next as a single
	// compare-and-set; grantedAt is stored only when next is granted.
	// Returns sentinel.ErrNotFound when the ID is unknown and
	// sentinel.ErrInvalidState when the stored status no longer matches.
	UpdateStatus(ctx context.Context, requestID id.AccessRequestID, expected, next models.Status, grantedAt *time.Time) error

	// ListByVerifier returns the verifier's requests ordered by request time
	// ascending, ties broken by ID.
	ListByVerifier(ctx context.Context, verifierID id.UserID) ([]*models.AccessRequest, error)

	// ListByCredentialAndStatus returns a credential's requests in the given
	// status, ordered by request time ascending, ties broken by ID.
	ListByCredentialAndStatus(ctx context.Context, credentialID id.CredentialID, status models.Status) ([]*models.AccessRequest, error)
}
