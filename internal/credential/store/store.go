package store

import (
	"context"

	"github.com/cdobey/legitify/internal/credential/models"
	id "github.com/cdobey/legitify/pkg/domain"
)

// Store is the persistence interface for credentials.
//
// Error Contract:
// - FindByID returns sentinel.ErrNotFound when no record exists
// - Save returns sentinel.ErrConflict on duplicate ID
// - UpdateStatus returns sentinel.ErrNotFound for a missing row and
//   sentinel.ErrInvalidState when the row exists but its status does not
//   match the expected prior state (the compare-and-swap precondition)
type Store interface {
	Save(ctx context.Context, credential *models.Credential) error
	FindByID(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error)
	// ListByHolderAndStatus returns credentials ordered by CreatedAt
	// ascending, then ID, so verification scans are reproducible.
	ListByHolderAndStatus(ctx context.Context, holderID id.UserID, status models.Status) ([]*models.Credential, error)
	ListByHolder(ctx context.Context, holderID id.UserID) ([]*models.Credential, error)
	// UpdateStatus atomically moves a credential from expected to next.
	UpdateStatus(ctx context.Context, credentialID id.CredentialID, expected, next models.Status) error
}
