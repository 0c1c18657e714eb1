package service

import (
	"context"

	"github.com/cdobey/legitify/internal/credential/models"
	"github.com/cdobey/legitify/internal/directory"
	id "github.com/cdobey/legitify/pkg/domain"
)

// Store defines the persistence interface the service depends on.
// See internal/credential/store for the error contract.
type Store interface {
	Save(ctx context.Context, credential *models.Credential) error
	FindByID(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error)
	ListByHolderAndStatus(ctx context.Context, holderID id.UserID, status models.Status) ([]*models.Credential, error)
	ListByHolder(ctx context.Context, holderID id.UserID) ([]*models.Credential, error)
	UpdateStatus(ctx context.Context, credentialID id.CredentialID, expected, next models.Status) error
}

// Directory resolves credential recipients.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*directory.User, error)
}

// AffiliationChecker reports whether an issuer-side user holds an active
// membership with the issuing organization. Issuance policy, not decoration:
// a credential may only be minted under an org the issuer actually belongs to.
type AffiliationChecker interface {
	HasActive(ctx context.Context, userID id.UserID, orgID id.OrgID) (bool, error)
}
