package service

import (
	"context"
	"time"

	"github.com/cdobey/legitify/internal/access/models"
	credmodels "github.com/cdobey/legitify/internal/credential/models"
	id "github.com/cdobey/legitify/pkg/domain"
)

// Store defines the persistence operations the service depends on.
type Store interface {
	Save(ctx context.Context, request *models.AccessRequest) error
	FindByID(ctx context.Context, requestID id.AccessRequestID) (*models.AccessRequest, error)
	FindNonTerminal(ctx context.Context, credentialID id.CredentialID, verifierID id.UserID) (*models.AccessRequest, error)
	UpdateStatus(ctx context.Context, requestID id.AccessRequestID, expected, next models.Status, grantedAt *time.Time) error
	ListByVerifier(ctx context.Context, verifierID id.UserID) ([]*models.AccessRequest, error)
	ListByCredentialAndStatus(ctx context.Context, credentialID id.CredentialID, status models.Status) ([]*models.AccessRequest, error)
}

// Credentials resolves the credential an access request points at.
type Credentials interface {
	FindByID(ctx context.Context, credentialID id.CredentialID) (*credmodels.Credential, error)
}
