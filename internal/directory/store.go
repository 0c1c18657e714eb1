package directory

import (
	"context"

	id "github.com/cdobey/legitify/pkg/domain"
)

// Store is the persistence interface for directory lookups.
// Error Contract:
// - FindByEmail/FindByID return sentinel.ErrNotFound when no user exists
// - Other failures are wrapped infrastructure errors
type Store interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, userID id.UserID) (*User, error)
}
