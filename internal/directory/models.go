// Package directory resolves users by email or ID. It is the identity
// lookup collaborator for issuance (recipient by email) and verification
// (holder by email); account creation and authentication live elsewhere.
package directory

import (
	id "github.com/cdobey/legitify/pkg/domain"
)

// Role is the logical actor type of a user.
type Role string

const (
	RoleHolder   Role = "holder"
	RoleIssuer   Role = "issuer"
	RoleVerifier Role = "verifier"
)

// IsValid checks if the role is one of the supported enum values.
func (r Role) IsValid() bool {
	return r == RoleHolder || r == RoleIssuer || r == RoleVerifier
}

// User is a directory record.
type User struct {
	ID       id.UserID
	Username string
	Email    string
	Role     Role
	// OrgID is set for issuer-side users; nil UUID otherwise.
	OrgID id.OrgID
}
