// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "github.com/cdobey/legitify/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a UserID where an OrgID is expected.
type (
	UserID          uuid.UUID
	OrgID           uuid.UUID
	AffiliationID   uuid.UUID
	AccessRequestID uuid.UUID
)

// CredentialID is an opaque, ledger-addressable identifier. It is minted by
// the issuing organization (org-scoped, not a UUID) and used verbatim as the
// key for ledger anchoring.
type CredentialID string

// New functions - mint random identifiers for freshly created records.

func NewUserID() UserID                   { return UserID(uuid.New()) }
func NewOrgID() OrgID                     { return OrgID(uuid.New()) }
func NewAffiliationID() AffiliationID     { return AffiliationID(uuid.New()) }
func NewAccessRequestID() AccessRequestID { return AccessRequestID(uuid.New()) }

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user ID")
	return UserID(id), err
}

func ParseOrgID(s string) (OrgID, error) {
	id, err := parseUUID(s, "organization ID")
	return OrgID(id), err
}

func ParseAffiliationID(s string) (AffiliationID, error) {
	id, err := parseUUID(s, "affiliation ID")
	return AffiliationID(id), err
}

func ParseAccessRequestID(s string) (AccessRequestID, error) {
	id, err := parseUUID(s, "access request ID")
	return AccessRequestID(id), err
}

func ParseCredentialID(s string) (CredentialID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "credential ID cannot be empty")
	}
	return CredentialID(s), nil
}

// String methods - for logging and debugging.

func (id UserID) String() string          { return uuid.UUID(id).String() }
func (id OrgID) String() string           { return uuid.UUID(id).String() }
func (id AffiliationID) String() string   { return uuid.UUID(id).String() }
func (id AccessRequestID) String() string { return uuid.UUID(id).String() }
func (id CredentialID) String() string    { return string(id) }

// IsNil checks - used for service-layer validation.

func (id UserID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id OrgID) IsNil() bool           { return uuid.UUID(id) == uuid.Nil }
func (id AffiliationID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id AccessRequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id CredentialID) IsNil() bool    { return id == "" }

// parseUUID is the shared validation logic.
// Nil UUIDs are allowed here. Use IsNil() at the service layer for business
// validation, which allows store lookups to return proper "not found" errors.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
