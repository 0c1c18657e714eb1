// Package models defines the access-grant state machine: a verifier asks to
// see a credential's document, and only the credential holder can grant or
// deny the disclosure.
package models

import (
	"time"

	id "github.com/cdobey/legitify/pkg/domain"
	dErrors "github.com/cdobey/legitify/pkg/domain-errors"
)

// Status represents the lifecycle state of an access request.
type Status string

const (
	StatusPending Status = "pending"
	StatusGranted Status = "granted"
	StatusDenied  Status = "denied"
)

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	return s == StatusPending || s == StatusGranted || s == StatusDenied
}

// IsTerminal reports whether the request can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusGranted || s == StatusDenied
}

// AccessRequest is a verifier's petition to view a credential document.
//
// Invariant: GrantedAt is set if and only if Status is granted. At most one
// non-terminal request exists per (CredentialID, VerifierID).
type AccessRequest struct {
	ID           id.AccessRequestID
	CredentialID id.CredentialID
	VerifierID   id.UserID
	Status       Status
	RequestedAt  time.Time
	GrantedAt    *time.Time
}

// New creates a pending AccessRequest with domain invariant checks.
func New(requestID id.AccessRequestID, credentialID id.CredentialID, verifierID id.UserID, requestedAt time.Time) (*AccessRequest, error) {
	if requestID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "access request ID required")
	}
	if credentialID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "credential ID required")
	}
	if verifierID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "verifier ID required")
	}
	if requestedAt.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "request time required")
	}
	return &AccessRequest{
		ID:           requestID,
		CredentialID: credentialID,
		VerifierID:   verifierID,
		Status:       StatusPending,
		RequestedAt:  requestedAt,
	}, nil
}
