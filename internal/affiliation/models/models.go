// Package models defines the membership request state machine linking a user
// to an issuing organization.
//
// Two request shapes share the machine, discriminated by Scope: a holder's
// affiliation with an organization, and an issuer-side user's staff
// membership of one. Both are bidirectional - either party may initiate -
// and the counterparty must be the one to respond.
package models

import (
	"time"

	id "github.com/cdobey/legitify/pkg/domain"
	dErrors "github.com/cdobey/legitify/pkg/domain-errors"
)

// Status represents the lifecycle state of a membership request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusRejected Status = "rejected"
)

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	return s == StatusPending || s == StatusActive || s == StatusRejected
}

// IsTerminal reports whether the request can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusActive || s == StatusRejected
}

// Scope discriminates the two request shapes.
type Scope string

const (
	// ScopeAffiliate links a holder to an issuing organization.
	ScopeAffiliate Scope = "affiliate"
	// ScopeMember links an issuer-side user to the organization's staff.
	ScopeMember Scope = "member"
)

// IsValid checks if the scope is one of the supported enum values.
func (s Scope) IsValid() bool {
	return s == ScopeAffiliate || s == ScopeMember
}

// Party identifies which side of the relationship initiated the request.
type Party string

const (
	PartySubject Party = "subject"
	PartyOrg     Party = "org"
)

// IsValid checks if the party is one of the supported enum values.
func (p Party) IsValid() bool {
	return p == PartySubject || p == PartyOrg
}

// Opposite returns the counterparty side.
func (p Party) Opposite() Party {
	if p == PartySubject {
		return PartyOrg
	}
	return PartySubject
}

// Affiliation is a membership request between a user and an organization.
//
// Invariant: at most one non-terminal (pending or active) record exists per
// (UserID, OrgID, Scope). The party that did not initiate is the only one
// allowed to respond; the initiator can never approve its own request.
type Affiliation struct {
	ID          id.AffiliationID
	UserID      id.UserID
	OrgID       id.OrgID
	Scope       Scope
	Status      Status
	InitiatedBy Party
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// New creates an Affiliation with domain invariant checks.
func New(affiliationID id.AffiliationID, userID id.UserID, orgID id.OrgID, scope Scope, initiatedBy Party, createdAt time.Time) (*Affiliation, error) {
	if affiliationID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "affiliation ID required")
	}
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user ID required")
	}
	if orgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "organization ID required")
	}
	if !scope.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid affiliation scope")
	}
	if !initiatedBy.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid initiating party")
	}
	if createdAt.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "creation time required")
	}
	return &Affiliation{
		ID:          affiliationID,
		UserID:      userID,
		OrgID:       orgID,
		Scope:       scope,
		Status:      StatusPending,
		InitiatedBy: initiatedBy,
		CreatedAt:   createdAt,
	}, nil
}

// ResponderSide returns the party that must respond to this request.
func (a *Affiliation) ResponderSide() Party {
	return a.InitiatedBy.Opposite()
}
