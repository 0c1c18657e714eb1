package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	id "github.com/cdobey/legitify/pkg/domain"
	dErrors "github.com/cdobey/legitify/pkg/domain-errors"
)

// Credential is a ledger-anchored attestation issued to a holder.
//
// # Ownership split
//
// The relational store exclusively owns the mutable fields (Status). The
// ledger exclusively owns the anchored (ID, ContentHash) pair: the
// ContentHash kept here is a display cache and must never be trusted over
// the ledger during verification. A mismatch between stored bytes and the
// anchored hash is a tamper signal and is surfaced as a verification
// failure, never silently corrected.
type Credential struct {
	ID           id.CredentialID
	HolderID     id.UserID
	IssuerUserID id.UserID
	IssuerOrgID  id.OrgID

	Title       string
	Description string
	Type        string
	Attributes  map[string]string
	FileBytes   []byte
	ContentHash string

	Status    Status
	CreatedAt time.Time
	// LedgerTimestamp is set only once the ledger confirms anchoring.
	LedgerTimestamp *time.Time
}

// New creates a Credential with domain invariant checks.
func New(credentialID id.CredentialID, holderID, issuerUserID id.UserID, issuerOrgID id.OrgID, title, credType, contentHash string, fileBytes []byte, createdAt time.Time) (*Credential, error) {
	if credentialID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "credential ID required")
	}
	if holderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "holder ID required")
	}
	if issuerUserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "issuer user ID required")
	}
	if issuerOrgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "issuer organization ID required")
	}
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "title required")
	}
	if credType == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "credential type required")
	}
	if contentHash == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "content hash required")
	}
	if len(fileBytes) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "document bytes required")
	}
	if createdAt.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "creation time required")
	}
	return &Credential{
		ID:           credentialID,
		HolderID:     holderID,
		IssuerUserID: issuerUserID,
		IssuerOrgID:  issuerOrgID,
		Title:        title,
		Type:         credType,
		ContentHash:  contentHash,
		FileBytes:    fileBytes,
		Status:       StatusIssued,
		CreatedAt:    createdAt,
	}, nil
}

// NewID mints an opaque, ledger-addressable credential identifier scoped to
// the issuing organization.
func NewID(issuerOrgID id.OrgID, now time.Time) id.CredentialID {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return id.CredentialID(fmt.Sprintf("%s_%d_%s", issuerOrgID, now.UnixMilli(), suffix))
}
