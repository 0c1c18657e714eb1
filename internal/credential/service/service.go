package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cdobey/legitify/internal/audit"
	"github.com/cdobey/legitify/internal/credential/models"
	"github.com/cdobey/legitify/internal/hash"
	"github.com/cdobey/legitify/internal/ledger"
	"github.com/cdobey/legitify/internal/platform/metrics"
	"github.com/cdobey/legitify/internal/sentinel"
	id "github.com/cdobey/legitify/pkg/domain"
	dErrors "github.com/cdobey/legitify/pkg/domain-errors"
)

const defaultMaxDocumentBytes = 5 * 1024 * 1024 // 5MB

// Service owns the credential lifecycle: issuance with ledger anchoring, and
// the single-shot accept/deny transition by the holder.
type Service struct {
	store            Store
	directory        Directory
	affiliations     AffiliationChecker
	connector        ledger.Connector
	hasher           hash.Hasher
	auditor          *audit.Publisher
	metrics          *metrics.Metrics
	logger           *slog.Logger
	maxDocumentBytes int64
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithMaxDocumentBytes overrides the document size limit.
func WithMaxDocumentBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxDocumentBytes = n
		}
	}
}

// NewService constructs the credential lifecycle service.
func NewService(store Store, dir Directory, affiliations AffiliationChecker, connector ledger.Connector, hasher hash.Hasher, auditor *audit.Publisher, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:            store,
		directory:        dir,
		affiliations:     affiliations,
		connector:        connector,
		hasher:           hasher,
		auditor:          auditor,
		logger:           logger,
		maxDocumentBytes: defaultMaxDocumentBytes,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// IssueCommand carries the issuance request. The caller identity
// (IssuerUserID) is explicit; services never read ambient auth state.
type IssueCommand struct {
	IssuerUserID   id.UserID
	IssuerOrgID    id.OrgID
	RecipientEmail string
	Title          string
	Description    string
	Type           string
	Attributes     map[string]string
	FileBytes      []byte
}

// Issue mints a credential: hash the document, anchor (id, hash) in the
// ledger, then persist the row. Anchoring failure aborts the issuance - an
// unanchored credential must never become visible to the holder.
func (s *Service) Issue(ctx context.Context, cmd IssueCommand) (*models.Credential, error) {
	if cmd.IssuerUserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing issuer identity")
	}
	if cmd.IssuerOrgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "issuer organization required")
	}
	if cmd.RecipientEmail == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "recipient email required")
	}
	if cmd.Title == "" || cmd.Type == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "title and type are required")
	}
	if len(cmd.FileBytes) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "document bytes required")
	}
	if int64(len(cmd.FileBytes)) > s.maxDocumentBytes {
		return nil, dErrors.New(dErrors.CodeBadRequest, "document exceeds maximum size")
	}

	active, err := s.affiliations.HasActive(ctx, cmd.IssuerUserID, cmd.IssuerOrgID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check issuer affiliation")
	}
	if !active {
		return nil, dErrors.New(dErrors.CodeForbidden, "not authorized to issue credentials for this organization")
	}

	holder, err := s.directory.FindByEmail(ctx, cmd.RecipientEmail)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "recipient not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInfrastructureFault, "directory lookup failed")
	}

	now := time.Now()
	contentHash := s.hasher.Hash(cmd.FileBytes)
	credentialID := models.NewID(cmd.IssuerOrgID, now)

	credential, err := models.New(credentialID, holder.ID, cmd.IssuerUserID, cmd.IssuerOrgID, cmd.Title, cmd.Type, contentHash, cmd.FileBytes, now)
	if err != nil {
		return nil, err
	}
	credential.Description = cmd.Description
	credential.Attributes = cmd.Attributes

	session, err := s.connector.Connect(ctx)
	if err != nil {
		s.incrementLedgerError("submit")
		return nil, dErrors.Wrap(err, dErrors.CodeInfrastructureFault, "ledger unavailable")
	}
	defer session.Close()

	if err := session.Submit(ctx, credential.ID.String(), contentHash); err != nil {
		s.incrementLedgerError("submit")
		return nil, dErrors.Wrap(err, dErrors.CodeInfrastructureFault, "failed to anchor credential")
	}
	anchoredAt := time.Now()
	credential.LedgerTimestamp = &anchoredAt

	if err := s.store.Save(ctx, credential); err != nil {
		// The anchor exists but the row does not; the credential is
		// invisible to the holder either way, so issuance simply failed.
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save credential")
	}

	s.emitAudit(ctx, audit.Event{
		UserID:          holder.ID.String(),
		Subject:         credential.ID.String(),
		Action:          audit.ActionCredentialIssued,
		RequestingParty: cmd.IssuerUserID.String(),
		Timestamp:       now,
	})
	if s.metrics != nil {
		s.metrics.IncrementCredentialsIssued()
	}
	s.logger.InfoContext(ctx, "credential issued",
		"credential_id", credential.ID,
		"holder_id", holder.ID,
		"issuer_org_id", cmd.IssuerOrgID,
	)
	return credential, nil
}

// Accept records the holder's acceptance of an issued credential.
func (s *Service) Accept(ctx context.Context, credentialID id.CredentialID, holderID id.UserID) error {
	return s.transition(ctx, credentialID, holderID, models.StatusAccepted, audit.ActionCredentialAccepted)
}

// Deny records the holder's denial. A denied credential is permanently
// excluded from verification scans.
func (s *Service) Deny(ctx context.Context, credentialID id.CredentialID, holderID id.UserID) error {
	return s.transition(ctx, credentialID, holderID, models.StatusDenied, audit.ActionCredentialDenied)
}

func (s *Service) transition(ctx context.Context, credentialID id.CredentialID, holderID id.UserID, next models.Status, action string) error {
	if holderID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "missing holder identity")
	}
	if credentialID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "credential ID required")
	}

	credential, err := s.store.FindByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read credential")
	}
	if credential.HolderID != holderID {
		return dErrors.New(dErrors.CodeForbidden, "only the credential holder may respond")
	}

	if err := s.store.UpdateStatus(ctx, credentialID, models.StatusIssued, next); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.New(dErrors.CodeInvalidTransition, "credential already "+string(credential.Status))
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "credential not found")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update credential status")
		}
	}

	// Re-anchor is best effort: the content hash was anchored at issuance,
	// so verification does not depend on this second submission.
	s.reanchor(ctx, credential)

	s.emitAudit(ctx, audit.Event{
		UserID:    holderID.String(),
		Subject:   credentialID.String(),
		Action:    action,
		Decision:  string(next),
		Timestamp: time.Now(),
	})
	if s.metrics != nil {
		s.metrics.IncrementCredentialTransition(string(next))
	}
	s.logger.InfoContext(ctx, "credential transition",
		"credential_id", credentialID,
		"status", next,
	)
	return nil
}

func (s *Service) reanchor(ctx context.Context, credential *models.Credential) {
	session, err := s.connector.Connect(ctx)
	if err != nil {
		s.incrementLedgerError("submit")
		s.logger.WarnContext(ctx, "ledger re-anchor skipped", "credential_id", credential.ID, "error", err)
		return
	}
	defer session.Close()
	if err := session.Submit(ctx, credential.ID.String(), credential.ContentHash); err != nil {
		s.incrementLedgerError("submit")
		s.logger.WarnContext(ctx, "ledger re-anchor failed", "credential_id", credential.ID, "error", err)
	}
}

// Get loads a credential by ID.
func (s *Service) Get(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error) {
	credential, err := s.store.FindByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read credential")
	}
	return credential, nil
}

// ListByHolder returns all credentials issued to the holder, oldest first.
func (s *Service) ListByHolder(ctx context.Context, holderID id.UserID) ([]*models.Credential, error) {
	if holderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing holder identity")
	}
	credentials, err := s.store.ListByHolder(ctx, holderID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials")
	}
	return credentials, nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Emit(ctx, event)
}

func (s *Service) incrementLedgerError(operation string) {
	if s.metrics != nil {
		s.metrics.IncrementLedgerCallError(operation)
	}
}
