// Package service implements the access-grant workflow: a verifier requests
// disclosure of a credential document, the holder grants or denies, and a
// granted verifier may view the document after a fresh ledger check.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cdobey/legitify/internal/access/models"
	"github.com/cdobey/legitify/internal/audit"
	credmodels "github.com/cdobey/legitify/internal/credential/models"
	"github.com/cdobey/legitify/internal/hash"
	"github.com/cdobey/legitify/internal/ledger"
	"github.com/cdobey/legitify/internal/platform/metrics"
	"github.com/cdobey/legitify/internal/sentinel"
	id "github.com/cdobey/legitify/pkg/domain"
	dErrors "github.com/cdobey/legitify/pkg/domain-errors"
)

// Service owns the access request state machine and the gated read path.
type Service struct {
	store       Store
	credentials Credentials
	connector   ledger.Connector
	hasher      hash.Hasher
	auditor     *audit.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService constructs the access-grant service.
func NewService(store Store, credentials Credentials, connector ledger.Connector, hasher hash.Hasher, auditor *audit.Publisher, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:       store,
		credentials: credentials,
		connector:   connector,
		hasher:      hasher,
		auditor:     auditor,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Request opens a pending access request against an accepted credential.
// Credentials that are not accepted are reported as not found, so a verifier
// cannot probe for issued-but-unaccepted or denied credentials.
func (s *Service) Request(ctx context.Context, credentialID id.CredentialID, verifierID id.UserID) (*models.AccessRequest, error) {
	if verifierID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing verifier identity")
	}
	if credentialID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "credential ID required")
	}

	credential, err := s.loadCredential(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if credential.Status != credmodels.StatusAccepted {
		return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
	}

	if _, err := s.store.FindNonTerminal(ctx, credentialID, verifierID); err == nil {
		return nil, dErrors.New(dErrors.CodeDuplicateRequest, "an access request for this credential is already pending or granted")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing access requests")
	}

	now := time.Now()
	request, err := models.New(id.NewAccessRequestID(), credentialID, verifierID, now)
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, request); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeDuplicateRequest, "an access request for this credential is already pending or granted")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save access request")
	}

	s.emitAudit(ctx, audit.Event{
		UserID:          credential.HolderID.String(),
		Subject:         credentialID.String(),
		Action:          audit.ActionAccessRequested,
		RequestingParty: verifierID.String(),
		Timestamp:       now,
	})
	s.logger.InfoContext(ctx, "access requested",
		"request_id", request.ID,
		"credential_id", credentialID,
		"verifier_id", verifierID,
	)
	return request, nil
}

// Respond resolves a pending access request. Only the credential holder may
// respond; GrantedAt is recorded only when the decision is a grant.
func (s *Service) Respond(ctx context.Context, requestID id.AccessRequestID, responderID id.UserID, grant bool) error {
	if responderID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "missing responder identity")
	}
	if requestID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "access request ID required")
	}

	request, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "access request not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read access request")
	}

	credential, err := s.loadCredential(ctx, request.CredentialID)
	if err != nil {
		return err
	}
	if credential.HolderID != responderID {
		return dErrors.New(dErrors.CodeForbidden, "only the credential holder may respond to access requests")
	}

	next := models.StatusGranted
	now := time.Now()
	var grantedAt *time.Time
	if grant {
		grantedAt = &now
	} else {
		next = models.StatusDenied
	}

	if err := s.store.UpdateStatus(ctx, requestID, models.StatusPending, next, grantedAt); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.New(dErrors.CodeInvalidTransition, "access request already "+string(request.Status))
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "access request not found")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update access request status")
		}
	}

	decision := audit.DecisionGranted
	if !grant {
		decision = audit.DecisionRejected
	}
	s.emitAudit(ctx, audit.Event{
		UserID:          responderID.String(),
		Subject:         request.CredentialID.String(),
		Action:          audit.ActionAccessResponded,
		RequestingParty: request.VerifierID.String(),
		Decision:        decision,
		Timestamp:       now,
	})
	if s.metrics != nil {
		s.metrics.IncrementAccessTransition(string(next))
	}
	s.logger.InfoContext(ctx, "access request transition",
		"request_id", requestID,
		"status", next,
	)
	return nil
}

// Document is the disclosed view of a credential, returned only to a granted
// verifier after the stored bytes pass a fresh ledger check.
type Document struct {
	CredentialID    id.CredentialID
	Title           string
	Description     string
	Type            string
	Attributes      map[string]string
	FileBytes       []byte
	ContentHash     string
	IssuedAt        time.Time
	LedgerTimestamp *time.Time
}

// View discloses the credential document behind a granted request. The
// stored bytes are re-hashed and checked against the ledger anchor before
// disclosure; a mismatch means the store no longer reflects what was
// anchored, and nothing is disclosed.
func (s *Service) View(ctx context.Context, requestID id.AccessRequestID, verifierID id.UserID) (*Document, error) {
	if verifierID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing verifier identity")
	}

	request, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "access request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read access request")
	}
	if request.VerifierID != verifierID {
		return nil, dErrors.New(dErrors.CodeForbidden, "access request belongs to another verifier")
	}
	if request.Status != models.StatusGranted {
		return nil, dErrors.New(dErrors.CodeForbidden, "access has not been granted")
	}

	credential, err := s.loadCredential(ctx, request.CredentialID)
	if err != nil {
		return nil, err
	}

	match, err := s.checkAnchor(ctx, credential)
	if err != nil {
		return nil, err
	}
	if !match {
		s.logger.ErrorContext(ctx, "stored document diverges from ledger anchor",
			"credential_id", credential.ID,
		)
		return nil, dErrors.New(dErrors.CodeConflict, "stored document no longer matches its ledger anchor")
	}

	s.emitAudit(ctx, audit.Event{
		UserID:          credential.HolderID.String(),
		Subject:         credential.ID.String(),
		Action:          audit.ActionDocumentViewed,
		RequestingParty: verifierID.String(),
		Timestamp:       time.Now(),
	})
	s.logger.InfoContext(ctx, "document disclosed",
		"request_id", requestID,
		"credential_id", credential.ID,
	)
	return &Document{
		CredentialID:    credential.ID,
		Title:           credential.Title,
		Description:     credential.Description,
		Type:            credential.Type,
		Attributes:      credential.Attributes,
		FileBytes:       credential.FileBytes,
		ContentHash:     credential.ContentHash,
		IssuedAt:        credential.CreatedAt,
		LedgerTimestamp: credential.LedgerTimestamp,
	}, nil
}

// ListByVerifier returns the verifier's access requests, oldest first.
func (s *Service) ListByVerifier(ctx context.Context, verifierID id.UserID) ([]*models.AccessRequest, error) {
	if verifierID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing verifier identity")
	}
	requests, err := s.store.ListByVerifier(ctx, verifierID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list access requests")
	}
	return requests, nil
}

// ListPendingForCredential returns a credential's open requests for its
// holder, oldest first.
func (s *Service) ListPendingForCredential(ctx context.Context, credentialID id.CredentialID, holderID id.UserID) ([]*models.AccessRequest, error) {
	credential, err := s.loadCredential(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if credential.HolderID != holderID {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the credential holder may list access requests")
	}
	requests, err := s.store.ListByCredentialAndStatus(ctx, credentialID, models.StatusPending)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list access requests")
	}
	return requests, nil
}

func (s *Service) loadCredential(ctx context.Context, credentialID id.CredentialID) (*credmodels.Credential, error) {
	credential, err := s.credentials.FindByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read credential")
	}
	return credential, nil
}

func (s *Service) checkAnchor(ctx context.Context, credential *credmodels.Credential) (bool, error) {
	session, err := s.connector.Connect(ctx)
	if err != nil {
		s.incrementLedgerError("evaluate")
		return false, dErrors.Wrap(err, dErrors.CodeInfrastructureFault, "ledger unavailable")
	}
	defer session.Close()

	match, err := session.Evaluate(ctx, credential.ID.String(), s.hasher.Hash(credential.FileBytes))
	if err != nil {
		s.incrementLedgerError("evaluate")
		return false, dErrors.Wrap(err, dErrors.CodeInfrastructureFault, "ledger check failed")
	}
	return match, nil
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
