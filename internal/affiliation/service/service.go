// Package service implements the affiliation workflow: bidirectional
// request/respond between a user and an issuing organization, with the
// responding side always being the party that did not initiate.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cdobey/legitify/internal/affiliation/models"
	"github.com/cdobey/legitify/internal/audit"
	"github.com/cdobey/legitify/internal/directory"
	"github.com/cdobey/legitify/internal/platform/metrics"
	"github.com/cdobey/legitify/internal/sentinel"
	id "github.com/cdobey/legitify/pkg/domain"
	dErrors "github.com/cdobey/legitify/pkg/domain-errors"
)

// Service owns the affiliation request state machine.
type Service struct {
	store     Store
	directory Directory
	auditor   *audit.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService constructs the affiliation service.
func NewService(store Store, dir Directory, auditor *audit.Publisher, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:     store,
		directory: dir,
		auditor:   auditor,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// RequestCommand carries an affiliation request. RequestedBy is the
// authenticated caller; UserID is the subject of the affiliation. When they
// differ, the caller must be an issuer-side member of the organization.
type RequestCommand struct {
	UserID      id.UserID
	OrgID       id.OrgID
	Scope       models.Scope
	RequestedBy id.UserID
}

// Request opens a pending affiliation between a user and an organization.
// At most one non-terminal request may exist per (user, org, scope); a
// second attempt while one is pending or active is a duplicate.
func (s *Service) Request(ctx context.Context, cmd RequestCommand) (*models.Affiliation, error) {
	if cmd.RequestedBy.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing requester identity")
	}
	if cmd.UserID.IsNil() || cmd.OrgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user and organization are required")
	}
	if !cmd.Scope.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid affiliation scope")
	}

	initiatedBy := models.PartySubject
	if cmd.RequestedBy != cmd.UserID {
		if err := s.requireOrgSide(ctx, cmd.RequestedBy, cmd.OrgID); err != nil {
			return nil, err
		}
		initiatedBy = models.PartyOrg
	}

	if _, err := s.store.FindNonTerminal(ctx, cmd.UserID, cmd.OrgID, cmd.Scope); err == nil {
		return nil, dErrors.New(dErrors.CodeDuplicateRequest, "an affiliation with this organization is already pending or active")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing affiliations")
	}

	now := time.Now()
	affiliation, err := models.New(id.NewAffiliationID(), cmd.UserID, cmd.OrgID, cmd.Scope, initiatedBy, now)
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, affiliation); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeDuplicateRequest, "an affiliation with this organization is already pending or active")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save affiliation")
	}

	s.emitAudit(ctx, audit.Event{
		UserID:          cmd.UserID.String(),
		Subject:         affiliation.ID.String(),
		Action:          audit.ActionAffiliationRequest,
		RequestingParty: cmd.RequestedBy.String(),
		Timestamp:       now,
	})
	s.logger.InfoContext(ctx, "affiliation requested",
		"affiliation_id", affiliation.ID,
		"user_id", cmd.UserID,
		"org_id", cmd.OrgID,
		"scope", affiliation.Scope,
		"initiated_by", affiliation.InitiatedBy,
	)
	return affiliation, nil
}

// Respond resolves a pending affiliation. Only the counterparty of the
// initiator may respond: a request opened by the subject needs an
// organization member, and a request opened by the organization needs the
// subject. The initiator approving its own request is always forbidden.
func (s *Service) Respond(ctx context.Context, affiliationID id.AffiliationID, responderID id.UserID, accept bool) error {
	if responderID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "missing responder identity")
	}
	if affiliationID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "affiliation ID required")
	}

	affiliation, err := s.store.FindByID(ctx, affiliationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "affiliation not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read affiliation")
	}

	switch affiliation.ResponderSide() {
	case models.PartySubject:
		if responderID != affiliation.UserID {
			return dErrors.New(dErrors.CodeForbidden, "only the affiliated user may respond to this request")
		}
	case models.PartyOrg:
		if responderID == affiliation.UserID {
			return dErrors.New(dErrors.CodeForbidden, "the requester may not approve their own affiliation")
		}
		if err := s.requireOrgSide(ctx, responderID, affiliation.OrgID); err != nil {
			return err
		}
	}

	next := models.StatusActive
	if !accept {
		next = models.StatusRejected
	}

	now := time.Now()
	if err := s.store.UpdateStatus(ctx, affiliationID, models.StatusPending, next, now); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.New(dErrors.CodeInvalidTransition, "affiliation already "+string(affiliation.Status))
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "affiliation not found")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update affiliation status")
		}
	}

	s.emitAudit(ctx, audit.Event{
		UserID:          affiliation.UserID.String(),
		Subject:         affiliationID.String(),
		Action:          audit.ActionAffiliationRespond,
		RequestingParty: responderID.String(),
		Decision:        string(next),
		Timestamp:       now,
	})
	if s.metrics != nil {
		s.metrics.IncrementAffiliationTransition(string(next))
	}
	s.logger.InfoContext(ctx, "affiliation transition",
		"affiliation_id", affiliationID,
		"status", next,
	)
	return nil
}

// HasActive reports whether the user holds an active staff membership of the
// organization. The credential service uses this as its issuance
// precondition.
func (s *Service) HasActive(ctx context.Context, userID id.UserID, orgID id.OrgID) (bool, error) {
	affiliation, err := s.store.FindNonTerminal(ctx, userID, orgID, models.ScopeMember)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return affiliation.Status == models.StatusActive, nil
}

// Get loads an affiliation by ID.
func (s *Service) Get(ctx context.Context, affiliationID id.AffiliationID) (*models.Affiliation, error) {
	affiliation, err := s.store.FindByID(ctx, affiliationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "affiliation not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read affiliation")
	}
	return affiliation, nil
}

// ListByUser returns all of the user's affiliations, oldest first.
func (s *Service) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Affiliation, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing user identity")
	}
	affiliations, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list affiliations")
	}
	return affiliations, nil
}

// ListPendingForOrg returns the organization's open requests, oldest first.
func (s *Service) ListPendingForOrg(ctx context.Context, callerID id.UserID, orgID id.OrgID) ([]*models.Affiliation, error) {
	if err := s.requireOrgSide(ctx, callerID, orgID); err != nil {
		return nil, err
	}
	affiliations, err := s.store.ListByOrgAndStatus(ctx, orgID, models.StatusPending)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list affiliations")
	}
	return affiliations, nil
}

// requireOrgSide verifies the user acts for the organization: an issuer-role
// account assigned to that organization in the directory.
func (s *Service) requireOrgSide(ctx context.Context, userID id.UserID, orgID id.OrgID) error {
	user, err := s.directory.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeForbidden, "not authorized to act for this organization")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "directory lookup failed")
	}
	if user.Role != directory.RoleIssuer || user.OrgID != orgID {
		return dErrors.New(dErrors.CodeForbidden, "not authorized to act for this organization")
	}
	return nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Emit(ctx, event)
}
