// Package verification implements the blind verification path: a verifier
// presents an email and raw document bytes, and the engine answers from the
// ledger without disclosing anything the verifier did not already hold.
package verification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cdobey/legitify/internal/audit"
	credmodels "github.com/cdobey/legitify/internal/credential/models"
	"github.com/cdobey/legitify/internal/directory"
	"github.com/cdobey/legitify/internal/hash"
	"github.com/cdobey/legitify/internal/ledger"
	"github.com/cdobey/legitify/internal/platform/metrics"
	"github.com/cdobey/legitify/internal/sentinel"
	"github.com/cdobey/legitify/internal/verification/tracer"
	id "github.com/cdobey/legitify/pkg/domain"
	dErrors "github.com/cdobey/legitify/pkg/domain-errors"
)

// ledgerDateLayout is the human-readable form of the anchor timestamp shown
// to verifiers, e.g. "September 1, 2026".
const ledgerDateLayout = "January 2, 2006"

// Directory resolves the claimed holder by email and the issuing account
// for match display.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*directory.User, error)
	FindByID(ctx context.Context, userID id.UserID) (*directory.User, error)
}

// Credentials lists a holder's credentials in a given status, ordered by
// creation time ascending with ties broken by ID.
type Credentials interface {
	ListByHolderAndStatus(ctx context.Context, holderID id.UserID, status credmodels.Status) ([]*credmodels.Credential, error)
}

// Result is the outcome of a verification. A non-match is a result, not an
// error: Matched is false and Message carries the verifier-facing reason.
type Result struct {
	Matched bool
	Message string
	// Match is populated only when Matched is true.
	Match *MatchDetail
}

// MatchDetail is what a successful verification discloses. The verifier
// already holds the document bytes, so returning the stored copy and its
// display fields reveals nothing new beyond confirmation.
type MatchDetail struct {
	CredentialID    id.CredentialID
	HolderName      string
	HolderEmail     string
	IssuerName      string
	Title           string
	Description     string
	Type            string
	Attributes      map[string]string
	FileBytes       []byte
	IssuedAt        time.Time
	LedgerTimestamp string
}

// Messages returned on non-matching verifications.
const (
	MessageNoUser  = "No user found with this email"
	MessageNoMatch = "No matching credential found"
)

// Engine runs blind verifications against the ledger.
type Engine struct {
	directory   Directory
	credentials Credentials
	connector   ledger.Connector
	hasher      hash.Hasher
	auditor     *audit.Publisher
	metrics     *metrics.Metrics
	tracer      tracer.Tracer
	logger      *slog.Logger
	parallelism int
}

// Option configures the Engine.
type Option func(*Engine)

// WithMetrics sets the metrics instance for the engine.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTracer sets the tracer. Defaults to a no-op tracer.
func WithTracer(t tracer.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithParallelism bounds how many candidate ledger checks run concurrently.
// The result is still decided by candidate order, so a holder with many
// accepted credentials gets the same answer either way, just sooner.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 1 {
			e.parallelism = n
		}
	}
}

// NewEngine constructs the verification engine.
func NewEngine(dir Directory, credentials Credentials, connector ledger.Connector, hasher hash.Hasher, auditor *audit.Publisher, logger *slog.Logger, opts ...Option) *Engine {
	engine := &Engine{
		directory:   dir,
		credentials: credentials,
		connector:   connector,
		hasher:      hasher,
		auditor:     auditor,
		tracer:      tracer.NewNoop(),
		logger:      logger,
		parallelism: 1,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Verify checks whether the presented document bytes match any accepted
// credential of the user identified by email. Each accepted credential is a
// candidate; its ledger anchor is evaluated against the computed hash, in
// creation order, and the first match wins. Candidates whose ledger check
// fails are skipped, but if every candidate errors the verdict is unknowable
// and an infrastructure fault is returned instead of a negative result.
func (e *Engine) Verify(ctx context.Context, email string, documentBytes []byte) (result *Result, err error) {
	if email == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "email required")
	}
	if len(documentBytes) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "document bytes required")
	}

	started := time.Now()
	ctx, span := e.tracer.Start(ctx, tracer.SpanVerify,
		tracer.String(tracer.AttrEmailHash, tracer.HashEmail(email)),
	)
	defer func() { span.End(err) }()
	defer func() {
		if e.metrics != nil && result != nil {
			e.metrics.ObserveVerificationLatency(time.Since(started).Seconds())
		}
	}()

	holder, err := e.directory.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			e.recordOutcome("unknown_email")
			span.SetAttributes(tracer.Bool(tracer.AttrMatched, false))
			return &Result{Matched: false, Message: MessageNoUser}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInfrastructureFault, "directory lookup failed")
	}

	candidates, err := e.credentials.ListByHolderAndStatus(ctx, holder.ID, credmodels.StatusAccepted)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list candidate credentials")
	}
	span.SetAttributes(tracer.Int64(tracer.AttrCandidateCount, int64(len(candidates))))
	if e.metrics != nil {
		e.metrics.ObserveCandidatesScanned(float64(len(candidates)))
	}

	if len(candidates) == 0 {
		e.recordOutcome("no_match")
		e.emitVerifyAudit(ctx, holder, audit.DecisionNoMatch, "")
		return &Result{Matched: false, Message: MessageNoMatch}, nil
	}

	contentHash := e.hasher.Hash(documentBytes)

	session, err := e.connector.Connect(ctx)
	if err != nil {
		e.incrementLedgerError("evaluate")
		return nil, dErrors.Wrap(err, dErrors.CodeInfrastructureFault, "ledger unavailable")
	}
	defer session.Close()

	matched, failed, err := e.scan(ctx, session, candidates, contentHash)
	if err != nil {
		return nil, err
	}
	if matched == nil {
		if failed == len(candidates) {
			// Every candidate errored; a negative verdict would be a guess.
			e.recordOutcome("fault")
			return nil, dErrors.New(dErrors.CodeInfrastructureFault, "ledger checks failed for all candidate credentials")
		}
		e.recordOutcome("no_match")
		e.emitVerifyAudit(ctx, holder, audit.DecisionNoMatch, "")
		span.SetAttributes(tracer.Bool(tracer.AttrMatched, false))
		return &Result{Matched: false, Message: MessageNoMatch}, nil
	}

	e.recordOutcome("match")
	e.emitVerifyAudit(ctx, holder, audit.DecisionMatched, matched.ID.String())
	span.SetAttributes(
		tracer.Bool(tracer.AttrMatched, true),
		tracer.String(tracer.AttrCredentialID, matched.ID.String()),
	)
	e.logger.InfoContext(ctx, "document verified",
		"credential_id", matched.ID,
		"holder_id", holder.ID,
	)

	detail := &MatchDetail{
		CredentialID: matched.ID,
		HolderName:   holder.Username,
		HolderEmail:  holder.Email,
		Title:        matched.Title,
		Description:  matched.Description,
		Type:         matched.Type,
		Attributes:   matched.Attributes,
		FileBytes:    matched.FileBytes,
		IssuedAt:     matched.CreatedAt,
	}
	if matched.LedgerTimestamp != nil {
		detail.LedgerTimestamp = matched.LedgerTimestamp.Format(ledgerDateLayout)
	}
	if issuer, lookupErr := e.directory.FindByID(ctx, matched.IssuerUserID); lookupErr == nil {
		detail.IssuerName = issuer.Username
	} else {
		// Display-only field; a missing issuer account does not void the match.
		e.logger.WarnContext(ctx, "issuer lookup failed", "credential_id", matched.ID, "error", lookupErr)
	}
	return &Result{Matched: true, Match: detail}, nil
}

// scan evaluates candidates against the ledger and returns the first match
// in candidate order, along with how many candidates errored.
func (e *Engine) scan(ctx context.Context, session ledger.Session, candidates []*credmodels.Credential, contentHash string) (*credmodels.Credential, int, error) {
	ctx, span := e.tracer.Start(ctx, tracer.SpanCandidateScan)
	defer span.End(nil)

	if e.parallelism <= 1 {
		return e.scanSequential(ctx, span, session, candidates, contentHash)
	}
	return e.scanParallel(ctx, span, session, candidates, contentHash)
}

func (e *Engine) scanSequential(ctx context.Context, span tracer.Span, session ledger.Session, candidates []*credmodels.Credential, contentHash string) (*credmodels.Credential, int, error) {
	failed := 0
	for _, candidate := range candidates {
		match, err := e.evaluate(ctx, session, candidate, contentHash)
		if err != nil {
			failed++
			span.AddEvent(tracer.EventCandidateSkipped,
				tracer.String(tracer.AttrCredentialID, candidate.ID.String()),
			)
			continue
		}
		if match {
			return candidate, failed, nil
		}
	}
	return nil, failed, nil
}

// scanParallel checks candidates concurrently but still resolves the match
// by candidate order: the earliest matching candidate wins regardless of
// which goroutine finished first.
func (e *Engine) scanParallel(ctx context.Context, span tracer.Span, session ledger.Session, candidates []*credmodels.Credential, contentHash string) (*credmodels.Credential, int, error) {
	var (
		mu       sync.Mutex
		matchIdx = -1
		failed   int
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.parallelism)
	for idx, candidate := range candidates {
		idx, candidate := idx, candidate
		group.Go(func() error {
			match, err := e.evaluate(groupCtx, session, candidate, contentHash)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				span.AddEvent(tracer.EventCandidateSkipped,
					tracer.String(tracer.AttrCredentialID, candidate.ID.String()),
				)
				return nil
			}
			if match && (matchIdx == -1 || idx < matchIdx) {
				matchIdx = idx
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, failed, dErrors.Wrap(err, dErrors.CodeInternal, "candidate scan failed")
	}
	if matchIdx == -1 {
		return nil, failed, nil
	}
	return candidates[matchIdx], failed, nil
}

func (e *Engine) evaluate(ctx context.Context, session ledger.Session, candidate *credmodels.Credential, contentHash string) (bool, error) {
	match, err := session.Evaluate(ctx, candidate.ID.String(), contentHash)
	if err != nil {
		e.incrementLedgerError("evaluate")
		e.logger.WarnContext(ctx, "candidate ledger check failed",
			"credential_id", candidate.ID,
			"error", err,
		)
		return false, err
	}
	return match, nil
}

func (e *Engine) emitVerifyAudit(ctx context.Context, holder *directory.User, decision, credentialID string) {
	if e.auditor == nil {
		return
	}
	_ = e.auditor.Emit(ctx, audit.Event{
		UserID:    holder.ID.String(),
		Subject:   credentialID,
		Action:    audit.ActionDocumentVerified,
		Decision:  decision,
		Timestamp: time.Now(),
	})
}

func (e *Engine) recordOutcome(outcome string) {
	if e.metrics != nil {
		e.metrics.IncrementVerificationOutcome(outcome)
	}
}

func (e *Engine) incrementLedgerError(operation string) {
	if e.metrics != nil {
		e.metrics.IncrementLedgerCallError(operation)
	}
}
