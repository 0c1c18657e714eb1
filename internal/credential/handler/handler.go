// Package handler exposes the credential lifecycle over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cdobey/legitify/internal/credential/models"
	"github.com/cdobey/legitify/internal/credential/service"
	"github.com/cdobey/legitify/internal/platform/middleware"
	respond "github.com/cdobey/legitify/internal/transport/http/json"
	"github.com/cdobey/legitify/internal/transport/http/shared"
	id "github.com/cdobey/legitify/pkg/domain"
	dErrors "github.com/cdobey/legitify/pkg/domain-errors"
)

// Service defines the credential operations the handler delegates to.
type Service interface {
	Issue(ctx context.Context, cmd service.IssueCommand) (*models.Credential, error)
	Accept(ctx context.Context, credentialID id.CredentialID, holderID id.UserID) error
	Deny(ctx context.Context, credentialID id.CredentialID, holderID id.UserID) error
	ListByHolder(ctx context.Context, holderID id.UserID) ([]*models.Credential, error)
}

// Handler handles credential endpoints.
type Handler struct {
	credentials Service
	logger      *slog.Logger
}

// New creates a new credential Handler.
func New(credentials Service, logger *slog.Logger) *Handler {
	return &Handler{
		credentials: credentials,
		logger:      logger,
	}
}

// Register registers the credential routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/credentials", h.handleIssue)
	r.Get("/credentials", h.handleList)
	r.Post("/credentials/{credentialID}/accept", h.handleAccept)
	r.Post("/credentials/{credentialID}/deny", h.handleDeny)
}

type issueRequest struct {
	RecipientEmail string            `json:"recipient_email"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Type           string            `json:"type"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	// FileData is the raw document, base64-encoded on the wire.
	FileData []byte `json:"file_data"`
}

type credentialResponse struct {
	ID              string            `json:"id"`
	HolderID        string            `json:"holder_id"`
	IssuerOrgID     string            `json:"issuer_org_id"`
	Title           string            `json:"title"`
	Description     string            `json:"description,omitempty"`
	Type            string            `json:"type"`
	Attributes      map[string]string `json:"attributes,omitempty"`
	Status          string            `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	LedgerTimestamp *time.Time        `json:"ledger_timestamp,omitempty"`
}

func toCredentialResponse(credential *models.Credential) credentialResponse {
	return credentialResponse{
		ID:              credential.ID.String(),
		HolderID:        credential.HolderID.String(),
		IssuerOrgID:     credential.IssuerOrgID.String(),
		Title:           credential.Title,
		Description:     credential.Description,
		Type:            credential.Type,
		Attributes:      credential.Attributes,
		Status:          string(credential.Status),
		CreatedAt:       credential.CreatedAt,
		LedgerTimestamp: credential.LedgerTimestamp,
	}
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	issuerID, err := id.ParseUserID(middleware.GetUserID(ctx))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing issuer identity"))
		return
	}
	orgID, err := id.ParseOrgID(middleware.GetOrgID(ctx))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "caller is not attached to an organization"))
		return
	}

	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode issue request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	credential, err := h.credentials.Issue(ctx, service.IssueCommand{
		IssuerUserID:   issuerID,
		IssuerOrgID:    orgID,
		RecipientEmail: req.RecipientEmail,
		Title:          req.Title,
		Description:    req.Description,
		Type:           req.Type,
		Attributes:     req.Attributes,
		FileBytes:      req.FileData,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, toCredentialResponse(credential))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	holderID, err := id.ParseUserID(middleware.GetUserID(ctx))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing holder identity"))
		return
	}

	credentials, err := h.credentials.ListByHolder(ctx, holderID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	response := make([]credentialResponse, 0, len(credentials))
	for _, credential := range credentials {
		response = append(response, toCredentialResponse(credential))
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"credentials": response})
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.credentials.Accept)
}

func (h *Handler) handleDeny(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.credentials.Deny)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, transition func(context.Context, id.CredentialID, id.UserID) error) {
	ctx := r.Context()

	holderID, err := id.ParseUserID(middleware.GetUserID(ctx))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing holder identity"))
		return
	}
	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "credentialID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := transition(ctx, credentialID, holderID); err != nil {
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
