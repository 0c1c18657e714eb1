// Package handler exposes the access-grant workflow over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cdobey/legitify/internal/access/models"
	"github.com/cdobey/legitify/internal/access/service"
	"github.com/cdobey/legitify/internal/platform/middleware"
	respond "github.com/cdobey/legitify/internal/transport/http/json"
	"github.com/cdobey/legitify/internal/transport/http/shared"
	id "github.com/cdobey/legitify/pkg/domain"
	dErrors "github.com/cdobey/legitify/pkg/domain-errors"
)

// Service defines the access-grant operations the handler delegates to.
type Service interface {
	Request(ctx context.Context, credentialID id.CredentialID, verifierID id.UserID) (*models.AccessRequest, error)
	Respond(ctx context.Context, requestID id.AccessRequestID, responderID id.UserID, grant bool) error
	View(ctx context.Context, requestID id.AccessRequestID, verifierID id.UserID) (*service.Document, error)
	ListByVerifier(ctx context.Context, verifierID id.UserID) ([]*models.AccessRequest, error)
	ListPendingForCredential(ctx context.Context, credentialID id.CredentialID, holderID id.UserID) ([]*models.AccessRequest, error)
}

// Handler handles access request endpoints.
type Handler struct {
	access Service
	logger *slog.Logger
}

// New creates a new access Handler.
func New(access Service, logger *slog.Logger) *Handler {
	return &Handler{
		access: access,
		logger: logger,
	}
}

// Register registers the access routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/access-requests", h.handleRequest)
	r.Get("/access-requests", h.handleList)
	r.Post("/access-requests/{requestID}/respond", h.handleRespond)
	r.Get("/access-requests/{requestID}/document", h.handleView)
	r.Get("/credentials/{credentialID}/access-requests", h.handleListForCredential)
}

type requestBody struct {
	CredentialID string `json:"credential_id"`
}

type respondBody struct {
	Grant bool `json:"grant"`
}

type accessRequestResponse struct {
	ID           string     `json:"id"`
	CredentialID string     `json:"credential_id"`
	VerifierID   string     `json:"verifier_id"`
	Status       string     `json:"status"`
	RequestedAt  time.Time  `json:"requested_at"`
	GrantedAt    *time.Time `json:"granted_at,omitempty"`
}

func toAccessRequestResponse(request *models.AccessRequest) accessRequestResponse {
	return accessRequestResponse{
		ID:           request.ID.String(),
		CredentialID: request.CredentialID.String(),
		VerifierID:   request.VerifierID.String(),
		Status:       string(request.Status),
		RequestedAt:  request.RequestedAt,
		GrantedAt:    request.GrantedAt,
	}
}

type documentResponse struct {
	CredentialID    string            `json:"credential_id"`
	Title           string            `json:"title"`
	Description     string            `json:"description,omitempty"`
	Type            string            `json:"type"`
	Attributes      map[string]string `json:"attributes,omitempty"`
	FileData        []byte            `json:"file_data"`
	ContentHash     string            `json:"content_hash"`
	IssuedAt        time.Time         `json:"issued_at"`
	LedgerTimestamp *time.Time        `json:"ledger_timestamp,omitempty"`
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	verifierID, err := id.ParseUserID(middleware.GetUserID(ctx))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing verifier identity"))
		return
	}

	var req requestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode access request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	credentialID, err := id.ParseCredentialID(req.CredentialID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	request, err := h.access.Request(ctx, credentialID, verifierID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, toAccessRequestResponse(request))
}

func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	responderID, err := id.ParseUserID(middleware.GetUserID(ctx))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing responder identity"))
		return
	}
	requestID, err := id.ParseAccessRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req respondBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.access.Respond(ctx, requestID, responderID, req.Grant); err != nil {
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	verifierID, err := id.ParseUserID(middleware.GetUserID(ctx))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing verifier identity"))
		return
	}
	requestID, err := id.ParseAccessRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	document, err := h.access.View(ctx, requestID, verifierID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, documentResponse{
		CredentialID:    document.CredentialID.String(),
		Title:           document.Title,
		Description:     document.Description,
		Type:            document.Type,
		Attributes:      document.Attributes,
		FileData:        document.FileBytes,
		ContentHash:     document.ContentHash,
		IssuedAt:        document.IssuedAt,
		LedgerTimestamp: document.LedgerTimestamp,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	verifierID, err := id.ParseUserID(middleware.GetUserID(ctx))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing verifier identity"))
		return
	}

	requests, err := h.access.ListByVerifier(ctx, verifierID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	response := make([]accessRequestResponse, 0, len(requests))
	for _, request := range requests {
		response = append(response, toAccessRequestResponse(request))
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"access_requests": response})
}

func (h *Handler) handleListForCredential(w http.ResponseWriter, r *http.Request) {
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

	requests, err := h.access.ListPendingForCredential(ctx, credentialID, holderID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	response := make([]accessRequestResponse, 0, len(requests))
	for _, request := range requests {
		response = append(response, toAccessRequestResponse(request))
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"access_requests": response})
}
