// Package handler exposes the affiliation workflow over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cdobey/legitify/internal/affiliation/models"
	"github.com/cdobey/legitify/internal/affiliation/service"
	"github.com/cdobey/legitify/internal/platform/middleware"
	respond "github.com/cdobey/legitify/internal/transport/http/json"
	"github.com/cdobey/legitify/internal/transport/http/shared"
	id "github.com/cdobey/legitify/pkg/domain"
	dErrors "github.com/cdobey/legitify/pkg/domain-errors"
)

// Service defines the affiliation operations the handler delegates to.
type Service interface {
	Request(ctx context.Context, cmd service.RequestCommand) (*models.Affiliation, error)
	Respond(ctx context.Context, affiliationID id.AffiliationID, responderID id.UserID, accept bool) error
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Affiliation, error)
	ListPendingForOrg(ctx context.Context, callerID id.UserID, orgID id.OrgID) ([]*models.Affiliation, error)
}

// Handler handles affiliation endpoints.
type Handler struct {
	affiliations Service
	logger       *slog.Logger
}

// New creates a new affiliation Handler.
func New(affiliations Service, logger *slog.Logger) *Handler {
	return &Handler{
		affiliations: affiliations,
		logger:       logger,
	}
}

// Register registers the affiliation routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/affiliations", h.handleRequest)
	r.Get("/affiliations", h.handleList)
	r.Get("/affiliations/pending", h.handleListPending)
	r.Post("/affiliations/{affiliationID}/respond", h.handleRespond)
}

type requestBody struct {
	// UserID defaults to the caller; org-side users may set it to open a
	// request on someone else's behalf.
	UserID string `json:"user_id,omitempty"`
	OrgID  string `json:"org_id"`
	Scope  string `json:"scope"`
}

type respondBody struct {
	Accept bool `json:"accept"`
}

type affiliationResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	OrgID       string     `json:"org_id"`
	Scope       string     `json:"scope"`
	Status      string     `json:"status"`
	InitiatedBy string     `json:"initiated_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

func toAffiliationResponse(affiliation *models.Affiliation) affiliationResponse {
	return affiliationResponse{
		ID:          affiliation.ID.String(),
		UserID:      affiliation.UserID.String(),
		OrgID:       affiliation.OrgID.String(),
		Scope:       string(affiliation.Scope),
		Status:      string(affiliation.Status),
		InitiatedBy: string(affiliation.InitiatedBy),
		CreatedAt:   affiliation.CreatedAt,
		UpdatedAt:   affiliation.UpdatedAt,
	}
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	callerID, err := id.ParseUserID(middleware.GetUserID(ctx))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing caller identity"))
		return
	}

	var req requestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode affiliation request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	subjectID := callerID
	if req.UserID != "" {
		subjectID, err = id.ParseUserID(req.UserID)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
	}
	orgID, err := id.ParseOrgID(req.OrgID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	affiliation, err := h.affiliations.Request(ctx, service.RequestCommand{
		UserID:      subjectID,
		OrgID:       orgID,
		Scope:       models.Scope(req.Scope),
		RequestedBy: callerID,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, toAffiliationResponse(affiliation))
}

func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	responderID, err := id.ParseUserID(middleware.GetUserID(ctx))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing responder identity"))
		return
	}
	affiliationID, err := id.ParseAffiliationID(chi.URLParam(r, "affiliationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req respondBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.affiliations.Respond(ctx, affiliationID, responderID, req.Accept); err != nil {
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := id.ParseUserID(middleware.GetUserID(ctx))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing caller identity"))
		return
	}

	affiliations, err := h.affiliations.ListByUser(ctx, userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	response := make([]affiliationResponse, 0, len(affiliations))
	for _, affiliation := range affiliations {
		response = append(response, toAffiliationResponse(affiliation))
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"affiliations": response})
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	callerID, err := id.ParseUserID(middleware.GetUserID(ctx))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing caller identity"))
		return
	}
	orgID, err := id.ParseOrgID(r.URL.Query().Get("org_id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	affiliations, err := h.affiliations.ListPendingForOrg(ctx, callerID, orgID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	response := make([]affiliationResponse, 0, len(affiliations))
	for _, affiliation := range affiliations {
		response = append(response, toAffiliationResponse(affiliation))
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"affiliations": response})
}
