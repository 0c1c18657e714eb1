// Package handler exposes blind verification over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cdobey/legitify/internal/directory"
	"github.com/cdobey/legitify/internal/platform/middleware"
	respond "github.com/cdobey/legitify/internal/transport/http/json"
	"github.com/cdobey/legitify/internal/transport/http/shared"
	"github.com/cdobey/legitify/internal/verification"
	dErrors "github.com/cdobey/legitify/pkg/domain-errors"
)

// Engine defines the verification operation the handler delegates to.
type Engine interface {
	Verify(ctx context.Context, email string, documentBytes []byte) (*verification.Result, error)
}

// Handler handles verification endpoints.
type Handler struct {
	engine Engine
	logger *slog.Logger
}

// New creates a new verification Handler.
func New(engine Engine, logger *slog.Logger) *Handler {
	return &Handler{
		engine: engine,
		logger: logger,
	}
}

// Register registers the verification routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verify", h.handleVerify)
}

type verifyRequest struct {
	Email string `json:"email"`
	// FileData is the raw document, base64-encoded on the wire.
	FileData []byte `json:"file_data"`
}

type matchResponse struct {
	CredentialID    string            `json:"credential_id"`
	HolderName      string            `json:"holder_name"`
	HolderEmail     string            `json:"holder_email"`
	IssuerName      string            `json:"issuer_name,omitempty"`
	Title           string            `json:"title"`
	Description     string            `json:"description,omitempty"`
	Type            string            `json:"type"`
	Attributes      map[string]string `json:"attributes,omitempty"`
	FileData        []byte            `json:"file_data"`
	IssuedAt        time.Time         `json:"issued_at"`
	LedgerTimestamp string            `json:"ledger_timestamp,omitempty"`
}

type verifyResponse struct {
	Matched bool           `json:"matched"`
	Message string         `json:"message,omitempty"`
	Match   *matchResponse `json:"match,omitempty"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if role := middleware.GetRole(ctx); role != string(directory.RoleVerifier) {
		h.logger.WarnContext(ctx, "verify rejected for non-verifier caller",
			"request_id", middleware.GetRequestID(ctx),
			"role", role,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "only verifiers can verify credentials"))
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode verify request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.engine.Verify(ctx, req.Email, req.FileData)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	response := verifyResponse{
		Matched: result.Matched,
		Message: result.Message,
	}
	if result.Match != nil {
		response.Match = &matchResponse{
			CredentialID:    result.Match.CredentialID.String(),
			HolderName:      result.Match.HolderName,
			HolderEmail:     result.Match.HolderEmail,
			IssuerName:      result.Match.IssuerName,
			Title:           result.Match.Title,
			Description:     result.Match.Description,
			Type:            result.Match.Type,
			Attributes:      result.Match.Attributes,
			FileData:        result.Match.FileBytes,
			IssuedAt:        result.Match.IssuedAt,
			LedgerTimestamp: result.Match.LedgerTimestamp,
		}
	}
	respond.WriteJSON(w, http.StatusOK, response)
}
