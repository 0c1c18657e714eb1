package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"github.com/cdobey/legitify/internal/directory"
	"github.com/cdobey/legitify/internal/platform/middleware"
	"github.com/cdobey/legitify/internal/verification"
)

// stubEngine returns a canned result and records whether it was reached.
type stubEngine struct {
	called bool
	result *verification.Result
	err    error
}

func (e *stubEngine) Verify(_ context.Context, _ string, _ []byte) (*verification.Result, error) {
	e.called = true
	return e.result, e.err
}

type HandlerSuite struct {
	suite.Suite

	engine *stubEngine
	router http.Handler
}

func (s *HandlerSuite) SetupTest() {
	s.engine = &stubEngine{result: &verification.Result{Matched: false, Message: verification.MessageNoMatch}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(s.engine, logger)
	r := chi.NewRouter()
	h.Register(r)
	s.router = r
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) verifyRequest(role string) *http.Request {
	body, err := json.Marshal(map[string]any{
		"email":     "alice@example.com",
		"file_data": []byte("%PDF-1.7 diploma"),
	})
	s.Require().NoError(err)

	req := httptest.NewRequest(http.MethodPost, "/verify", bytes.NewReader(body))
	ctx := middleware.WithCaller(req.Context(), "caller-1", role, "")
	return req.WithContext(ctx)
}

func (s *HandlerSuite) TestVerifierRoleAllowed() {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, s.verifyRequest(string(directory.RoleVerifier)))

	s.Equal(http.StatusOK, rec.Code)
	s.True(s.engine.called)

	var resp struct {
		Matched bool   `json:"matched"`
		Message string `json:"message"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.False(resp.Matched)
	s.Equal(verification.MessageNoMatch, resp.Message)
}

func (s *HandlerSuite) TestNonVerifierRolesRejected() {
	for _, role := range []string{string(directory.RoleHolder), string(directory.RoleIssuer), ""} {
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, s.verifyRequest(role))

		s.Equal(http.StatusForbidden, rec.Code, "role %q must not reach the engine", role)
		s.False(s.engine.called)
	}
}
