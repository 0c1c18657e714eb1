// Package httptransport assembles the HTTP surface: middleware stack, public
// operational endpoints, and the authenticated API routes.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	accesshandler "github.com/cdobey/legitify/internal/access/handler"
	affiliationhandler "github.com/cdobey/legitify/internal/affiliation/handler"
	credentialhandler "github.com/cdobey/legitify/internal/credential/handler"
	"github.com/cdobey/legitify/internal/platform/health"
	"github.com/cdobey/legitify/internal/platform/middleware"
	verificationhandler "github.com/cdobey/legitify/internal/verification/handler"
)

// Deps carries the handlers and cross-cutting collaborators the router wires
// together. Business logic stays in the services; this layer only routes.
type Deps struct {
	Logger       *slog.Logger
	Validator    middleware.TokenValidator
	Health       *health.Handler
	Credentials  *credentialhandler.Handler
	Affiliations *affiliationhandler.Handler
	Access       *accesshandler.Handler
	Verification *verificationhandler.Handler
}

// NewRouter wires all endpoints with the middleware stack. Health and
// metrics stay public; everything else requires a bearer token.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(30 * time.Second))

	if deps.Health != nil {
		deps.Health.Register(r)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAuth(deps.Validator, deps.Logger))

		if deps.Credentials != nil {
			deps.Credentials.Register(r)
		}
		if deps.Affiliations != nil {
			deps.Affiliations.Register(r)
		}
		if deps.Access != nil {
			deps.Access.Register(r)
		}
		if deps.Verification != nil {
			deps.Verification.Register(r)
		}
	})

	return r
}
