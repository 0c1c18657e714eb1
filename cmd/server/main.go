package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	accesshandler "github.com/cdobey/legitify/internal/access/handler"
	accessservice "github.com/cdobey/legitify/internal/access/service"
	accessstore "github.com/cdobey/legitify/internal/access/store"
	affiliationhandler "github.com/cdobey/legitify/internal/affiliation/handler"
	affiliationservice "github.com/cdobey/legitify/internal/affiliation/service"
	affiliationstore "github.com/cdobey/legitify/internal/affiliation/store"
	"github.com/cdobey/legitify/internal/audit"
	credentialhandler "github.com/cdobey/legitify/internal/credential/handler"
	credentialservice "github.com/cdobey/legitify/internal/credential/service"
	credentialstore "github.com/cdobey/legitify/internal/credential/store"
	"github.com/cdobey/legitify/internal/directory"
	"github.com/cdobey/legitify/internal/hash"
	"github.com/cdobey/legitify/internal/ledger"
	"github.com/cdobey/legitify/internal/platform/config"
	"github.com/cdobey/legitify/internal/platform/database"
	"github.com/cdobey/legitify/internal/platform/health"
	"github.com/cdobey/legitify/internal/platform/httpserver"
	"github.com/cdobey/legitify/internal/platform/logger"
	"github.com/cdobey/legitify/internal/platform/metrics"
	"github.com/cdobey/legitify/internal/token"
	httptransport "github.com/cdobey/legitify/internal/transport/http"
	"github.com/cdobey/legitify/internal/verification"
	verificationhandler "github.com/cdobey/legitify/internal/verification/handler"
	"github.com/cdobey/legitify/internal/verification/tracer"
	id "github.com/cdobey/legitify/pkg/domain"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing legitify",
		"addr", cfg.Addr,
		"ledger_url", cfg.LedgerURL,
	)

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	pool, err := database.New(dbCfg)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}

	// Stores: PostgreSQL when a database is configured, in-memory otherwise.
	var (
		credentials  credentialservice.Store
		affiliations affiliationstore.Store
		access       accessstore.Store
		users        directory.Store
	)
	if pool != nil {
		credentials = credentialstore.NewPostgresStore(pool.DB())
		affiliations = affiliationstore.NewPostgresStore(pool.DB())
		access = accessstore.NewPostgresStore(pool.DB())
		users = directory.NewPostgresStore(pool.DB())
	} else {
		log.Warn("no DATABASE_URL set, using in-memory stores")
		credentials = credentialstore.NewInMemoryStore()
		affiliations = affiliationstore.NewInMemoryStore()
		access = accessstore.NewInMemoryStore()
		memDir := directory.NewInMemoryStore()
		seedDevDirectory(memDir, log)
		users = memDir
	}

	var connector ledger.Connector
	var ledgerHealth health.CheckFunc
	if cfg.LedgerURL != "" {
		httpConnector := ledger.NewHTTPConnector(cfg.LedgerURL, cfg.LedgerAPIKey, cfg.LedgerCallTimeout, log)
		ledgerHealth = func() error {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.LedgerCallTimeout)
			defer cancel()
			return httpConnector.Health(ctx)
		}
		connector = httpConnector
	} else {
		log.Warn("no LEDGER_URL set, using in-memory ledger")
		connector = ledger.NewMemory()
	}

	m := metrics.New()
	auditor := audit.NewPublisher(audit.NewInMemoryStore(), audit.WithAsyncBuffer(256), audit.WithPublisherLogger(log))
	defer auditor.Close()
	hasher := hash.NewSHA256()
	tokens := token.NewManager(cfg.JWTSigningKey)

	affiliationSvc := affiliationservice.NewService(affiliations, users, auditor, log,
		affiliationservice.WithMetrics(m))
	credentialSvc := credentialservice.NewService(credentials, users, affiliationSvc, connector, hasher, auditor, log,
		credentialservice.WithMetrics(m),
		credentialservice.WithMaxDocumentBytes(cfg.MaxDocumentBytes))
	accessSvc := accessservice.NewService(access, credentials, connector, hasher, auditor, log,
		accessservice.WithMetrics(m))
	engine := verification.NewEngine(users, credentials, connector, hasher, auditor, log,
		verification.WithMetrics(m),
		verification.WithTracer(tracer.NewOTel()))

	healthHandler := health.New(os.Getenv("ENVIRONMENT"))
	if pool != nil {
		healthHandler.RegisterCheck("database", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return pool.Health(ctx)
		})
	}
	if ledgerHealth != nil {
		healthHandler.RegisterCheck("ledger", ledgerHealth)
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:       log,
		Validator:    tokens,
		Health:       healthHandler,
		Credentials:  credentialhandler.New(credentialSvc, log),
		Affiliations: affiliationhandler.New(affiliationSvc, log),
		Access:       accesshandler.New(accessSvc, log),
		Verification: verificationhandler.New(engine, log),
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		if err := pool.Close(); err != nil {
			log.Error("database close failed", "error", err)
		}
	}

	log.Info("server stopped")
}

// seedDevDirectory puts a user per role into the in-memory directory so the
// server is usable without a database. IDs are logged for token minting.
func seedDevDirectory(dir *directory.InMemoryStore, log *slog.Logger) {
	orgID := id.NewOrgID()
	seeds := []*directory.User{
		{ID: id.NewUserID(), Username: "alice", Email: "alice@example.com", Role: directory.RoleHolder},
		{ID: id.NewUserID(), Username: "registrar", Email: "registrar@uni.example", Role: directory.RoleIssuer, OrgID: orgID},
		{ID: id.NewUserID(), Username: "acme-hr", Email: "hr@acme.example", Role: directory.RoleVerifier},
	}
	for _, user := range seeds {
		dir.Put(user)
		log.Info("seeded dev user",
			"user_id", user.ID,
			"email", user.Email,
			"role", user.Role,
			"org_id", user.OrgID,
		)
	}
}
