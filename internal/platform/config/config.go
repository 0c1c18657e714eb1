package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string

	// Ledger connection settings. When LedgerURL is empty the server runs
	// with the in-memory ledger, which is only suitable for development.
	LedgerURL         string
	LedgerAPIKey      string
	LedgerCallTimeout time.Duration

	// MaxDocumentBytes bounds uploaded credential documents.
	MaxDocumentBytes int64
}

const (
	defaultAddr              = ":8080"
	defaultLedgerCallTimeout = 5 * time.Second
	defaultMaxDocumentBytes  = 5 * 1024 * 1024 // 5MB
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:              defaultAddr,
		LedgerCallTimeout: defaultLedgerCallTimeout,
		MaxDocumentBytes:  defaultMaxDocumentBytes,
	}

	if addr := os.Getenv("LEGITIFY_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.LedgerURL = os.Getenv("LEDGER_URL")
	cfg.LedgerAPIKey = os.Getenv("LEDGER_API_KEY")

	if raw := os.Getenv("LEDGER_CALL_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.LedgerCallTimeout = d
		}
	}
	if raw := os.Getenv("MAX_DOCUMENT_BYTES"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			cfg.MaxDocumentBytes = n
		}
	}

	cfg.JWTSigningKey = os.Getenv("JWT_SIGNING_KEY")
	if cfg.JWTSigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}

	return cfg
}
