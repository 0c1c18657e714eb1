package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cdobey/legitify/internal/sentinel"
	"github.com/cdobey/legitify/pkg/platform/circuit"
)

// HTTPConnector talks to a ledger gateway service over HTTP. Each Connect
// opens a gateway session; the session token scopes subsequent anchor and
// evaluate calls until Close.
type HTTPConnector struct {
	baseURL     string
	apiKey      string
	callTimeout time.Duration
	httpClient  *http.Client
	breaker     *circuit.Breaker
	logger      *slog.Logger
}

var _ Connector = (*HTTPConnector)(nil)

// HTTPOption configures the HTTPConnector.
type HTTPOption func(*HTTPConnector)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(c *HTTPConnector) {
		c.httpClient = client
	}
}

// WithBreaker sets a custom circuit breaker.
func WithBreaker(b *circuit.Breaker) HTTPOption {
	return func(c *HTTPConnector) {
		c.breaker = b
	}
}

// NewHTTPConnector creates an HTTP-backed ledger connector.
// callTimeout bounds each individual ledger round trip.
func NewHTTPConnector(baseURL, apiKey string, callTimeout time.Duration, logger *slog.Logger, opts ...HTTPOption) *HTTPConnector {
	c := &HTTPConnector{
		baseURL:     baseURL,
		apiKey:      apiKey,
		callTimeout: callTimeout,
		httpClient:  &http.Client{Timeout: callTimeout},
		breaker:     circuit.New("ledger"),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health probes the gateway status endpoint.
func (c *HTTPConnector) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ledger unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ledger status %d", resp.StatusCode)
	}
	return nil
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

// Connect opens a gateway session. When the circuit is open the call fails
// fast with ErrUnavailable instead of waiting out another timeout.
func (c *HTTPConnector) Connect(ctx context.Context) (Session, error) {
	if c.breaker.IsOpen() {
		return nil, fmt.Errorf("ledger circuit open: %w", sentinel.ErrUnavailable)
	}

	var sr sessionResponse
	if err := c.do(ctx, http.MethodPost, "/sessions", nil, &sr); err != nil {
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.Warn("ledger circuit opened", "breaker", c.breaker.Name())
		}
		return nil, err
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.Info("ledger circuit closed", "breaker", c.breaker.Name())
	}

	return &httpSession{connector: c, sessionID: sr.SessionID}, nil
}

// do performs a single JSON round trip with the per-call timeout applied.
func (c *HTTPConnector) do(ctx context.Context, method, path string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode ledger request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build ledger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ledger call failed: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return sentinel.ErrNotFound
	}
	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ledger returned %d: %s: %w", resp.StatusCode, snippet, sentinel.ErrUnavailable)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode ledger response: %w", err)
		}
	}
	return nil
}

// httpSession is a Session bound to a gateway session token.
type httpSession struct {
	connector *HTTPConnector
	sessionID string
	closed    bool
}

type anchorRequest struct {
	SessionID    string `json:"session_id"`
	CredentialID string `json:"credential_id"`
	Hash         string `json:"hash"`
}

type evaluateResponse struct {
	Match bool `json:"match"`
}

func (s *httpSession) Submit(ctx context.Context, credentialID, hash string) error {
	req := anchorRequest{SessionID: s.sessionID, CredentialID: credentialID, Hash: hash}
	if err := s.connector.do(ctx, http.MethodPost, "/anchors", req, nil); err != nil {
		s.recordOutcome(err)
		return err
	}
	s.recordOutcome(nil)
	return nil
}

func (s *httpSession) Evaluate(ctx context.Context, credentialID, hash string) (bool, error) {
	req := anchorRequest{SessionID: s.sessionID, CredentialID: credentialID, Hash: hash}
	var er evaluateResponse
	if err := s.connector.do(ctx, http.MethodPost, "/anchors/evaluate", req, &er); err != nil {
		s.recordOutcome(err)
		return false, err
	}
	s.recordOutcome(nil)
	return er.Match, nil
}

// Close releases the gateway session. The release uses its own context so a
// cancelled caller context cannot leak sessions on the gateway side.
func (s *httpSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), s.connector.callTimeout)
	defer cancel()
	if err := s.connector.do(ctx, http.MethodDelete, "/sessions/"+s.sessionID, nil, nil); err != nil {
		s.connector.logger.Warn("failed to release ledger session",
			"session_id", s.sessionID,
			"error", err,
		)
		return err
	}
	return nil
}

func (s *httpSession) recordOutcome(err error) {
	if err != nil {
		if _, change := s.connector.breaker.RecordFailure(); change.Opened {
			s.connector.logger.Warn("ledger circuit opened", "breaker", s.connector.breaker.Name())
		}
		return
	}
	if _, change := s.connector.breaker.RecordSuccess(); change.Closed {
		s.connector.logger.Info("ledger circuit closed", "breaker", s.connector.breaker.Name())
	}
}
