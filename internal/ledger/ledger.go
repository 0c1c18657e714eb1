// Package ledger abstracts the append-only ledger that anchors credential
// content hashes.
//
// The ledger is the sole authority for "was this hash ever anchored under
// this credential ID". The relational store keeps a hash copy for display,
// but verification must always go through Evaluate; the cached copy never
// short-circuits a ledger check.
package ledger

import "context"

//go:generate mockgen -source=ledger.go -destination=mocks/mocks.go -package=mocks Connector,Session

// Session is a scoped ledger connection. It is acquired per logical
// operation (one issuance, one verification scan) and must be closed on
// every exit path, including early-return-on-match and error paths.
type Session interface {
	// Submit anchors (credentialID, hash) in the ledger.
	Submit(ctx context.Context, credentialID, hash string) error
	// Evaluate reports whether hash was anchored under credentialID.
	// It is a pure, idempotent read.
	Evaluate(ctx context.Context, credentialID, hash string) (bool, error)
	// Close releases the session. Safe to call multiple times.
	Close() error
}

// Connector acquires ledger sessions. No long-lived shared session is
// assumed across requests.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}
