package ledger

import (
	"context"
	"sync"

	"github.com/cdobey/legitify/internal/sentinel"
)

// Memory is an in-process ledger for tests and development. Anchors are
// append-only: a credential ID can be anchored once and never rewritten,
// mirroring the immutability guarantee of the real ledger.
type Memory struct {
	mu      sync.RWMutex
	anchors map[string]string
}

var _ Connector = (*Memory)(nil)

// NewMemory constructs an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{anchors: make(map[string]string)}
}

// Connect returns a session over the shared anchor map.
func (m *Memory) Connect(_ context.Context) (Session, error) {
	return &memorySession{ledger: m}, nil
}

// Anchored reports the anchored hash for a credential ID. Test helper.
func (m *Memory) Anchored(credentialID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hash, ok := m.anchors[credentialID]
	return hash, ok
}

type memorySession struct {
	ledger *Memory
}

func (s *memorySession) Submit(_ context.Context, credentialID, hash string) error {
	s.ledger.mu.Lock()
	defer s.ledger.mu.Unlock()
	if existing, ok := s.ledger.anchors[credentialID]; ok && existing != hash {
		return sentinel.ErrConflict
	}
	s.ledger.anchors[credentialID] = hash
	return nil
}

func (s *memorySession) Evaluate(_ context.Context, credentialID, hash string) (bool, error) {
	s.ledger.mu.RLock()
	defer s.ledger.mu.RUnlock()
	anchored, ok := s.ledger.anchors[credentialID]
	return ok && anchored == hash, nil
}

func (s *memorySession) Close() error {
	return nil
}
