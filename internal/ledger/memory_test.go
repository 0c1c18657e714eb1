package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdobey/legitify/internal/sentinel"
)

func TestMemoryAnchorIsAppendOnly(t *testing.T) {
	memory := NewMemory()
	session, err := memory.Connect(context.Background())
	require.NoError(t, err)
	defer session.Close()

	require.NoError(t, session.Submit(context.Background(), "org_1_cafe", "deadbeef"))
	// Re-anchoring the same hash is idempotent.
	require.NoError(t, session.Submit(context.Background(), "org_1_cafe", "deadbeef"))
	// Rewriting to a different hash is refused.
	err = session.Submit(context.Background(), "org_1_cafe", "00000000")
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	anchored, ok := memory.Anchored("org_1_cafe")
	require.True(t, ok)
	assert.Equal(t, "deadbeef", anchored)
}

func TestMemoryEvaluate(t *testing.T) {
	memory := NewMemory()
	session, err := memory.Connect(context.Background())
	require.NoError(t, err)
	defer session.Close()

	require.NoError(t, session.Submit(context.Background(), "org_1_cafe", "deadbeef"))

	match, err := session.Evaluate(context.Background(), "org_1_cafe", "deadbeef")
	require.NoError(t, err)
	assert.True(t, match)

	match, err = session.Evaluate(context.Background(), "org_1_cafe", "beefdead")
	require.NoError(t, err)
	assert.False(t, match)

	match, err = session.Evaluate(context.Background(), "org_1_unknown", "deadbeef")
	require.NoError(t, err)
	assert.False(t, match)
}
