package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(CodeNotFound, "credential missing")
	require.Error(t, err)
	assert.Equal(t, "credential missing", err.Error())
	assert.True(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(err, CodeForbidden))
}

func TestError_MessageFallsBackToCode(t *testing.T) {
	err := &Error{Code: CodeInvalidTransition}
	assert.Equal(t, "invalid_transition", err.Error())
}

func TestWrap_PreservesInnerDomainCode(t *testing.T) {
	inner := New(CodeDuplicateRequest, "already pending")
	wrapped := Wrap(inner, CodeInternal, "request rejected")

	assert.True(t, HasCode(wrapped, CodeDuplicateRequest),
		"wrapping must not overwrite an existing domain code")
	assert.Equal(t, "request rejected", wrapped.Error())
	assert.ErrorIs(t, wrapped, inner)
}

func TestWrap_AssignsCodeToPlainErrors(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := Wrap(cause, CodeInfrastructureFault, "ledger unreachable")

	assert.True(t, HasCode(wrapped, CodeInfrastructureFault))
	assert.ErrorIs(t, wrapped, cause)
}

func TestIs_MatchesByCode(t *testing.T) {
	a := New(CodeForbidden, "not the holder")
	b := New(CodeForbidden, "different message")
	assert.ErrorIs(t, a, b)

	c := New(CodeNotFound, "gone")
	assert.NotErrorIs(t, a, c)
}

func TestHasCode_SurvivesFmtWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeInvalidTransition, "already accepted"))
	assert.True(t, HasCode(err, CodeInvalidTransition))
}

func TestHasCode_PlainErrors(t *testing.T) {
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	assert.False(t, HasCode(nil, CodeInternal))
}
