package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash_Deterministic(t *testing.T) {
	h := NewSHA256()
	doc := []byte("bachelor of science, 2024")
	assert.Equal(t, h.Hash(doc), h.Hash(doc))
}

func TestHash_DistinctInputs(t *testing.T) {
	h := NewSHA256()
	assert.NotEqual(t, h.Hash([]byte("transcript-a")), h.Hash([]byte("transcript-b")))
}

func TestHash_FixedLengthHex(t *testing.T) {
	h := NewSHA256()
	digest := h.Hash([]byte{})
	assert.Len(t, digest, 64)
	assert.Regexp(t, "^[0-9a-f]+$", digest)
}
