package hashutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConcatKnownDigest(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Concat("a", "b", "c"))
}

func TestHashStringsSeparatesParts(t *testing.T) {
	assert.NotEqual(t, HashStrings("ab", "c"), HashStrings("a", "bc"))
	assert.Equal(t, Concat("ab", "c"), Concat("a", "bc"))
	assert.Len(t, HashStrings("x"), 64)
}
