package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Format(t *testing.T) {
	got, err := Generate(PrefixBatch)
	require.NoError(t, err)

	suffix, ok := strings.CutPrefix(got, "batch-")
	require.True(t, ok, got)
	assert.Len(t, suffix, length)
	for _, r := range suffix {
		assert.Contains(t, alphabet, string(r))
	}
}

func TestGenerate_NoRepeatsInThousand(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		got, err := Generate(PrefixBatch)
		require.NoError(t, err)
		_, dup := seen[got]
		require.False(t, dup, got)
		seen[got] = struct{}{}
	}
}
