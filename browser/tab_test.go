package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToHeadersMap(t *testing.T) {
	got := toHeadersMap(map[string]string{
		"Authorization": "Bearer t",
		"X-Multi":       "a, b",
	})

	require.Len(t, got, 2)
	assert.Equal(t, "Bearer t", got["Authorization"].Str())
	assert.Equal(t, "a, b", got["X-Multi"].Str())
}

func TestToHeadersMap_Empty(t *testing.T) {
	assert.Empty(t, toHeadersMap(nil))
}
