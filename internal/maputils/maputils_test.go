package maputils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrVal(t *testing.T) {
	m := map[string]any{"url": "http://localhost", "retries": 3}

	val, err := StrVal(m, "url")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost", val)

	val, err = StrVal(m, "missing")
	require.NoError(t, err)
	assert.Empty(t, val)

	_, err = StrVal(m, "retries")
	assert.ErrorContains(t, err, "expected string")
}

func TestStrMapVal(t *testing.T) {
	m := map[string]any{
		"headers": map[string]any{"Accept": "application/json"},
		"invalid": map[string]any{"X-Count": 1},
		"list":    []string{"a"},
	}

	val, err := StrMapVal(m, "headers")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Accept": "application/json"}, val)

	val, err = StrMapVal(m, "missing")
	require.NoError(t, err)
	assert.Empty(t, val)

	_, err = StrMapVal(m, "invalid")
	assert.ErrorContains(t, err, "X-Count")

	_, err = StrMapVal(m, "list")
	assert.ErrorContains(t, err, "expected a table")
}
