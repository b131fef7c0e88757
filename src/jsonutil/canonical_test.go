package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical_KeyOrderIndependent(t *testing.T) {
	a, err := Canonical(map[string]any{"b": 1, "a": 2, "c": 3})
	require.NoError(t, err)
	b, err := Canonical(map[string]any{"c": 3, "a": 2, "b": 1})
	require.NoError(t, err)

	assert.Equal(t, string(a), string(b))
	assert.Equal(t, `{"a":2,"b":1,"c":3}`, string(a))
}

func TestCanonical_NestedAndArrays(t *testing.T) {
	v := map[string]any{
		"params": map[string]any{"host_id": "h-001", "domain": "evil-mail.com"},
		"tags":   []any{"x", "y"},
	}
	out, err := Canonical(v)
	require.NoError(t, err)
	assert.Equal(t, `{"params":{"domain":"evil-mail.com","host_id":"h-001"},"tags":["x","y"]}`, string(out))
}

func TestCanonical_NoHTMLEscaping(t *testing.T) {
	out, err := Canonical(map[string]any{"url": "http://a.com/?x=1&y=2"})
	require.NoError(t, err)
	assert.Contains(t, string(out), "&")
	assert.NotContains(t, string(out), "\\u0026")
}

func TestHashAgentAction_Deterministic(t *testing.T) {
	action := map[string]any{"action_type": "isolate_host", "params": map[string]any{"host_id": "h-001"}}

	h1, err := HashAgentAction(action)
	require.NoError(t, err)
	h2, err := HashAgentAction(map[string]any{"params": map[string]any{"host_id": "h-001"}, "action_type": "isolate_host"})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestHashAttackerContext_NilSentinel(t *testing.T) {
	h, err := HashAttackerContext(nil)
	require.NoError(t, err)
	assert.Equal(t, "none", h)
}

func TestHashAttackerContext_DifferentValuesDiffer(t *testing.T) {
	h1, err := HashAttackerContext(map[string]any{"current_host": "h-001"})
	require.NoError(t, err)
	h2, err := HashAttackerContext(map[string]any{"current_host": "h-002"})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
