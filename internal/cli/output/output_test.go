package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_Table(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf)

	r.Table([]string{"Name", "Kind"}, [][]string{{"model", "plugin"}, {"apply", "transform"}})

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "model")
	assert.Contains(t, out, "transform")
	assert.Contains(t, out, "┌")
}

func TestRenderer_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf).JSON(map[string]int{"projections": 2}))
	assert.Equal(t, "{\n  \"projections\": 2\n}\n", buf.String())
}

func TestRenderer_Header(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf).Header("Projections")
	assert.Contains(t, buf.String(), "Projections")
}
