package field

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputClass(t *testing.T) {
	assert.NotContains(t, InputClass(false, ""), "border-red-500")

	invalid := InputClass(true, "")
	assert.Contains(t, invalid, "border-red-500")
	assert.NotContains(t, invalid, "border-gray-300")
}

func TestError_Renders(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Error("name", "Nome é obrigatório").Render(context.Background(), &buf))

	html := buf.String()
	assert.Contains(t, html, `id="name-error"`)
	assert.Contains(t, html, "Nome é obrigatório")
	assert.Contains(t, html, `aria-live="polite"`)
}

func TestError_EscapesMessage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Error("x", `"><img src=x>`).Render(context.Background(), &buf))

	assert.NotContains(t, buf.String(), "<img")
}
