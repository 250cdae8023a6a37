//go:build !integration

package handles

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestRegistry(t *testing.T) {
	r := NewRegistry("")

	url := r.Create(pngHeader)
	require.True(t, strings.HasPrefix(url, DefaultPrefix))
	assert.Equal(t, 1, r.Len())

	blob, ok := r.Resolve(url)
	require.True(t, ok)
	assert.Equal(t, pngHeader, blob.Data)
	assert.Equal(t, "image/png", blob.ContentType)

	blob, ok = r.Get(strings.TrimPrefix(url, DefaultPrefix))
	require.True(t, ok)
	assert.Equal(t, pngHeader, blob.Data)

	r.Revoke(url)
	_, ok = r.Resolve(url)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_DistinctHandles(t *testing.T) {
	r := NewRegistry("/blobs")

	a := r.Create([]byte("a"))
	b := r.Create([]byte("a"))

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "/blobs/"))
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_IgnoresForeignURLs(t *testing.T) {
	r := NewRegistry("")
	r.Create([]byte("x"))

	r.Revoke("https://example.com/blob")
	r.Revoke(DefaultPrefix)
	_, ok := r.Resolve("/elsewhere/id")

	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}
