// Package handles keeps in-process blobs addressable by URL, the gateway's equivalent of object URLs.
package handles

import (
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// DefaultPrefix is the path under which the admin API serves handles.
const DefaultPrefix = "/_sw/blob/"

// Blob is the payload behind a handle.
type Blob struct {
	Data        []byte
	ContentType string
}

// Registry maps handle URLs to in-memory blobs. Handles live until revoked or the process exits.
type Registry struct {
	prefix string
	mu     sync.RWMutex
	blobs  map[string]Blob
}

// NewRegistry creates a registry whose URLs start with prefix.
func NewRegistry(prefix string) *Registry {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Registry{
		prefix: prefix,
		blobs:  make(map[string]Blob),
	}
}

// Create registers data and returns its URL. The content type is sniffed from the bytes.
func (r *Registry) Create(data []byte) string {
	id := uuid.NewString()
	blob := Blob{
		Data:        data,
		ContentType: mimetype.Detect(data).String(),
	}

	r.mu.Lock()
	r.blobs[id] = blob
	r.mu.Unlock()

	return r.prefix + id
}

// Get returns the blob for id, the last path segment of a handle URL.
func (r *Registry) Get(id string) (Blob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	blob, ok := r.blobs[id]
	return blob, ok
}

// Resolve returns the blob for a full handle URL.
func (r *Registry) Resolve(url string) (Blob, bool) {
	id, ok := r.id(url)
	if !ok {
		return Blob{}, false
	}
	return r.Get(id)
}

// Revoke releases the handle. Unknown URLs are ignored.
func (r *Registry) Revoke(url string) {
	id, ok := r.id(url)
	if !ok {
		return
	}
	r.mu.Lock()
	delete(r.blobs, id)
	r.mu.Unlock()
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blobs)
}

func (r *Registry) id(url string) (string, bool) {
	if !strings.HasPrefix(url, r.prefix) {
		return "", false
	}
	id := strings.TrimPrefix(url, r.prefix)
	return id, id != ""
}
