package intermediary

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/guttosm/offline-cache/internal/fetch"
	"github.com/klauspost/compress/zstd"
	"github.com/shamaton/msgpack/v2"
)

// compressThreshold is the body size above which compressible bodies are stored zstd-encoded.
const compressThreshold = 1024

const encodingZstd = "zstd"

// storedHeaders are the response headers kept with a cached response.
var storedHeaders = []string{
	"Content-Type",
	"Cache-Control",
	"Content-Language",
	"Etag",
	"Last-Modified",
	"Expires",
	"Vary",
}

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1), zstd.WithLowerEncoderMem(true))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
)

// cachedResponse is the partition payload.
type cachedResponse struct {
	URL      string              `msgpack:"url"`
	Status   int                 `msgpack:"status"`
	Header   map[string][]string `msgpack:"header"`
	Encoding string              `msgpack:"enc"`
	Body     []byte              `msgpack:"body"`
}

func encodeResponse(resp *fetch.Response) ([]byte, error) {
	cr := cachedResponse{
		URL:    resp.URL,
		Status: resp.StatusCode,
		Header: make(map[string][]string),
		Body:   resp.Body,
	}
	for _, name := range storedHeaders {
		if v := resp.Header.Values(name); len(v) > 0 {
			cr.Header[name] = v
		}
	}
	if len(resp.Body) > compressThreshold && compressible(resp.Header.Get("Content-Type")) {
		cr.Body = encoder.EncodeAll(resp.Body, make([]byte, 0, len(resp.Body)/2))
		cr.Encoding = encodingZstd
	}

	data, err := msgpack.Marshal(cr)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return data, nil
}

func decodeResponse(data []byte) (*fetch.Response, error) {
	var cr cachedResponse
	if err := msgpack.Unmarshal(data, &cr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	body := cr.Body
	switch cr.Encoding {
	case "":
	case encodingZstd:
		var err error
		body, err = decoder.DecodeAll(cr.Body, nil)
		if err != nil {
			return nil, fmt.Errorf("decode response body: %w", err)
		}
	default:
		return nil, fmt.Errorf("decode response: unknown encoding %q", cr.Encoding)
	}

	header := make(http.Header, len(cr.Header))
	for k, v := range cr.Header {
		header[k] = v
	}
	return &fetch.Response{URL: cr.URL, StatusCode: cr.Status, Header: header, Body: body}, nil
}

// compressible reports whether a content type benefits from compression.
// Images, fonts and archives are already compressed.
func compressible(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case mediaType == "image/svg+xml":
		return true
	case strings.HasSuffix(mediaType, "+json"), strings.HasSuffix(mediaType, "+xml"):
		return true
	}
	switch mediaType {
	case "application/json", "application/javascript", "application/xml", "application/wasm", "application/manifest+json":
		return true
	}
	return false
}
