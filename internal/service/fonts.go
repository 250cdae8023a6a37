package service

import (
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/font/sfnt"
)

// Font is a font registered with the library.
type Font struct {
	URL         string    `json:"url"`
	Family      string    `json:"family"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	LoadedAt    time.Time `json:"loaded_at"`
}

// FontLibrary holds the fonts available for text rendering.
type FontLibrary struct {
	mu    sync.RWMutex
	fonts map[string]Font
	data  map[string][]byte
}

// NewFontLibrary creates an empty library.
func NewFontLibrary() *FontLibrary {
	return &FontLibrary{
		fonts: make(map[string]Font),
		data:  make(map[string][]byte),
	}
}

// Register adds or replaces the font loaded from url.
// The family is read from the font's name table when it parses, otherwise from the file name.
func (l *FontLibrary) Register(url string, data []byte) Font {
	f := Font{
		URL:         url,
		Family:      fontFamily(url, data),
		ContentType: mimetype.Detect(data).String(),
		Size:        len(data),
		LoadedAt:    time.Now(),
	}

	l.mu.Lock()
	l.fonts[url] = f
	l.data[url] = data
	l.mu.Unlock()
	return f
}

// Has reports whether url is registered.
func (l *FontLibrary) Has(url string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.fonts[url]
	return ok
}

// Data returns the raw bytes of a registered font.
func (l *FontLibrary) Data(url string) ([]byte, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	data, ok := l.data[url]
	return data, ok
}

// Fonts lists registered fonts ordered by URL.
func (l *FontLibrary) Fonts() []Font {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fonts := make([]Font, 0, len(l.fonts))
	for _, f := range l.fonts {
		fonts = append(fonts, f)
	}
	sort.Slice(fonts, func(i, j int) bool { return fonts[i].URL < fonts[j].URL })
	return fonts
}

func fontFamily(url string, data []byte) string {
	if f, err := sfnt.Parse(data); err == nil {
		if name, err := f.Name(nil, sfnt.NameIDFamily); err == nil && name != "" {
			return name
		}
	}
	base := path.Base(strings.SplitN(url, "?", 2)[0])
	return strings.TrimSuffix(base, path.Ext(base))
}
