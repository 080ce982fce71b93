// Package storage persists uploaded identity documents and serves them back
// under the public uploads prefix.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"
)

const (
	// RefPrefix prefixes every document reference handed to callers.
	RefPrefix = "uploads/"
	// URLPrefix is the HTTP path documents are retrieved from.
	URLPrefix = "/uploads/"
)

// ErrInvalidRef is returned for references that do not name a stored document.
var ErrInvalidRef = errors.New("storage: invalid document reference")

// Upload is a document received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Store saves and serves documents.
type Store interface {
	// Save persists the upload and returns its reference ("uploads/<key>").
	Save(ctx context.Context, upload Upload) (string, error)
	// Remove deletes a previously saved document.
	Remove(ctx context.Context, ref string) error
	// Handler serves documents; it expects URLPrefix already stripped.
	Handler() http.Handler
}

// NewKey builds the storage key for an upload received at t.
func NewKey(t time.Time, filename string) string {
	return fmt.Sprintf("%d-%s", t.UnixMilli(), SanitizeFilename(filename))
}

// SanitizeFilename keeps the base name and replaces characters outside
// [A-Za-z0-9._-] with underscores.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "document"
	}
	return out
}

// KeyFromRef extracts the storage key from a reference.
func KeyFromRef(ref string) (string, error) {
	key, ok := strings.CutPrefix(ref, RefPrefix)
	if !ok || !validKey(key) {
		return "", ErrInvalidRef
	}
	return key, nil
}

func validKey(key string) bool {
	return key != "" && !strings.ContainsAny(key, "/\\") && key != "." && key != ".."
}
