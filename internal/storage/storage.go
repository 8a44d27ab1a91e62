// Package storage stores uploaded files on the local filesystem or in S3.
package storage

import (
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultPublicBaseURL is where the API serves stored files.
	DefaultPublicBaseURL = "/api/v1/files"

	// DefaultMaxFileSize is the largest accepted upload (50MB).
	DefaultMaxFileSize int64 = 50 * 1024 * 1024

	defaultFilename    = "file"
	defaultContentType = "application/octet-stream"
)

var (
	keyPattern    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,199}$`)
	unsafeInName  = regexp.MustCompile(`[^A-Za-z0-9._ -]+`)
	extensionOnly = regexp.MustCompile(`^\.[A-Za-z0-9]{1,16}$`)
)

// NewKey returns a fresh storage key, keeping the extension of filename when it is safe to do so.
func NewKey(filename string) string {
	key := uuid.NewString()
	if ext := filepath.Ext(filename); extensionOnly.MatchString(ext) {
		key += strings.ToLower(ext)
	}
	return key
}

// ValidKey reports whether key is a well-formed storage key.
// Keys never contain path separators, so they cannot escape the storage root.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key) && !strings.Contains(key, "..")
}

// PublicURL joins a base URL and a key.
func PublicURL(base string, key string) string {
	if base == "" {
		base = DefaultPublicBaseURL
	}
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(key)
}

// SanitizeFilename reduces a caller-supplied filename to a safe display name.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	switch name {
	case ".", "..", "/":
		return defaultFilename
	}
	if name = strings.TrimSpace(unsafeInName.ReplaceAllString(name, "_")); name == "" {
		return defaultFilename
	}
	return name
}

// ResolveContentType returns contentType when set, otherwise a type guessed from the filename.
func ResolveContentType(contentType string, filename string) string {
	if ct := strings.TrimSpace(contentType); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return defaultContentType
}
