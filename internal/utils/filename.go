package utils

import (
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/vfaronov/httpheader"
)

// DetermineFilename derives a destination filename for a probed URL,
// preferring Content-Disposition (RFC 5987 filename* first) over the
// URL's own path basename, falling back to "download".
func DetermineFilename(rawURL string, header http.Header) string {
	if _, name, err := httpheader.ContentDisposition(header); err == nil && name != "" {
		return sanitizeFilename(name)
	}

	if parsed, err := url.Parse(rawURL); err == nil {
		if base := filepath.Base(parsed.Path); base != "" && base != "." && base != "/" {
			return sanitizeFilename(base)
		}
	}

	return "download"
}

// SniffExtension guesses a file extension from the first bytes of a body
// when the filename derived at probe time has none. Used on the
// unknown-total-size streaming path where the only signal available is
// the content itself.
func SniffExtension(head []byte) string {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.Extension
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "." || name == "/" || name == "" {
		return "download"
	}
	name = strings.TrimSpace(name)
	for _, c := range []string{"/", ":", "*", "?", "\"", "<", ">", "|"} {
		name = strings.ReplaceAll(name, c, "_")
	}
	if name == "" {
		return "download"
	}
	return name
}
