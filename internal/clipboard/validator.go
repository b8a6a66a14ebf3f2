// Package clipboard validates free-form text, such as clipboard contents,
// into a clean downloadable URL. Its only caller is the CLI's
// `add --clipboard` path; bridge payloads and batch-import lines are not
// run through it.
package clipboard

import (
	"net/url"
	"strings"

	"github.com/atotto/clipboard"
)

// Validator extracts and validates a single downloadable URL from text.
type Validator struct {
	allowedSchemes map[string]bool
}

// NewValidator creates a URL validator accepting only http/https.
func NewValidator() *Validator {
	return &Validator{
		allowedSchemes: map[string]bool{"http": true, "https": true},
	}
}

// ExtractURL returns a clean, validated URL, or "" if text isn't one.
func (v *Validator) ExtractURL(text string) string {
	text = strings.TrimSpace(text)

	if text == "" || len(text) > 2048 || strings.ContainsAny(text, "\n\r") {
		return ""
	}
	if !strings.HasPrefix(text, "http://") && !strings.HasPrefix(text, "https://") {
		return ""
	}

	parsed, err := url.Parse(text)
	if err != nil || parsed.Host == "" || !v.allowedSchemes[parsed.Scheme] {
		return ""
	}

	return parsed.String()
}

// ReadURL reads the system clipboard and returns a valid URL from it, or
// "" if the clipboard is empty, unreadable, or not a URL. Used only by
// the CLI's `add --clipboard` convenience flag; it is a command-line
// affordance, not a desktop-shell integration.
func ReadURL() string {
	text, err := clipboard.ReadAll()
	if err != nil {
		return ""
	}
	return NewValidator().ExtractURL(text)
}
