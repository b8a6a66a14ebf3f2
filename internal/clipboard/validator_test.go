package clipboard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractURLAcceptsHTTPAndHTTPS(t *testing.T) {
	v := NewValidator()
	assert.Equal(t, "http://example.com/a", v.ExtractURL("http://example.com/a"))
	assert.Equal(t, "https://example.com/a", v.ExtractURL("  https://example.com/a  "))
}

func TestExtractURLRejectsNonHTTPSchemes(t *testing.T) {
	v := NewValidator()
	assert.Equal(t, "", v.ExtractURL("ftp://example.com/a"))
	assert.Equal(t, "", v.ExtractURL("javascript:alert(1)"))
}

func TestExtractURLRejectsEmptyAndMultiline(t *testing.T) {
	v := NewValidator()
	assert.Equal(t, "", v.ExtractURL(""))
	assert.Equal(t, "", v.ExtractURL("http://example.com/a\nhttp://example.com/b"))
}

func TestExtractURLRejectsOversizedText(t *testing.T) {
	v := NewValidator()
	long := "http://example.com/" + strings.Repeat("a", 3000)
	assert.Equal(t, "", v.ExtractURL(long))
}

func TestExtractURLRejectsMissingHost(t *testing.T) {
	v := NewValidator()
	assert.Equal(t, "", v.ExtractURL("http://"))
}
