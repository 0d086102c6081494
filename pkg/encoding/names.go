// Package encoding provides text helpers for names and paths read from
// morph files and resource archives.
package encoding

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// DecodeName converts a raw name field to a Go string.
// The field is cut at the first NUL byte. Names that are already valid
// UTF-8 are returned unchanged; anything else is treated as Windows-1252,
// which is what the authoring tools write on Windows.
func DecodeName(raw []byte) string {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	if utf8.Valid(raw) {
		return string(raw)
	}

	result, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), raw)
	if err != nil {
		return string(raw)
	}
	return string(result)
}

// EncodeName converts a name to its 8-bit on-disk form.
// Returns the UTF-8 bytes if the name has no Windows-1252 representation.
func EncodeName(s string) []byte {
	result, _, err := transform.Bytes(charmap.Windows1252.NewEncoder(), []byte(s))
	if err != nil {
		return []byte(s)
	}
	return result
}

// NormalizePath normalizes a resource path for case-insensitive lookup.
func NormalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.ToLower(path)
}
