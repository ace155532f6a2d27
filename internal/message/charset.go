package message

import (
	"fmt"
	"strings"
)

// Canonical charset names as they appear in MIME headers.
const (
	CharsetUTF8  = "UTF-8"
	CharsetASCII = "US-ASCII"
	CharsetLatin = "ISO-8859-1"
)

// ParseCharset normalizes a user-supplied character encoding name to its
// canonical MIME form. The empty string means UTF-8. The charset applies
// uniformly to the subject and the body.
func ParseCharset(s string) (string, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "_", "-")) {
	case "", "utf8", "utf-8", "unicode":
		return CharsetUTF8, nil
	case "ascii", "us-ascii":
		return CharsetASCII, nil
	case "latin1", "iso-8859-1", "iso8859-1":
		return CharsetLatin, nil
	default:
		return "", fmt.Errorf("unsupported character encoding %q", s)
	}
}
