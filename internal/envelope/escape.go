// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package envelope

import (
	"bytes"
	"fmt"
	"unicode/utf8"
)

// DefaultMarker replaces the CR of every CRLF pair in text-encoded bodies.
const DefaultMarker = "CARRIAGERETURN"

// ValidateMarker rejects markers that are empty or contain anything other
// than ASCII letters, digits, '-' and '_'.
func ValidateMarker(marker string) error {
	if marker == "" {
		return fmt.Errorf("%w: empty", ErrInvalidMarker)
	}
	for i := 0; i < len(marker); i++ {
		c := marker[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return fmt.Errorf("%w: %q contains %q", ErrInvalidMarker, marker, c)
		}
	}
	return nil
}

// escapeBody neutralises '&', '<' and '>', writes CRLF as marker+LF and
// protects a lone CR with a character reference.
func escapeBody(body []byte, marker string) []byte {
	var b bytes.Buffer
	b.Grow(len(body) + len(body)/8)
	for i := 0; i < len(body); i++ {
		switch c := body[i]; c {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '\r':
			if i+1 < len(body) && body[i+1] == '\n' {
				b.WriteString(marker)
				b.WriteByte('\n')
				i++
				continue
			}
			b.WriteString("&#xD;")
		default:
			b.WriteByte(c)
		}
	}
	return b.Bytes()
}

// unescapeBody reverses the marker substitution. Entities and character
// references have already been resolved by the XML reader.
func unescapeBody(text []byte, marker string) []byte {
	return bytes.ReplaceAll(text, []byte(marker+"\n"), []byte("\r\n"))
}

// textSafe reports whether body survives text encoding: valid UTF-8, only
// characters XML 1.0 allows, and no literal marker+LF sequence.
func textSafe(body []byte, marker string) bool {
	if bytes.Contains(body, []byte(marker+"\n")) {
		return false
	}
	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size == 1 {
			return false
		}
		if !isXMLChar(r) {
			return false
		}
		body = body[size:]
	}
	return true
}

func isXMLChar(r rune) bool {
	return r == 0x09 ||
		r == 0x0A ||
		r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}
