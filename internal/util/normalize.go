// Package util holds small text helpers shared by the classifier, the chat
// service and the report builder.
package util

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// punctuation mirrors the ASCII punctuation set.
const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Normalize lower-cases, trims, strips diacritics and punctuation, and
// collapses whitespace runs so that "¡Sin Existencias!" and "sin existencias"
// compare equal. Empty input yields empty output.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && strings.ContainsRune(punctuation, r) {
			return -1
		}
		return r
	}, strings.ToLower(text))

	// Punctuation goes first so NFC sees the final neighbours.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, text)
	if err == nil {
		text = stripped
	}

	return strings.Join(strings.Fields(text), " ")
}

// Truncate shortens s to at most maxLen runes, appending "..." when cut.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
