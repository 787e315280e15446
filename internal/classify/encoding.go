package classify

import (
	"unicode"

	"golang.org/x/text/encoding/charmap"
)

// IsForeignText reports whether content is written in a non-English Western
// script: it is not plain ASCII but every rune fits in Latin-1. Content with
// runes beyond Latin-1 (typographic quotes, dashes, emoji) is left to the line
// classifiers since mail clients insert those into English text.
func IsForeignText(content string) bool {
	if isASCII(content) {
		return false
	}
	if _, err := charmap.ISO8859_1.NewEncoder().String(content); err != nil {
		return false
	}
	return true
}

func isASCII(s string) bool {
	for _, c := range s {
		if c > unicode.MaxASCII {
			return false
		}
	}
	return true
}
