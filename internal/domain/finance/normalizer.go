package finance

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Length bounds, in runes.
const (
	MaxMessageLength     = 500
	MaxDescriptionLength = 500
	MaxCounterpartLength = 100
)

// Normalize lowercases text, folds Latin diacritics, drops every character
// outside [a-z], Cyrillic letters, digits and whitespace, collapses runs of
// whitespace and truncates the result to maxLen runes. Word-joining
// punctuation (-_/.,) becomes a space so "Иван-Петров" yields two words.
func Normalize(text string, maxLen int) string {
	if text == "" {
		return ""
	}

	lowered := cases.Lower(language.Und).String(foldLatin(text))

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case isAllowed(r):
			b.WriteRune(r)
		case unicode.IsSpace(r), isJoiner(r):
			b.WriteByte(' ')
		}
	}

	return Truncate(strings.Join(strings.Fields(b.String()), " "), maxLen)
}

// Truncate cuts s to at most maxLen runes. A non-positive maxLen disables the bound.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == maxLen {
			return strings.TrimSpace(s[:i])
		}
		count++
	}
	return s
}

// foldLatin removes combining marks from Latin letters only; Cyrillic letters
// such as "й" keep their breve.
func foldLatin(s string) string {
	t := transform.Chain(
		norm.NFC,
		runes.If(runes.In(unicode.Latin), norm.NFD, transform.Nop),
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func isAllowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r >= 'а' && r <= 'я':
		return true
	case r >= 'ѐ' && r <= 'џ':
		return true
	}
	return false
}

func isJoiner(r rune) bool {
	switch r {
	case '-', '_', '/', '.', ',':
		return true
	}
	return false
}
