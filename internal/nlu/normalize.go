package nlu

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Normalize composes Vietnamese diacritics (NFC), lowercases, trims and
// collapses runs of whitespace to one space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(norm.NFC.String(text))), " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// containsWord reports whether phrase occurs in text on word boundaries, so
// "áo" does not match inside "giáo". Both arguments must be normalized.
func containsWord(text, phrase string) bool {
	return indexWord(text, phrase) >= 0
}

func indexWord(text, phrase string) int {
	if phrase == "" {
		return -1
	}
	offset := 0
	for {
		i := strings.Index(text[offset:], phrase)
		if i < 0 {
			return -1
		}
		start := offset + i
		end := start + len(phrase)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return start
		}
		offset = start + 1
		for offset < len(text) && !isRuneStart(text[offset]) {
			offset++
		}
		if offset >= len(text) {
			return -1
		}
	}
}

// replaceWord replaces every boundary-respecting occurrence of phrase.
func replaceWord(text, phrase, with string) string {
	for {
		i := indexWord(text, phrase)
		if i < 0 {
			return text
		}
		text = text[:i] + with + text[i+len(phrase):]
	}
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r := lastRune(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r := firstRune(text[i:])
	return !isWordRune(r)
}

func isRuneStart(b byte) bool { return utf8.RuneStart(b) }

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}
