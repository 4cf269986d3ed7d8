// Package answer canonicalizes free-text puzzle answers and compares them.
//
// Matching forgives formatting, not spelling: two answers are equal when
// their normalized forms are identical. Normalization runs, in order:
// trim, lowercase, whitespace removal (including ideographic and
// zero-width spaces), full-width to half-width folding, punctuation
// removal, NFKC, and katakana to hiragana folding. NFKC can expand a
// rune into spaces or punctuation (⑴ becomes "(1)"), so lowercasing and
// both removals run again after it.
package answer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

const (
	katakanaFirst = 'ァ' // U+30A1
	katakanaLast  = 'ヶ' // U+30F6
	iterFirst     = 'ヽ' // U+30FD
	iterLast      = 'ヾ' // U+30FE
	kanaOffset    = 0x60
)

// pipeline builds a fresh transformer chain. Chains hold state, so one is
// created per call.
func pipeline() transform.Transformer {
	return transform.Chain(
		cases.Lower(language.Und),
		runes.Remove(runes.Predicate(isSpace)),
		width.Fold,
		runes.Remove(runes.Predicate(isPunct)),
		norm.NFKC,
		cases.Lower(language.Und),
		runes.Remove(runes.Predicate(isSpace)),
		runes.Remove(runes.Predicate(isPunct)),
		runes.Map(foldKana),
	)
}

// Normalize returns the canonical comparison form of s.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	out, _, err := transform.String(pipeline(), s)
	if err != nil {
		// Only reachable on invalid UTF-8; fall back to a plain fold.
		return strings.ToLower(strings.Join(strings.Fields(s), ""))
	}
	return out
}

// Equal reports whether input matches canonical after normalization. An
// input that normalizes to nothing never matches.
func Equal(input, canonical string) bool {
	in := Normalize(input)
	if in == "" {
		return false
	}
	return in == Normalize(canonical)
}

// Match reports whether input equals any of the accepted answers.
func Match(input string, accepted []string) bool {
	in := Normalize(input)
	if in == "" {
		return false
	}
	for _, a := range accepted {
		if in == Normalize(a) {
			return true
		}
	}
	return false
}

func isSpace(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\ufeff':
		return true
	}
	return unicode.IsSpace(r)
}

func isPunct(r rune) bool {
	return unicode.IsPunct(r)
}

func foldKana(r rune) rune {
	if (r >= katakanaFirst && r <= katakanaLast) || (r >= iterFirst && r <= iterLast) {
		return r - kanaOffset
	}
	return r
}
