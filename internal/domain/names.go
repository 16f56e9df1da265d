package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// branchSuffixes are removed when they end a name exactly.
// Longer suffixes come first so 직영점 wins over a bare 점 rule.
var branchSuffixes = []string{"직영점", "본점", "지점", "분점"}

const (
	branchMarker = '점'

	// genericMaxSyllables bounds the location word before the marker.
	genericMaxSyllables = 4

	// genericKeepSyllables is never consumed by the generic rule.
	genericKeepSyllables = 2
)

// StripSuffix removes one Korean branch suffix from name.
// A known suffix is tried first; otherwise a trailing run of 1 to 4 Hangul
// syllables followed by 점 is removed, leaving at least the first two
// syllables of the name in place (강남역점 -> 강남).
func StripSuffix(name string) string {
	for _, suffix := range branchSuffixes {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}

	runes := []rune(name)
	n := len(runes)
	if n < genericKeepSyllables+2 || runes[n-1] != branchMarker {
		return name
	}

	start := n - 1 - genericMaxSyllables
	if start < genericKeepSyllables {
		start = genericKeepSyllables
	}
	// Leftmost start whose run up to the marker is all Hangul.
	for s := start; s <= n-2; s++ {
		if allHangul(runes[s : n-1]) {
			return string(runes[:s])
		}
	}
	return name
}

// NormalizeName prepares a name for comparison: NFC, no whitespace,
// case-folded, with branch suffixes stripped until none remain.
// NormalizeName(NormalizeName(x)) == NormalizeName(x).
func NormalizeName(name string) string {
	s := norm.NFC.String(name)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = cases.Fold().String(s)

	for {
		stripped := StripSuffix(s)
		if stripped == s {
			return s
		}
		s = stripped
	}
}

// IsNameMatch reports whether either normalized name contains the other.
// Names that normalize to nothing never match.
func IsNameMatch(a, b string) bool {
	na := NormalizeName(a)
	nb := NormalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

func allHangul(rs []rune) bool {
	if len(rs) == 0 {
		return false
	}
	for _, r := range rs {
		if r < 0xAC00 || r > 0xD7A3 {
			return false
		}
	}
	return true
}
