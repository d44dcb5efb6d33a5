package extractor

import (
	"strings"
	"unicode"

	"rentcore/internal/refdata"
)

// Keyword sets for the scope gate, diacritic-folded. A hit in the unrelated
// set wins over a hit in the domain set: declining beats mis-answering.
var domainKeywords = []string{
	"phong tro", "tro", "thue", "can ho", "chung cu", "nha nguyen can",
	"o ghep", "phong", "nha", "gia thue", "quan", "phuong", "m2",
	"tien nghi", "gac lung", "noi that", "cho thue", "tim phong", "tim nha",
}

var unrelatedKeywords = []string{
	"thoi tiet", "bong da", "chung khoan", "bitcoin", "nau an", "cong thuc",
	"phim", "ca nhac", "chinh tri", "game", "xo so", "tin tuc", "bai hat",
	"du bao", "ket qua tran",
}

// Gibberish reports whether a message is noise worth declining before any
// lookup or extraction work is spent on it.
func Gibberish(message string) bool {
	trimmed := strings.TrimSpace(message)
	return trimmed == "" || isGibberish(trimmed)
}

// InScope classifies whether a message is a property-search request at all.
func InScope(message string) bool {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return false
	}
	if isGibberish(trimmed) {
		return false
	}

	folded := refdata.Fold(trimmed)
	for _, kw := range unrelatedKeywords {
		if strings.Contains(folded, kw) {
			return false
		}
	}
	for _, kw := range domainKeywords {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}

// isGibberish detects inputs no extractor should waste a cycle on:
// repeated-character runs, pure punctuation, overlong unbroken tokens.
func isGibberish(s string) bool {
	if hasRepeatedRun(strings.ToLower(s), 5) {
		return true
	}

	hasLetterOrDigit := false
	for _, ch := range s {
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) {
			hasLetterOrDigit = true
			break
		}
	}
	if !hasLetterOrDigit {
		return true
	}

	for _, token := range strings.Fields(s) {
		if len([]rune(token)) > 25 && isAllLetters(token) {
			return true
		}
	}
	return false
}

// hasRepeatedRun reports a run of n identical characters ("aaaaaaaa").
// RE2 has no backreferences, so this is a plain scan.
func hasRepeatedRun(s string, n int) bool {
	var prev rune
	run := 0
	for _, ch := range s {
		if ch == prev {
			run++
			if run >= n {
				return true
			}
		} else {
			prev = ch
			run = 1
		}
	}
	return false
}

func isAllLetters(s string) bool {
	for _, ch := range s {
		if !unicode.IsLetter(ch) {
			return false
		}
	}
	return true
}
