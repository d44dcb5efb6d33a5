package refdata

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"rentcore/internal/model"
)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases and strips Vietnamese diacritics ("Quận" -> "quan").
func Fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	// NFD does not decompose đ
	folded = strings.ReplaceAll(folded, "đ", "d")
	return folded
}

// Score rates how well a raw mention matches a candidate vocabulary name.
// Tiers, best first: exact case-insensitive match, diacritic-folded substring
// containment, raw substring containment, character-set Jaccard similarity.
func Score(raw, candidate string) float64 {
	rawLower := strings.ToLower(strings.TrimSpace(raw))
	candLower := strings.ToLower(strings.TrimSpace(candidate))
	if rawLower == "" || candLower == "" {
		return 0
	}
	if rawLower == candLower {
		return 1
	}

	rawFolded := Fold(rawLower)
	candFolded := Fold(candLower)
	if rawFolded == candFolded {
		return 1
	}
	if strings.Contains(rawFolded, candFolded) || strings.Contains(candFolded, rawFolded) {
		return lengthRatio(rawFolded, candFolded)
	}
	if strings.Contains(rawLower, candLower) || strings.Contains(candLower, rawLower) {
		return lengthRatio(rawLower, candLower)
	}
	return jaccard(rawFolded, candFolded)
}

// BestMatch returns the highest-scoring record at or above threshold.
func BestMatch(raw string, records []model.DirectoryRecord, threshold float64) (model.DirectoryRecord, float64, bool) {
	var best model.DirectoryRecord
	bestScore := 0.0
	found := false

	for _, rec := range records {
		score := Score(raw, rec.Name)
		if score > bestScore {
			best = rec
			bestScore = score
			found = true
		}
	}

	if !found || bestScore < threshold {
		return model.DirectoryRecord{}, bestScore, false
	}
	return best, bestScore, true
}

// lengthRatio scores containment by shorter/longer rune count.
func lengthRatio(a, b string) float64 {
	la := len([]rune(a))
	lb := len([]rune(b))
	if la == 0 || lb == 0 {
		return 0
	}
	if la > lb {
		la, lb = lb, la
	}
	return float64(la) / float64(lb)
}

// jaccard computes character-set Jaccard similarity, whitespace excluded.
func jaccard(a, b string) float64 {
	setA := charSet(a)
	setB := charSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for ch := range setA {
		if setB[ch] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func charSet(s string) map[rune]bool {
	set := make(map[rune]bool, len(s))
	for _, ch := range s {
		if unicode.IsSpace(ch) {
			continue
		}
		set[ch] = true
	}
	return set
}
