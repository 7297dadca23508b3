package txtype

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// SuggestThreshold is the minimum similarity (0-100) for a suggestion.
const SuggestThreshold = 40

// Suggestion is an option ranked by similarity to a filter keyword
type Suggestion struct {
	Option Option
	Score  int // 100 is an exact match
}

// Suggest ranks options by similarity to keyword and returns up to limit
// options scoring at least threshold, best first. Used when a filter keyword
// matches nothing.
func Suggest(keyword string, options []Option, limit, threshold int) []Suggestion {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" || len(options) == 0 {
		return nil
	}

	results := make([]Suggestion, 0, len(options))
	for _, o := range options {
		if score := similarity(keyword, strings.ToLower(o.Name)); score >= threshold {
			results = append(results, Suggestion{Option: o, Score: score})
		}
	}

	// stable keeps catalog order among equal scores
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results
}

// similarity scores two lowercased strings 0-100 using containment, edit
// distance and subsequence matching, whichever is best.
func similarity(keyword, name string) int {
	if keyword == name {
		return 100
	}

	kl, nl := utf8.RuneCountInString(keyword), utf8.RuneCountInString(name)
	if kl == 0 || nl == 0 {
		return 0
	}

	if strings.Contains(name, keyword) {
		return 75 + 25*kl/nl
	}
	if strings.Contains(keyword, name) {
		return 75 + 25*nl/kl
	}

	maxLen := max(kl, nl)
	distance := fuzzy.LevenshteinDistance(keyword, name)
	editScore := 100 * (maxLen - distance) / maxLen

	// keyword letters appear in order inside name ("gsmc" in "gsm card")
	subsequenceScore := 0
	if rank := fuzzy.RankMatchNormalizedFold(keyword, name); rank >= 0 {
		subsequenceScore = 60 - min(rank, nl)*40/nl
	}

	return max(editScore, subsequenceScore)
}
