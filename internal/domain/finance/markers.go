package finance

import (
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// Polarity tells whether a transaction takes money out or brings it in.
type Polarity int

const (
	Income Polarity = iota
	Expense
)

func (p Polarity) String() string {
	if p == Expense {
		return "expense"
	}
	return "income"
}

// MarkerRule ties a description keyword to the polarity it signals.
type MarkerRule struct {
	Token    string
	Polarity Polarity
}

// DefaultMarkers are the transliterated expense/income keywords. Income is
// also the polarity of a description with no marker at all.
var DefaultMarkers = []MarkerRule{
	{Token: "razhod", Polarity: Expense},
	{Token: "plateno", Polarity: Expense},
	{Token: "prihod", Polarity: Income},
	{Token: "postuplenie", Polarity: Income},
}

// MarkerEngine finds polarity markers in a description with a single
// Aho-Corasick pass. Patterns are space-padded and matched against the
// space-padded normalized description, which gives whole-word semantics.
type MarkerEngine struct {
	matcher *ahocorasick.Matcher
	rules   []MarkerRule
	mu      sync.Mutex // Match mutates matcher state
}

// NewMarkerEngine builds the matcher for rules
func NewMarkerEngine(rules []MarkerRule) *MarkerEngine {
	e := &MarkerEngine{}

	patterns := make([]string, 0, len(rules))
	for _, rule := range rules {
		token := Normalize(rule.Token, MaxDescriptionLength)
		if token == "" {
			continue
		}
		patterns = append(patterns, " "+token+" ")
		e.rules = append(e.rules, MarkerRule{Token: token, Polarity: rule.Polarity})
	}
	if len(patterns) > 0 {
		e.matcher = ahocorasick.NewStringMatcher(patterns)
	}
	return e
}

// Classify returns Expense when any expense marker occurs in description;
// otherwise Income.
func (e *MarkerEngine) Classify(description string) Polarity {
	for _, rule := range e.Markers(description) {
		if rule.Polarity == Expense {
			return Expense
		}
	}
	return Income
}

// Markers returns every marker rule found in description.
func (e *MarkerEngine) Markers(description string) []MarkerRule {
	if e.matcher == nil {
		return nil
	}
	text := " " + Normalize(description, MaxDescriptionLength) + " "

	e.mu.Lock()
	hits := e.matcher.Match([]byte(text))
	e.mu.Unlock()

	found := make([]MarkerRule, 0, len(hits))
	for _, idx := range hits {
		if idx >= 0 && idx < len(e.rules) {
			found = append(found, e.rules[idx])
		}
	}
	return found
}
