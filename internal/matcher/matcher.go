package matcher

import (
	"strings"

	"github.com/xrash/smetrics"

	"voxdispatch/internal/domain"
)

// DefaultThreshold is the similarity a phrase must strictly exceed to qualify.
const DefaultThreshold = 0.91

const (
	winklerBoostThreshold = 0.7
	winklerPrefixSize     = 4
)

// Matcher scores candidate text against known phrases with Jaro-Winkler similarity.
type Matcher struct {
	threshold float64
}

func New(threshold float64) *Matcher {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

// Score returns the similarity of two normalized strings in [0,1].
func Score(a string, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	return smetrics.JaroWinkler(a, b, winklerBoostThreshold, winklerPrefixSize)
}

// BestMatch returns the qualifying phrase with the highest score, or a
// MatchNone result. Ties are broken by shorter phrase, then lexical order,
// so the result never depends on the order of phrases.
//
// For partial hypotheses, phrases that strictly extend the candidate are
// skipped: an utterance that is still being spoken must not be resolved to
// its completion early. A final hypothesis is closed, so every phrase is a
// candidate.
func (m *Matcher) BestMatch(candidate string, kind domain.HypothesisKind, phrases []string) domain.MatchResult {
	best := domain.MatchResult{Kind: domain.MatchNone}
	if candidate == "" {
		return best
	}

	for _, phrase := range phrases {
		if kind == domain.HypothesisPartial && phrase != candidate && strings.HasPrefix(phrase, candidate) {
			continue
		}
		score := Score(candidate, phrase)
		if score <= m.threshold {
			continue
		}
		if best.Kind == domain.MatchNone || better(phrase, score, best.Phrase, best.Score) {
			best = domain.MatchResult{Phrase: phrase, Score: score, Kind: domain.MatchFuzzy}
		}
	}
	return best
}

func better(phrase string, score float64, current string, currentScore float64) bool {
	if score != currentScore {
		return score > currentScore
	}
	if len(phrase) != len(current) {
		return len(phrase) < len(current)
	}
	return phrase < current
}
