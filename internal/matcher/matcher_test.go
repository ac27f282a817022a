package matcher

import (
	"testing"

	"voxdispatch/internal/domain"
)

var phrases = []string{"lock screen", "open browser", "type mode"}

func TestBestMatchResolvesMisheardPhrase(t *testing.T) {
	t.Parallel()

	result := New(DefaultThreshold).BestMatch("open browzer", domain.HypothesisPartial, phrases)
	if result.Kind != domain.MatchFuzzy || result.Phrase != "open browser" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Score <= DefaultThreshold || result.Score >= 1 {
		t.Fatalf("unexpected score: %f", result.Score)
	}
}

func TestBestMatchRejectsUnrelatedText(t *testing.T) {
	t.Parallel()

	result := New(DefaultThreshold).BestMatch("zzz", domain.HypothesisFinal, phrases)
	if result.Kind != domain.MatchNone || result.Found() {
		t.Fatalf("expected no match, got %+v", result)
	}
}

func TestBestMatchSkipsPhrasesExtendingPartial(t *testing.T) {
	t.Parallel()

	result := New(DefaultThreshold).BestMatch("open browse", domain.HypothesisPartial, phrases)
	if result.Kind != domain.MatchNone {
		t.Fatalf("expected prefix candidate to be skipped, got %+v", result)
	}
}

func TestBestMatchFinalConsidersExtendingPhrases(t *testing.T) {
	t.Parallel()

	result := New(DefaultThreshold).BestMatch("open browse", domain.HypothesisFinal, phrases)
	if result.Kind != domain.MatchFuzzy || result.Phrase != "open browser" {
		t.Fatalf("expected closed utterance to resolve, got %+v", result)
	}
}

func TestBestMatchEmptyCandidate(t *testing.T) {
	t.Parallel()

	if result := New(DefaultThreshold).BestMatch("", domain.HypothesisFinal, phrases); result.Kind != domain.MatchNone {
		t.Fatalf("expected none for empty candidate, got %+v", result)
	}
}

func TestBestMatchTieBreakIsStable(t *testing.T) {
	t.Parallel()

	m := New(0.5)
	forward := m.BestMatch("ab", domain.HypothesisFinal, []string{"ax", "ay"})
	backward := m.BestMatch("ab", domain.HypothesisFinal, []string{"ay", "ax"})
	if forward.Phrase != "ax" || backward.Phrase != "ax" {
		t.Fatalf("expected lexical tie-break, got %q and %q", forward.Phrase, backward.Phrase)
	}
}

func TestBetterPrefersScoreThenLengthThenLexical(t *testing.T) {
	t.Parallel()

	if !better("b", 0.95, "a", 0.94) {
		t.Fatalf("higher score must win")
	}
	if !better("abc", 0.95, "abcd", 0.95) {
		t.Fatalf("shorter phrase must win a score tie")
	}
	if !better("abc", 0.95, "abd", 0.95) || better("abd", 0.95, "abc", 0.95) {
		t.Fatalf("lexical order must break remaining ties")
	}
}

func TestNewFallsBackToDefaultThreshold(t *testing.T) {
	t.Parallel()

	if got := New(0).threshold; got != DefaultThreshold {
		t.Fatalf("unexpected threshold: %f", got)
	}
	if got := New(1.5).threshold; got != DefaultThreshold {
		t.Fatalf("unexpected threshold: %f", got)
	}
}

func TestScoreIdentityAndEmpty(t *testing.T) {
	t.Parallel()

	if Score("lock screen", "lock screen") != 1 {
		t.Fatalf("identical strings must score 1")
	}
	if Score("", "lock screen") != 0 {
		t.Fatalf("empty string must score 0")
	}
}
