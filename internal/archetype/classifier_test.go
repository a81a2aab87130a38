package archetype

import (
	"context"
	"math"
	"testing"

	"github.com/jobtide/jobtide/internal/embedding"
)

func rulesOnlyClassifier(t *testing.T) *Classifier {
	t.Helper()

	cfg := DefaultClassifierConfig()
	cfg.UseEmbeddings = false

	c, err := NewClassifier(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("building classifier: %v", err)
	}
	return c
}

func TestClassifyEmptyTextFallsBack(t *testing.T) {
	c := rulesOnlyClassifier(t)

	result := c.Classify(context.Background(), "   ", "Engineer")

	if !result.Fallback {
		t.Fatalf("expected fallback for empty text")
	}
	if result.Primary != Builder {
		t.Fatalf("expected builder primary on fallback, got %s", result.Primary)
	}
	for _, a := range All() {
		if result.Scores[a] != 0.25 {
			t.Fatalf("expected uniform 0.25 for %s, got %v", a, result.Scores[a])
		}
	}
}

func TestClassifyNoSignalYieldsUniform(t *testing.T) {
	c := rulesOnlyClassifier(t)

	result := c.Classify(context.Background(), "The quick brown fox jumps over the lazy dog.", "Engineer")

	if !result.Fallback {
		t.Fatalf("expected fallback for signal-free text")
	}
	if result.Reason == "" {
		t.Fatalf("expected a fallback reason")
	}
	for _, a := range All() {
		if result.Scores[a] != 0.25 {
			t.Fatalf("expected uniform 0.25 for %s, got %v", a, result.Scores[a])
		}
	}
}

func TestClassifyScoresSumToOne(t *testing.T) {
	cfg := DefaultClassifierConfig()
	c, err := NewClassifier(context.Background(), cfg, embedding.NewFallback(64), nil)
	if err != nil {
		t.Fatalf("building classifier: %v", err)
	}

	texts := []string{
		"Build a new product from scratch. Greenfield MVP for an early stage startup.",
		"Refactor existing services for performance and reliability. Pay down technical debt in a legacy monolith.",
		"Keep production systems running. On-call rotation with SLA targets and incident response.",
		"Translate business requirements into technical solutions. Present findings to executives and the board.",
		"nothing relevant here at all",
	}

	for _, text := range texts {
		result := c.Classify(context.Background(), text, "Engineer")

		sum := 0.0
		for _, a := range All() {
			s := result.Scores[a]
			if s < 0 || s > 1 {
				t.Fatalf("score out of range for %s on %q: %v", a, text, s)
			}
			sum += s
		}
		if math.Abs(sum-1) > 1e-6 {
			t.Fatalf("scores sum to %v for %q, want 1", sum, text)
		}
	}
}

func TestClassifyLegacyTextPrefersFixer(t *testing.T) {
	c := rulesOnlyClassifier(t)

	result := c.Classify(context.Background(),
		"Refactor existing services for performance and reliability. Pay down technical debt in a legacy monolith.",
		"Software Engineer",
	)

	if result.Fallback {
		t.Fatalf("did not expect fallback")
	}
	if result.Primary != Fixer {
		t.Fatalf("expected fixer primary, got %s with scores %v", result.Primary, result.Scores)
	}
}

func TestClassifyGreenfieldTextPrefersBuilder(t *testing.T) {
	c := rulesOnlyClassifier(t)

	result := c.Classify(context.Background(),
		"Build a new product from scratch. Greenfield MVP development at an early stage startup.",
		"Software Engineer",
	)

	if result.Primary != Builder {
		t.Fatalf("expected builder primary, got %s with scores %v", result.Primary, result.Scores)
	}
}

func TestClassifyOnCallTextPrefersOperator(t *testing.T) {
	c := rulesOnlyClassifier(t)

	result := c.Classify(context.Background(),
		"Maintain production infrastructure. Join the on-call rotation, respond to incidents and keep us inside SLA.",
		"Platform Engineer",
	)

	if result.Primary != Operator {
		t.Fatalf("expected operator primary, got %s with scores %v", result.Primary, result.Scores)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	cfg := DefaultClassifierConfig()
	c, err := NewClassifier(context.Background(), cfg, embedding.NewFallback(64), nil)
	if err != nil {
		t.Fatalf("building classifier: %v", err)
	}

	text := "Modernize a legacy platform. Migrate the monolith and reduce technical debt."

	first := c.Classify(context.Background(), text, "Senior Engineer")
	second := c.Classify(context.Background(), text, "Senior Engineer")

	if first.Primary != second.Primary {
		t.Fatalf("primary changed between runs: %s vs %s", first.Primary, second.Primary)
	}
	for _, a := range All() {
		if first.Scores[a] != second.Scores[a] {
			t.Fatalf("score for %s changed between runs: %v vs %v", a, first.Scores[a], second.Scores[a])
		}
	}
}

func TestClassifyFillsMetadata(t *testing.T) {
	c := rulesOnlyClassifier(t)

	result := c.Classify(context.Background(),
		"6 month contract. Maintain production Kubernetes infrastructure with Terraform and Go. On-call rotation with SLA targets.",
		"Senior Platform Engineer",
	)

	if result.JobType != JobTypeContract {
		t.Fatalf("expected contract job type, got %s", result.JobType)
	}
	if result.Seniority != SenioritySenior {
		t.Fatalf("expected senior, got %s", result.Seniority)
	}

	want := map[string]bool{"go": true, "kubernetes": true, "terraform": true}
	for _, tag := range result.TechTags {
		delete(want, tag)
	}
	if len(want) != 0 {
		t.Fatalf("missing tech tags %v in %v", want, result.TechTags)
	}
}

func TestKeywordBoostRequiresMinHits(t *testing.T) {
	scores := map[Archetype]float64{Builder: 0, Fixer: 0, Operator: 0, Translator: 0}

	// one translator keyword is below the minimum of two
	applyKeywordBoosts("reporting to the executive team", scores)
	if scores[Translator] != 0 {
		t.Fatalf("expected no translator boost on a single hit, got %v", scores[Translator])
	}

	applyKeywordBoosts("present to the executive team and the board", scores)
	if scores[Translator] != 0.6 {
		t.Fatalf("expected translator boost 0.6, got %v", scores[Translator])
	}
}
