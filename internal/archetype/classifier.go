package archetype

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/jobtide/jobtide/internal/embedding"
)

const (
	verbWeight = 1.0

	defaultIndicatorWeight = 0.5
	defaultEmbeddingGate   = 0.5
	defaultEmbeddingWeight = 0.3
	defaultMetadataPrior   = 0.15
)

// ClassifierConfig carries the hand-tuned classifier constants. The
// defaults come from manual tuning against real postings; treat them as
// knobs, not derived values.
type ClassifierConfig struct {
	// UseEmbeddings enables the embedding-centroid similarity term.
	UseEmbeddings bool
	// IndicatorWeight is the score added per indicator phrase hit.
	IndicatorWeight float64
	// EmbeddingGate is the minimum sentence-to-centroid similarity before
	// the embedding term contributes anything.
	EmbeddingGate float64
	// EmbeddingWeight scales the similarity contribution once gated.
	EmbeddingWeight float64
	// MetadataPrior is the nudge applied from contract/permanent metadata.
	MetadataPrior float64
}

// DefaultClassifierConfig returns the tuned defaults.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		UseEmbeddings:   true,
		IndicatorWeight: defaultIndicatorWeight,
		EmbeddingGate:   defaultEmbeddingGate,
		EmbeddingWeight: defaultEmbeddingWeight,
		MetadataPrior:   defaultMetadataPrior,
	}
}

// Validate rejects configurations that would silently disable or invert
// scoring terms.
func (c ClassifierConfig) Validate() error {
	if c.IndicatorWeight < 0 || c.IndicatorWeight > verbWeight {
		return fmt.Errorf("indicator weight must be within [0, %v], got %v", verbWeight, c.IndicatorWeight)
	}
	if c.EmbeddingGate < 0 || c.EmbeddingGate >= 1 {
		return fmt.Errorf("embedding gate must be within [0, 1), got %v", c.EmbeddingGate)
	}
	if c.EmbeddingWeight < 0 {
		return fmt.Errorf("embedding weight must be non-negative, got %v", c.EmbeddingWeight)
	}
	if c.MetadataPrior < 0 {
		return fmt.Errorf("metadata prior must be non-negative, got %v", c.MetadataPrior)
	}
	return nil
}

// Result is the full classifier output for one posting.
type Result struct {
	Scores    map[Archetype]float64
	Primary   Archetype
	Embedding []float64
	JobType   JobType
	Seniority Seniority
	TechTags  []string
	// Fallback is set when no signal was found and the scores are the
	// uniform distribution.
	Fallback bool
	Reason   string
}

// Classifier assigns a posting to the fixed archetypes via rule-pattern
// scoring, embedding-centroid similarity, keyword boosts and metadata
// priors. Classify is read-only after construction and safe for concurrent
// use across postings.
type Classifier struct {
	cfg      ClassifierConfig
	provider embedding.Provider
	logger   *zap.Logger

	// centroids of each archetype's own pattern phrases, computed once.
	centroids map[Archetype][]float64
}

// NewClassifier validates the config and, when embeddings are enabled,
// precomputes the per-archetype phrase centroids.
func NewClassifier(ctx context.Context, cfg ClassifierConfig, provider embedding.Provider, logger *zap.Logger) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("classifier config: %w", err)
	}
	if cfg.UseEmbeddings && provider == nil {
		return nil, fmt.Errorf("embedding provider is required when embeddings are enabled")
	}

	c := &Classifier{cfg: cfg, provider: provider, logger: logger}

	if cfg.UseEmbeddings {
		c.centroids = make(map[Archetype][]float64, len(patternSets))
		for _, a := range All() {
			vectors := make([][]float64, 0, len(patternSets[a].phrases))
			for _, phrase := range patternSets[a].phrases {
				v, err := provider.Embed(ctx, phrase)
				if err != nil {
					return nil, fmt.Errorf("embedding phrase centroid for %s: %w", a, err)
				}
				vectors = append(vectors, v)
			}
			c.centroids[a] = embedding.Mean(vectors)
		}
	}

	return c, nil
}

// Centroid returns the phrase-derived centroid for the archetype, or nil
// when embeddings are disabled.
func (c *Classifier) Centroid(a Archetype) []float64 {
	return c.centroids[a]
}

var sentenceSplit = regexp.MustCompile(`[.!?\n]+`)

// Classify scores the posting text against every archetype. It never fails:
// empty or signal-free text yields the uniform fallback distribution with a
// reason attached.
func (c *Classifier) Classify(ctx context.Context, text, title string) Result {
	result := Result{
		JobType:   DetectJobType(text),
		Seniority: DetectSeniority(title),
		TechTags:  TechTags(text),
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		result.Scores = UniformScores()
		result.Primary = Builder
		result.Fallback = true
		result.Reason = "empty posting text"
		if c.provider != nil {
			result.Embedding, _ = c.provider.Embed(ctx, "")
		}
		return result
	}

	scores := make(map[Archetype]float64, len(patternSets))
	for _, a := range All() {
		scores[a] = 0
	}

	sentences := splitSentences(trimmed)

	for _, sentence := range sentences {
		lower := strings.ToLower(sentence)
		for _, a := range All() {
			set := patternSets[a]
			for _, verb := range set.verbs {
				if verb.MatchString(sentence) {
					scores[a] += verbWeight
				}
			}
			for _, indicator := range set.indicators {
				if strings.Contains(lower, indicator) {
					scores[a] += c.cfg.IndicatorWeight
				}
			}
		}
	}

	if c.cfg.UseEmbeddings {
		c.addEmbeddingScores(ctx, sentences, scores)
	}

	c.applyMetadataPriors(result.JobType, scores)
	applyKeywordBoosts(strings.ToLower(trimmed), scores)

	if c.provider != nil {
		v, err := c.provider.Embed(ctx, trimmed)
		if err == nil {
			result.Embedding = v
		} else if c.logger != nil {
			c.logger.Warn("embedding posting text failed", zap.Error(err))
		}
	}

	result.Scores, result.Fallback = normalizeScores(scores)
	if result.Fallback {
		result.Reason = "no archetype signal in posting text"
	}
	result.Primary = primaryOf(result.Scores)

	return result
}

// addEmbeddingScores adds similarity × weight for every sentence whose
// similarity to an archetype's phrase centroid clears the gate.
func (c *Classifier) addEmbeddingScores(ctx context.Context, sentences []string, scores map[Archetype]float64) {
	for _, sentence := range sentences {
		v, err := c.provider.Embed(ctx, sentence)
		if err != nil {
			if c.logger != nil {
				c.logger.Debug("embedding sentence failed", zap.Error(err))
			}
			continue
		}
		for _, a := range All() {
			sim := embedding.Cosine(v, c.centroids[a])
			if sim > c.cfg.EmbeddingGate {
				scores[a] += sim * c.cfg.EmbeddingWeight
			}
		}
	}
}

// applyMetadataPriors nudges the distribution from contract/permanent
// metadata: contract roles tend toward project work (builder, fixer),
// permanent roles toward steady-state work (operator, translator).
func (c *Classifier) applyMetadataPriors(jobType JobType, scores map[Archetype]float64) {
	switch jobType {
	case JobTypeContract:
		scores[Builder] += c.cfg.MetadataPrior
		scores[Fixer] += c.cfg.MetadataPrior
	case JobTypePermanent:
		scores[Operator] += c.cfg.MetadataPrior
		scores[Translator] += c.cfg.MetadataPrior
	}
}

func applyKeywordBoosts(lowerText string, scores map[Archetype]float64) {
	for _, kb := range keywordBoosts {
		hits := 0
		for _, kw := range kb.keywords {
			if strings.Contains(lowerText, kw) {
				hits++
			}
		}
		if hits >= kb.minHits {
			scores[kb.target] += kb.boost
		}
	}
}

// normalizeScores clips negatives, normalizes to sum 1, and reports whether
// the uniform fallback was used because the total was zero.
func normalizeScores(scores map[Archetype]float64) (map[Archetype]float64, bool) {
	total := 0.0
	for a, s := range scores {
		if s < 0 {
			scores[a] = 0
			continue
		}
		total += s
	}

	if total == 0 {
		return UniformScores(), true
	}

	normalized := make(map[Archetype]float64, len(scores))
	for a, s := range scores {
		if s < 0 {
			s = 0
		}
		normalized[a] = s / total
	}
	return normalized, false
}

// primaryOf picks the highest-scoring archetype, breaking ties by the
// canonical order so the result is deterministic.
func primaryOf(scores map[Archetype]float64) Archetype {
	best := Builder
	bestScore := -1.0
	for _, a := range All() {
		if scores[a] > bestScore {
			best = a
			bestScore = scores[a]
		}
	}
	return best
}

func splitSentences(text string) []string {
	parts := sentenceSplit.Split(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}
