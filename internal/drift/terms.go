package drift

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/jobtide/jobtide/internal/embedding"
)

var termPattern = regexp.MustCompile(`[a-z][a-z0-9+./-]{2,}`)

// stopwords excluded from the reference vocabulary. Posting boilerplate
// dominates raw frequency counts, so the common filler has to go.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "you": true,
	"will": true, "our": true, "are": true, "this": true, "that": true,
	"have": true, "your": true, "from": true, "their": true, "they": true,
	"role": true, "team": true, "work": true, "working": true, "job": true,
	"experience": true, "skills": true, "ability": true, "strong": true,
	"excellent": true, "candidate": true, "company": true, "about": true,
	"within": true, "across": true, "including": true, "required": true,
	"requirements": true, "responsibilities": true, "opportunity": true,
	"looking": true, "join": true, "who": true, "what": true, "all": true,
	"can": true, "not": true, "but": true, "per": true, "been": true,
	"into": true, "more": true, "other": true, "out": true, "such": true,
}

// buildVocabulary returns the most frequent non-stopword terms across the
// provided posting texts, most frequent first.
func buildVocabulary(texts []string, size int) []string {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, term := range termPattern.FindAllString(strings.ToLower(text), -1) {
			if stopwords[term] {
				continue
			}
			counts[term]++
		}
	}

	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > size {
		terms = terms[:size]
	}
	return terms
}

type termDelta struct {
	term  string
	delta float64
}

// termDeltas scores each vocabulary term by how much closer (or further)
// it sits to the new centroid versus the old one. Terms past +threshold
// are gaining relevance, past -threshold losing it.
func termDeltas(ctx context.Context, provider embedding.Provider, vocabulary []string, oldCentroid, newCentroid []float64, threshold float64, top int) (gained, lost []string) {
	var gainedDeltas, lostDeltas []termDelta

	for _, term := range vocabulary {
		v, err := provider.Embed(ctx, term)
		if err != nil {
			continue
		}
		delta := embedding.Cosine(v, newCentroid) - embedding.Cosine(v, oldCentroid)
		switch {
		case delta > threshold:
			gainedDeltas = append(gainedDeltas, termDelta{term: term, delta: delta})
		case delta < -threshold:
			lostDeltas = append(lostDeltas, termDelta{term: term, delta: -delta})
		}
	}

	sort.Slice(gainedDeltas, func(i, j int) bool { return gainedDeltas[i].delta > gainedDeltas[j].delta })
	sort.Slice(lostDeltas, func(i, j int) bool { return lostDeltas[i].delta > lostDeltas[j].delta })

	return topTerms(gainedDeltas, top), topTerms(lostDeltas, top)
}

func topTerms(deltas []termDelta, top int) []string {
	if len(deltas) > top {
		deltas = deltas[:top]
	}
	terms := make([]string, 0, len(deltas))
	for _, d := range deltas {
		terms = append(terms, d.term)
	}
	return terms
}
