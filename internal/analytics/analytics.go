// Package analytics aggregates resolved application outcomes into
// conversion signals per resume variant, keyword and title family. The
// output is advisory only; it never overrides the classifier or gating.
package analytics

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jobtide/jobtide/internal/archetype"
	"github.com/jobtide/jobtide/internal/model"
)

const defaultMinSample = 3

// Config carries the aggregation settings.
type Config struct {
	// MinSample is the minimum resolved count before a bucket is reported.
	MinSample int
}

// DefaultConfig returns the default minimum sample size.
func DefaultConfig() Config {
	return Config{MinSample: defaultMinSample}
}

// Validate rejects a non-positive sample floor.
func (c Config) Validate() error {
	if c.MinSample < 1 {
		return fmt.Errorf("minimum sample must be at least 1, got %d", c.MinSample)
	}
	return nil
}

// Bucket is one aggregated conversion bucket.
type Bucket struct {
	Key          string
	Total        int
	Positive     int
	PositiveRate float64
}

// FamilyBucket additionally carries the best-performing variant within the
// title family.
type FamilyBucket struct {
	Bucket
	BestVariant archetype.Archetype
}

// Report is the full aggregation output, a soft prior for humans and
// future tuning.
type Report struct {
	ByVariant []Bucket
	ByKeyword []Bucket
	ByFamily  []FamilyBucket
}

// Aggregate buckets resolved applications three ways. Pending applications
// are ignored entirely.
func Aggregate(cfg Config, apps []*model.Application) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("analytics config: %w", err)
	}

	type counts struct {
		total    int
		positive int
	}

	variants := make(map[string]*counts)
	keywords := make(map[string]*counts)
	families := make(map[string]*counts)
	familyVariants := make(map[string]map[archetype.Archetype]*counts)

	bump := func(m map[string]*counts, key string, positive bool) {
		c := m[key]
		if c == nil {
			c = &counts{}
			m[key] = c
		}
		c.total++
		if positive {
			c.positive++
		}
	}

	for _, app := range apps {
		if !app.OutcomeStage.Resolved() {
			continue
		}
		positive := app.OutcomeStage.Positive()

		bump(variants, variantKey(app), positive)

		for _, kw := range app.TechTags {
			bump(keywords, kw, positive)
		}

		family := TitleFamily(app.Title)
		if family != "" {
			bump(families, family, positive)

			perVariant := familyVariants[family]
			if perVariant == nil {
				perVariant = make(map[archetype.Archetype]*counts)
				familyVariants[family] = perVariant
			}
			vc := perVariant[app.ResumeVariantSent]
			if vc == nil {
				vc = &counts{}
				perVariant[app.ResumeVariantSent] = vc
			}
			vc.total++
			if positive {
				vc.positive++
			}
		}
	}

	toBuckets := func(m map[string]*counts) []Bucket {
		buckets := make([]Bucket, 0, len(m))
		for key, c := range m {
			if c.total < cfg.MinSample {
				continue
			}
			buckets = append(buckets, Bucket{
				Key:          key,
				Total:        c.total,
				Positive:     c.positive,
				PositiveRate: float64(c.positive) / float64(c.total),
			})
		}
		sort.Slice(buckets, func(i, j int) bool {
			if buckets[i].PositiveRate != buckets[j].PositiveRate {
				return buckets[i].PositiveRate > buckets[j].PositiveRate
			}
			return buckets[i].Key < buckets[j].Key
		})
		return buckets
	}

	report := &Report{
		ByVariant: toBuckets(variants),
		ByKeyword: toBuckets(keywords),
	}

	for _, bucket := range toBuckets(families) {
		fb := FamilyBucket{Bucket: bucket}

		best := archetype.Archetype("")
		bestRate := -1.0
		for _, a := range archetype.All() {
			vc := familyVariants[bucket.Key][a]
			if vc == nil || vc.total == 0 {
				continue
			}
			rate := float64(vc.positive) / float64(vc.total)
			if rate > bestRate {
				best = a
				bestRate = rate
			}
		}
		fb.BestVariant = best

		report.ByFamily = append(report.ByFamily, fb)
	}

	return report, nil
}

// variantKey buckets by (archetype, resume version) so two rewrites of the
// same variant are compared against each other.
func variantKey(app *model.Application) string {
	a := "unknown"
	if app.ResumeVariantSent.Valid() {
		a = string(app.ResumeVariantSent)
	}
	hash := app.ResumeContentHash
	if len(hash) > 12 {
		hash = hash[:12]
	}
	if hash == "" {
		return a
	}
	return a + "/" + hash
}

var familyTokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// titleStopwords are stripped before the family key is built. Seniority
// qualifiers collapse so "Senior Data Engineer" and "Lead Data Engineer"
// land in the same family.
var titleStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "of": true, "for": true,
	"in": true, "at": true, "to": true, "with": true,
	"junior": true, "graduate": true, "mid": true, "senior": true, "sr": true,
	"lead": true, "principal": true, "staff": true, "head": true,
	"contract": true, "permanent": true, "remote": true, "hybrid": true,
}

// TitleFamily normalizes a job title to its first two significant tokens.
func TitleFamily(title string) string {
	tokens := familyTokenPattern.FindAllString(strings.ToLower(title), -1)

	significant := make([]string, 0, 2)
	for _, tok := range tokens {
		if titleStopwords[tok] {
			continue
		}
		significant = append(significant, tok)
		if len(significant) == 2 {
			break
		}
	}

	return strings.Join(significant, " ")
}
