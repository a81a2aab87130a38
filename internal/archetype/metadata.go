package archetype

import (
	"regexp"
	"sort"
	"strings"
)

var contractKeywords = []string{
	"contract", "contractor", "fixed term", "fixed-term", "day rate", "daily rate",
	"6 month", "12 month", "outside ir35", "inside ir35",
}

var permanentKeywords = []string{
	"permanent", "full-time", "full time", "perm role", "ongoing role",
}

var leadTitleTokens = []string{"lead", "principal", "staff", "head of", "director"}

var juniorTitleTokens = []string{"junior", "graduate", "entry level", "entry-level", "intern"}

var seniorTitleTokens = []string{"senior", "sr.", "sr "}

// techVocabulary is the fixed set of technologies recognised as tech tags.
// Tags are matched as whole words against the lowercased posting text.
var techVocabulary = []string{
	"python", "go", "golang", "java", "scala", "rust", "typescript", "javascript",
	"react", "node", "kubernetes", "docker", "terraform", "ansible", "aws", "gcp",
	"azure", "postgres", "postgresql", "mysql", "redis", "kafka", "rabbitmq",
	"spark", "airflow", "dbt", "snowflake", "databricks", "elasticsearch",
	"grafana", "prometheus", "graphql", "grpc", "linux", "sql", "nosql",
	"mongodb", "dynamodb", "lambda", "serverless", "ci/cd", "jenkins", "gitlab",
	"github actions", "etl", "machine learning", "llm",
}

var wordPattern = regexp.MustCompile(`[a-z0-9][a-z0-9+./-]*`)

// DetectJobType derives contract/permanent/unknown from keyword sets.
// Contract language wins ties because contract postings routinely mention
// the permanent market as contrast.
func DetectJobType(text string) JobType {
	lower := strings.ToLower(text)
	for _, kw := range contractKeywords {
		if strings.Contains(lower, kw) {
			return JobTypeContract
		}
	}
	for _, kw := range permanentKeywords {
		if strings.Contains(lower, kw) {
			return JobTypePermanent
		}
	}
	return JobTypeUnknown
}

// DetectSeniority derives the seniority level from title tokens. Lead
// outranks senior so "Senior Staff Engineer" lands on lead.
func DetectSeniority(title string) Seniority {
	lower := strings.ToLower(title)
	for _, tok := range leadTitleTokens {
		if strings.Contains(lower, tok) {
			return SeniorityLead
		}
	}
	for _, tok := range juniorTitleTokens {
		if strings.Contains(lower, tok) {
			return SeniorityJunior
		}
	}
	for _, tok := range seniorTitleTokens {
		if strings.Contains(lower, tok) {
			return SenioritySenior
		}
	}
	return SeniorityMid
}

// TechTags returns the intersection of the technology vocabulary with the
// posting text, sorted for stable output.
func TechTags(text string) []string {
	lower := strings.ToLower(text)
	words := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(lower, -1) {
		// trailing sentence punctuation is part of the token charset
		words[strings.TrimRight(w, "./-")] = true
	}

	tags := make([]string, 0, 8)
	for _, tech := range techVocabulary {
		if strings.ContainsAny(tech, " /") {
			// multi-word or slashed entries match as substrings
			if strings.Contains(lower, tech) {
				tags = append(tags, tech)
			}
			continue
		}
		if words[tech] {
			tags = append(tags, tech)
		}
	}

	sort.Strings(tags)
	return tags
}
