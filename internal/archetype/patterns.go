package archetype

import "regexp"

// patternSet holds the precompiled signals for one archetype. Verb patterns
// carry full weight, indicator phrases half weight, and the phrase list
// seeds the archetype's embedding centroid at construction time.
type patternSet struct {
	verbs      []*regexp.Regexp
	indicators []string
	phrases    []string
}

func compile(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(`(?i)`+p))
	}
	return compiled
}

var patternSets = map[Archetype]*patternSet{
	Builder: {
		verbs: compile(
			`\b(build|building|built|create|creating|launch|launching)\b.{0,40}\b(from scratch|from the ground up|greenfield|new product|new platform|mvp)\b`,
			`\bdesign and (build|implement|deliver)\b`,
			`\b(architect|prototype)\b.{0,30}\b(new|novel|first)\b`,
			`\bzero to one\b`,
			`\bship\b.{0,30}\b(features|products|mvp)\b`,
		),
		indicators: []string{
			"greenfield", "from scratch", "ground up", "new product", "mvp",
			"early stage", "first hire", "fast-paced startup", "0 to 1",
		},
		phrases: []string{
			"build a new product from scratch",
			"greenfield development on a brand new platform",
			"design and ship an mvp quickly",
			"early stage startup creating something new",
		},
	},
	Fixer: {
		verbs: compile(
			`\b(refactor|refactoring|modernise|modernize|migrate|migrating|stabilise|stabilize)\b`,
			`\b(untangle|rescue|remediate|rework)\b.{0,40}\b(legacy|codebase|system)\b`,
			`\b(reduce|pay down|tackle)\b.{0,20}\b(technical debt|tech debt)\b`,
			`\b(improve|fix)\b.{0,30}\b(performance|reliability|quality)\b.{0,40}\b(existing|legacy)\b`,
		),
		indicators: []string{
			"legacy", "technical debt", "tech debt", "migration", "monolith",
			"modernisation", "modernization", "refactoring", "end of life",
		},
		phrases: []string{
			"modernize a legacy codebase and pay down technical debt",
			"migrate the monolith to a supported platform",
			"stabilize an inherited system and improve code quality",
			"refactor existing services for performance and reliability",
		},
	},
	Operator: {
		verbs: compile(
			`\b(operate|operating|maintain|maintaining|run|running)\b.{0,40}\b(production|platform|infrastructure|services)\b`,
			`\b(monitor|monitoring|observe)\b.{0,40}\b(systems|services|pipelines)\b`,
			`\b(respond|responding)\b.{0,20}\b(to incidents|to outages|to alerts)\b`,
			`\b(automate|automating)\b.{0,40}\b(deployment|operations|toil)\b`,
		),
		indicators: []string{
			"on-call", "on call", "sla", "slo", "uptime", "incident", "runbook",
			"observability", "production support", "site reliability", "24/7",
		},
		phrases: []string{
			"keep production systems running and meet sla targets",
			"on-call rotation responding to incidents and outages",
			"monitoring observability and reliability of live services",
			"automate deployments and reduce operational toil",
		},
	},
	Translator: {
		verbs: compile(
			`\b(translate|translating|bridge|bridging)\b.{0,50}\b(business|technical|stakeholder)\b`,
			`\b(present|presenting|report|reporting)\b.{0,40}\b(to (the )?board|to executives|to leadership|to senior management)\b`,
			`\b(gather|gathering|elicit)\b.{0,20}\brequirements\b`,
			`\b(work|partner|liaise)\b.{0,40}\b(with stakeholders|cross-functional|non-technical)\b`,
		),
		indicators: []string{
			"stakeholder", "stakeholders", "executive", "c-suite", "board",
			"non-technical", "cross-functional", "business requirements",
			"roadmap", "storytelling",
		},
		phrases: []string{
			"translate business requirements into technical solutions",
			"present findings to executives and the board",
			"partner with non-technical stakeholders across functions",
			"bridge the gap between engineering and the business",
		},
	},
}

// keywordBoost is a hand-tuned nudge applied when strong signal phrases
// appear anywhere in the text. MinHits guards against a single incidental
// mention where the signal words are common business vocabulary.
type keywordBoost struct {
	target   Archetype
	keywords []string
	minHits  int
	boost    float64
}

var keywordBoosts = []keywordBoost{
	{
		target:   Fixer,
		keywords: []string{"legacy", "technical debt", "tech debt", "spaghetti", "rewrite"},
		minHits:  1,
		boost:    0.6,
	},
	{
		target:   Operator,
		keywords: []string{"on-call", "on call", "sla", "pagerduty", "incident response"},
		minHits:  1,
		boost:    0.6,
	},
	{
		target:   Translator,
		keywords: []string{"executive", "board", "c-suite", "leadership reporting", "steering committee"},
		minHits:  2,
		boost:    0.6,
	},
}
