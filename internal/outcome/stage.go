// Package outcome classifies inbound correspondence and links it back to
// submitted applications.
package outcome

import (
	"strings"

	"github.com/jobtide/jobtide/internal/model"
)

// stageRule is one ordered keyword rule set. The first category meeting its
// minimum hit count wins; confidence is hits over the rule's keyword count.
type stageRule struct {
	stage    model.OutcomeStage
	keywords []string
	minHits  int
}

// stageRules are evaluated in order: an interview request often contains
// polite acknowledgement language too, so the stronger signal must win.
var stageRules = []stageRule{
	{
		stage: model.StageInterviewRequest,
		keywords: []string{
			"interview", "schedule a call", "your availability", "speak with you",
			"meet the team", "next round", "phone screen", "book a time",
		},
		minHits: 1,
	},
	{
		stage: model.StageRejected,
		keywords: []string{
			"not successful", "unsuccessful", "unfortunately", "other candidates",
			"not be progressing", "will not be moving", "regret to inform",
			"decided to move forward with",
		},
		minHits: 1,
	},
	{
		stage: model.StageViewed,
		keywords: []string{
			"viewed your application", "reviewed your application", "under review",
			"shortlist", "being considered",
		},
		minHits: 1,
	},
	{
		stage: model.StageAcknowledged,
		keywords: []string{
			"received your application", "thank you for applying",
			"application received", "we have received", "thank you for your application",
			"successfully submitted",
		},
		minHits: 1,
	},
}

// ClassifyStage assigns the message body to an outcome stage. Messages with
// no matching rule land on "other" with zero confidence.
func ClassifyStage(body string) (model.OutcomeStage, float64) {
	lower := strings.ToLower(body)

	for _, rule := range stageRules {
		hits := 0
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits >= rule.minHits {
			return rule.stage, float64(hits) / float64(len(rule.keywords))
		}
	}

	return model.StageOther, 0
}
