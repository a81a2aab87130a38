package model

import "fmt"

// OutcomeStage tracks how far an application has progressed. Stages only
// move forward; ghost is the time-based exception reachable from the two
// pre-signal stages when nothing has been heard for the waiting period.
type OutcomeStage string

const (
	StageApplied          OutcomeStage = "applied"
	StageAcknowledged     OutcomeStage = "acknowledged"
	StageViewed           OutcomeStage = "viewed"
	StageInterviewRequest OutcomeStage = "interview_request"
	StageRejected         OutcomeStage = "rejected"
	StageOffer            OutcomeStage = "offer"
	StageGhost            OutcomeStage = "ghost"
	StageOther            OutcomeStage = "other"
)

// stageRank orders the monotonic progression. Terminal stages share the top
// rank so neither supersedes the other.
var stageRank = map[OutcomeStage]int{
	StageApplied:          0,
	StageAcknowledged:     1,
	StageViewed:           2,
	StageInterviewRequest: 3,
	StageRejected:         4,
	StageOffer:            4,
	StageGhost:            4,
}

// ParseStage converts a raw string to an OutcomeStage, returning an error
// for unknown values.
func ParseStage(s string) (OutcomeStage, error) {
	st := OutcomeStage(s)
	switch st {
	case StageApplied, StageAcknowledged, StageViewed, StageInterviewRequest,
		StageRejected, StageOffer, StageGhost, StageOther:
		return st, nil
	}
	return "", fmt.Errorf("unknown outcome stage %q", s)
}

// StageTransitionAllowed returns true when moving from → to respects the
// forward-only progression. Ghost is only reachable before any real signal
// arrived. "other" never changes the stored stage.
func StageTransitionAllowed(from, to OutcomeStage) bool {
	if to == StageOther {
		return false
	}
	if to == StageGhost {
		return from == StageApplied || from == StageAcknowledged
	}
	fromRank, ok := stageRank[from]
	if !ok {
		return false
	}
	toRank, ok := stageRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// Resolved reports whether the application reached an outcome that counts
// toward conversion analytics. Applied and acknowledged are still pending.
func (s OutcomeStage) Resolved() bool {
	switch s {
	case StageViewed, StageInterviewRequest, StageRejected, StageOffer, StageGhost:
		return true
	}
	return false
}

// Positive reports whether the stage counts as a positive signal.
func (s OutcomeStage) Positive() bool {
	switch s {
	case StageViewed, StageInterviewRequest, StageOffer:
		return true
	}
	return false
}
