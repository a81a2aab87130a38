package model

import "testing"

func TestStageTransitionAllowed(t *testing.T) {
	cases := []struct {
		from OutcomeStage
		to   OutcomeStage
		want bool
	}{
		{StageApplied, StageAcknowledged, true},
		{StageApplied, StageOffer, true},
		{StageAcknowledged, StageViewed, true},
		{StageViewed, StageInterviewRequest, true},
		{StageInterviewRequest, StageRejected, true},
		{StageInterviewRequest, StageOffer, true},

		// backwards moves are rejected
		{StageViewed, StageAcknowledged, false},
		{StageOffer, StageRejected, false},
		{StageRejected, StageOffer, false},
		{StageInterviewRequest, StageViewed, false},

		// ghost only from the pre-signal stages
		{StageApplied, StageGhost, true},
		{StageAcknowledged, StageGhost, true},
		{StageViewed, StageGhost, false},
		{StageInterviewRequest, StageGhost, false},

		// other never overwrites the stored stage
		{StageApplied, StageOther, false},
		{StageInterviewRequest, StageOther, false},
	}

	for _, tc := range cases {
		if got := StageTransitionAllowed(tc.from, tc.to); got != tc.want {
			t.Fatalf("StageTransitionAllowed(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestParseStage(t *testing.T) {
	if _, err := ParseStage("interview_request"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseStage("hired"); err == nil {
		t.Fatalf("expected error for unknown stage")
	}
}

func TestStageResolvedAndPositive(t *testing.T) {
	if StageApplied.Resolved() || StageAcknowledged.Resolved() {
		t.Fatalf("pending stages must not be resolved")
	}
	for _, s := range []OutcomeStage{StageViewed, StageInterviewRequest, StageRejected, StageOffer, StageGhost} {
		if !s.Resolved() {
			t.Fatalf("expected %s to be resolved", s)
		}
	}

	if StageRejected.Positive() || StageGhost.Positive() {
		t.Fatalf("negative outcomes must not be positive")
	}
	if !StageOffer.Positive() || !StageViewed.Positive() || !StageInterviewRequest.Positive() {
		t.Fatalf("expected viewed, interview_request and offer to be positive")
	}
}
