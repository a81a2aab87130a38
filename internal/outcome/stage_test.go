package outcome

import (
	"testing"

	"github.com/jobtide/jobtide/internal/model"
)

func TestClassifyStage(t *testing.T) {
	cases := []struct {
		body string
		want model.OutcomeStage
	}{
		{"Your application for job 12345 was not successful this time.", model.StageRejected},
		{"Unfortunately we have decided to move forward with other candidates.", model.StageRejected},
		{"We would like to schedule a call to discuss next steps.", model.StageInterviewRequest},
		{"The hiring manager has viewed your application.", model.StageViewed},
		{"We have received your application and will be in touch.", model.StageAcknowledged},
		{"Special offer on gym memberships this week only!", model.StageOther},
	}

	for _, tc := range cases {
		got, _ := ClassifyStage(tc.body)
		if got != tc.want {
			t.Fatalf("ClassifyStage(%q) = %s, want %s", tc.body, got, tc.want)
		}
	}
}

func TestClassifyStageInterviewBeatsAcknowledgement(t *testing.T) {
	body := "Thank you for applying. We would like to invite you to an interview, please share your availability."

	got, confidence := ClassifyStage(body)
	if got != model.StageInterviewRequest {
		t.Fatalf("expected interview_request, got %s", got)
	}
	if confidence <= 0 {
		t.Fatalf("expected positive confidence, got %v", confidence)
	}
}

func TestClassifyStageNoSignal(t *testing.T) {
	got, confidence := ClassifyStage("hello there")
	if got != model.StageOther {
		t.Fatalf("expected other, got %s", got)
	}
	if confidence != 0 {
		t.Fatalf("expected zero confidence, got %v", confidence)
	}
}
