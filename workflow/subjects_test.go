package workflow

import (
	"encoding/json"
	"testing"
)

func TestParseNATSMessage_BaseMessageEnvelope(t *testing.T) {
	want := SubmissionTransitionedEvent{
		SubmissionID: "sub-1",
		Workflow:     WorkflowRequest,
		Action:       "open_review",
		FromPhase:    "in_discussion",
		ToPhase:      "internal_review",
		ActorID:      "staff-1",
		IsForward:    true,
	}
	payload, err := json.Marshal(want)
	if err != nil {
		t.Fatal(err)
	}
	wire := []byte(`{"type":"submission.transitioned.v1","source":"submission-api","payload":` + string(payload) + `}`)

	got, err := ParseNATSMessage[SubmissionTransitionedEvent](wire)
	if err != nil {
		t.Fatalf("ParseNATSMessage: %v", err)
	}
	if got.SubmissionID != want.SubmissionID || got.Action != want.Action ||
		got.FromPhase != want.FromPhase || got.ToPhase != want.ToPhase ||
		got.ActorID != want.ActorID || !got.IsForward {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestParseNATSMessage_GenericJSONEnvelope(t *testing.T) {
	// Generic publishers nest the document one level deeper, inside
	// payload.data.
	wire := []byte(`{"type":"core.json.v1","payload":{"data":{"submission_id":"sub-1","reviewer_id":"rev-1","role":"principal"}}}`)

	got, err := ParseNATSMessage[ReviewersUpdatedEvent](wire)
	if err != nil {
		t.Fatalf("ParseNATSMessage: %v", err)
	}
	if got.SubmissionID != "sub-1" || got.ReviewerID != "rev-1" || got.Role != "principal" {
		t.Errorf("got %+v", got)
	}
}

func TestParseNATSMessage_BareDocument(t *testing.T) {
	wire := []byte(`{"submission_id":"sub-1","determination_id":"det-1","author":"lead-1","outcome":"accepted"}`)

	got, err := ParseNATSMessage[DeterminationSubmittedEvent](wire)
	if err != nil {
		t.Fatalf("ParseNATSMessage: %v", err)
	}
	if got.Outcome != OutcomeAccepted {
		t.Errorf("Outcome = %q, want accepted", got.Outcome)
	}
}

func TestParseNATSMessage_Invalid(t *testing.T) {
	if _, err := ParseNATSMessage[SubmissionCreatedEvent]([]byte("not json")); err == nil {
		t.Fatal("want error for malformed wire data")
	}
}

func TestSubjectPatternsAreDistinct(t *testing.T) {
	patterns := []string{
		SubmissionCreated.Pattern,
		SubmissionTransitioned.Pattern,
		ReviewersUpdated.Pattern,
		ReviewSubmitted.Pattern,
		DeterminationSubmitted.Pattern,
	}
	seen := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		if seen[p] {
			t.Errorf("duplicate subject pattern %q", p)
		}
		seen[p] = true
	}
}
