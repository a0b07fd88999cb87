package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/c360studio/semstreams/natsclient"
)

// Typed NATS subjects for submission domain events. Publishers emit
// BaseMessage envelopes on the wire; consumers unwrap with
// ParseNATSMessage[T].

// SubmissionCreatedEvent is published when a new submission is opened.
type SubmissionCreatedEvent struct {
	SubmissionID string `json:"submission_id"`
	Workflow     string `json:"workflow"`
	Applicant    string `json:"applicant"`
	Status       string `json:"status"`
}

// SubmissionTransitionedEvent is published after every successful
// phase transition, manual or automatic.
type SubmissionTransitionedEvent struct {
	SubmissionID  string  `json:"submission_id"`
	Workflow      string  `json:"workflow"`
	Action        string  `json:"action"`
	FromPhase     string  `json:"from_phase"`
	ToPhase       string  `json:"to_phase"`
	ActorID       string  `json:"actor_id"`
	IsForward     bool    `json:"is_forward"`
	StageAdvanced bool    `json:"stage_advanced,omitempty"`
	Events        []Event `json:"events,omitempty"`
}

// ReviewersUpdatedEvent is published when a reviewer assignment is
// added or removed.
type ReviewersUpdatedEvent struct {
	SubmissionID string       `json:"submission_id"`
	ReviewerID   string       `json:"reviewer_id"`
	Role         ReviewerRole `json:"role,omitempty"`
	Removed      bool         `json:"removed,omitempty"`
}

// ReviewSubmittedEvent is published when a reviewer files a review.
type ReviewSubmittedEvent struct {
	SubmissionID string       `json:"submission_id"`
	ReviewID     string       `json:"review_id"`
	Author       string       `json:"author"`
	Role         ReviewerRole `json:"role,omitempty"`
	Score        int          `json:"score"`
}

// DeterminationSubmittedEvent is published when a non-draft
// determination is recorded.
type DeterminationSubmittedEvent struct {
	SubmissionID    string               `json:"submission_id"`
	DeterminationID string               `json:"determination_id"`
	Author          string               `json:"author"`
	Outcome         DeterminationOutcome `json:"outcome"`
}

// Typed subject definitions for submission domain events. The
// submission ID never appears in the subject; routing is by event
// type, filtering is by payload.
var (
	SubmissionCreated = natsclient.NewSubject[SubmissionCreatedEvent](
		"submission.events.lifecycle.created")
	SubmissionTransitioned = natsclient.NewSubject[SubmissionTransitionedEvent](
		"submission.events.lifecycle.transitioned")
	ReviewersUpdated = natsclient.NewSubject[ReviewersUpdatedEvent](
		"submission.events.review.assignment_updated")
	ReviewSubmitted = natsclient.NewSubject[ReviewSubmittedEvent](
		"submission.events.review.submitted")
	DeterminationSubmitted = natsclient.NewSubject[DeterminationSubmittedEvent](
		"submission.events.determination.submitted")
)

// EventSubjects is the wildcard covering every submission event,
// used by stream provisioning and the activity consumer.
const EventSubjects = "submission.events.>"

// baseEnvelope is the subset of the BaseMessage wire format needed to
// reach the payload.
type baseEnvelope struct {
	Payload json.RawMessage `json:"payload"`
}

// genericEnvelope is the core.json payload shape, which nests the
// caller's document one level deeper.
type genericEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// ParseNATSMessage unwraps a wire message into a typed event. It
// accepts a BaseMessage carrying the event directly, a BaseMessage
// carrying a generic JSON envelope, or the bare event document, so
// consumers stay compatible with every publisher shape in use.
func ParseNATSMessage[T any](data []byte) (T, error) {
	var out T

	var env baseEnvelope
	if err := json.Unmarshal(data, &env); err == nil && len(env.Payload) > 0 {
		var generic genericEnvelope
		if err := json.Unmarshal(env.Payload, &generic); err == nil && len(generic.Data) > 0 {
			if err := json.Unmarshal(generic.Data, &out); err == nil {
				return out, nil
			}
		}
		if err := json.Unmarshal(env.Payload, &out); err == nil {
			return out, nil
		}
	}

	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("parse event payload: %w", err)
	}
	return out, nil
}
