package submissionapi

import (
	"encoding/json"
	"fmt"

	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/payloadregistry"

	"github.com/hyphaapp/hypha/workflow"
)

// Message types for submission domain events.
var (
	SubmissionCreatedType      = message.Type{Domain: "submission", Category: "created", Version: "v1"}
	SubmissionTransitionedType = message.Type{Domain: "submission", Category: "transitioned", Version: "v1"}
	ReviewersUpdatedType       = message.Type{Domain: "submission", Category: "reviewers-updated", Version: "v1"}
	ReviewSubmittedType        = message.Type{Domain: "submission", Category: "review-submitted", Version: "v1"}
	DeterminationType          = message.Type{Domain: "submission", Category: "determination-submitted", Version: "v1"}
)

// payloadRegistry holds the submission payload registrations;
// semstreams v1.0.0-beta.38 has no global registry, so the package
// keeps its own instance.
var payloadRegistry = payloadregistry.New()

func init() {
	registrations := []*payloadregistry.Registration{
		{
			Domain:      "submission",
			Category:    "created",
			Version:     "v1",
			Description: "New submission opened",
			Factory:     func() any { return &CreatedPayload{} },
		},
		{
			Domain:      "submission",
			Category:    "transitioned",
			Version:     "v1",
			Description: "Submission moved to a new phase",
			Factory:     func() any { return &TransitionedPayload{} },
		},
		{
			Domain:      "submission",
			Category:    "reviewers-updated",
			Version:     "v1",
			Description: "Reviewer assignment added or removed",
			Factory:     func() any { return &ReviewersUpdatedPayload{} },
		},
		{
			Domain:      "submission",
			Category:    "review-submitted",
			Version:     "v1",
			Description: "Reviewer filed a review",
			Factory:     func() any { return &ReviewSubmittedPayload{} },
		},
		{
			Domain:      "submission",
			Category:    "determination-submitted",
			Version:     "v1",
			Description: "Determination recorded against a submission",
			Factory:     func() any { return &DeterminationPayload{} },
		},
	}
	for _, reg := range registrations {
		if err := payloadRegistry.Register(reg); err != nil {
			panic("failed to register " + reg.Category + " payload: " + err.Error())
		}
	}
}

// CreatedPayload wraps a submission-created event for the wire.
type CreatedPayload struct {
	workflow.SubmissionCreatedEvent
}

// Schema implements message.Payload.
func (p *CreatedPayload) Schema() message.Type { return SubmissionCreatedType }

// Validate implements message.Payload.
func (p *CreatedPayload) Validate() error {
	if p.SubmissionID == "" {
		return fmt.Errorf("submission_id is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *CreatedPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(&p.SubmissionCreatedEvent)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *CreatedPayload) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &p.SubmissionCreatedEvent)
}

// TransitionedPayload wraps a transition event for the wire.
type TransitionedPayload struct {
	workflow.SubmissionTransitionedEvent
}

// Schema implements message.Payload.
func (p *TransitionedPayload) Schema() message.Type { return SubmissionTransitionedType }

// Validate implements message.Payload.
func (p *TransitionedPayload) Validate() error {
	if p.SubmissionID == "" {
		return fmt.Errorf("submission_id is required")
	}
	if p.ToPhase == "" {
		return fmt.Errorf("to_phase is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *TransitionedPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(&p.SubmissionTransitionedEvent)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *TransitionedPayload) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &p.SubmissionTransitionedEvent)
}

// ReviewersUpdatedPayload wraps an assignment-change event for the wire.
type ReviewersUpdatedPayload struct {
	workflow.ReviewersUpdatedEvent
}

// Schema implements message.Payload.
func (p *ReviewersUpdatedPayload) Schema() message.Type { return ReviewersUpdatedType }

// Validate implements message.Payload.
func (p *ReviewersUpdatedPayload) Validate() error {
	if p.SubmissionID == "" {
		return fmt.Errorf("submission_id is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *ReviewersUpdatedPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(&p.ReviewersUpdatedEvent)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ReviewersUpdatedPayload) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &p.ReviewersUpdatedEvent)
}

// ReviewSubmittedPayload wraps a review-filed event for the wire.
type ReviewSubmittedPayload struct {
	workflow.ReviewSubmittedEvent
}

// Schema implements message.Payload.
func (p *ReviewSubmittedPayload) Schema() message.Type { return ReviewSubmittedType }

// Validate implements message.Payload.
func (p *ReviewSubmittedPayload) Validate() error {
	if p.SubmissionID == "" {
		return fmt.Errorf("submission_id is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *ReviewSubmittedPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(&p.ReviewSubmittedEvent)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ReviewSubmittedPayload) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &p.ReviewSubmittedEvent)
}

// DeterminationPayload wraps a determination event for the wire.
type DeterminationPayload struct {
	workflow.DeterminationSubmittedEvent
}

// Schema implements message.Payload.
func (p *DeterminationPayload) Schema() message.Type { return DeterminationType }

// Validate implements message.Payload.
func (p *DeterminationPayload) Validate() error {
	if p.SubmissionID == "" {
		return fmt.Errorf("submission_id is required")
	}
	if !p.Outcome.IsValid() {
		return fmt.Errorf("unknown outcome %q", p.Outcome)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *DeterminationPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(&p.DeterminationSubmittedEvent)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *DeterminationPayload) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &p.DeterminationSubmittedEvent)
}
