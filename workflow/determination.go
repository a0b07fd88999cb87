package workflow

import "time"

// DeterminationOutcome is the decision recorded against a submission
// sitting in a determination-kind phase.
type DeterminationOutcome string

const (
	// OutcomeAccepted funds the submission.
	OutcomeAccepted DeterminationOutcome = "accepted"

	// OutcomeRejected dismisses the submission.
	OutcomeRejected DeterminationOutcome = "rejected"

	// OutcomeMoreInfo sends the submission back for changes instead of
	// deciding it.
	OutcomeMoreInfo DeterminationOutcome = "more_info"
)

// IsValid reports whether the outcome is a known value.
func (o DeterminationOutcome) IsValid() bool {
	switch o {
	case OutcomeAccepted, OutcomeRejected, OutcomeMoreInfo:
		return true
	}
	return false
}

// Determination records a decision on a submission. Drafts are visible
// only to their author; submitting a non-draft determination drives
// the transition matching its outcome.
type Determination struct {
	ID           string               `json:"id"`
	SubmissionID string               `json:"submission_id"`
	Author       string               `json:"author"`
	Outcome      DeterminationOutcome `json:"outcome"`
	Message      string               `json:"message,omitempty"`
	IsDraft      bool                 `json:"is_draft,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// Review is a reviewer's scored assessment of a submission. Its
// creation flips the matching assignment's completion bit through the
// coordinator.
type Review struct {
	ID             string       `json:"id"`
	SubmissionID   string       `json:"submission_id"`
	Author         string       `json:"author"`
	Role           ReviewerRole `json:"role,omitempty"`
	Score          int          `json:"score"`
	Recommendation string       `json:"recommendation,omitempty"`
	Body           string       `json:"body,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// ResolveOutcomeAction maps a determination outcome to the action that
// carries it out from the submission's current phase: accepted and
// rejected pick the transition landing on the matching terminal step,
// more-info picks the first backward transition. A determination whose
// outcome has no matching action from the current phase fails as an
// unknown transition.
func (e *Engine) ResolveOutcomeAction(sub *Submission, outcome DeterminationOutcome) (string, error) {
	w, err := e.WorkflowFor(sub)
	if err != nil {
		return "", err
	}
	current, err := sub.CurrentPhase(w)
	if err != nil {
		return "", err
	}
	fromIdx, _ := w.PhaseIndex(current.Name)

	for _, t := range current.Transitions {
		target, err := w.Phase(t.Target)
		if err != nil {
			return "", err
		}
		switch outcome {
		case OutcomeAccepted:
			if target.Step == StepAccepted {
				return t.Name, nil
			}
		case OutcomeRejected:
			if target.Step == StepRejected {
				return t.Name, nil
			}
		case OutcomeMoreInfo:
			if toIdx, ok := w.PhaseIndex(target.Name); ok && toIdx < fromIdx {
				return t.Name, nil
			}
		}
	}
	return "", &TransitionError{
		Kind:         KindNoSuchTransition,
		SubmissionID: sub.ID,
		Action:       string(outcome),
		Phase:        current.Name,
	}
}
