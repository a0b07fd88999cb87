package workflow

import "time"

// AssignedReviewer relates a submission to a reviewer, optionally
// occupying a named role slot. At most one assignment per
// (submission, role) when the role is set; role-less reviewers are
// unconstrained in count.
type AssignedReviewer struct {
	// Reviewer is the assigned user.
	Reviewer User `json:"reviewer"`

	// Role is the reviewer slot this assignment fills; empty for free
	// reviewers.
	Role ReviewerRole `json:"role,omitempty"`

	// HasReview reports whether a review exists for this assignment in
	// the submission's current phase.
	HasReview bool `json:"has_review,omitempty"`
}

// Submission is the mutable record moving through a workflow. The
// engine mutates Status (and, on stage advancement, ActiveFields and
// Reviewers); everything else is owned by external collaborators.
type Submission struct {
	// ID is the stable submission identifier.
	ID string `json:"id"`

	// Title is the applicant-supplied project title.
	Title string `json:"title"`

	// Workflow names the workflow definition this submission follows.
	Workflow string `json:"workflow"`

	// Status is the current phase name.
	Status string `json:"status"`

	// Applicant is the owning applicant's user ID.
	Applicant string `json:"applicant"`

	// Lead is the staff user with elevated transition rights over this
	// submission.
	Lead string `json:"lead,omitempty"`

	// Reviewers holds the current reviewer assignments.
	Reviewers []AssignedReviewer `json:"reviewers,omitempty"`

	// Partners lists partner user IDs with per-submission access.
	Partners []string `json:"partners,omitempty"`

	// ActiveFields is the form field set applicable to the current
	// stage. Advancing a stage replaces it from the new stage's form;
	// historical revisions retain dropped fields.
	ActiveFields []string `json:"active_fields,omitempty"`

	// Answers holds the applicant's form data keyed by field name.
	Answers map[string]string `json:"answers,omitempty"`

	// Sealed marks submissions in a sealed round: staff must record an
	// explicit peek before viewing contents.
	Sealed bool `json:"sealed,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Revision is the storage revision read alongside the record; the
	// compare-and-set on save rejects writes against a stale revision.
	// Never serialized — it is transport state, not submission state.
	Revision uint64 `json:"-"`
}

// StageCount returns how many stages this submission's workflow uses.
func (s *Submission) StageCount(w *Workflow) int {
	return len(w.Stages)
}

// CurrentPhase resolves the submission's status against the workflow.
func (s *Submission) CurrentPhase(w *Workflow) (*Phase, error) {
	return w.Phase(s.Status)
}

// IsArchived reports whether the submission reached a terminal phase.
// Archived submissions are read-only; they are never deleted here.
func (s *Submission) IsArchived(w *Workflow) bool {
	p, err := w.Phase(s.Status)
	if err != nil {
		return false
	}
	return p.Step.IsTerminal()
}

// IsDraft reports whether the submission sits in a draft phase.
func (s *Submission) IsDraft(w *Workflow) bool {
	p, err := w.Phase(s.Status)
	if err != nil {
		return false
	}
	return p.Step == StepDraft
}

// ReviewerFor returns the assignment occupying the given role slot.
func (s *Submission) ReviewerFor(role ReviewerRole) (AssignedReviewer, bool) {
	for _, a := range s.Reviewers {
		if a.Role == role {
			return a, true
		}
	}
	return AssignedReviewer{}, false
}

// IsReviewer reports whether the user holds any reviewer assignment on
// this submission.
func (s *Submission) IsReviewer(userID string) bool {
	for _, a := range s.Reviewers {
		if a.Reviewer.ID == userID {
			return true
		}
	}
	return false
}

// IsPartner reports whether the user is a partner on this submission.
func (s *Submission) IsPartner(userID string) bool {
	for _, p := range s.Partners {
		if p == userID {
			return true
		}
	}
	return false
}
