// Package workflow implements the Hypha submission state machine:
// phase and stage definitions, role-conditioned transition legality,
// permission predicates, and the semantic events emitted when a
// submission moves between phases.
//
// The phase graph is built once at startup and is immutable afterwards;
// it is safe for unsynchronized concurrent reads. All request-time
// work is synchronous pure computation plus a single status mutation
// persisted through a SubmissionStore.
package workflow

// StepType categorizes the activity a phase represents. The set is
// closed: every switch over StepType must handle all members.
type StepType string

const (
	StepDraft                StepType = "draft"
	StepReceived             StepType = "received"
	StepInternalReview       StepType = "internal_review"
	StepExternalReview       StepType = "external_review"
	StepPostReviewDiscussion StepType = "post_review_discussion"
	StepDetermination        StepType = "determination"
	StepInvitedToProposal    StepType = "invited_to_proposal"
	StepAccepted             StepType = "accepted"
	StepRejected             StepType = "rejected"
)

// String returns the string representation of the step type.
func (s StepType) String() string {
	return string(s)
}

// IsValid returns true if the step type is a known member of the set.
func (s StepType) IsValid() bool {
	switch s {
	case StepDraft, StepReceived, StepInternalReview, StepExternalReview,
		StepPostReviewDiscussion, StepDetermination, StepInvitedToProposal,
		StepAccepted, StepRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether phases of this step type end the
// submission lifecycle. Terminal phases have no outgoing transitions;
// submissions reaching them are archived, never deleted.
func (s StepType) IsTerminal() bool {
	return s == StepAccepted || s == StepRejected
}

// IsReview reports whether this step type collects reviews.
func (s StepType) IsReview() bool {
	return s == StepInternalReview || s == StepExternalReview
}

// IsDetermination reports whether entering a phase of this step type
// requires a determination to be recorded. Inviting a concept to the
// proposal stage is itself a determination: the acting lead must supply
// an outcome and notice text before the transition completes.
func (s StepType) IsDetermination() bool {
	return s == StepDetermination || s == StepInvitedToProposal
}

// Guard gates transition legality for a (user, submission) pair.
// Guards are pure: no side effects, safe to evaluate repeatedly within
// one request. The same guard evaluation backs both PerformTransition
// and the action listings exposed over HTTP.
type Guard func(user User, sub *Submission) bool

// Common guards used by the built-in workflow definitions.
var (
	// StaffOnly permits any user carrying the staff role.
	StaffOnly Guard = func(u User, _ *Submission) bool {
		return u.HasRole(RoleStaff)
	}

	// LeadOnly permits only the submission's lead.
	LeadOnly Guard = func(u User, s *Submission) bool {
		return s != nil && s.Lead != "" && u.ID == s.Lead
	}

	// ApplicantOnly permits only the owning applicant.
	ApplicantOnly Guard = func(u User, s *Submission) bool {
		return s != nil && u.ID == s.Applicant
	}
)

// Transition is a named, guarded edge from one phase to another.
// Declaration order is significant: action listings preserve it.
type Transition struct {
	// Name is the action key used by callers to request this transition.
	Name string

	// Target is the destination phase name.
	Target string

	// Display is the human-readable action label.
	Display string

	// Guard gates who may perform the transition. Required; a nil guard
	// is rejected at workflow construction time.
	Guard Guard
}

// Phase is a named node in the workflow graph representing one
// review/application state. Phase names are stable machine keys:
// persisted submission statuses reference them, so they are
// append-only identifiers and must never be renamed.
type Phase struct {
	// Name is the globally unique machine key within its workflow.
	Name string

	// Display is the human-readable phase name.
	Display string

	// Stage is the 1-based index of the stage this phase belongs to.
	Stage int

	// Step categorizes the phase activity.
	Step StepType

	// StepNum groups phases for progress display; multiple phases may
	// share a step number (e.g. discussion variants).
	StepNum int

	// Permissions declares which roles hold each capability while a
	// submission sits in this phase.
	Permissions PermissionSet

	// Transitions is the ordered set of outgoing edges.
	Transitions []Transition

	// AllAssignedAction names the transition requested automatically
	// when an assignment mutation satisfies every required reviewer
	// role (subject to Settings.TransitionAfterAssigned and the
	// action's own guard — no bypass).
	AllAssignedAction string

	// RequiresOpenReview marks phases that additionally need at least
	// one role-less reviewer before AllRolesAssigned reports true.
	RequiresOpenReview bool
}

// Transition looks up an outgoing transition by action name.
func (p *Phase) Transition(action string) (Transition, bool) {
	for _, t := range p.Transitions {
		if t.Name == action {
			return t, true
		}
	}
	return Transition{}, false
}

// IsTerminal reports whether the phase has no outgoing transitions.
func (p *Phase) IsTerminal() bool {
	return len(p.Transitions) == 0
}

// Stage is a sequential grouping of phases within a workflow, e.g. the
// concept stage and the proposal stage of a two-stage fund.
type Stage struct {
	// Name identifies the stage ("request", "concept", "proposal").
	Name string

	// Form lists the field names active while a submission is in this
	// stage. Advancing to a later stage replaces the active set.
	Form []string

	// ReviewerRoles lists the roles that must review during this
	// stage's review phases. Role requirements are stage-scoped;
	// assignments do not carry over between stages.
	ReviewerRoles []ReviewerRole

	// Phases is the ordered phase sequence for this stage.
	Phases []*Phase
}
