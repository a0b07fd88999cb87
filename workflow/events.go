package workflow

// Event is a stable semantic tag describing a side effect the caller
// should carry out after a successful transition: notifying reviewers,
// prompting for a determination, logging activity. The tag vocabulary
// is append-only; external adapters map tags to e-mail/Slack templates
// outside this package.
type Event string

const (
	EventReviewersUpdated      Event = "REVIEWERS_UPDATED"
	EventReadyForReview        Event = "READY_FOR_REVIEW"
	EventDeterminationRequired Event = "DETERMINATION_REQUIRED"
	EventInvitedToProposal     Event = "INVITED_TO_PROPOSAL"
	EventRequestChanges        Event = "REQUEST_CHANGES"
	EventSubmissionAccepted    Event = "SUBMISSION_ACCEPTED"
	EventSubmissionRejected    Event = "SUBMISSION_REJECTED"
	EventStageAdvanced         Event = "STAGE_ADVANCED"
)

// eventRule derives events for a phase entry. Rules are keyed by the
// target step type; cond, when set, must hold for the events to fire.
type eventRule struct {
	events []Event
	cond   func(sub *Submission) bool
}

func hasReviewers(sub *Submission) bool {
	return len(sub.Reviewers) > 0
}

// entryEvents declares which events entering each step type emits.
// Review steps notify assigned reviewers only when at least one
// reviewer exists; a later assignment mutation emits the notification
// instead.
var entryEvents = map[StepType][]eventRule{
	StepInternalReview: {
		{events: []Event{EventReadyForReview}, cond: hasReviewers},
	},
	StepExternalReview: {
		{events: []Event{EventReadyForReview}, cond: hasReviewers},
	},
	StepDetermination: {
		{events: []Event{EventDeterminationRequired}},
	},
	StepInvitedToProposal: {
		{events: []Event{EventDeterminationRequired, EventInvitedToProposal}},
	},
	StepAccepted: {
		{events: []Event{EventSubmissionAccepted}},
	},
	StepRejected: {
		{events: []Event{EventSubmissionRejected}},
	},
}

// deriveEvents computes the ordered event list for a transition.
// Backward transitions are intentionally quiet toward the applicant:
// they carry only the request-changes tag so callers can distinguish
// "returned for changes" from ordinary progress.
func deriveEvents(from, to *Phase, sub *Submission, forward bool) []Event {
	if !forward {
		return []Event{EventRequestChanges}
	}

	var out []Event
	for _, rule := range entryEvents[to.Step] {
		if rule.cond != nil && !rule.cond(sub) {
			continue
		}
		out = append(out, rule.events...)
	}
	// A rejection declared late in the graph can sit in a later stage;
	// landing on a terminal phase is an outcome, not a stage crossing.
	if to.Stage > from.Stage && !to.IsTerminal() {
		out = append(out, EventStageAdvanced)
	}
	return out
}
