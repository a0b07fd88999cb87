package workflow

import (
	"errors"
	"fmt"
)

// ErrStaleState is the sentinel wrapped by a TransitionError when the
// stored submission changed between read and write. The persistence
// collaborator signals it from its compare-and-set; callers should
// re-read and retry — no data corruption occurs.
var ErrStaleState = errors.New("submission modified concurrently")

// ErrorKind classifies transition failures. Permission-denied and
// invalid-action failures must stay distinguishable (403 vs 400
// semantics); they are never collapsed into one generic error.
type ErrorKind string

const (
	// KindNoSuchTransition means the action is not declared for the
	// submission's current phase.
	KindNoSuchTransition ErrorKind = "no_such_transition"

	// KindForbidden means the transition's guard rejected the acting
	// user.
	KindForbidden ErrorKind = "forbidden"

	// KindStaleState means the concurrent-modification guard tripped;
	// the caller should re-read the submission and retry.
	KindStaleState ErrorKind = "stale_state"
)

// TransitionError reports a failed transition with enough structured
// context for the caller to log meaningfully. The engine itself never
// logs.
type TransitionError struct {
	Kind         ErrorKind
	SubmissionID string
	Action       string
	Phase        string
	Target       string
	UserID       string
	Err          error
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("transition %q from phase %q", e.Action, e.Phase)
	if e.Target != "" {
		msg += fmt.Sprintf(" to %q", e.Target)
	}
	msg += fmt.Sprintf(" for submission %s: %s", e.SubmissionID, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the wrapped cause, if any.
func (e *TransitionError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a TransitionError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var te *TransitionError
	return errors.As(err, &te) && te.Kind == kind
}

// ConfigError reports a malformed workflow graph. It is raised at
// workflow construction time, never at request time, and is not
// recoverable.
type ConfigError struct {
	Workflow string
	Phase    string
	Message  string
}

func (e *ConfigError) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("workflow %q: phase %q: %s", e.Workflow, e.Phase, e.Message)
	}
	return fmt.Sprintf("workflow %q: %s", e.Workflow, e.Message)
}

// ValidationError represents an invalid field on a request payload.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
