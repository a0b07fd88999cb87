package workflow

import (
	"context"
	"errors"
	"fmt"
)

// SubmissionStore persists submissions on behalf of the engine. The
// implementation must provide compare-and-set semantics against
// Submission.Revision: a save against a revision that is no longer
// current fails with ErrStaleState (wrapped), so two concurrent
// transitions against one submission cannot both win.
type SubmissionStore interface {
	SaveSubmission(ctx context.Context, sub *Submission) error
}

// TransitionResult reports a completed transition and the ordered
// semantic events the caller should hand to its notification and
// activity collaborators. It is a value, never persisted.
type TransitionResult struct {
	Submission    *Submission
	OldPhase      *Phase
	NewPhase      *Phase
	Action        string
	ActorID       string
	IsForward     bool
	StageAdvanced bool
	Events        []Event
}

// ActionOption describes one legal action for a specific user, as
// exposed by the HTTP action listing. The listing uses the identical
// guard evaluation as PerformTransition.
type ActionOption struct {
	Name        string `json:"name"`
	Display     string `json:"display"`
	Target      string `json:"target"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// Engine validates and performs phase transitions. It holds only
// immutable definitions plus a store handle, so one engine serves all
// requests concurrently.
type Engine struct {
	workflows map[string]*Workflow
	settings  Settings
	store     SubmissionStore
}

// NewEngine builds an engine over explicit workflow definitions. The
// definitions are the injected configuration: tests construct engines
// over alternate graphs the same way production does.
func NewEngine(store SubmissionStore, settings Settings, workflows ...*Workflow) (*Engine, error) {
	if store == nil {
		return nil, errors.New("submission store is required")
	}
	if len(workflows) == 0 {
		return nil, errors.New("at least one workflow is required")
	}
	byName := make(map[string]*Workflow, len(workflows))
	for _, w := range workflows {
		if _, dup := byName[w.Name]; dup {
			return nil, &ConfigError{Workflow: w.Name, Message: "duplicate workflow name"}
		}
		byName[w.Name] = w
	}
	return &Engine{workflows: byName, settings: settings, store: store}, nil
}

// Workflow returns a registered workflow definition by name.
func (e *Engine) Workflow(name string) (*Workflow, error) {
	w, ok := e.workflows[name]
	if !ok {
		return nil, &ConfigError{Workflow: name, Message: "unknown workflow"}
	}
	return w, nil
}

// WorkflowFor resolves the workflow a submission follows.
func (e *Engine) WorkflowFor(sub *Submission) (*Workflow, error) {
	return e.Workflow(sub.Workflow)
}

// Settings returns the flags the engine was built with.
func (e *Engine) Settings() Settings {
	return e.settings
}

// PerformTransition applies the named action to the submission on
// behalf of the acting user.
//
// Failure modes are distinct: an undeclared action yields
// KindNoSuchTransition, a rejected guard yields KindForbidden, and a
// concurrent modification detected by the store's compare-and-set
// yields KindStaleState. Configuration faults (unknown workflow or
// phase name) surface as *ConfigError and indicate a deployment
// problem, not a bad request.
//
// On success the submission's status holds the target phase name, a
// stage advancement has replaced the active form fields and dropped
// stale role assignments, and the result carries the ordered events
// for the caller's collaborators.
func (e *Engine) PerformTransition(ctx context.Context, sub *Submission, action string, user User) (*TransitionResult, error) {
	w, err := e.WorkflowFor(sub)
	if err != nil {
		return nil, err
	}
	current, err := sub.CurrentPhase(w)
	if err != nil {
		return nil, err
	}

	t, ok := current.Transition(action)
	if !ok {
		return nil, &TransitionError{
			Kind:         KindNoSuchTransition,
			SubmissionID: sub.ID,
			Action:       action,
			Phase:        current.Name,
			UserID:       user.ID,
		}
	}
	if !t.Guard(user, sub) {
		return nil, &TransitionError{
			Kind:         KindForbidden,
			SubmissionID: sub.ID,
			Action:       action,
			Phase:        current.Name,
			Target:       t.Target,
			UserID:       user.ID,
		}
	}

	target, err := w.Phase(t.Target)
	if err != nil {
		return nil, err
	}

	fromIdx, _ := w.PhaseIndex(current.Name)
	toIdx, _ := w.PhaseIndex(target.Name)
	forward := toIdx > fromIdx

	// Snapshot the fields we may mutate so a failed save leaves the
	// caller's view consistent with storage.
	prevStatus := sub.Status
	prevFields := sub.ActiveFields
	prevReviewers := sub.Reviewers

	stageAdvanced := target.Stage > current.Stage && !target.IsTerminal()
	if stageAdvanced {
		advanceStage(w, sub, target)
	}
	sub.Status = target.Name

	if err := e.store.SaveSubmission(ctx, sub); err != nil {
		sub.Status = prevStatus
		sub.ActiveFields = prevFields
		sub.Reviewers = prevReviewers
		if errors.Is(err, ErrStaleState) {
			return nil, &TransitionError{
				Kind:         KindStaleState,
				SubmissionID: sub.ID,
				Action:       action,
				Phase:        current.Name,
				Target:       target.Name,
				UserID:       user.ID,
				Err:          err,
			}
		}
		return nil, fmt.Errorf("save submission %s: %w", sub.ID, err)
	}

	return &TransitionResult{
		Submission:    sub,
		OldPhase:      current,
		NewPhase:      target,
		Action:        action,
		ActorID:       user.ID,
		IsForward:     forward,
		StageAdvanced: stageAdvanced,
		Events:        deriveEvents(current, target, sub, forward),
	}, nil
}

// BatchResult collects per-submission outcomes of a batch transition.
// A batch is never atomic: one submission's ineligibility does not
// block the others, and partial failure is reported per item rather
// than raised.
type BatchResult struct {
	Succeeded map[string]*TransitionResult
	Failed    map[string]error
}

// Ok reports whether every submission in the batch transitioned.
func (r *BatchResult) Ok() bool {
	return len(r.Failed) == 0
}

// PerformBatchTransition applies the action to each submission
// independently, in caller-supplied order. Direction and events are
// computed per submission — two submissions in different phases may
// legitimately yield different results for the same action.
func (e *Engine) PerformBatchTransition(ctx context.Context, subs []*Submission, action string, user User) *BatchResult {
	result := &BatchResult{
		Succeeded: make(map[string]*TransitionResult, len(subs)),
		Failed:    make(map[string]error),
	}
	for _, sub := range subs {
		res, err := e.PerformTransition(ctx, sub, action, user)
		if err != nil {
			result.Failed[sub.ID] = err
			continue
		}
		result.Succeeded[sub.ID] = res
	}
	return result
}

// AvailableActions lists the transitions the given user may perform
// from the submission's current phase, in declaration order. Each
// option carries the determination-form redirect when its target
// requires one, so callers can route the user before requesting the
// transition.
func (e *Engine) AvailableActions(sub *Submission, user User) ([]ActionOption, error) {
	w, err := e.WorkflowFor(sub)
	if err != nil {
		return nil, err
	}
	current, err := sub.CurrentPhase(w)
	if err != nil {
		return nil, err
	}

	options := make([]ActionOption, 0, len(current.Transitions))
	for _, t := range current.Transitions {
		if !t.Guard(user, sub) {
			continue
		}
		target, err := w.Phase(t.Target)
		if err != nil {
			return nil, err
		}
		opt := ActionOption{Name: t.Name, Display: t.Display, Target: t.Target}
		if target.Step.IsDetermination() {
			opt.RedirectURL = e.determinationURL(sub)
		}
		options = append(options, opt)
	}
	return options, nil
}

func (e *Engine) determinationURL(sub *Submission) string {
	format := e.settings.DeterminationFormURL
	if format == "" {
		format = DefaultSettings().DeterminationFormURL
	}
	return fmt.Sprintf(format, sub.ID)
}
