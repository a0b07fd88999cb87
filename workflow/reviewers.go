package workflow

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotAssigned is returned when an operation names a reviewer who
// holds no assignment on the submission.
var ErrNotAssigned = errors.New("user is not an assigned reviewer")

// systemActor performs automatic transitions triggered by assignment
// and review completion. It carries the staff role so staff-guarded
// close actions fire without a human actor.
var systemActor = User{ID: "system", Roles: []Role{RoleStaff}}

// AssignmentResult reports an assignment mutation. AutoTransition is
// non-nil when the mutation tripped the phase's all-assigned action.
type AssignmentResult struct {
	Submission     *Submission
	Events         []Event
	AutoTransition *TransitionResult

	// Changed is false when the call was an idempotent no-op; nothing
	// was saved and Events is empty.
	Changed bool
}

// Coordinator manages reviewer assignments and drives the automatic
// transitions that depend on them. It shares the engine's store so
// assignment writes get the same compare-and-set protection as
// transitions, and the permission checker so role staffing tracks
// what each holder may still do in the current phase.
type Coordinator struct {
	engine *Engine
	store  SubmissionStore
	perms  *Permissions
}

// NewCoordinator builds a coordinator over the engine's definitions.
func NewCoordinator(engine *Engine, store SubmissionStore, perms *Permissions) *Coordinator {
	return &Coordinator{engine: engine, store: store, perms: perms}
}

// MissingReviewers lists the current stage's reviewer roles without an
// eligible holder, in declaration order. A role counts missing when
// its slot is empty or when the holder no longer passes CanReview in
// the current phase; eligibility is re-evaluated on every call, so a
// phase change that revokes review permission reopens the slot.
func (c *Coordinator) MissingReviewers(ctx context.Context, sub *Submission) ([]ReviewerRole, error) {
	w, err := c.engine.WorkflowFor(sub)
	if err != nil {
		return nil, err
	}
	phase, err := sub.CurrentPhase(w)
	if err != nil {
		return nil, err
	}
	stage := w.StageOf(phase)
	if stage == nil {
		return nil, nil
	}
	var missing []ReviewerRole
	for _, role := range stage.ReviewerRoles {
		ar, ok := sub.ReviewerFor(role)
		if !ok {
			missing = append(missing, role)
			continue
		}
		eligible, err := c.perms.CanReview(ctx, ar.Reviewer, sub)
		if err != nil {
			return nil, err
		}
		if !eligible {
			missing = append(missing, role)
		}
	}
	return missing, nil
}

// AllRolesAssigned reports whether the current phase's review round is
// fully staffed: every required role has an eligible holder, and a
// phase that requires open review additionally needs at least one
// role-less reviewer.
func (c *Coordinator) AllRolesAssigned(ctx context.Context, sub *Submission) (bool, error) {
	missing, err := c.MissingReviewers(ctx, sub)
	if err != nil {
		return false, err
	}
	if len(missing) > 0 {
		return false, nil
	}
	_, phase, err := c.resolve(sub)
	if err != nil {
		return false, err
	}
	if phase.RequiresOpenReview && !hasFreeReviewer(sub) {
		return false, nil
	}
	return true, nil
}

// AssignReviewer adds or moves a reviewer assignment. A non-empty role
// is a slot: assigning a new holder displaces the previous one, and
// re-assigning the current holder is a no-op. Only staff may assign.
//
// When the deployment enables transition-after-assigned and the
// current phase declares an all-assigned action, the mutation that
// flips AllRolesAssigned from false to true performs that action
// automatically, exactly once. Assignments that leave the staffing
// state unchanged never fire it.
func (c *Coordinator) AssignReviewer(ctx context.Context, sub *Submission, reviewer User, role ReviewerRole, actor User) (*AssignmentResult, error) {
	_, phase, err := c.resolve(sub)
	if err != nil {
		return nil, err
	}
	if err := c.checkStaff(sub, phase, actor, "assign_reviewer"); err != nil {
		return nil, err
	}
	if phase.IsTerminal() {
		return nil, &TransitionError{
			Kind:         KindForbidden,
			SubmissionID: sub.ID,
			Action:       "assign_reviewer",
			Phase:        phase.Name,
			UserID:       actor.ID,
			Err:          errors.New("submission is archived"),
		}
	}

	if existing, ok := findAssignment(sub, reviewer.ID); ok && existing.Role == role {
		return &AssignmentResult{Submission: sub}, nil
	}

	staffedBefore, err := c.AllRolesAssigned(ctx, sub)
	if err != nil {
		return nil, err
	}

	// One assignment per reviewer and one holder per role slot.
	kept := sub.Reviewers[:0]
	for _, a := range sub.Reviewers {
		if a.Reviewer.ID == reviewer.ID {
			continue
		}
		if role != "" && a.Role == role {
			continue
		}
		kept = append(kept, a)
	}
	sub.Reviewers = append(kept, AssignedReviewer{Reviewer: reviewer, Role: role})

	if err := c.store.SaveSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("save reviewer assignment: %w", err)
	}

	result := &AssignmentResult{
		Submission: sub,
		Events:     []Event{EventReviewersUpdated},
		Changed:    true,
	}
	if phase.Step.IsReview() {
		result.Events = append(result.Events, EventReadyForReview)
	}

	if c.engine.Settings().TransitionAfterAssigned && phase.AllAssignedAction != "" {
		staffedNow, err := c.AllRolesAssigned(ctx, sub)
		if err != nil {
			return nil, err
		}
		if !staffedBefore && staffedNow {
			tr, err := c.engine.PerformTransition(ctx, sub, phase.AllAssignedAction, systemActor)
			if err != nil {
				return nil, fmt.Errorf("auto-transition after assignment: %w", err)
			}
			result.AutoTransition = tr
			result.Events = append(result.Events, tr.Events...)
		}
	}
	return result, nil
}

// RemoveReviewer drops a reviewer's assignment. Removing a reviewer
// who is not assigned is a no-op. Only staff may remove.
func (c *Coordinator) RemoveReviewer(ctx context.Context, sub *Submission, reviewerID string, actor User) (*AssignmentResult, error) {
	_, phase, err := c.resolve(sub)
	if err != nil {
		return nil, err
	}
	if err := c.checkStaff(sub, phase, actor, "remove_reviewer"); err != nil {
		return nil, err
	}

	if _, ok := findAssignment(sub, reviewerID); !ok {
		return &AssignmentResult{Submission: sub}, nil
	}

	kept := sub.Reviewers[:0]
	for _, a := range sub.Reviewers {
		if a.Reviewer.ID != reviewerID {
			kept = append(kept, a)
		}
	}
	sub.Reviewers = kept

	if err := c.store.SaveSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("save reviewer removal: %w", err)
	}
	return &AssignmentResult{
		Submission: sub,
		Events:     []Event{EventReviewersUpdated},
		Changed:    true,
	}, nil
}

// MarkReviewed records that the named reviewer completed a review in
// the current phase. The flip from pending to reviewed happens at most
// once: marking an already-reviewed assignment is a no-op and cannot
// re-trigger the automatic close. When the last pending assignment
// flips and the phase declares an all-assigned action, the coordinator
// performs that action exactly once.
func (c *Coordinator) MarkReviewed(ctx context.Context, sub *Submission, reviewerID string) (*AssignmentResult, error) {
	_, phase, err := c.resolve(sub)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, a := range sub.Reviewers {
		if a.Reviewer.ID == reviewerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("mark reviewed %s on %s: %w", reviewerID, sub.ID, ErrNotAssigned)
	}
	if sub.Reviewers[idx].HasReview {
		return &AssignmentResult{Submission: sub}, nil
	}
	sub.Reviewers[idx].HasReview = true

	if err := c.store.SaveSubmission(ctx, sub); err != nil {
		sub.Reviewers[idx].HasReview = false
		return nil, fmt.Errorf("save review completion: %w", err)
	}

	result := &AssignmentResult{Submission: sub, Changed: true}
	if phase.AllAssignedAction != "" && allReviewsDone(sub) {
		tr, err := c.engine.PerformTransition(ctx, sub, phase.AllAssignedAction, systemActor)
		if err != nil {
			return nil, fmt.Errorf("auto-transition after review: %w", err)
		}
		result.AutoTransition = tr
		result.Events = append(result.Events, tr.Events...)
	}
	return result, nil
}

func (c *Coordinator) resolve(sub *Submission) (*Workflow, *Phase, error) {
	w, err := c.engine.WorkflowFor(sub)
	if err != nil {
		return nil, nil, err
	}
	phase, err := sub.CurrentPhase(w)
	if err != nil {
		return nil, nil, err
	}
	return w, phase, nil
}

func (c *Coordinator) checkStaff(sub *Submission, phase *Phase, actor User, action string) error {
	if actor.IsStaff() {
		return nil
	}
	return &TransitionError{
		Kind:         KindForbidden,
		SubmissionID: sub.ID,
		Action:       action,
		Phase:        phase.Name,
		UserID:       actor.ID,
	}
}

func findAssignment(sub *Submission, reviewerID string) (AssignedReviewer, bool) {
	for _, a := range sub.Reviewers {
		if a.Reviewer.ID == reviewerID {
			return a, true
		}
	}
	return AssignedReviewer{}, false
}

// hasFreeReviewer holds when any assignment carries no role slot.
func hasFreeReviewer(sub *Submission) bool {
	for _, a := range sub.Reviewers {
		if a.Role == "" {
			return true
		}
	}
	return false
}

// allReviewsDone holds when at least one reviewer is assigned and
// every assignment has a completed review.
func allReviewsDone(sub *Submission) bool {
	if len(sub.Reviewers) == 0 {
		return false
	}
	for _, a := range sub.Reviewers {
		if !a.HasReview {
			return false
		}
	}
	return true
}
