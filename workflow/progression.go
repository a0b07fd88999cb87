package workflow

// advanceStage applies the side effects of crossing a stage boundary:
// the active form fields become the new stage's form, and reviewer
// assignments scoped to the previous stage's roles are dropped.
// Assignments without a role survive the crossing.
func advanceStage(w *Workflow, sub *Submission, target *Phase) {
	stage := w.StageOf(target)
	if stage == nil {
		return
	}

	sub.ActiveFields = append([]string(nil), stage.Form...)

	// Filter into a fresh slice: callers snapshot sub.Reviewers for
	// rollback, so the original backing array must stay intact.
	kept := make([]AssignedReviewer, 0, len(sub.Reviewers))
	for _, ar := range sub.Reviewers {
		if ar.Role == "" {
			kept = append(kept, ar)
		}
	}
	sub.Reviewers = kept
}

// ShouldRedirect reports whether performing the action from the
// submission's current phase lands on a determination-kind phase, and
// if so where the caller should send the user to record the
// determination first. The redirect never consumes the transition:
// the status only changes when the determination outcome is
// submitted.
func (e *Engine) ShouldRedirect(sub *Submission, action string) (string, bool) {
	w, err := e.WorkflowFor(sub)
	if err != nil {
		return "", false
	}
	current, err := sub.CurrentPhase(w)
	if err != nil {
		return "", false
	}
	t, ok := current.Transition(action)
	if !ok {
		return "", false
	}
	target, err := w.Phase(t.Target)
	if err != nil {
		return "", false
	}
	if !target.Step.IsDetermination() {
		return "", false
	}
	return e.determinationURL(sub), true
}
