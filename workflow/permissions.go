package workflow

import "context"

// PermissionSet declares which roles hold each capability while a
// submission sits in a phase. Role membership is necessary but not
// sufficient: the checker layers ownership, assignment, archive,
// draft, and sealed-round rules on top.
type PermissionSet struct {
	View   []Role
	Edit   []Role
	Review []Role
}

func containsRole(roles []Role, r Role) bool {
	for _, have := range roles {
		if have == r {
			return true
		}
	}
	return false
}

// Settings carries the deployment flags consulted by permission and
// transition decisions. It is built once from configuration and passed
// in explicitly; there is no ambient global state.
type Settings struct {
	// HideIdentityFromReviewers redacts applicant identity from
	// non-staff reviewers.
	HideIdentityFromReviewers bool

	// DraftsVisibleToStaff lets staff view submissions still in a
	// draft phase.
	DraftsVisibleToStaff bool

	// TransitionAfterAssigned enables the automatic transition
	// requested when every required reviewer role becomes assigned.
	TransitionAfterAssigned bool

	// DeterminationFormURL is the format for the determination form
	// location, with one %s verb for the submission ID.
	DeterminationFormURL string
}

// DefaultSettings returns the flag values used when configuration
// leaves them unset.
func DefaultSettings() Settings {
	return Settings{
		DeterminationFormURL: "/apply/submissions/%s/determination/add/",
	}
}

// PeekStore records which staff users have explicitly unsealed which
// submissions. Sealed-round submissions deny staff view until a peek
// is recorded. Recording lives with the session collaborator; the
// checker only reads.
type PeekStore interface {
	HasPeeked(ctx context.Context, userID, submissionID string) (bool, error)
}

// Permissions answers capability questions for (user, submission)
// pairs. All predicates are pure functions of the phase rule, the
// submission state, and the user — idempotent and safe to call
// repeatedly within one request.
type Permissions struct {
	workflows map[string]*Workflow
	settings  Settings
	peeks     PeekStore
}

// NewPermissions builds a checker over the given workflow definitions.
// peeks may be nil when no sealed rounds are configured.
func NewPermissions(workflows []*Workflow, settings Settings, peeks PeekStore) *Permissions {
	byName := make(map[string]*Workflow, len(workflows))
	for _, w := range workflows {
		byName[w.Name] = w
	}
	return &Permissions{workflows: byName, settings: settings, peeks: peeks}
}

// Settings returns the flags the checker was built with.
func (p *Permissions) Settings() Settings {
	return p.settings
}

func (p *Permissions) resolve(sub *Submission) (*Workflow, *Phase, error) {
	w, ok := p.workflows[sub.Workflow]
	if !ok {
		return nil, nil, &ConfigError{Workflow: sub.Workflow, Message: "unknown workflow"}
	}
	phase, err := w.Phase(sub.Status)
	if err != nil {
		return nil, nil, err
	}
	return w, phase, nil
}

// CanView decides whether the user may see the submission at all.
// Owners always see their own work; staff view of sealed submissions
// requires a recorded peek; drafts are owner-only unless the staff
// visibility override is set.
func (p *Permissions) CanView(ctx context.Context, user User, sub *Submission) (bool, error) {
	_, phase, err := p.resolve(sub)
	if err != nil {
		return false, err
	}

	if user.ID == sub.Applicant {
		return true, nil
	}
	if sub.IsPartner(user.ID) {
		return true, nil
	}

	if phase.Step == StepDraft {
		return user.IsStaff() && p.settings.DraftsVisibleToStaff, nil
	}

	if user.IsStaff() {
		if sub.Sealed {
			return p.hasPeeked(ctx, user.ID, sub.ID)
		}
		return containsRole(phase.Permissions.View, RoleStaff), nil
	}

	// Reviewers and community reviewers see only submissions they are
	// assigned to, and only in phases that grant their role view.
	if sub.IsReviewer(user.ID) {
		if user.HasRole(RoleReviewer) && containsRole(phase.Permissions.View, RoleReviewer) {
			return true, nil
		}
		if user.HasRole(RoleCommunity) && containsRole(phase.Permissions.View, RoleCommunity) {
			return true, nil
		}
	}

	return false, nil
}

// CanEdit decides whether the user may change the submission's form
// data. Archived submissions always deny edit; drafts are editable
// only by the owner.
func (p *Permissions) CanEdit(_ context.Context, user User, sub *Submission) (bool, error) {
	w, phase, err := p.resolve(sub)
	if err != nil {
		return false, err
	}

	if sub.IsArchived(w) {
		return false, nil
	}
	if phase.Step == StepDraft {
		return user.ID == sub.Applicant, nil
	}

	for _, role := range phase.Permissions.Edit {
		switch role {
		case RoleApplicant:
			if user.ID == sub.Applicant {
				return true, nil
			}
		case RolePartner:
			if user.HasRole(RolePartner) && sub.IsPartner(user.ID) {
				return true, nil
			}
		case RoleStaff, RoleReviewer, RoleCommunity:
			if user.HasRole(role) {
				return true, nil
			}
		}
	}
	return false, nil
}

// CanReview decides whether the user may submit a review in the
// submission's current phase. Non-staff roles additionally require an
// assignment on the submission. Re-evaluated on every call: a phase
// change can revoke a previously valid reviewer.
func (p *Permissions) CanReview(_ context.Context, user User, sub *Submission) (bool, error) {
	w, phase, err := p.resolve(sub)
	if err != nil {
		return false, err
	}

	if sub.IsArchived(w) {
		return false, nil
	}

	for _, role := range phase.Permissions.Review {
		switch role {
		case RoleStaff:
			if user.IsStaff() {
				return true, nil
			}
		case RoleReviewer, RoleCommunity, RolePartner:
			if user.HasRole(role) && sub.IsReviewer(user.ID) {
				return true, nil
			}
		case RoleApplicant:
			// Applicants never review their own submissions.
		}
	}
	return false, nil
}

// CanViewIdentity reports whether the applicant's identity may be
// shown to the user. Staff and the owner always see it; reviewers are
// redacted when the hide-identity flag is set.
func (p *Permissions) CanViewIdentity(user User, sub *Submission) bool {
	if user.ID == sub.Applicant || user.IsStaff() {
		return true
	}
	return !p.settings.HideIdentityFromReviewers
}

func (p *Permissions) hasPeeked(ctx context.Context, userID, submissionID string) (bool, error) {
	if p.peeks == nil {
		return false, nil
	}
	return p.peeks.HasPeeked(ctx, userID, submissionID)
}
