package workflow

// Role identifies a class of platform user. Roles drive per-phase
// permission checks; the lead is a per-submission field, not a role.
type Role string

const (
	// RoleApplicant is the submitting user class. Capability checks for
	// applicants additionally require ownership of the submission.
	RoleApplicant Role = "applicant"

	// RoleStaff covers internal staff members.
	RoleStaff Role = "staff"

	// RoleReviewer covers external reviewers assigned to submissions.
	RoleReviewer Role = "reviewer"

	// RolePartner covers partner organization members with per-
	// submission access.
	RolePartner Role = "partner"

	// RoleCommunity covers community reviewers in open-review funds.
	RoleCommunity Role = "community"
)

// ReviewerRole is a named reviewer slot configured per fund, e.g.
// "principal" or "subject-expert". At most one reviewer may occupy a
// slot on a given submission; role-less reviewers are unconstrained.
type ReviewerRole string

// User is the acting identity supplied by the caller. The core never
// loads users itself; authentication is an external concern.
type User struct {
	// ID is the stable user identifier.
	ID string `json:"id"`

	// Roles are the user's platform roles.
	Roles []Role `json:"roles,omitempty"`
}

// HasRole reports whether the user carries the given role.
func (u User) HasRole(r Role) bool {
	for _, have := range u.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// IsStaff reports whether the user carries the staff role.
func (u User) IsStaff() bool {
	return u.HasRole(RoleStaff)
}

// IsApplicant reports whether the user carries the applicant role.
func (u User) IsApplicant() bool {
	return u.HasRole(RoleApplicant)
}
