package workflow

// Built-in workflow definitions. These mirror the two funding models
// most programs run: a single-stage request that goes straight from
// discussion to determination, and a two-stage concept-then-proposal
// pipeline where an invitation gates the second stage.
//
// Reviewer roles per stage are configuration, so each builder accepts
// the roles its stages should require before a review round counts as
// fully assigned.

const (
	WorkflowRequest         = "request"
	WorkflowConceptProposal = "concept_proposal"
)

var (
	viewDraft      = PermissionSet{View: []Role{RoleApplicant, RoleStaff}, Edit: []Role{RoleApplicant}}
	viewDiscussion = PermissionSet{
		View:   []Role{RoleApplicant, RoleStaff, RoleReviewer, RolePartner},
		Edit:   []Role{RoleStaff},
		Review: []Role{RoleStaff},
	}
	viewInternalReview = PermissionSet{
		View:   []Role{RoleApplicant, RoleStaff, RoleReviewer},
		Edit:   []Role{RoleStaff},
		Review: []Role{RoleStaff, RoleReviewer},
	}
	viewExternalReview = PermissionSet{
		View:   []Role{RoleApplicant, RoleStaff, RoleReviewer, RolePartner},
		Edit:   []Role{RoleStaff},
		Review: []Role{RoleStaff, RoleReviewer, RolePartner},
	}
	viewDetermination = PermissionSet{
		View:   []Role{RoleApplicant, RoleStaff},
		Edit:   []Role{RoleStaff},
		Review: []Role{RoleStaff},
	}
	viewTerminal = PermissionSet{
		View: []Role{RoleApplicant, RoleStaff, RoleReviewer, RolePartner},
	}
)

// RequestWorkflow builds the single-stage request workflow. Reviewer
// roles, when given, become the roles the internal review round must
// fill before the all-assigned auto-transition can fire.
func RequestWorkflow(reviewerRoles ...ReviewerRole) *Workflow {
	return MustWorkflow(WorkflowRequest, []Stage{
		{
			Name:          "request",
			Form:          []string{"title", "description", "amount", "duration"},
			ReviewerRoles: reviewerRoles,
			Phases: []*Phase{
				{
					Name:        "draft",
					Display:     "Draft",
					Stage:       1,
					Step:        StepDraft,
					StepNum:     0,
					Permissions: viewDraft,
					Transitions: []Transition{
						{Name: "submit", Target: "in_discussion", Display: "Submit", Guard: ApplicantOnly},
					},
				},
				{
					Name:        "in_discussion",
					Display:     "Screening",
					Stage:       1,
					Step:        StepReceived,
					StepNum:     1,
					Permissions: viewDiscussion,
					Transitions: []Transition{
						{Name: "open_review", Target: "internal_review", Display: "Open Review", Guard: StaffOnly},
						{Name: "determination", Target: "determination", Display: "Ready For Determination", Guard: LeadOnly},
						{Name: "reject", Target: "rejected", Display: "Dismiss", Guard: LeadOnly},
					},
				},
				{
					Name:              "internal_review",
					Display:           "Internal Review",
					Stage:             1,
					Step:              StepInternalReview,
					StepNum:           2,
					Permissions:       viewInternalReview,
					AllAssignedAction: "close_review",
					Transitions: []Transition{
						{Name: "close_review", Target: "post_review_discussion", Display: "Close Review", Guard: StaffOnly},
						{Name: "revert_to_discussion", Target: "in_discussion", Display: "Revert To Screening", Guard: StaffOnly},
					},
				},
				{
					Name:        "post_review_discussion",
					Display:     "Ready For Discussion",
					Stage:       1,
					Step:        StepPostReviewDiscussion,
					StepNum:     3,
					Permissions: viewDiscussion,
					Transitions: []Transition{
						{Name: "determination", Target: "determination", Display: "Ready For Determination", Guard: LeadOnly},
						{Name: "request_changes", Target: "in_discussion", Display: "Request Changes", Guard: StaffOnly},
					},
				},
				{
					Name:        "determination",
					Display:     "Ready For Determination",
					Stage:       1,
					Step:        StepDetermination,
					StepNum:     4,
					Permissions: viewDetermination,
					Transitions: []Transition{
						{Name: "accept", Target: "accepted", Display: "Accept", Guard: LeadOnly},
						{Name: "reject", Target: "rejected", Display: "Dismiss", Guard: LeadOnly},
					},
				},
				{
					Name:        "accepted",
					Display:     "Accepted",
					Stage:       1,
					Step:        StepAccepted,
					StepNum:     5,
					Permissions: viewTerminal,
				},
				{
					Name:        "rejected",
					Display:     "Dismissed",
					Stage:       1,
					Step:        StepRejected,
					StepNum:     5,
					Permissions: viewTerminal,
				},
			},
		},
	})
}

// ConceptProposalWorkflow builds the two-stage concept-then-proposal
// workflow. The concept stage ends with an invitation phase that only
// the lead can reach; progressing out of it crosses into the proposal
// stage, swapping the active form and dropping concept-stage reviewer
// role assignments.
func ConceptProposalWorkflow(conceptRoles, proposalRoles []ReviewerRole) *Workflow {
	return MustWorkflow(WorkflowConceptProposal, []Stage{
		{
			Name:          "concept",
			Form:          []string{"title", "summary", "amount"},
			ReviewerRoles: conceptRoles,
			Phases: []*Phase{
				{
					Name:        "concept_draft",
					Display:     "Draft",
					Stage:       1,
					Step:        StepDraft,
					StepNum:     0,
					Permissions: viewDraft,
					Transitions: []Transition{
						{Name: "submit", Target: "concept_discussion", Display: "Submit", Guard: ApplicantOnly},
					},
				},
				{
					Name:        "concept_discussion",
					Display:     "Concept Screening",
					Stage:       1,
					Step:        StepReceived,
					StepNum:     1,
					Permissions: viewDiscussion,
					Transitions: []Transition{
						{Name: "open_review", Target: "concept_internal_review", Display: "Open Review", Guard: StaffOnly},
						{Name: "reject", Target: "rejected", Display: "Dismiss", Guard: LeadOnly},
					},
				},
				{
					Name:              "concept_internal_review",
					Display:           "Concept Internal Review",
					Stage:             1,
					Step:              StepInternalReview,
					StepNum:           2,
					Permissions:       viewInternalReview,
					AllAssignedAction: "close_review",
					Transitions: []Transition{
						{Name: "close_review", Target: "concept_review_discussion", Display: "Close Review", Guard: StaffOnly},
						{Name: "revert_to_discussion", Target: "concept_discussion", Display: "Revert To Screening", Guard: StaffOnly},
					},
				},
				{
					Name:        "concept_review_discussion",
					Display:     "Concept Ready For Discussion",
					Stage:       1,
					Step:        StepPostReviewDiscussion,
					StepNum:     3,
					Permissions: viewDiscussion,
					Transitions: []Transition{
						{Name: "invited_to_proposal", Target: "invited_to_proposal", Display: "Invite To Proposal", Guard: LeadOnly},
						{Name: "reject", Target: "rejected", Display: "Dismiss", Guard: LeadOnly},
						{Name: "request_changes", Target: "concept_discussion", Display: "Request Changes", Guard: StaffOnly},
					},
				},
				{
					Name:        "invited_to_proposal",
					Display:     "Invited To Proposal",
					Stage:       1,
					Step:        StepInvitedToProposal,
					StepNum:     4,
					Permissions: viewDetermination,
					Transitions: []Transition{
						{Name: "progress", Target: "proposal_draft", Display: "Progress", Guard: StaffOnly},
					},
				},
			},
		},
		{
			Name:          "proposal",
			Form:          []string{"title", "proposal", "budget", "timeline", "team"},
			ReviewerRoles: proposalRoles,
			Phases: []*Phase{
				{
					Name:        "proposal_draft",
					Display:     "Proposal Draft",
					Stage:       2,
					Step:        StepDraft,
					StepNum:     5,
					Permissions: viewDraft,
					Transitions: []Transition{
						{Name: "submit", Target: "proposal_discussion", Display: "Submit", Guard: ApplicantOnly},
					},
				},
				{
					Name:        "proposal_discussion",
					Display:     "Proposal Screening",
					Stage:       2,
					Step:        StepReceived,
					StepNum:     6,
					Permissions: viewDiscussion,
					Transitions: []Transition{
						{Name: "open_review", Target: "proposal_internal_review", Display: "Open Review", Guard: StaffOnly},
						{Name: "reject", Target: "rejected", Display: "Dismiss", Guard: LeadOnly},
					},
				},
				{
					Name:              "proposal_internal_review",
					Display:           "Proposal Internal Review",
					Stage:             2,
					Step:              StepInternalReview,
					StepNum:           7,
					Permissions:       viewInternalReview,
					AllAssignedAction: "close_review",
					Transitions: []Transition{
						{Name: "close_review", Target: "post_review_discussion", Display: "Close Review", Guard: StaffOnly},
						{Name: "revert_to_discussion", Target: "proposal_discussion", Display: "Revert To Screening", Guard: StaffOnly},
					},
				},
				{
					Name:        "post_review_discussion",
					Display:     "Proposal Ready For Discussion",
					Stage:       2,
					Step:        StepPostReviewDiscussion,
					StepNum:     8,
					Permissions: viewDiscussion,
					Transitions: []Transition{
						{Name: "open_external_review", Target: "external_review", Display: "Open External Review", Guard: StaffOnly},
						{Name: "determination", Target: "proposal_determination", Display: "Ready For Determination", Guard: LeadOnly},
						{Name: "request_changes", Target: "proposal_discussion", Display: "Request Changes", Guard: StaffOnly},
					},
				},
				{
					Name:               "external_review",
					Display:            "External Review",
					Stage:              2,
					Step:               StepExternalReview,
					StepNum:            9,
					Permissions:        viewExternalReview,
					AllAssignedAction:  "close_external_review",
					RequiresOpenReview: true,
					Transitions: []Transition{
						{Name: "close_external_review", Target: "post_external_review_discussion", Display: "Close External Review", Guard: StaffOnly},
						{Name: "revert_to_discussion", Target: "post_review_discussion", Display: "Revert To Discussion", Guard: StaffOnly},
					},
				},
				{
					Name:        "post_external_review_discussion",
					Display:     "Ready For Final Discussion",
					Stage:       2,
					Step:        StepPostReviewDiscussion,
					StepNum:     10,
					Permissions: viewDiscussion,
					Transitions: []Transition{
						{Name: "determination", Target: "proposal_determination", Display: "Ready For Determination", Guard: LeadOnly},
						{Name: "request_changes", Target: "post_review_discussion", Display: "Request Changes", Guard: StaffOnly},
					},
				},
				{
					Name:        "proposal_determination",
					Display:     "Ready For Final Determination",
					Stage:       2,
					Step:        StepDetermination,
					StepNum:     11,
					Permissions: viewDetermination,
					Transitions: []Transition{
						{Name: "accept", Target: "accepted", Display: "Accept", Guard: LeadOnly},
						{Name: "reject", Target: "rejected", Display: "Dismiss", Guard: LeadOnly},
					},
				},
				{
					Name:        "accepted",
					Display:     "Accepted",
					Stage:       2,
					Step:        StepAccepted,
					StepNum:     12,
					Permissions: viewTerminal,
				},
				{
					Name:        "rejected",
					Display:     "Dismissed",
					Stage:       2,
					Step:        StepRejected,
					StepNum:     12,
					Permissions: viewTerminal,
				},
			},
		},
	})
}

// BuiltinWorkflows returns fresh copies of both definitions with no
// reviewer role requirements. Deployments that want role-gated review
// rounds build the workflows through the config package instead.
func BuiltinWorkflows() []*Workflow {
	return []*Workflow{
		RequestWorkflow(),
		ConceptProposalWorkflow(nil, nil),
	}
}
