package submissionapi

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/c360studio/semstreams/component"
)

// submissionAPISchema defines the configuration schema.
var submissionAPISchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the submission-api component.
type Config struct {
	// EventStreamName is the JetStream stream carrying submission events.
	EventStreamName string `json:"event_stream_name" schema:"type:string,description:JetStream stream for submission events,category:basic,default:SUBMISSION"`

	// HideIdentityFromReviewers redacts applicant identity from non-staff reviewers.
	HideIdentityFromReviewers bool `json:"hide_identity_from_reviewers" schema:"type:bool,description:Redact applicant identity from reviewers,category:basic,default:false"`

	// DraftsVisibleToStaff lets staff view submissions still in draft.
	DraftsVisibleToStaff bool `json:"drafts_visible_to_staff" schema:"type:bool,description:Allow staff to view draft submissions,category:basic,default:false"`

	// TransitionAfterAssigned auto-advances review phases once every
	// required reviewer role is assigned.
	TransitionAfterAssigned bool `json:"transition_after_assigned" schema:"type:bool,description:Auto-advance review phases when all roles assigned,category:basic,default:false"`

	// DeterminationFormURL is the determination form location with one
	// %s verb for the submission ID.
	DeterminationFormURL string `json:"determination_form_url" schema:"type:string,description:Determination form URL template,category:basic,default:/apply/submissions/%s/determination/add/"`

	// RequestRoles are the reviewer roles the request workflow's
	// review round requires.
	RequestRoles []string `json:"request_roles,omitempty" schema:"type:array,description:Reviewer roles required by the request workflow,category:advanced"`

	// ConceptRoles are the reviewer roles the concept stage requires.
	ConceptRoles []string `json:"concept_roles,omitempty" schema:"type:array,description:Reviewer roles required by the concept stage,category:advanced"`

	// ProposalRoles are the reviewer roles the proposal stage requires.
	ProposalRoles []string `json:"proposal_roles,omitempty" schema:"type:array,description:Reviewer roles required by the proposal stage,category:advanced"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		EventStreamName:      "SUBMISSION",
		DeterminationFormURL: "/apply/submissions/%s/determination/add/",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.EventStreamName == "" {
		return fmt.Errorf("event_stream_name is required")
	}
	if !strings.Contains(c.DeterminationFormURL, "%s") {
		return fmt.Errorf("determination_form_url must contain a %%s verb")
	}
	return nil
}
