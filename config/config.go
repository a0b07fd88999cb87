// Package config provides configuration loading and management for Hypha.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyphaapp/hypha/workflow"
)

// Config represents the complete Hypha configuration
type Config struct {
	NATS        NATSConfig                `yaml:"nats"`
	HTTP        HTTPConfig                `yaml:"http"`
	Submissions SubmissionsConfig         `yaml:"submissions"`
	Workflows   map[string]WorkflowConfig `yaml:"workflows"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server)
	URL string `yaml:"url"`
	// Embedded indicates whether to use embedded NATS
	Embedded bool `yaml:"embedded"`
}

// HTTPConfig configures the HTTP listener
type HTTPConfig struct {
	// Addr is the listen address for the API and metrics endpoints
	Addr string `yaml:"addr"`
}

// SubmissionsConfig carries the deployment flags governing permission
// and transition behavior
type SubmissionsConfig struct {
	// HideIdentityFromReviewers redacts applicant identity from non-staff reviewers
	HideIdentityFromReviewers bool `yaml:"hide_identity_from_reviewers"`
	// DraftsVisibleToStaff lets staff view draft submissions
	DraftsVisibleToStaff bool `yaml:"drafts_visible_to_staff"`
	// TransitionAfterAssigned auto-advances review phases once every role is assigned
	TransitionAfterAssigned bool `yaml:"transition_after_assigned"`
	// DeterminationFormURL is the determination form location with one %s verb for the submission ID
	DeterminationFormURL string `yaml:"determination_form_url"`
}

// WorkflowConfig customizes one built-in workflow definition
type WorkflowConfig struct {
	// StageRoles maps stage name to the reviewer roles that stage requires
	StageRoles map[string][]string `yaml:"stage_roles"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		NATS: NATSConfig{
			URL:      "",
			Embedded: true,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Submissions: SubmissionsConfig{
			DeterminationFormURL: workflow.DefaultSettings().DeterminationFormURL,
		},
		Workflows: nil, // Built-ins with no required roles
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if !strings.Contains(c.Submissions.DeterminationFormURL, "%s") {
		return fmt.Errorf("submissions.determination_form_url must contain a %%s verb")
	}
	for name := range c.Workflows {
		switch name {
		case workflow.WorkflowRequest, workflow.WorkflowConceptProposal:
		default:
			return fmt.Errorf("workflows.%s: unknown workflow", name)
		}
	}
	return nil
}

// Settings converts the submissions section into the workflow
// package's settings value.
func (c *Config) Settings() workflow.Settings {
	return workflow.Settings{
		HideIdentityFromReviewers: c.Submissions.HideIdentityFromReviewers,
		DraftsVisibleToStaff:      c.Submissions.DraftsVisibleToStaff,
		TransitionAfterAssigned:   c.Submissions.TransitionAfterAssigned,
		DeterminationFormURL:      c.Submissions.DeterminationFormURL,
	}
}

// BuildWorkflows constructs the built-in workflow definitions with
// this configuration's per-stage reviewer roles applied.
func (c *Config) BuildWorkflows() []*workflow.Workflow {
	return []*workflow.Workflow{
		workflow.RequestWorkflow(c.stageRoles(workflow.WorkflowRequest, "request")...),
		workflow.ConceptProposalWorkflow(
			c.stageRoles(workflow.WorkflowConceptProposal, "concept"),
			c.stageRoles(workflow.WorkflowConceptProposal, "proposal"),
		),
	}
}

func (c *Config) stageRoles(workflowName, stageName string) []workflow.ReviewerRole {
	wc, ok := c.Workflows[workflowName]
	if !ok {
		return nil
	}
	names := wc.StageRoles[stageName]
	if len(names) == 0 {
		return nil
	}
	roles := make([]workflow.ReviewerRole, 0, len(names))
	for _, n := range names {
		roles = append(roles, workflow.ReviewerRole(n))
	}
	return roles
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
		c.NATS.Embedded = false
	}

	// HTTP
	if other.HTTP.Addr != "" {
		c.HTTP.Addr = other.HTTP.Addr
	}

	// Submissions: booleans merge permissively, an override file can
	// only switch flags on.
	if other.Submissions.HideIdentityFromReviewers {
		c.Submissions.HideIdentityFromReviewers = true
	}
	if other.Submissions.DraftsVisibleToStaff {
		c.Submissions.DraftsVisibleToStaff = true
	}
	if other.Submissions.TransitionAfterAssigned {
		c.Submissions.TransitionAfterAssigned = true
	}
	if other.Submissions.DeterminationFormURL != "" {
		c.Submissions.DeterminationFormURL = other.Submissions.DeterminationFormURL
	}

	// Workflows replace wholesale per workflow name.
	if len(other.Workflows) > 0 {
		if c.Workflows == nil {
			c.Workflows = make(map[string]WorkflowConfig, len(other.Workflows))
		}
		for name, wc := range other.Workflows {
			c.Workflows[name] = wc
		}
	}
}
