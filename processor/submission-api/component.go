// Package submissionapi provides the HTTP surface of the submission
// workflow engine: creating submissions, listing and performing
// transitions, reviewer assignment, reviews, and determinations.
package submissionapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/hyphaapp/hypha/storage"
	"github.com/hyphaapp/hypha/workflow"
)

// entityStore is the slice of storage the component needs. Satisfied
// by *storage.Store; tests substitute an in-memory implementation.
type entityStore interface {
	workflow.SubmissionStore
	workflow.PeekStore

	CreateSubmission(ctx context.Context, sub *workflow.Submission) error
	GetSubmission(ctx context.Context, id string) (*workflow.Submission, error)
	ListSubmissions(ctx context.Context) ([]*workflow.Submission, error)

	CreateDetermination(ctx context.Context, d *workflow.Determination) (storage.EntityID, error)
	UpdateDetermination(ctx context.Context, d *workflow.Determination) error
	ListDeterminationsBySubmission(ctx context.Context, submissionID string) ([]*workflow.Determination, error)

	CreateReview(ctx context.Context, r *workflow.Review) (storage.EntityID, error)
	ListReviewsBySubmission(ctx context.Context, submissionID string) ([]*workflow.Review, error)

	RecordPeek(ctx context.Context, userID, submissionID string) error
}

// Component implements the submission-api component.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger

	store       entityStore
	engine      *workflow.Engine
	coordinator *workflow.Coordinator
	permissions *workflow.Permissions

	// Lifecycle state machine
	// States: 0=stopped, 1=starting, 2=running, 3=stopping
	state     atomic.Int32
	startTime time.Time
	mu        sync.RWMutex
}

const (
	stateStopped  = 0
	stateStarting = 1
	stateRunning  = 2
	stateStopping = 3
)

// NewComponent creates a new submission-api component.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if err := json.Unmarshal(rawConfig, &config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Apply defaults
	defaults := DefaultConfig()
	if config.EventStreamName == "" {
		config.EventStreamName = defaults.EventStreamName
	}
	if config.DeterminationFormURL == "" {
		config.DeterminationFormURL = defaults.DeterminationFormURL
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Component{
		name:       "submission-api",
		config:     config,
		natsClient: deps.NATSClient,
		logger:     deps.GetLogger(),
	}, nil
}

func (c *Component) settings() workflow.Settings {
	return workflow.Settings{
		HideIdentityFromReviewers: c.config.HideIdentityFromReviewers,
		DraftsVisibleToStaff:      c.config.DraftsVisibleToStaff,
		TransitionAfterAssigned:   c.config.TransitionAfterAssigned,
		DeterminationFormURL:      c.config.DeterminationFormURL,
	}
}

func (c *Component) workflows() []*workflow.Workflow {
	return []*workflow.Workflow{
		workflow.RequestWorkflow(toRoles(c.config.RequestRoles)...),
		workflow.ConceptProposalWorkflow(toRoles(c.config.ConceptRoles), toRoles(c.config.ProposalRoles)),
	}
}

func toRoles(names []string) []workflow.ReviewerRole {
	if len(names) == 0 {
		return nil
	}
	roles := make([]workflow.ReviewerRole, 0, len(names))
	for _, n := range names {
		roles = append(roles, workflow.ReviewerRole(n))
	}
	return roles
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	c.logger.Debug("Initialized submission-api",
		"event_stream", c.config.EventStreamName)
	return nil
}

// Start begins the component: it provisions storage buckets and the
// event stream, then wires the engine and its collaborators.
func (c *Component) Start(ctx context.Context) error {
	// Atomically transition from stopped to starting
	if !c.state.CompareAndSwap(stateStopped, stateStarting) {
		currentState := c.state.Load()
		if currentState == stateRunning || currentState == stateStarting {
			return fmt.Errorf("component already running or starting")
		}
		return fmt.Errorf("component in invalid state: %d", currentState)
	}

	// Ensure we transition to stopped if setup fails
	defer func() {
		if c.state.Load() == stateStarting {
			c.state.Store(stateStopped)
		}
	}()

	if c.natsClient == nil {
		return fmt.Errorf("NATS client required")
	}

	js, err := c.natsClient.JetStream()
	if err != nil {
		return fmt.Errorf("get jetstream: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        c.config.EventStreamName,
		Description: "Submission domain events",
		Subjects:    []string{workflow.EventSubjects},
	}); err != nil {
		return fmt.Errorf("ensure event stream: %w", err)
	}

	store, err := storage.NewStore(ctx, js)
	if err != nil {
		return fmt.Errorf("create entity store: %w", err)
	}

	settings := c.settings()
	workflows := c.workflows()
	engine, err := workflow.NewEngine(store, settings, workflows...)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	perms := workflow.NewPermissions(workflows, settings, store)

	c.mu.Lock()
	c.store = store
	c.engine = engine
	c.permissions = perms
	c.coordinator = workflow.NewCoordinator(engine, store, perms)
	c.startTime = time.Now()
	c.mu.Unlock()

	// Transition to running
	c.state.Store(stateRunning)

	c.logger.Info("submission-api started",
		"event_stream", c.config.EventStreamName,
		"transition_after_assigned", c.config.TransitionAfterAssigned)

	return nil
}

// Stop gracefully stops the component.
func (c *Component) Stop(_ time.Duration) error {
	// Atomically transition from running to stopping
	if !c.state.CompareAndSwap(stateRunning, stateStopping) {
		currentState := c.state.Load()
		if currentState == stateStopped || currentState == stateStopping {
			return nil
		}
		return fmt.Errorf("component in unexpected state: %d", currentState)
	}

	c.state.Store(stateStopped)

	c.logger.Info("submission-api stopped")

	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "submission-api",
		Type:        "processor",
		Description: "HTTP API for submission workflow transitions, reviews, and determinations",
		Version:     "0.1.0",
	}
}

// InputPorts returns configured input port definitions.
func (c *Component) InputPorts() []component.Port {
	return []component.Port{}
}

// OutputPorts returns configured output port definitions.
func (c *Component) OutputPorts() []component.Port {
	return []component.Port{}
}

// ConfigSchema returns the configuration schema.
func (c *Component) ConfigSchema() component.ConfigSchema {
	return submissionAPISchema
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	state := c.state.Load()
	running := state == stateRunning

	c.mu.RLock()
	startTime := c.startTime
	c.mu.RUnlock()

	status := "stopped"
	switch state {
	case stateStarting:
		status = "starting"
	case stateRunning:
		status = "running"
	case stateStopping:
		status = "stopping"
	}

	return component.HealthStatus{
		Healthy:   running,
		LastCheck: time.Now(),
		Uptime:    time.Since(startTime),
		Status:    status,
	}
}

// DataFlow returns current data flow metrics.
func (c *Component) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{}
}

// publishEvent publishes a domain event to the submission event
// stream. Publish failures are logged, never surfaced to the HTTP
// caller: the state change already committed.
func (c *Component) publishEvent(ctx context.Context, subject string, payload message.Payload) {
	if c.natsClient == nil {
		return
	}
	baseMsg := message.NewBaseMessage(payload.Schema(), payload, c.name)
	data, err := json.Marshal(baseMsg)
	if err != nil {
		c.logger.Error("Failed to marshal event", "subject", subject, "error", err)
		return
	}
	if err := c.natsClient.PublishToStream(ctx, subject, data); err != nil {
		c.logger.Error("Failed to publish event", "subject", subject, "error", err)
	}
}
