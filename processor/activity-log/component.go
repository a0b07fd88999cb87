// Package activitylog consumes submission domain events and records a
// per-submission activity feed. It is the read side of the event
// stream: the submission-api writes state and publishes, this
// component turns the published events into a human-readable timeline.
package activitylog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/hyphaapp/hypha/storage"
	"github.com/hyphaapp/hypha/workflow"
)

// activityStore is the slice of the entity store this component needs.
type activityStore interface {
	RecordActivity(ctx context.Context, a *storage.Activity) error
	ListActivityBySubmission(ctx context.Context, submissionID string) ([]*storage.Activity, error)
}

// Component implements the activity-log component.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger

	store activityStore

	// Lifecycle state machine
	state     atomic.Int32
	startTime time.Time
	cancel    context.CancelFunc
	mu        sync.RWMutex
}

const (
	stateStopped  = 0
	stateStarting = 1
	stateRunning  = 2
	stateStopping = 3
)

// NewComponent creates an activity-log component from raw JSON config.
func NewComponent(configData json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	config := DefaultConfig()
	if len(configData) > 0 {
		if err := json.Unmarshal(configData, &config); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if config.EventStreamName == "" {
		config.EventStreamName = DefaultConfig().EventStreamName
	}
	if config.ConsumerName == "" {
		config.ConsumerName = DefaultConfig().ConsumerName
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Component{
		name:       "activity-log",
		config:     config,
		natsClient: deps.NATSClient,
		logger:     deps.GetLogger(),
	}, nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	c.logger.Debug("Initialized activity-log",
		"event_stream", c.config.EventStreamName,
		"consumer", c.config.ConsumerName)
	return nil
}

// Start begins consuming submission events.
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

	// Idempotent with the submission-api's stream provisioning, so
	// start order between the two components does not matter.
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

	childCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.store = store
	c.cancel = cancel
	c.startTime = time.Now()
	c.mu.Unlock()

	go c.consumeEvents(childCtx, js)

	// Transition to running
	c.state.Store(stateRunning)

	c.logger.Info("activity-log started",
		"event_stream", c.config.EventStreamName,
		"consumer", c.config.ConsumerName)

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

	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	c.state.Store(stateStopped)

	c.logger.Info("activity-log stopped")

	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "activity-log",
		Type:        "processor",
		Description: "Records a per-submission activity feed from submission domain events",
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
	return activityLogSchema
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
