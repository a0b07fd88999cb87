package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyphaapp/hypha/config"
	activitylog "github.com/hyphaapp/hypha/processor/activity-log"
	submissionapi "github.com/hyphaapp/hypha/processor/submission-api"
	"github.com/hyphaapp/hypha/workflow"
)

// httpRegistrar is implemented by components that expose HTTP routes.
type httpRegistrar interface {
	RegisterHTTPHandlers(prefix string, mux *http.ServeMux)
}

// App wires the NATS layer, the workflow components, and the HTTP
// server into one process.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	embeddedServer *server.Server
	natsClient     *natsclient.Client

	components []component.LifecycleComponent
	httpServer *http.Server
}

// NewApp creates the application from resolved configuration.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	return &App{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Run starts everything and blocks until a shutdown signal.
func (a *App) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Start(ctx); err != nil {
		a.Shutdown(30 * time.Second)
		return err
	}

	slog.Info("Hypha ready",
		"version", Version,
		"http_addr", a.cfg.HTTP.Addr)

	<-ctx.Done()
	slog.Info("Received shutdown signal")

	a.Shutdown(30 * time.Second)
	return nil
}

// Start initializes and starts all components.
func (a *App) Start(ctx context.Context) error {
	if err := a.startNATS(ctx); err != nil {
		return fmt.Errorf("start NATS: %w", err)
	}

	if err := a.startComponents(ctx); err != nil {
		return fmt.Errorf("start components: %w", err)
	}

	a.startHTTP()
	return nil
}

func (a *App) startNATS(ctx context.Context) error {
	url := a.cfg.NATS.URL

	if url == "" || a.cfg.NATS.Embedded {
		// Start embedded NATS server
		a.logger.Info("Starting embedded NATS server")
		opts := &server.Options{
			Port:      -1, // Random available port
			JetStream: true,
			NoLog:     true,
			NoSigs:    true,
		}

		ns, err := server.NewServer(opts)
		if err != nil {
			return fmt.Errorf("create embedded NATS server: %w", err)
		}

		go ns.Start()

		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return fmt.Errorf("embedded NATS server failed to start")
		}

		a.embeddedServer = ns
		url = ns.ClientURL()
	}

	a.logger.Info("Connecting to NATS", "url", url)

	client, err := natsclient.NewClient(url,
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
		natsclient.WithCircuitBreakerThreshold(20),
		natsclient.WithHealthInterval(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return wrapNATSError(err, url)
	}

	connCtx, cancelConn := context.WithTimeout(ctx, 10*time.Second)
	defer cancelConn()
	if err := client.WaitForConnection(connCtx); err != nil {
		return wrapNATSError(err, url)
	}

	a.natsClient = client
	a.logger.Info("Connected to NATS", "url", url)
	return nil
}

// wrapNATSError provides guidance when an external NATS connection fails.
func wrapNATSError(err error, url string) error {
	return fmt.Errorf(`NATS connection failed at %s: %w

Set nats.url in the config file, or leave it empty to run the
embedded server.`, url, err)
}

func (a *App) startComponents(ctx context.Context) error {
	// Register factories so schemas are validated and discoverable.
	registry := component.NewRegistry()
	if err := submissionapi.Register(registry); err != nil {
		return fmt.Errorf("register submission-api: %w", err)
	}
	if err := activitylog.Register(registry); err != nil {
		return fmt.Errorf("register activity-log: %w", err)
	}
	slog.Debug("Component factories registered", "count", len(registry.ListFactories()))

	deps := component.Dependencies{
		NATSClient: a.natsClient,
		Logger:     a.logger,
	}

	apiComponent, err := submissionapi.NewComponent(a.submissionAPIConfig(), deps)
	if err != nil {
		return fmt.Errorf("create submission-api: %w", err)
	}
	feedComponent, err := activitylog.NewComponent(nil, deps)
	if err != nil {
		return fmt.Errorf("create activity-log: %w", err)
	}

	for _, comp := range []component.Discoverable{apiComponent, feedComponent} {
		name := comp.Meta().Name
		lc, ok := component.AsLifecycleComponent(comp)
		if !ok {
			return fmt.Errorf("component %s does not implement lifecycle management", name)
		}
		if err := lc.Initialize(); err != nil {
			return fmt.Errorf("initialize %s: %w", name, err)
		}
		if err := lc.Start(ctx); err != nil {
			return fmt.Errorf("start %s: %w", name, err)
		}
		a.components = append(a.components, lc)
		slog.Info("Component started", "name", name)
	}

	return nil
}

// submissionAPIConfig translates service configuration into the
// submission-api component config.
func (a *App) submissionAPIConfig() json.RawMessage {
	roles := func(workflowName, stageName string) []string {
		wc, ok := a.cfg.Workflows[workflowName]
		if !ok {
			return nil
		}
		return wc.StageRoles[stageName]
	}

	componentCfg := map[string]any{
		"hide_identity_from_reviewers": a.cfg.Submissions.HideIdentityFromReviewers,
		"drafts_visible_to_staff":      a.cfg.Submissions.DraftsVisibleToStaff,
		"transition_after_assigned":    a.cfg.Submissions.TransitionAfterAssigned,
		"determination_form_url":       a.cfg.Submissions.DeterminationFormURL,
		"request_roles":                roles(workflow.WorkflowRequest, "request"),
		"concept_roles":                roles(workflow.WorkflowConceptProposal, "concept"),
		"proposal_roles":               roles(workflow.WorkflowConceptProposal, "proposal"),
	}
	data, _ := json.Marshal(componentCfg)
	return data
}

func (a *App) startHTTP() {
	mux := http.NewServeMux()

	for _, comp := range a.components {
		if registrar, ok := comp.(httpRegistrar); ok {
			registrar.RegisterHTTPHandlers("/api/v1", mux)
		}
	}

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", a.handleHealth)

	a.httpServer = &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("HTTP server listening", "addr", a.cfg.HTTP.Addr)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	type componentHealth struct {
		Name    string `json:"name"`
		Status  string `json:"status"`
		Healthy bool   `json:"healthy"`
	}

	healthy := true
	statuses := make([]componentHealth, 0, len(a.components))
	for _, comp := range a.components {
		h := comp.Health()
		healthy = healthy && h.Healthy
		statuses = append(statuses, componentHealth{
			Name:    comp.Meta().Name,
			Status:  h.Status,
			Healthy: h.Healthy,
		})
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"healthy":    healthy,
		"components": statuses,
	})
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown(timeout time.Duration) {
	slog.Info("Shutting down")

	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := a.httpServer.Shutdown(ctx); err != nil {
			slog.Warn("HTTP server shutdown", "error", err)
		}
		cancel()
	}

	// Stop in reverse start order
	for i := len(a.components) - 1; i >= 0; i-- {
		comp := a.components[i]
		if err := comp.Stop(timeout); err != nil {
			slog.Warn("Component stop", "name", comp.Meta().Name, "error", err)
		}
	}

	if a.natsClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		a.natsClient.Close(ctx)
		cancel()
	}

	if a.embeddedServer != nil {
		a.embeddedServer.Shutdown()
		a.embeddedServer.WaitForShutdown()
	}

	slog.Info("Hypha shutdown complete")
}
