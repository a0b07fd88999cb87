// Package main provides the hypha binary entry point.
// Hypha is a grant application workflow service: submissions move
// through configurable phase graphs with guarded transitions,
// reviewer coordination, and determinations.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyphaapp/hypha/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "hypha"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		httpAddr   string
	)

	cmd := &cobra.Command{
		Use:   "hypha",
		Short: "Grant application workflow service",
		Long: `Hypha runs the grant application workflow engine as an HTTP service.

It provides:
- Submission lifecycle: guarded phase transitions through staged workflows
- Reviewer coordination with role slots and automatic phase advancement
- Determinations that resolve submissions to accepted or rejected
- A per-submission activity feed built from domain events

State lives in NATS JetStream; components communicate over the
submission event stream.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, logLevel, httpAddr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (overrides config)")

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func run(configPath, logLevel, httpAddr string) error {
	printBanner()

	// Configure logging
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	app, err := NewApp(cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	return app.Run()
}

// loadConfig resolves configuration: an explicit file wins, otherwise
// the layered loader walks user and project config locations.
func loadConfig(configPath string, logger *slog.Logger) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.NewLoader(logger).Load()
}

func printBanner() {
	fmt.Println("╔═══════════════════════════════════════════════╗")
	fmt.Println("║              Hypha v" + Version + "                      ║")
	fmt.Println("║      Grant Application Workflow Service       ║")
	fmt.Println("╚═══════════════════════════════════════════════╝")
}
