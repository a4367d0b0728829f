package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/apex/log"

	"github.com/a3tai/capture-report/internal/app"
	"github.com/a3tai/capture-report/internal/config"
	"github.com/a3tai/capture-report/internal/mcp"
	"github.com/a3tai/capture-report/internal/report"
	"github.com/a3tai/capture-report/internal/web"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// runner is served until its context ends.
type runner interface {
	Run(ctx context.Context) error
}

func main() {
	cfg, err := config.LoadFromFlags()
	if errors.Is(err, config.ErrVersionRequested) {
		printVersion()
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(2)
	}

	if version != "dev" {
		cfg.Version = version
	}

	app.SetupLogging(cfg, os.Stderr)
	log.WithField("config", cfg.String()).Debug("starting")

	if err := run(cfg); err != nil {
		log.WithError(err).Error("capture-report stopped")
		if !cfg.IsStdioMode() || cfg.IsDebug() {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	service, closeService, err := app.NewService(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeService(); err != nil {
			log.WithError(err).Warn("failed to close draft store")
		}
	}()

	srv, err := newRunner(cfg, service)
	if err != nil {
		return err
	}

	// In stdio mode the parent process controls our lifecycle; signals only
	// matter for the listening modes.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func newRunner(cfg *config.Config, service *report.Service) (runner, error) {
	if cfg.IsWebMode() {
		return web.NewServer(cfg, service)
	}
	return mcp.NewServer(cfg, service)
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("Capture Report\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
