// Package main provides the raveforest service entry point.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	oscapi "github.com/osa030/raveforest/internal/api/osc"
	"github.com/osa030/raveforest/internal/api/status"
	"github.com/osa030/raveforest/internal/app/controller"
	"github.com/osa030/raveforest/internal/app/filter"
	"github.com/osa030/raveforest/internal/infra/config"
	"github.com/osa030/raveforest/internal/infra/logger"
	"github.com/osa030/raveforest/internal/infra/samples"
)

var (
	app        = kingpin.New("raveforest", "OSC-triggered sample playback service")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")

	// list-samples command
	listSamplesCmd = app.Command("list-samples", "List the samples of the configured directory and exit")
)

func init() {
	app.Command("start", "Start the service (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logCloser.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if command == listSamplesCmd.FullCommand() {
		if err := printSamples(cfg.Samples.Dir); err != nil {
			zlog.Fatal().Msgf("Failed to list samples: %v", err)
		}
		return
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		logCloser.Close()
		os.Exit(1)
	}
}

// run executes the main server logic. Deferred calls run on every return path.
func run(cfg *config.Config) error {
	ctrl, err := controller.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ctrl.Run(ctx); err != nil {
		return fmt.Errorf("failed to prepare samples: %w", err)
	}

	dispatcher, err := oscapi.NewDispatcher(ctrl, ctrl, oscapi.Config{
		StartAddresses: cfg.OSC.StartAddresses,
		StopAddresses:  cfg.OSC.StopAddresses,
		QueueSize:      cfg.OSC.QueueSize,
	})
	if err != nil {
		return fmt.Errorf("failed to create osc dispatcher: %w", err)
	}

	conn, err := net.ListenPacket("udp", cfg.Server.OSCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.OSCAddr, err)
	}

	errCh := make(chan error, 2)
	oscDone := make(chan struct{})
	go func() {
		defer close(oscDone)
		if err := dispatcher.Serve(ctx, conn); err != nil {
			errCh <- fmt.Errorf("osc server: %w", err)
		}
	}()

	// Status API with h2c (HTTP/2 cleartext) support
	var server *http.Server
	if cfg.Server.HTTPAddr != "" {
		server = &http.Server{
			Addr:    cfg.Server.HTTPAddr,
			Handler: h2c.NewHandler(status.NewHandler(ctrl), &http2.Server{}),
		}
		go func() {
			zlog.Info().Msgf("Starting status API: addr=%s", cfg.Server.HTTPAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("status api: %w", err)
			}
		}()
	}

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case runErr = <-errCh:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()

	// Stop taking requests before fading out the sessions
	cancel()
	<-oscDone
	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			zlog.Error().Msgf("Failed to shutdown status API: %v", err)
		}
	}

	if err := ctrl.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown controller: %v", err)
	}

	zlog.Info().Msg("Server stopped")
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return runErr
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	for _, name := range filter.RegisteredNames() {
		f := filter.GetRegistered()[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-24s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// printSamples prints the samples found in dir.
func printSamples(dir string) error {
	names, err := samples.List(dir)
	if err != nil {
		return err
	}
	fmt.Printf("Samples in %s:\n", dir)
	for _, name := range names {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
