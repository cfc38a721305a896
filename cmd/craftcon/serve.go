package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/energizer-project/craftcon/internal/api"
	"github.com/energizer-project/craftcon/internal/client"
	"github.com/energizer-project/craftcon/internal/config"
	"github.com/energizer-project/craftcon/internal/db"
	"github.com/energizer-project/craftcon/internal/events"
	"github.com/energizer-project/craftcon/internal/monitor"
	"github.com/energizer-project/craftcon/internal/notify"
	"github.com/energizer-project/craftcon/internal/scheduler"
	"github.com/energizer-project/craftcon/internal/telemetry"
	"github.com/energizer-project/craftcon/internal/util"
)

// auditRetention bounds the command audit table.
const auditRetention = 30 * 24 * time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, monitor and scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}

	log.Info().
		Str("version", Version).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Msg("starting craftcon")

	if err := validateOrSetup(cfg); err != nil {
		return err
	}

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("threads", sysInfo.CPUThreads).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eventBus := events.NewEventBus()
	ad := cfg.GetApplicationData()

	store, err := db.Open(ad.Security.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()
	store.SubscribeAudit(eventBus)
	pruneAudit(store)

	if !ad.Security.AuthDisabled {
		if tokens, err := store.ListTokens(); err == nil && len(tokens) == 0 {
			log.Warn().Msg("no API tokens exist yet, create one with \"craftcon token create --role admin <label>\"")
		}
	}

	open := client.Opener(cfg.GetRconData().ClientOptions())

	healthMgr := monitor.NewManager(cfg, eventBus, open)
	sched := scheduler.NewScheduler(cfg, eventBus, open)
	discord := notify.NewDiscord(cfg, eventBus)
	if discord.Enabled() {
		log.Info().Msg("Discord notifications enabled")
	}

	apiServer := api.NewServer(cfg, eventBus, open, Version)
	apiServer.SetDependencies(store, healthMgr, sched)

	var mqttHandler *telemetry.MQTTHandler
	if ad.MQTT.Enabled {
		mqttHandler, err = telemetry.NewMQTTHandler(cfg, eventBus, Version)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := startWithRetry(ctx, "API server", apiServer.Start, 5); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting monitor")
		healthMgr.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting scheduler")
		sched.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pruneAudit(store)
			}
		}
	}()

	if mqttHandler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("starting MQTT telemetry")
			if err := mqttHandler.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("received shutdown signal")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("critical error, initiating shutdown")
	}

	log.Info().Msg("initiating graceful shutdown...")
	eventBus.EmitSync(context.Background(), events.Event{Type: events.EventShutdown, Source: "main"})
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("shutdown timed out after 30 seconds, forcing exit")
	}

	eventBus.Stop()
	log.Info().Msg("craftcon stopped")
	return runErr
}

// validateOrSetup logs validation results. On a first run with a terminal
// attached it launches the setup wizard instead of failing.
func validateOrSetup(cfg *config.Config) error {
	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if validation.IsValid() {
		return nil
	}

	for _, e := range validation.Errors {
		log.Error().Str("field", e.Field).Msg(e.Message)
	}
	if cfg.IsFirstRun() && isTerminal(os.Stdin) {
		log.Info().Msg("first run detected, launching setup wizard")
		return config.RunSetupWizard(cfg)
	}
	return fmt.Errorf("configuration validation failed, fix the errors above or run \"craftcon setup\"")
}

// startWithRetry retries startFn on failure, which is almost always a port
// still held by a previous process.
func startWithRetry(ctx context.Context, name string, startFn func(context.Context) error, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = startFn(ctx)
		if lastErr == nil {
			return nil
		}
		if i < maxRetries {
			log.Warn().Err(lastErr).Str("component", name).Int("retry", i+1).Int("max", maxRetries).Msg("start failed, retrying in 3s...")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
		}
	}
	return lastErr
}

func pruneAudit(store *db.Database) {
	n, err := store.PruneCommands(auditRetention)
	if err != nil {
		log.Warn().Err(err).Msg("failed to prune command audit")
		return
	}
	if n > 0 {
		log.Info().Int64("removed", n).Msg("pruned old command audit entries")
	}
}
