package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"lagmon/internal/config"
	"lagmon/internal/database"
	"lagmon/internal/logger"
	"lagmon/internal/metrics"
	"lagmon/internal/monitor"
	"lagmon/internal/ping"
	"lagmon/internal/web"
)

const shutdownTimeout = 5 * time.Second

func runCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start probing and serve the API",
		Long: `Start the monitor. Targets come from the config file (diagram slots and the
targets list) plus any --targets given on the command line. Targets added or
changed through the API are written back to the config file.

The HTTP API listens on --port; /metrics exposes Prometheus metrics and
/api/events streams live updates over a websocket.`,
		Args: cobra.NoArgs,
		RunE: runMonitor,
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runMonitor(cmd *cobra.Command, args []string) error {
	log := logger.New("[lagmon]")

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadOrDefault(configPath, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	specs, err := cfg.TargetSpecs()
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	writer := database.NewWriter(db, database.WriterOptions{Logger: logger.New("[history]")})
	defer func() {
		if err := writer.Close(); err != nil {
			log.Error("Failed to flush history: %v", err)
		}
	}()

	journal, err := database.NewJournal(db, logger.New("[outages]"))
	if err != nil {
		return fmt.Errorf("failed to open outage journal: %w", err)
	}

	prober, err := ping.New(ping.Options{
		Method:     cfg.Probe.Method,
		Privileged: cfg.Probe.Privileged,
		TCPPort:    cfg.Probe.TCPPort,
	})
	if err != nil {
		return err
	}

	mon, err := monitor.New(monitor.Options{
		Interval:           cfg.Interval,
		Timeout:            cfg.Timeout,
		Window:             cfg.Window,
		LossRatioThreshold: cfg.LossRatioThreshold,
		MaxConcurrent:      cfg.MaxConcurrent,
		RetentionDays:      cfg.RetentionDays,
		Prober:             prober,
		Sink:               writer,
		Maintainer:         db,
		Persister:          config.NewFileStore(configPath, cfg),
		Logger:             logger.New("[monitor]"),
	})
	if err != nil {
		return err
	}

	collector := metrics.New()
	mon.Subscribe("metrics", collector.HandleEvent)
	mon.Subscribe("outages", journal.HandleEvent)

	if err := mon.Load(specs); err != nil {
		return err
	}

	server := web.New(web.Options{
		Port:    cfg.Port,
		Engine:  mon,
		DB:      db,
		Metrics: collector.Handler(),
		Logger:  logger.New("[web]"),
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mon.Start(); err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}
	log.Info("Web interface available at http://localhost:%d", cfg.Port)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	mon.Stop()
	mon.Wait()
	return err
}
