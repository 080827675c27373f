// Copyright 2025 James Ross
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flyingrobots/pigtrack/internal/approvalapi"
	"github.com/flyingrobots/pigtrack/internal/breaker"
	"github.com/flyingrobots/pigtrack/internal/config"
	"github.com/flyingrobots/pigtrack/internal/detector"
	"github.com/flyingrobots/pigtrack/internal/engine"
	"github.com/flyingrobots/pigtrack/internal/migrations"
	"github.com/flyingrobots/pigtrack/internal/obs"
	"github.com/flyingrobots/pigtrack/internal/outbox"
	"github.com/flyingrobots/pigtrack/internal/refdata"
	"github.com/flyingrobots/pigtrack/internal/sender"
	"github.com/flyingrobots/pigtrack/internal/statestore"
	"github.com/flyingrobots/pigtrack/internal/telemetrystore"
	_ "github.com/lib/pq"
)

var version = "dev"

func main() {
	var role string
	var configPath string
	var refdataCSVDir string
	var showVersion bool
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&role, "role", "all", "Role to run: detector|sender|approval-api|all|migrate")
	fs.StringVar(&configPath, "config", "config/config.yaml", "Path to YAML config")
	fs.StringVar(&refdataCSVDir, "refdata-csv-dir", "", "Directory containing GCtoKP.csv/POI.csv/GAP.csv; when unset reference data is loaded from Postgres")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	_ = fs.Parse(os.Args[1:])

	if showVersion {
		fmt.Println(version)
		return
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// Setup logging
	logger, err := obs.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := openDB(cfg)
	if err != nil {
		logger.Fatal("failed to open database", obs.Err(err))
	}
	defer db.Close()

	if err := migrations.Apply(db); err != nil {
		logger.Fatal("failed to apply migrations", obs.Err(err))
	}
	if role == "migrate" {
		logger.Info("migrations applied")
		return
	}

	// Setup tracing (optional)
	tp, err := obs.MaybeInitTracing(cfg)
	if err != nil {
		logger.Warn("tracing init failed", obs.Err(err))
	}
	if tp != nil {
		defer func() { _ = obs.TracerShutdown(context.Background(), tp) }()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("signal received, shutting down", obs.String("signal", sig.String()))
		cancel()
		// If a second signal arrives, force exit
		select {
		case sig2 := <-sigCh:
			logger.Warn("second signal received, exiting immediately", obs.String("signal", sig2.String()))
			os.Exit(1)
		case <-time.After(5 * time.Second):
		}
	}()

	// HTTP server: metrics, healthz, readyz
	readyCheck := func(c context.Context) error { return db.PingContext(c) }
	httpSrv := obs.StartHTTPServer(cfg, readyCheck)
	defer func() { _ = httpSrv.Shutdown(context.Background()) }()

	obs.StartOutboxBacklogSampler(ctx, cfg, db, logger)

	ref, err := loadReferenceData(db, refdataCSVDir)
	if err != nil {
		logger.Fatal("failed to load reference data", obs.Err(err))
	}

	telemetry := telemetrystore.NewPostgresStore(db)
	states := statestore.NewPostgresStore(db)
	out := outbox.NewPostgresStore(db)

	runDetector := role == "detector" || role == "all"
	runSender := role == "sender" || role == "all"
	runApprovalAPI := role == "approval-api" || role == "all"

	if runDetector {
		eng := engine.New(engineConfig(cfg.Engine))
		det := detector.New(eng, ref, telemetry, states, out, cfg.Detector.PollInterval, cfg.Detector.ActiveLookback, cfg.Engine.DefaultToolType, logger)
		go det.Run(ctx)
	}

	if runSender {
		cb := breaker.New(cfg.CircuitBreaker.Window, cfg.CircuitBreaker.CooldownPeriod, cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.MinSamples)
		for i := 0; i < cfg.Sender.Workers; i++ {
			w := sender.New(fmt.Sprintf("sender-%d", i), out, cb, cfg.Sender, logger)
			go w.Run(ctx)
		}
		go sender.RunReclaimSweep(ctx, out, cfg.Sender, logger)
	}

	var approvalSrv *approvalapi.Server
	if runApprovalAPI {
		approvalSrv = approvalapi.New(out, cfg.ApprovalAPI.ListenAddr, logger)
		go func() {
			if err := approvalSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("approval api server error", obs.Err(err))
				cancel()
			}
		}()
	}

	if !runDetector && !runSender && !runApprovalAPI {
		logger.Fatal("unknown role", obs.String("role", role))
	}

	<-ctx.Done()
	if approvalSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = approvalSrv.Shutdown(shutdownCtx)
	}
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func loadReferenceData(db *sql.DB, csvDir string) (refdata.ReferenceData, error) {
	if csvDir != "" {
		return refdata.LoadCSV(csvDir)
	}
	return refdata.LoadPostgres(db)
}

func engineConfig(c config.Engine) engine.Config {
	return engine.Config{
		MetersPerChannel:  c.MetersPerChannel,
		POITolMeters:      c.POITolMeters,
		StoppedWindow:     c.StoppedWindow,
		PrePOIWindow:      c.PrePOIWindow,
		SpeedWindowLong:   c.SpeedWindowLong,
		SpeedWindowShort:  c.SpeedWindowShort,
		MovingBoost:       c.MovingBoost,
		MinSpeedDt:        c.MinSpeedDt,
		SpeedSearchWindow: c.SpeedSearchWindow,
		DefaultToolType:   c.DefaultToolType,
	}
}
