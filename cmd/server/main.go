/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load config (file, .env, HRMS_* env)
  2. Build the zap logger
  3. Initialize SQLite store with the configured leave policy
  4. Wire notification and audit sinks (Kafka when enabled, else logs)
  5. Create API handler and router
  6. Start the rollover scheduler (when enabled)
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to a YAML config file (optional)
  -port    HTTP server port (overrides server.port)
  -db      SQLite database path (overrides db.path)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the rollover scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Deliver queued notifications within the same timeout
  5. Close the Kafka writer and database connection

EXAMPLES:
  ./server -db="./data/leave.db"
  ./server -db=":memory:" -port=3000
  HRMS_KAFKA_ENABLED=true HRMS_KAFKA_BROKERS=localhost:9092 ./server

SEE ALSO:
  - config/config.go: Every setting and its default
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/logger"
	"github.com/warp/leave-engine/sink"
	"github.com/warp/leave-engine/store/sqlite"
	"go.uber.org/zap"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "Path to a YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	policy := cfg.LeavePolicy()

	// Initialize store
	store, err := sqlite.Open(cfg.Database.Path, policy)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	// Sinks
	var notifier leave.Notifier = sink.NewLog(log)
	if cfg.Kafka.Enabled {
		writer := sink.NewKafkaWriter(cfg.Kafka.Brokers)
		defer writer.Close()
		notifier = sink.NewKafka(writer, cfg.Kafka.Topic)
		log.Info("kafka notifications enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	audit := sink.MultiAudit{store, sink.NewLogAudit(log)}

	// Initialize handler
	handler := api.NewHandler(store, leave.NewCalculator(policy), log,
		leave.WithNotifier(notifier),
		leave.WithAuditSink(audit),
	)

	// Create router
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.CORS.AllowOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		RateLimitRPS:   cfg.Server.RateLimit.RPS,
		RateLimitBurst: cfg.Server.RateLimit.Burst,
		Logger:         log,
		DisableLedger:  !cfg.Ledger.Enabled,
		LedgerToken:    cfg.Ledger.Token,
	})
	if cfg.Ledger.Enabled && cfg.Ledger.Token == "" {
		log.Warn("ledger endpoints are open; set ledger.token to require X-Ledger-Token")
	}

	if cfg.Rollover.Enabled {
		scheduler, err := api.NewRolloverScheduler(handler.Rollover, cfg.Rollover.Schedule, log)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("db", cfg.Database.Path),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if err := handler.Workflow.Flush(ctx); err != nil {
		log.Warn("pending notifications not delivered", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}
