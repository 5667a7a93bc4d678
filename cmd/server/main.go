/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the debt ledger engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and optional TOML config
  2. Initialize SQLite store
  3. Wire the ledger service and rule engines
  4. Start the background rule scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to TOML config file (optional)
  -port    HTTP server port (overrides config, default: 8080)
  -db      SQLite database path (overrides config, default: ledger.db)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the rule scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/ledger.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run with TOML config
  ./server -config=ledger.toml

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Background rule engine ticks
  - config/config.go: TOML config layout
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledgerline/debt-engine/api"
	"github.com/ledgerline/debt-engine/autolock"
	"github.com/ledgerline/debt-engine/config"
	"github.com/ledgerline/debt-engine/contract"
	"github.com/ledgerline/debt-engine/incentive"
	"github.com/ledgerline/debt-engine/interest"
	"github.com/ledgerline/debt-engine/ledger"
	"github.com/ledgerline/debt-engine/split"
	"github.com/ledgerline/debt-engine/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "Path to TOML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	// Config, with flags taking precedence over the file
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}

	tickInterval, err := cfg.TickInterval()
	if err != nil {
		log.Fatalf("Invalid tick interval: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Ledger service and rule engines
	svc := ledger.NewService(store).
		WithNotifier(ledger.LogNotifier{}).
		WithMutationObserver(api.ObserveMutation)

	interestEngine := interest.NewEngine(store, svc)
	contractScheduler := contract.NewScheduler(store, svc)
	incentiveCalc := incentive.NewCalculator(store, svc)
	splitAllocator := split.NewAllocator(store, svc)
	autolockEngine := autolock.New(svc, autolock.Config{
		Enabled:         cfg.AutoLock.Enabled,
		ThresholdDays:   cfg.AutoLock.ThresholdDays,
		ThresholdAmount: ledger.NewMoney(cfg.AutoLock.ThresholdAmount),
	})

	// Background scheduler
	scheduler := api.NewRuleScheduler(autolockEngine, interestEngine, contractScheduler)
	scheduler.TickInterval = tickInterval
	scheduler.Enabled = cfg.Engines.Enabled
	scheduler.Start()
	defer scheduler.Stop()

	// HTTP
	handler := api.NewHandler(svc, interestEngine, contractScheduler, incentiveCalc, splitAllocator, scheduler)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", cfg.Server.Port)
		log.Printf("📊 API available at http://localhost:%d/api", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
