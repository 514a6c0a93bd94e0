/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the progress engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (env + optional app.env)
  2. Initialize SQLite store
  3. Load the content catalog (built-in or from file)
  4. Wire the engine, and the remote client/reconciler/backup when a
     remote base URL is configured
  5. Configure HTTP router
  6. Start server with graceful shutdown

CONFIGURATION (environment variables, see config/config.go):
  PORT              HTTP server port (default: 8080)
  DB_PATH           SQLite database path (default: progress.db)
                    Use ":memory:" for in-memory database
  CATALOG_PATH      Optional catalog YAML; empty uses the built-in catalog
  REMOTE_BASE_URL   Completion API base URL; empty runs local-only
  REMOTE_RETRIES    Remote write retry budget
  REMOTE_BACKOFF    Base delay between remote retries
  BACKUP_RETENTION  Snapshots kept per learner

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumikids/progress-engine/api"
	"github.com/lumikids/progress-engine/catalog"
	"github.com/lumikids/progress-engine/config"
	"github.com/lumikids/progress-engine/engine"
	"github.com/lumikids/progress-engine/ledger"
	"github.com/lumikids/progress-engine/store/sqlite"
	"github.com/lumikids/progress-engine/syncer"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Content catalog
	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		cat, err = catalog.Load(cfg.CatalogPath)
		if err != nil {
			log.Fatalf("Failed to load catalog from %s: %v", cfg.CatalogPath, err)
		}
	}

	// Remote client is optional: no base URL means local-only operation.
	var remote ledger.RemoteAPI
	if cfg.RemoteBaseURL != "" {
		client := syncer.NewClient(cfg.RemoteBaseURL)
		client.Retries = cfg.RemoteRetries
		client.Backoff = cfg.RemoteBackoff
		remote = client
	}

	eng := engine.New(store, cat, remote)
	eng.RemoteRetries = cfg.RemoteRetries
	eng.RetryBackoff = cfg.RemoteBackoff

	var reconciler *syncer.Reconciler
	var backup *syncer.Backup
	if remote != nil {
		reconciler = syncer.NewReconciler(eng, store, remote)
		backup = syncer.NewBackup(store, remote)
		backup.MaxSnapshots = cfg.BackupRetention
	}

	// Create router
	handler := api.NewHandler(eng, reconciler, backup)
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.Port)
		if cfg.RemoteBaseURL == "" {
			log.Printf("No remote configured; running local-only")
		}
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
