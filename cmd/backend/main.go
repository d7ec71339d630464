package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdulahaddf/seo-server/internal/server"
)

func main() {
	addr := getenvDefault("SEO_ADDR", ":5000")

	build := server.BuildInfo{
		Version: getenvDefault("SEO_VERSION", "dev"),
		Commit:  getenvDefault("SEO_COMMIT", "unknown"),
	}

	validator := server.NewConfigValidator()
	validator.ValidateEnvironment()
	if validator.HasErrors() {
		log.Printf("service=backend msg=%q\n%s", "invalid_configuration", validator.ErrorString())
		os.Exit(1)
	}

	// Document database: one client for the whole process. There is no
	// reconnect logic, so a failed setup is fatal.
	uri := getenvDefault("SEO_MONGO_URI", "")
	client, err := server.OpenMongo(uri)
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "mongo_connect_failed", err)
		os.Exit(1)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	db := client.Database(getenvDefault("SEO_DB_NAME", "SEOpage"))

	store, err := server.NewGridFSStore(db, getenvDefault("SEO_BUCKET", "files"))
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "gridfs_setup_failed", err)
		os.Exit(1)
	}

	idxCtx, idxCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer idxCancel()
	if err := store.EnsureIndexes(idxCtx); err != nil {
		log.Printf("service=backend msg=%q err=%v", "index_setup_failed", err)
		os.Exit(1)
	}

	users := db.Collection(getenvDefault("SEO_USERS_COLLECTION", "Users"))

	// Optional blob mirror to S3-compatible storage.
	backup, err := server.NewBackupManager(server.LoadBackupConfig(), store)
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "backup_setup_failed", err)
		os.Exit(1)
	}
	backup.Start()
	defer backup.Stop()

	srv := server.New(server.Config{
		Addr:   addr,
		Build:  build,
		Client: client,
		DB:     db,
		Store:  store,
		Users:  users,
	})

	// Start the HTTP server in a background goroutine so we can listen for
	// OS signals while it runs.
	errCh := make(chan error, 1)
	go func() {
		log.Printf("service=backend msg=%q addr=%s version=%s commit=%s",
			"starting", addr, build.Version, build.Commit)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Block until either a shutdown signal is received or the server errors.
	select {
	case sig := <-sigCh:
		log.Printf("service=backend msg=%q signal=%s", "shutting_down", sig.String())
		// Give the server 5 seconds to finish in-flight requests.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("service=backend msg=%q err=%v", "shutdown_error", err)
			os.Exit(1)
		}
		log.Printf("service=backend msg=%q", "shutdown_complete")
	case err := <-errCh:
		if err != nil {
			log.Printf("service=backend msg=%q err=%v", "server_error", err)
			os.Exit(1)
		}
	}
}

// getenvDefault reads an environment variable and returns a default value if
// not set.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
