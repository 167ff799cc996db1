package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"capnote/api/internal/aistream"
	"capnote/api/internal/app"
	"capnote/api/internal/auth"
	"capnote/api/internal/blob"
	"capnote/api/internal/config"
	"capnote/api/internal/export"
	"capnote/api/internal/gitrepo"
	"capnote/api/internal/search"
	"capnote/api/internal/session"
	"capnote/api/internal/store"
)

func main() {
	if len(os.Args) == 3 && os.Args[1] == "hash-secret" {
		hash, err := auth.HashSecret(os.Args[2])
		if err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	db, dataStore := openStore(ctx, cfg)
	defer db.Close()

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		log.Fatalf("failed to create repos dir: %v", err)
	}
	gitService := gitrepo.New(cfg.ReposDir)

	var fallback search.Searcher = search.NewLike(db)
	if dataStore.Dialect() == store.DialectPostgres {
		fallback = search.NewPgFTS(db)
	}
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, fallback)
	go searchService.ReindexFromDB(ctx, db)

	var drafts session.Store
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for drafts and token revocation")
		redisStore, err := session.NewRedisStore(cfg.RedisURL, cfg.DraftTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		drafts = redisStore
	} else {
		log.Printf("Using process memory for drafts and token revocation")
		drafts = session.NewMemoryStore(cfg.DraftTTL)
	}

	deps := app.Deps{
		Store:   dataStore,
		Drafts:  drafts,
		History: gitService,
		Search:  searchService,
		Export:  export.NewService(export.Options{ChromePath: cfg.ChromePath, PandocPath: cfg.PandocPath}),
		AI: aistream.NewGateway(aistream.GatewayConfig{
			BaseURL: cfg.AIBaseURL,
			APIKey:  cfg.AIAPIKey,
			Model:   cfg.AIModel,
			Timeout: cfg.AITimeout,
		}),
	}

	blobStore, err := blob.New(blob.Config{
		Endpoint:  cfg.BlobEndpoint,
		AccessKey: cfg.BlobAccessKey,
		SecretKey: cfg.BlobSecretKey,
		Bucket:    cfg.BlobBucket,
		UseSSL:    cfg.BlobUseSSL,
	})
	switch {
	case errors.Is(err, blob.ErrNotConfigured):
		log.Printf("Blob storage disabled; exports are returned inline only")
	case err != nil:
		log.Fatalf("blob storage: %v", err)
	default:
		if err := blobStore.EnsureBucket(ctx); err != nil {
			log.Printf("WARNING: blob bucket unavailable, export uploads disabled: %v", err)
		} else {
			deps.Blobs = blobStore
		}
	}

	service := app.New(cfg, deps)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Export renders through a headless browser; AI streams hijack the connection.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Capnote API listening on %s (store=%s)", cfg.Addr, cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func openStore(ctx context.Context, cfg config.Config) (*sql.DB, *store.SQLStore) {
	var (
		db        *sql.DB
		dataStore *store.SQLStore
		dialect   store.Dialect
		err       error
	)
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			log.Fatalf("failed to create sqlite dir: %v", err)
		}
		db, err = store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			log.Fatalf("sqlite open failed: %v", err)
		}
		dataStore, dialect = store.NewSQLiteStore(db), store.DialectSQLite
	default:
		db, err = store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		dataStore, dialect = store.NewPostgresStore(db), store.DialectPostgres
	}

	var migrations fs.FS = store.Migrations(dialect)
	if cfg.MigrationsDir != "" {
		migrations = os.DirFS(cfg.MigrationsDir)
	}
	if err := store.ApplyMigrations(ctx, db, dialect, migrations); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}
	return db, dataStore
}
