package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"decisio/api/internal/analysis"
	"decisio/api/internal/app"
	"decisio/api/internal/archive"
	"decisio/api/internal/auth"
	"decisio/api/internal/authpw"
	"decisio/api/internal/config"
	"decisio/api/internal/email"
	"decisio/api/internal/export"
	"decisio/api/internal/media"
	"decisio/api/internal/reconcile"
	"decisio/api/internal/records"
	"decisio/api/internal/search"
	"decisio/api/internal/session"
	"decisio/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	local, err := store.OpenLocal(cfg.DataDir)
	if err != nil {
		log.Fatalf("local store failed: %v", err)
	}
	defer local.Close()

	// The remote scope is optional: without DATABASE_URL the server
	// runs device-local, with auth and feedback disabled.
	var pg *store.PostgresStore
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()

		if err := store.ApplyMigrations(ctx, db); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		pg = store.NewPostgresStore(db)
	}

	deps := app.Deps{Prefs: local}

	var remote store.Backend
	if pg != nil {
		remote = pg
		deps.Users = pg
		deps.AuthPW = authpw.NewService(pg)

		broker := auth.NewBroker()
		defer broker.Close()
		deps.Broker = broker
	}

	ctrl := reconcile.New(local, remote)
	deps.Scopes = ctrl

	var analyzer analysis.Analyzer
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		analyzer = analysis.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		deps.Analyzer = analyzer
	} else {
		log.Printf("WARNING: OPENAI_API_KEY not set, analysis disabled")
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	var pgfts *search.PgFTS
	if pg != nil {
		pgfts = search.NewPgFTS(pg.DB())
	}
	searchService := search.NewService(meiliClient, pgfts)
	go searchService.ReindexAllFromPG(ctx)
	deps.Search = searchService

	recordStore := records.New(ctrl, analyzer)
	ctrl.Attach(recordStore)
	ctrl.Attach(searchService)
	if err := ctrl.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}
	deps.Records = recordStore

	if deps.Broker != nil {
		go ctrl.Run(ctx, deps.Broker.Subscribe())
	}

	// Refresh tokens live in Redis when available, otherwise Postgres.
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for refresh token storage")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		deps.Sessions = redisStore
	} else if pg != nil {
		log.Printf("Using PostgreSQL for refresh token storage")
		deps.Sessions = pg
	}

	if err := os.MkdirAll(cfg.ArchiveDir, 0o755); err != nil {
		log.Fatalf("failed to create archive dir: %v", err)
	}
	deps.Archive = archive.New(cfg.ArchiveDir)

	deps.Exporter = export.NewService()

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		mediaStore, err := media.New(ctx, media.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("media store failed: %v", err)
		}
		deps.Media = mediaStore
	}

	if cfg.SMTPHost != "" {
		deps.Emails = email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		})
	}

	service := app.New(cfg, deps)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Decisio API listening on %s", cfg.Addr)
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
