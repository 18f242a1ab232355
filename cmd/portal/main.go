package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/internal/catalog"
	"github.com/paulexconde/camperportal/internal/config"
	"github.com/paulexconde/camperportal/internal/database/postgres"
	"github.com/paulexconde/camperportal/internal/database/redis"
	"github.com/paulexconde/camperportal/internal/event"
	"github.com/paulexconde/camperportal/internal/filestore"
	"github.com/paulexconde/camperportal/internal/handlers"
	"github.com/paulexconde/camperportal/internal/identity"
	"github.com/paulexconde/camperportal/internal/pkg/logger"
	"github.com/paulexconde/camperportal/internal/pkg/workerpool"
	"github.com/paulexconde/camperportal/internal/repository"
	"github.com/paulexconde/camperportal/internal/services"
	"github.com/spf13/pflag"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	flagSet := pflag.NewFlagSet("portal", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "optional YAML file overlaying the environment")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cleanups []func()
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	store, provider, err := setupStore(ctx, cfg, log, &cleanups)
	if err != nil {
		return err
	}

	provider, err = setupCatalogCache(cfg, provider, log, &cleanups)
	if err != nil {
		return err
	}

	objects, err := setupObjects(ctx, cfg, log)
	if err != nil {
		return err
	}

	publisher, err := setupPublisher(cfg, log, &cleanups)
	if err != nil {
		return err
	}

	// Workers outlive the request context so queued events drain on shutdown.
	pool := workerpool.NewWorkerPool(context.Background(), cfg.Workers.Count, cfg.Workers.QueueSize, log)

	deps := services.Deps{
		Store:                store,
		Catalog:              provider,
		Notifier:             services.NewStatusNotifier(pool, publisher, log),
		Objects:              objects,
		Log:                  log,
		FileBatchConcurrency: cfg.Review.FileBatchConcurrency,
		MaxFileSize:          cfg.Review.MaxFileSize,
		AllowedFileTypes:     cfg.Review.AllowedFileTypes,
	}

	app := handlers.NewApp(handlers.RouterDeps{
		Applications:  services.NewApplicationService(deps),
		Approvals:     services.NewApprovalService(deps),
		Files:         services.NewFileService(deps),
		Reviews:       services.NewReviewService(deps),
		Verifier:      identity.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		PaymentAPIKey: cfg.Server.APIKey,
		BodyLimit:     cfg.Server.BodyLimit,
		Log:           log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("portal listening", "port", cfg.Server.Port, "store", cfg.Store.Driver)
		errCh <- app.Listen(":" + cfg.Server.Port)
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
		if serveErr != nil {
			log.Error("server stopped", "error", serveErr)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	pool.Shutdown(shutdownCtx)
	return serveErr
}

func setupStore(ctx context.Context, cfg *config.PortalConfig, log *logger.Logger, cleanups *[]func()) (repository.Store, services.CatalogProvider, error) {
	if cfg.Store.Driver == "memory" {
		sections, err := catalog.LoadFile(cfg.Catalog.File)
		if err != nil {
			return nil, nil, err
		}
		if err := services.ValidateCatalog(sections); err != nil {
			return nil, nil, fmt.Errorf("catalog %s: %w", cfg.Catalog.File, err)
		}

		store := repository.NewMemoryStore()
		for _, raw := range cfg.Store.DevAdminIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid DEV_ADMIN_IDS entry %q: %w", raw, err)
			}
			store.AddAdmin(id)
		}
		log.Warn("using the in-memory store, data is lost on restart")
		return store, catalog.NewStaticProvider(sections), nil
	}

	db, err := postgres.Connect(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, nil, err
	}
	*cleanups = append(*cleanups, func() { _ = db.Close() })

	return repository.NewPostgresStore(db, log), catalog.NewPostgresProvider(db), nil
}

func setupCatalogCache(cfg *config.PortalConfig, provider services.CatalogProvider, log *logger.Logger, cleanups *[]func()) (services.CatalogProvider, error) {
	if cfg.Redis.Host == "" {
		return provider, nil
	}

	client, err := redis.NewRedisClient(cfg.Redis)
	if err != nil {
		return nil, err
	}
	*cleanups = append(*cleanups, func() { _ = client.Close() })

	log.Info("catalog cache enabled", "ttl", cfg.Redis.CacheTTL)
	return catalog.NewCachedProvider(provider, client.GetClient(), cfg.Redis.CacheTTL, log), nil
}

func setupObjects(ctx context.Context, cfg *config.PortalConfig, log *logger.Logger) (services.ObjectStore, error) {
	if cfg.Minio.Endpoint == "" {
		log.Warn("object storage disabled, serving file urls from a static base", "base_url", cfg.Minio.StaticBaseURL)
		return filestore.NewStaticStore(cfg.Minio.StaticBaseURL), nil
	}
	return filestore.NewMinioStore(ctx, cfg.Minio, log)
}

func setupPublisher(cfg *config.PortalConfig, log *logger.Logger, cleanups *[]func()) (services.StatusPublisher, error) {
	if cfg.RabbitMQ.Host == "" {
		log.Warn("rabbitmq disabled, status changes are only logged")
		return event.NewLogPublisher(log), nil
	}

	conn, err := event.ConnectRabbitMQ(cfg.RabbitMQ, log)
	if err != nil {
		return nil, err
	}
	*cleanups = append(*cleanups, func() { _ = conn.Close() })

	return event.NewAMQPPublisher(conn, cfg.RabbitMQ.Exchange, log), nil
}
