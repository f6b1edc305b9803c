// Package server initializes and runs the DocVault server: catalog
// database, blob store, scratch directory, HTTP API and the maintenance
// job that sweeps artifacts, reconciles blobs and trims the audit log.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/docvault/internal/cryptox"
	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/server/auth"
	"github.com/dmitrijs2005/docvault/internal/server/config"
	httpapi "github.com/dmitrijs2005/docvault/internal/server/http"
	httpH "github.com/dmitrijs2005/docvault/internal/server/http/handlers"
	httpMW "github.com/dmitrijs2005/docvault/internal/server/http/middleware"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/docvault/internal/server/scratch"
	"github.com/dmitrijs2005/docvault/internal/server/services"
	"github.com/dmitrijs2005/docvault/internal/server/storage"
	"github.com/robfig/cron"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	sessions  auth.SessionStore
	scratch   *scratch.Dir
	documents *services.DocumentService
	audit     *services.AuditService
	server    *httpapi.Server
	closers   []io.Closer
}

// masterKey accepts a raw 32-byte key (hex or base64) and otherwise treats
// the configured value as a passphrase.
func masterKey(cfg *config.Config) ([]byte, error) {
	if cfg.EncryptionKey == "" {
		return nil, fmt.Errorf("encryption key is not configured")
	}
	if k, err := cryptox.ParseKey(cfg.EncryptionKey); err == nil {
		return k, nil
	}
	return cryptox.DeriveKey([]byte(cfg.EncryptionKey), []byte(cfg.EncryptionSalt)), nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendS3:
		return storage.NewS3Store(ctx, storage.S3Options{
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3RootUser,
			SecretKey:    cfg.S3RootPassword,
			BaseEndpoint: cfg.S3BaseEndpoint,
			Bucket:       cfg.S3Bucket,
		})
	default:
		return storage.NewFSStore(cfg.BlobDir)
	}
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, logCloser := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 30,
		Compress:   true,
	})
	app := &App{config: cfg, logger: logger, closers: []io.Closer{logCloser}}

	key, err := masterKey(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, db)

	rm := &repomanager.PostgresRepositoryManager{}
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	app.scratch, err = scratch.New(cfg.ScratchDir)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("scratch init error: %w", err)
	}

	if cfg.RedisAddr != "" {
		store, rdb, err := auth.NewRedisSessionStore(ctx, cfg.RedisAddr, cfg.AccessTokenValidityDuration)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		app.sessions = store
		app.closers = append(app.closers, rdb)
	} else {
		app.sessions = auth.NewMemorySessionStore(cfg.AccessTokenValidityDuration)
	}

	app.audit = services.NewAuditService(db, rm, logger)
	users := services.NewUserService(db, rm, app.sessions, app.audit, logger, cfg)
	categories := services.NewCategoryService(db, rm, app.audit, logger)
	tags := services.NewTagService(db, rm, app.audit, logger)
	app.documents = services.NewDocumentService(db, rm, blobs, app.scratch, key, app.audit, logger, cfg)

	if cfg.AdminPassword != "" {
		if err := users.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			app.Close()
			return nil, fmt.Errorf("admin bootstrap failed: %w", err)
		}
	}

	app.server = httpapi.NewServer(cfg.HTTPAddr, httpapi.RouterConfig{
		Logger:          logger,
		AuthMiddleware:  httpMW.NewAuthMiddleware(logger, []byte(cfg.SecretKey), app.sessions),
		AuthHandler:     httpH.NewAuthHandler(users, app.sessions, logger, cfg.AccessTokenValidityDuration, cfg.SecureCookies),
		DocumentHandler: httpH.NewDocumentHandler(app.documents, app.scratch, logger, cfg.MaxUploadSize),
		CategoryHandler: httpH.NewCategoryHandler(categories),
		TagHandler:      httpH.NewTagHandler(tags),
		LogHandler:      httpH.NewLogHandler(app.audit),
		HealthCheck:     httpH.HealthCheck(db),
	})

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// maintain runs one pass of the maintenance job. Each step logs its own
// failure and does not stop the others.
func (app *App) maintain(ctx context.Context) {
	if n, err := app.scratch.Sweep(app.config.ArtifactMaxAge); err != nil {
		app.logger.Error(ctx, "artifact sweep failed", "removed", n, "error", err)
	} else if n > 0 {
		app.logger.Info(ctx, "expired artifacts removed", "removed", n)
	}

	if _, err := app.documents.Reconcile(ctx); err != nil {
		app.logger.Error(ctx, "blob reconciliation failed", "error", err)
	}

	if app.config.LogRetention > 0 {
		if n, err := app.audit.PurgeBefore(ctx, app.config.LogRetention); err != nil {
			app.logger.Error(ctx, "audit log purge failed", "error", err)
		} else if n > 0 {
			app.logger.Info(ctx, "audit log entries purged", "purged", n)
		}
	}
}

func (app *App) startScheduler(ctx context.Context) error {
	c := cron.New()
	if err := c.AddFunc("@every "+app.config.SweepInterval.String(), func() { app.maintain(ctx) }); err != nil {
		return fmt.Errorf("scheduler init error: %w", err)
	}
	c.Start()
	app.logger.Info(ctx, "Maintenance scheduler started", "interval", app.config.SweepInterval.String())

	<-ctx.Done()
	c.Stop()
	app.logger.Info(ctx, "Maintenance scheduler stopped")
	return nil
}

// Run serves until a termination signal arrives or a component fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.Close()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	// leftovers from a previous run
	app.maintain(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.server.Run(gctx)
	})
	g.Go(func() error {
		return app.startScheduler(gctx)
	})

	err := g.Wait()
	app.logger.Info(ctx, "App stopped")
	return err
}

func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		_ = app.closers[i].Close()
	}
	app.closers = nil
}
