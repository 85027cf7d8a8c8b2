// Package server wires the gallery selection services to their backends and
// runs the HTTP API and the gRPC health endpoint until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/logging"
	"github.com/dmitrijs2005/galleryselect/internal/server/api"
	"github.com/dmitrijs2005/galleryselect/internal/server/config"
	"github.com/dmitrijs2005/galleryselect/internal/server/docstore"
	"github.com/dmitrijs2005/galleryselect/internal/server/locks"
	"github.com/dmitrijs2005/galleryselect/internal/server/migrations"
	"github.com/dmitrijs2005/galleryselect/internal/server/notify"
	"github.com/dmitrijs2005/galleryselect/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/galleryselect/internal/server/services"
	"github.com/dmitrijs2005/galleryselect/internal/server/storage"

	gs "github.com/dmitrijs2005/galleryselect/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	handler *api.Handler
	health  *gs.GRPCServer
	closers []func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, slog.LevelInfo)
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (_ *App, err error) {
	app := &App{config: c, logger: logger}
	defer func() {
		if err != nil {
			app.close(ctx)
		}
	}()

	store, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}

	locker, err := app.newLocker(ctx)
	if err != nil {
		return nil, err
	}

	sink := app.newSink()
	signer := storage.NewS3Signer(storage.S3Config{
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
	})

	repos := repomanager.NewDocumentRepositoryManager(store)
	clients := services.NewClientService(repos, locker, logger)
	access := services.NewAccessService(repos, locker, logger)
	selections := services.NewSelectionService(repos, access, locker, logger)
	packages := services.NewPackageService(repos, selections, signer, sink, locker, logger)

	if c.StudioAPIKey == "" {
		logger.Warn(ctx, "studio api key not set, studio routes are closed")
	}
	app.handler = api.NewHandler(clients, access, selections, packages, c.SecretKey, c.StudioAPIKey, c.SessionTokenValidityDuration, logger)
	app.health = gs.NewGRPCServer(c.EndpointAddrGRPC, logger)
	return app, nil
}

func (app *App) openStore(ctx context.Context) (docstore.Store, error) {
	switch app.config.StoreBackend {
	case config.StoreMemory:
		app.logger.Warn(ctx, "using in-memory store, data is lost on restart")
		return docstore.NewMemoryStore(), nil
	case config.StorePostgres:
		db, err := docstore.OpenPostgres(ctx, app.config.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		app.closers = append(app.closers, db.Close)
		if err := migrations.Run(ctx, db); err != nil {
			return nil, fmt.Errorf("db migrations error: %w", err)
		}
		return docstore.NewPostgresStore(db), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", app.config.StoreBackend)
	}
}

func (app *App) newLocker(ctx context.Context) (locks.Locker, error) {
	if app.config.RedisAddr == "" {
		return locks.NewKeyedMutex(app.config.LockWait), nil
	}
	client, err := locks.NewRedisClient(ctx, app.config.RedisAddr, app.config.RedisPassword)
	if err != nil {
		return nil, fmt.Errorf("redis init error: %w", err)
	}
	app.closers = append(app.closers, client.Close)
	app.logger.Info(ctx, "using redis locks", "address", app.config.RedisAddr)
	return locks.NewRedisLocker(client, app.config.LockTTL, app.config.LockWait, app.logger), nil
}

// newSink picks the broker or the log, and queues sends so a slow broker
// never holds up a status change.
func (app *App) newSink() notify.Sink {
	var next notify.Sink = notify.NewLogSink(app.logger)
	if app.config.AMQPURL != "" {
		amqpSink := notify.NewAMQPSink(app.config.AMQPURL, app.config.NotificationQueue, app.logger)
		app.closers = append(app.closers, amqpSink.Close)
		next = amqpSink
	}
	async := notify.NewAsyncSink(next, app.config.NotifyWorkers, app.config.NotifyQueueSize, app.logger)
	// Drain before the broker connection closes: closers run in reverse.
	app.closers = append(app.closers, func() error { async.Close(); return nil })
	return async
}

func (app *App) close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(ctx, "close failed", "error", err)
		}
	}
	app.closers = nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.handler.Routes(app.config.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.health.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled, a signal arrives or a server fails,
// then releases backend connections.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.Background())
	app.logger.Info(context.Background(), "App stopped")
}
