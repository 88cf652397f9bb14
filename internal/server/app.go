// Package server wires the document sync server: configuration, logging,
// the Postgres pool and migrations, the services, the HTTP API and the gRPC
// health endpoint, and graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrijs2005/docsync/internal/dbx"
	"github.com/dmitrijs2005/docsync/internal/filex"
	"github.com/dmitrijs2005/docsync/internal/logging"
	"github.com/dmitrijs2005/docsync/internal/server/config"
	"github.com/dmitrijs2005/docsync/internal/server/httpapi"
	"github.com/dmitrijs2005/docsync/internal/server/metrics"
	"github.com/dmitrijs2005/docsync/internal/server/replica"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/docsync/internal/server/services"
	"github.com/dmitrijs2005/docsync/internal/server/storage"

	gs "github.com/dmitrijs2005/docsync/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	http   *httpapi.HTTPServer
	health *gs.HealthServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger, err := logging.NewJSON(os.Stdout, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := filex.EnsureDir(c.StorageRoot); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt := metrics.New(reg)

	rep, err := newReplica(ctx, c, logger, mt)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("replica init error: %w", err)
	}

	runner := dbx.NewRunner(db, logger)
	layout := storage.Layout{Root: c.StorageRoot, LockFileName: c.LockFileName, BackupFolderName: c.BackupFolderName}
	seq := services.NewSequenceService(rm, mt)

	router := httpapi.NewRouter(httpapi.Options{
		Documents:     services.NewDocumentService(runner, rm, seq, layout, rep, mt, logger),
		Edits:         services.NewEditService(runner, rm, layout, rep, mt, logger),
		Sales:         services.NewSaleService(runner, rm, seq, layout, rep, logger),
		Metrics:       mt,
		Logger:        logger,
		SecretKey:     []byte(c.SecretKey),
		MaxChunkBytes: c.MaxChunkBytes,
	})

	return &App{
		config: c,
		logger: logger,
		db:     db,
		http:   httpapi.NewHTTPServer(c.HTTPAddr, logger, router, c.ShutdownTimeout),
		health: gs.NewHealthServer(c.GRPCAddr, logger, runner, c.HealthProbeInterval),
	}, nil
}

func newReplica(ctx context.Context, c *config.Config, logger logging.Logger, mt *metrics.Metrics) (replica.Replicator, error) {
	if !c.ReplicaEnabled() {
		return replica.Noop{}, nil
	}
	r, err := replica.NewS3Replicator(ctx, c, logger, mt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx); err != nil {
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

// Run serves until a signal arrives or one of the servers fails.
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

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close failed", "err", err)
	}
	app.logger.Info(ctx, "App stopped")
}
