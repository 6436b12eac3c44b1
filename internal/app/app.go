// Package app initializes and runs the site.
// It configures logging, storage, the image store, sessions and routing,
// and handles graceful shutdown.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/patric-chuzhbe/profilesite/internal/auth"
	"github.com/patric-chuzhbe/profilesite/internal/config"
	"github.com/patric-chuzhbe/profilesite/internal/db/jsondb"
	"github.com/patric-chuzhbe/profilesite/internal/db/memorystorage"
	"github.com/patric-chuzhbe/profilesite/internal/db/postgresdb"
	"github.com/patric-chuzhbe/profilesite/internal/hasher"
	"github.com/patric-chuzhbe/profilesite/internal/imagestore"
	"github.com/patric-chuzhbe/profilesite/internal/ipchecker"
	"github.com/patric-chuzhbe/profilesite/internal/logger"
	"github.com/patric-chuzhbe/profilesite/internal/metrics"
	"github.com/patric-chuzhbe/profilesite/internal/models"
	"github.com/patric-chuzhbe/profilesite/internal/router"
	"github.com/patric-chuzhbe/profilesite/internal/service"
	"github.com/patric-chuzhbe/profilesite/internal/user"
	"github.com/patric-chuzhbe/profilesite/internal/views"
)

const shutdownTimeout = 10 * time.Second

type transactioner interface {
	BeginTransaction() (*sql.Tx, error)

	RollbackTransaction(transaction *sql.Tx) error

	CommitTransaction(transaction *sql.Tx) error
}

type userKeeper interface {
	CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) error
	GetUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, bool, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type storage interface {
	userKeeper
	transactioner
	pinger
	Close() error
}

// App encapsulates the configuration, HTTP handler and storage backend
// needed to run the site.
type App struct {
	cfg         *config.Config
	db          storage
	httpHandler http.Handler
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up storage
// - selecting the image store of the deployment environment
// - setting up the router and middleware
func New() (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New()
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	images, backend, err := getImageStore(context.Background(), app.cfg)
	if err != nil {
		app.db.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	theViews, err := views.New()
	if err != nil {
		app.db.Close()
		return nil, err
	}

	metricsGuard, err := ipchecker.New(app.cfg.TrustedSubnet)
	if err != nil {
		app.db.Close()
		return nil, err
	}

	app.httpHandler = router.New(
		app.db,
		service.New(
			app.db,
			images,
			hasher.New(app.cfg.BcryptCost),
			metrics.NewCollector(registry, backend),
		),
		auth.New(
			app.cfg.SessionCookieName,
			[]byte(app.cfg.SessionSecretKey),
			app.cfg.SessionLifetime,
		),
		theViews,
		router.Options{
			StaticDir:      app.cfg.StaticDir,
			StaticURLBase:  app.cfg.StaticURLBase,
			MaxUploadSize:  app.cfg.MaxUploadSize,
			MetricsHandler: metricsGuard.Allow(metrics.Handler(registry)),
		},
	)

	return app, nil
}

// Run starts the HTTP server with graceful shutdown support.
// It listens for system signals and cleans up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr, "Environment", a.cfg.Environment)

	server := &http.Server{
		Addr:    a.cfg.RunAddr,
		Handler: a.httpHandler,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Closing the storage and exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return a.db.Close()

	case err := <-serverErrCh:
		if closeErr := a.db.Close(); closeErr != nil {
			logger.Log.Errorln("Error calling the `a.db.Close()`:", closeErr)
		}
		return fmt.Errorf("server error: %w", err)
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DSN() != "" {
		return models.StorageTypePostgresql
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DSN(),
			cfg.DBConnectionTimeout,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New()
}

// getImageStore returns the image store of the deployment environment and
// its metrics label.
func getImageStore(ctx context.Context, cfg *config.Config) (imagestore.Store, string, error) {
	if cfg.IsLocal() {
		return imagestore.NewLocal(cfg.UploadsDir()), "local", nil
	}

	options := imagestore.S3Options{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		TempDir:         cfg.UploadsDir(),
	}

	client, err := imagestore.NewS3Client(ctx, options)
	if err != nil {
		return nil, "", err
	}

	return imagestore.NewS3(client, options), "s3", nil
}
