// Package app wires configuration into the services shared by the daemon,
// the terminal UI and the MCP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/felixgeelhaar/gapcheck/internal/archive"
	"github.com/felixgeelhaar/gapcheck/internal/assessment"
	"github.com/felixgeelhaar/gapcheck/internal/catalog"
	"github.com/felixgeelhaar/gapcheck/internal/config"
	"github.com/felixgeelhaar/gapcheck/internal/events"
	"github.com/felixgeelhaar/gapcheck/internal/queue"
	"github.com/felixgeelhaar/gapcheck/internal/render"
	"github.com/felixgeelhaar/gapcheck/internal/session"
	"github.com/felixgeelhaar/gapcheck/internal/storage/mysql"
	"github.com/felixgeelhaar/gapcheck/internal/storage/postgres"
	"github.com/felixgeelhaar/gapcheck/internal/storage/sqlite"
)

// App holds all application dependencies
type App struct {
	Config  *config.LocalConfig
	Catalog *catalog.Catalog
	Backend session.Backend
	Service *session.Service

	closers []io.Closer
}

// New builds the catalog, storage backend, event publisher and session
// service described by cfg
func New(ctx context.Context, cfg *config.LocalConfig) (*App, error) {
	cat, err := catalog.Resolve(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	backend, err := OpenBackend(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Catalog: cat,
		Backend: backend,
		Service: session.NewService(backend, assessment.NewEngine(cat)),
		closers: []io.Closer{backend},
	}

	if cfg.Events.Enabled {
		pub, err := a.connectPublisher(cfg.Events)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Service.SetPublisher(pub)
	}

	slog.Info("application ready",
		"catalog", cat.Name(),
		"sections", cat.SectionCount(),
		"questions", cat.QuestionCount(),
		"storage", cfg.Storage.Backend,
		"events", cfg.Events.Enabled,
	)
	return a, nil
}

// OpenBackend opens the session storage selected by cfg
func OpenBackend(ctx context.Context, cfg config.StorageConfig) (session.Backend, error) {
	switch cfg.Backend {
	case config.StorageFile, "":
		store, err := session.NewStore(cfg.SessionsDir)
		if err != nil {
			return nil, fmt.Errorf("open session files: %w", err)
		}
		return store, nil

	case config.StorageSQLite:
		db, err := sqlite.OpenMigrated(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return sqlite.NewSessionStore(db), nil

	case config.StoragePostgres:
		store, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil

	case config.StorageMySQL:
		store, err := mysql.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil

	default:
		return nil, &config.ConfigurationError{Field: "storage.backend", Reason: fmt.Sprintf("unknown backend %q", cfg.Backend)}
	}
}

func (a *App) connectPublisher(cfg config.EventsConfig) (events.Publisher, error) {
	conn, err := queue.NewConnection(cfg.AMQPURL, cfg.Queue)
	if err != nil {
		return nil, fmt.Errorf("connect events broker: %w", err)
	}
	a.closers = append(a.closers, conn)

	resilientCfg := events.DefaultResilientConfig()
	if cfg.RatePerSecond > 0 {
		resilientCfg.RatePerSecond = cfg.RatePerSecond
	}
	pub := events.NewResilientPublisher(queue.NewProducer(conn), resilientCfg)
	a.closers = append(a.closers, pub)
	return pub, nil
}

// Close releases every resource opened by New, newest first
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// ArchiveConfig converts the archive settings into an archive.Config
func ArchiveConfig(cfg config.ArchiveConfig) (archive.Config, error) {
	formats := make([]render.Format, 0, len(cfg.Formats))
	for _, name := range cfg.Formats {
		f, err := render.ParseFormat(name)
		if err != nil {
			return archive.Config{}, &config.ConfigurationError{Field: "archive.formats", Reason: err.Error()}
		}
		formats = append(formats, f)
	}
	return archive.Config{
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		Bucket:    cfg.Bucket,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Formats:   formats,
	}, nil
}
