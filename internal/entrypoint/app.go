package entrypoint

import (
	"context"
	"fmt"

	"github.com/mrlokans/libreria/internal/catalog"
	"github.com/mrlokans/libreria/internal/config"
	"github.com/mrlokans/libreria/internal/database"
	"github.com/mrlokans/libreria/internal/metrics"
	"github.com/mrlokans/libreria/internal/storage"
	"github.com/mrlokans/libreria/internal/tasks"
	"github.com/mrlokans/libreria/internal/visits"
)

// App holds the components every command needs: the record store, the
// payload directory and, when enabled, the metrics registry.
type App struct {
	Config   *config.Config
	DB       *database.Database
	Payloads *storage.LocalStore
	Metrics  *metrics.Metrics
}

// Open validates cfg and opens the database and payload directory.
//
// The payload directory is opened in both modes: blob deployments may still
// hold records written by an earlier disk deployment, and downloads for
// those keep working.
func Open(cfg *config.Config) (*App, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	db, err := database.NewDatabase(cfg.Database.Path, database.WithLogLevel(cfg.Database.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	payloads, err := storage.NewLocalStore(cfg.Storage.UploadsDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize payload store: %w", err)
	}

	app := &App{
		Config:   cfg,
		DB:       db,
		Payloads: payloads,
	}
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.New()
	}
	return app, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// Ingestor writes payload bytes to disk or to the record, per PAYLOAD_MODE.
func (a *App) Ingestor() *catalog.Ingestor {
	opts := []catalog.IngestOption{catalog.WithMaxPayload(a.Config.Uploads.MaxBytes)}
	if a.Config.Storage.PayloadMode == config.PayloadModeDisk {
		opts = append(opts, catalog.WithPayloadStore(a.Payloads))
	}
	return catalog.NewIngestor(a.DB, opts...)
}

// Sweeper removes payload files no record references.
func (a *App) Sweeper() *tasks.Sweeper {
	grace := tasks.ConfigFrom(a.Config).SweepGracePeriod
	sweeper := tasks.NewSweeper(a.Payloads, a.DB, grace)
	if a.Metrics != nil {
		sweeper.OnRemoved(a.Metrics.AddSweptFiles)
	}
	return sweeper
}

// Stats is a snapshot of catalog and visitor totals.
type Stats struct {
	PrimaryBooks int64
	LinkedBooks  int64
	Categories   []string
	Visitors     int64
}

func (a *App) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	var err error

	s.PrimaryBooks, s.LinkedBooks, err = a.DB.CountBooks(ctx)
	if err != nil {
		return s, err
	}

	s.Categories, err = catalog.NewCategoryCache(a.DB, a.Config.Categories.CacheTTL).Get(ctx)
	if err != nil {
		return s, err
	}

	s.Visitors, err = visits.NewRegister(a.DB).Count(ctx)
	if err != nil {
		return s, err
	}
	return s, nil
}
