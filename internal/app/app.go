// Package app wires configuration, logging, storage and the catalog client
// into the pieces the comicshelf binaries share.
package app

import (
	"database/sql"
	"fmt"
	"log/slog"

	"comicshelf/internal/comics"
	"comicshelf/internal/comicvine"
	"comicshelf/internal/importer"
	"comicshelf/internal/logging"
	"comicshelf/pkg/config"
	"comicshelf/pkg/database"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *sql.DB
	Store  *comics.Store
	// Catalog is nil when no API key is configured.
	Catalog *comicvine.Client
}

// Open loads the config at configPath (empty means the default location),
// builds the logger and opens the migrated database.
func Open(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return nil, err
	}

	db, err := database.OpenAndMigrate(database.Config{Path: cfg.DBPath})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		DB:     db,
		Store:  comics.NewStore(db),
	}

	if cfg.ComicVine.APIKey != "" {
		a.Catalog, err = comicvine.New(cfg.ComicVine.APIKey, cfg.ComicVine.BaseURL,
			comicvine.WithLogger(logger),
			comicvine.WithUserAgent(cfg.ComicVine.UserAgent),
			comicvine.WithRequestsPerSecond(cfg.ComicVine.RequestsPerSecond),
		)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return a, nil
}

// NewImporter builds an importer on the app's store. publisher may be nil.
func (a *App) NewImporter(publisher importer.Publisher) *importer.Importer {
	opts := []importer.Option{
		importer.WithLogger(a.Logger),
		importer.WithLockPath(importer.LockPathFor(a.Config.DBPath)),
	}
	if a.Catalog != nil {
		opts = append(opts, importer.WithResolver(comicvine.NewResolver(a.Catalog, a.Logger), a.Catalog.Breaker()))
	} else {
		a.Logger.Warn("COMIC_VINE_API_KEY not set; imports will not look up titles or covers")
	}
	if publisher != nil {
		opts = append(opts, importer.WithPublisher(publisher))
	}
	return importer.New(a.Store, opts...)
}

func (a *App) Close() error {
	return a.DB.Close()
}
