// Package common provides shared dependency construction for subcommands.
package common

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/goleads/internal/config"
	"github.com/jonesrussell/goleads/internal/domain"
	"github.com/jonesrussell/goleads/internal/logger"
	"github.com/jonesrussell/goleads/internal/sources"
	"github.com/jonesrussell/goleads/internal/store"
)

// Deps bundles the dependencies every subcommand needs.
type Deps struct {
	Config *config.Config
	Logger logger.Logger
}

// NewDeps loads configuration and builds the logger.
func NewDeps(debug bool) (*Deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}

	log, err := logger.New(logger.Config{
		Level:       level,
		File:        cfg.Logging.File,
		Development: debug,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &Deps{Config: cfg, Logger: log}, nil
}

// OpenStore connects to the configured durable store.
func (d *Deps) OpenStore() (*sqlx.DB, error) {
	return store.Open(store.Config{
		Driver:  d.Config.Storage.Driver,
		DataDir: d.Config.Storage.DataDir,
		DSN:     d.Config.Storage.DSN,
	})
}

// LoadSources reads the source registry, logging any skipped entries.
func (d *Deps) LoadSources() ([]domain.Source, error) {
	loader := sources.NewLoader(d.Config.Sources.File)

	srcs, problems, err := loader.Load()
	for _, problem := range problems {
		d.Logger.Warn("skipping invalid source", logger.Error(problem))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}

	return srcs, nil
}
