package cmd

import (
	"fmt"
	"log/slog"

	"github.com/user/arthub/internal/collection"
	"github.com/user/arthub/internal/config"
	"github.com/user/arthub/internal/db"
	"github.com/user/arthub/internal/search"
	"github.com/user/arthub/internal/sources"
)

// app bundles what every command needs once config is loaded.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	store  *db.Store
	coord  *search.Coordinator
	syncer *collection.Synchronizer
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	store, err := db.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	client := sources.NewHTTPClient(cfg.HTTPTimeout)
	coord := search.NewCoordinator(sources.Enabled(cfg, client),
		search.WithMinQueryLength(cfg.MinQueryLength),
		search.WithLogger(logger))
	syncer := collection.New(store, collection.StaticUser(cfg.User), collection.WithLogger(logger))

	return &app{cfg: cfg, log: logger, store: store, coord: coord, syncer: syncer}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
