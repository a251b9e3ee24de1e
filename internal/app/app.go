// Package app wires the roleforge services together for the entry points.
package app

import (
	"context"
	"fmt"

	"github.com/kittclouds/roleforge/internal/config"
	"github.com/kittclouds/roleforge/internal/logger"
	"github.com/kittclouds/roleforge/internal/store"
	"github.com/kittclouds/roleforge/pkg/backup"
	"github.com/kittclouds/roleforge/pkg/chat"
	"github.com/kittclouds/roleforge/pkg/reply"
	"github.com/kittclouds/roleforge/pkg/roster"
)

// App holds the running services.
type App struct {
	Config     config.Config
	Log        *logger.Logger
	Store      store.Storer
	Dispatcher *chat.Dispatcher
	Roster     *roster.Roster
	Backup     *backup.AutoBackup
}

// Deps overrides the default collaborators. Zero fields are built from the
// config.
type Deps struct {
	Store     store.Storer
	Generator reply.Generator
	Logger    *logger.Logger
}

// New builds the services and hydrates the roster from storage.
func New(ctx context.Context, cfg config.Config, deps Deps) (*App, error) {
	log := deps.Logger
	if log == nil {
		log = logger.New(logger.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON})
		logger.SetGlobal(log)
	}

	s := deps.Store
	if s == nil {
		var err error
		if s, err = OpenStore(cfg); err != nil {
			return nil, err
		}
	}

	gen := deps.Generator
	if gen == nil {
		opts := []reply.MockOption{reply.WithDelay(cfg.Reply.Delay)}
		if cfg.Reply.Seed != 0 {
			opts = append(opts, reply.WithSeed(cfg.Reply.Seed))
		}
		gen = reply.NewMock(opts...)
	}

	d := chat.NewDispatcher(gen, chat.Options{
		Timeout: cfg.Reply.Timeout,
		Workers: cfg.Reply.Workers,
		Logger:  log,
	})

	r := roster.New(roster.Options{
		Storer:  s,
		Key:     cfg.StorageKey,
		Replier: d,
		Logger:  log,
	})
	if err := r.Open(ctx); err != nil {
		d.Close()
		s.Close()
		return nil, err
	}

	return &App{
		Config:     cfg,
		Log:        log,
		Store:      s,
		Dispatcher: d,
		Roster:     r,
		Backup:     backup.NewAutoBackup(s, cfg.BackupKey).WithLogger(log),
	}, nil
}

// OpenStore picks the persistence adapter for cfg. An empty DSN selects the
// in-process map store, honoring StorageQuota; anything else is a SQLite DSN.
func OpenStore(cfg config.Config) (store.Storer, error) {
	if cfg.DSN == "" {
		return store.NewMemoryStoreWithQuota(cfg.StorageQuota), nil
	}
	s, err := store.NewSQLiteStoreWithDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.DSN, err)
	}
	return s, nil
}

// Close stops the dispatcher and releases storage.
func (a *App) Close() error {
	a.Dispatcher.Close()
	return a.Store.Close()
}
