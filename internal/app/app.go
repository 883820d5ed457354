package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/roomcast/roomcast-server/internal/config"
	"github.com/roomcast/roomcast-server/internal/core"
	"github.com/roomcast/roomcast-server/internal/store"
	"github.com/roomcast/roomcast-server/internal/store/badger"
	"github.com/roomcast/roomcast-server/internal/store/sqlite"
	transporthttp "github.com/roomcast/roomcast-server/internal/transport/http"
)

// App wires together the journal, the room table and the HTTP transport.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	journal         store.Log
	log             *zerolog.Logger
}

// OpenJournal opens the configured journal backend. Path is a database file
// for sqlite and a directory for badger.
func OpenJournal(cfg config.StoreConfig) (store.Log, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return sqlite.New(cfg.Path)
	case config.BackendBadger:
		return badger.New(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// New constructs the application: opens the journal, replays it to restore
// per-room sequence counters, and builds the HTTP server.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	journal, err := OpenJournal(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}
	logger.Info().
		Str("backend", cfg.Store.Backend).
		Str("path", cfg.Store.Path).
		Msg("journal opened")

	table := core.NewTable(journal, logger)
	records, err := table.SeedFrom(ctx, journal)
	if err != nil {
		_ = journal.Close()
		return nil, err
	}
	logger.Info().Int("records", records).Msg("journal replayed")

	server := transporthttp.NewServer(table, *cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		journal:         journal,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// error. The run context is threaded into every request, so cancelling it
// also winds down live WebSocket sessions that Shutdown does not track.
func (a *App) Run(ctx context.Context) error {
	a.server.BaseContext = func(net.Listener) context.Context { return ctx }

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	a.log.Info().Str("addr", a.server.Addr).Msg("server listening")

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the journal once the server stops accepting traffic.
func (a *App) cleanup() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close journal")
		} else {
			a.log.Info().Msg("journal closed")
		}
	}
}
