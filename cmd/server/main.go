package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roomcast/roomcast-server/internal/app"
	"github.com/roomcast/roomcast-server/internal/config"
	"github.com/roomcast/roomcast-server/internal/log"
	"github.com/roomcast/roomcast-server/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "roomcast-server",
		Short:         "Room-scoped WebSocket message relay with a durable journal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newHistoryCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the relay server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			bootLog := log.New("info")
			cfg, path, err := config.Load(bootLog, configPath)
			if err != nil {
				return err
			}
			cfg.UpdateFrom(overrides)
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", path).Msg("configuration loaded")

			application, err := app.New(ctx, &cfg, logger)
			if err != nil {
				return err
			}
			if err := application.Run(ctx); err != nil {
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	cmd.Flags().StringVar(&overrides.Store.Backend, "store-backend", "", "journal backend (sqlite or badger)")
	cmd.Flags().StringVar(&overrides.Store.Path, "store-path", "", "journal path (file for sqlite, directory for badger)")

	return cmd
}

func newHistoryCmd() *cobra.Command {
	var (
		backend string
		path    string
		room    string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Dump persisted messages from the journal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			defaults := config.Default()
			if backend == "" {
				backend = defaults.Store.Backend
			}
			if path == "" {
				path = defaults.Store.Path
			}

			journal, err := app.OpenJournal(config.StoreConfig{Backend: backend, Path: path})
			if err != nil {
				return err
			}
			defer journal.Close()

			shown := 0
			err = journal.ForEach(cmd.Context(), func(rec store.Record) error {
				if room != "" && rec.Room != room {
					return nil
				}
				fmt.Printf("%s  %-12s  #%-6d  %s: %s\n",
					rec.At.Format(time.RFC3339), rec.Room, rec.Seq, rec.Sender, rec.Payload)
				shown++
				if limit > 0 && shown >= limit {
					return store.ErrStop
				}
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Printf("%d message(s)\n", shown)
			return nil
		},
	}

	cmd.Flags().StringVar(&room, "room", "", "only messages for this room")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many messages (0 = all)")
	cmd.Flags().StringVar(&backend, "store-backend", "", "journal backend (sqlite or badger)")
	cmd.Flags().StringVar(&path, "store-path", "", "journal path (file for sqlite, directory for badger)")

	return cmd
}
