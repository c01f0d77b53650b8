// Package cli provides the command-line interface for the trading application.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stock-trader/internal/config"
	"stock-trader/internal/marketdata"
	"stock-trader/internal/resilience"
	"stock-trader/internal/store"
	"stock-trader/internal/venue"
)

// Version information
const Version = "0.1.0"

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  *store.Store
	Venue  venue.Client
	Queue  *resilience.CallQueue
	Cache  *marketdata.Cache
	Source *marketdata.Source
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	app.Queue = resilience.NewCallQueue(resilience.CallQueueConfig{
		Backoff: cfg.Venue.RetryBackoff,
	}, logger)
	app.Cache = marketdata.NewCache()
	app.Venue = venue.NewHTTPClient(venue.HTTPConfig{
		BaseURL:   cfg.Venue.BaseURL,
		APIKey:    cfg.Venue.APIKey,
		APISecret: cfg.Venue.APISecret,
		Timeout:   cfg.Venue.Timeout,
	}, logger)
	app.Source = marketdata.NewSource(app.Venue, app.Cache, app.Queue, logger)

	dataStore, err := store.NewStore(cfg.Data.DatabasePath, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("store unavailable, bar persistence disabled")
	} else {
		app.Store = dataStore
	}

	rootCmd := &cobra.Command{
		Use:     "stock-trader",
		Short:   "Equity trading and backtesting against a brokerage venue",
		Version: Version,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.Queue.Shutdown()
			if app.Store != nil {
				app.Store.Close()
			}
		},
	}

	rootCmd.AddCommand(newBacktestCmd(app))
	rootCmd.AddCommand(newDataCmd(app))

	return rootCmd
}
