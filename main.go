package main

import (
	"fmt"
	"os"

	"stock-trader/internal/cli"
	"stock-trader/internal/config"
	"stock-trader/internal/logging"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.Config{
		Level:      cfg.Logging.Level,
		Console:    cfg.Logging.Console,
		File:       cfg.Logging.File,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAgeDays,
	})

	if err := cli.NewRootCmd(cfg, logger).Execute(); err != nil {
		os.Exit(1)
	}
}
