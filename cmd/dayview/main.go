package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"dayview/internal/config"
	appLog "dayview/internal/log"
	"dayview/internal/store"
)

const version = "0.1.0"

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "dayview",
		Usage:   "Day timeline event store with drag, resize and keyboard editing.",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "./dayview.yaml",
				Usage:   "path to the YAML config (created with defaults if missing)",
				EnvVars: []string{"DAYVIEW_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override the configured log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			layoutCommand(),
			replayCommand(),
			importCommand(),
			exportCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		appLog.Error("dayview failed", err)
		os.Exit(1)
	}
}

// loadConfig reads and validates the config named by the global flags and
// applies its log level.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	level := cfg.LogLevel
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	appLog.SetLevel(appLog.ParseLevel(level))
	appLog.Debug("effective config",
		"config_path", path,
		"timezone", cfg.Timezone,
		"store", cfg.Store.Driver,
		"ics_count", len(cfg.ICS),
		"refresh", cfg.RefreshCron,
	)
	return cfg, nil
}

// openStore opens the configured store. The returned close func is never nil.
func openStore(cfg *config.Config) (store.Store, func() error, error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemory(), func() error { return nil }, nil
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o700); err != nil {
			return nil, nil, err
		}
		db, err := store.OpenSQLite(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	}
}
