package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rollcallhq/rollcall/backend/internal/db"
	"github.com/rollcallhq/rollcall/backend/internal/logging"
	"github.com/rollcallhq/rollcall/backend/internal/remote"
	syncpkg "github.com/rollcallhq/rollcall/backend/internal/sync"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rollcall",
	Short: "Offline-first attendance sync engine",
	Long: `Rollcall keeps a local attendance database in sync with a
spreadsheet-backed cloud store: queued attendance batches are pushed in
strict order, remote rows are pulled differentially per event, and the
master lists are reconciled with orphan marking and explicit purge.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		logging.Init(logging.Config{
			Level:      viper.GetString("log.level"),
			File:       viper.GetString("log.file"),
			MaxSizeMB:  viper.GetInt("log.max_size_mb"),
			MaxBackups: viper.GetInt("log.max_backups"),
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./rollcall.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "data directory for the local database")
	rootCmd.PersistentFlags().Bool("demo", false, "demo mode: in-memory remote, no push jobs enqueued")

	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("demo", rootCmd.PersistentFlags().Lookup("demo"))

	rootCmd.AddCommand(syncCmd, pushCmd, pullCmd, reconcileCmd, statusCmd, purgeCmd, runCmd)
}

func loadConfig() error {
	viper.SetDefault("data_dir", "./data")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("sync.cycle_interval", "5m")
	viper.SetDefault("sync.reconcile_interval", "1h")
	viper.SetDefault("remote.timeout", "30s")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("rollcall")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.rollcall")
	}
	viper.SetEnvPrefix("ROLLCALL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; flags, env and defaults still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// app bundles the wired components behind one close handle.
type app struct {
	db     *db.DB
	repo   *db.Repository
	engine *syncpkg.Engine
	demo   bool
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// openApp opens the database, runs the schema, and wires the sync engine
// against the configured provider.
func openApp() (*app, error) {
	database, err := db.Open(viper.GetString("data_dir"))
	if err != nil {
		return nil, err
	}
	if err := database.InitSchema(); err != nil {
		database.Close()
		return nil, err
	}

	repo := db.NewRepository(database.DB)
	demo := viper.GetBool("demo")

	var provider remote.Provider
	if demo {
		provider = remote.NewSeededDemoProvider()
	} else {
		endpoint := viper.GetString("remote.endpoint")
		if endpoint == "" {
			database.Close()
			return nil, fmt.Errorf("remote.endpoint is required unless --demo is set")
		}
		provider = remote.NewSheetsProvider(&remote.SheetsConfig{
			Endpoint:      endpoint,
			SpreadsheetID: viper.GetString("remote.spreadsheet_id"),
			APIKey:        viper.GetString("remote.api_key"),
			Timeout:       viper.GetDuration("remote.timeout"),
		})
	}

	return &app{
		db:     database,
		repo:   repo,
		engine: syncpkg.NewEngine(repo, provider, demo),
		demo:   demo,
	}, nil
}

func parseInterval(key string, fallback time.Duration) time.Duration {
	d := viper.GetDuration(key)
	if d <= 0 {
		return fallback
	}
	return d
}
