// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/crowdserve/crowdserve/internal/config"
	"github.com/crowdserve/crowdserve/internal/logger"
	"github.com/crowdserve/crowdserve/internal/marketplace/database"
	"github.com/crowdserve/crowdserve/internal/marketplace/services"

	"github.com/spf13/cobra"
)

const appName = "crowdserve"

// Version information - set at build time via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Neighbourhood task marketplace",
	Long: `CrowdServe lets neighbours post small paid tasks, accept them,
and mark them done. Completing a task notifies both the poster
and the worker.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s\n", appName, version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./config.yaml)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets version information from build flags
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

// GetRootCmd returns the root command for testing and subcommand registration
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// setup loads configuration and initializes the global logger. Callers
// must defer logger.CloseGlobal().
func setup() (*config.AppConfig, error) {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Initialize(&cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// marketplace bundles the services every command works through
type marketplace struct {
	db            *database.GormDB
	workflow      *services.Coordinator
	notifications *services.NotificationService
	users         *services.UserService
}

// openMarketplace connects to the database, checks the schema and wires the
// services. The notification service is subscribed to completions.
func openMarketplace(cfg *config.AppConfig) (*marketplace, error) {
	db, err := database.NewGormDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.ValidateSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w (run '%s migrate' first)", err, appName)
	}
	return newMarketplace(db), nil
}

func newMarketplace(db *database.GormDB) *marketplace {
	workflow := services.NewCoordinator(services.NewLifecycleService(db.Tasks()), db.Users())
	notifications := services.NewNotificationService(db.Notifications())
	workflow.Subscribe(notifications)

	return &marketplace{
		db:            db,
		workflow:      workflow,
		notifications: notifications,
		users:         services.NewUserService(db.Users()),
	}
}

func (m *marketplace) Close() error {
	return m.db.Close()
}
