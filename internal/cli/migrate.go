// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/crowdserve/crowdserve/internal/logger"
	"github.com/crowdserve/crowdserve/internal/marketplace/database"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.CloseGlobal()

	db, err := database.NewGormDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if err := db.ValidateSchema(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date (%s)\n", cfg.Database.Driver)
	return nil
}
