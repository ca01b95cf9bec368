// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/crowdserve/crowdserve/internal/logger"
	"github.com/crowdserve/crowdserve/internal/server"
	"github.com/crowdserve/crowdserve/internal/tracing"

	"github.com/spf13/cobra"
)

var serveFeedBuffer int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST and WebSocket API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&serveFeedBuffer, "feed-buffer", 100, "Pending live events kept before new ones are dropped")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.CloseGlobal()

	mainLog := logger.GetLogger("main")
	mainLog.Info().Str("version", version).Msg("Starting crowdserve API server")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return err
	}

	m, err := openMarketplace(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	// Live clients hear about a completion only after its notifications
	// are stored.
	feed := server.NewCompletionFeed(serveFeedBuffer)
	m.workflow.Subscribe(feed)

	srv := server.New(&cfg.Server, m.workflow, m.notifications, m.users, feed)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- srv.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case sig := <-sigChan:
		mainLog.Info().Msgf("Received signal %v, shutting down...", sig)
	case runErr = <-serverErrChan:
		if runErr != nil {
			mainLog.Error().Err(runErr).Msg("Server error")
		}
	}

	// Fresh context: ctx is cancelled below to stop the broadcaster.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		mainLog.Error().Err(err).Msg("Error shutting down server")
	}
	cancel()

	if err := shutdownTracing(shutdownCtx); err != nil {
		mainLog.Warn().Err(err).Msg("Error flushing traces")
	}

	mainLog.Info().Msg("API server shut down")
	if runErr != nil {
		return fmt.Errorf("server stopped: %w", runErr)
	}
	return nil
}
