package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/soundsift/internal/indexer"
	"github.com/hyperjump/soundsift/internal/models"
	"github.com/hyperjump/soundsift/internal/server"
	"github.com/hyperjump/soundsift/internal/vector"
	"github.com/hyperjump/soundsift/internal/watcher"
)

// NewServerCmd runs the HTTP API and the folder watcher.
func NewServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server and watch configured folders",
		Args:  cobra.NoArgs,
		RunE:  runServer,
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.logger.Sync()
	logger := e.logger
	cfg := e.cfg
	logger.Info("config loaded", zap.String("config_path", e.configPath), zap.Bool("debug", e.debug))

	ctx := cmd.Context()
	components, err := initializeComponents(ctx, cfg, logger, componentOptions{})
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Close()

	report, err := components.Indexer.Recover(ctx)
	if err != nil {
		return fmt.Errorf("startup recovery failed: %w", err)
	}
	if report.TempAction != vector.TempNone || len(report.DanglingPaths) > 0 {
		logger.Warn("recovered vector store",
			zap.String("temp_action", report.TempAction),
			zap.Int("rows", report.Rows),
			zap.Int("dangling_removed", len(report.DanglingPaths)))
	}

	idx := components.Indexer
	watchOpts := []watcher.WatcherOption{}
	if e.debug {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc := watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Audio.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		func(root string) { indexWatchedRoot(ctx, idx, logger, root) },
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(ctx)
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(
		components.Engine,
		components.Indexer,
		components.Storage,
		&cfg.Server,
		logger,
		watchSvc,
		e.configPath,
		cfg,
	)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Shutting down...")
	watchCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// indexWatchedRoot is the watcher callback: one IndexFolder run per settled root.
func indexWatchedRoot(ctx context.Context, idx *indexer.Indexer, logger *zap.Logger, root string) {
	report, err := idx.IndexFolder(ctx, root)
	switch {
	case errors.Is(err, indexer.ErrIndexBusy):
		logger.Info("watch index skipped, another run holds the lock", zap.String("root", root))
	case err != nil:
		logger.Warn("watch index failed", zap.String("root", root), zap.Error(err))
	default:
		logger.Info("watch index done",
			zap.String("root", root),
			zap.Int("appended", report.Count(models.ItemAppended)),
			zap.Int("failed", report.Count(models.ItemFailed)))
	}
}
