package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/aymericbeaumet/loupe/application/view"
	"github.com/aymericbeaumet/loupe/infrastructure/config"
	"github.com/aymericbeaumet/loupe/infrastructure/di"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the browser viewer, the view websocket and the development index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default from configuration)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	view.Init()

	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	logger := container.Logger
	defer func() { _ = logger.Sync() }()

	watcher := config.NewWatcher(cfg, logger)
	watcher.OnChange(func(next *config.Config) {
		level, err := zapcore.ParseLevel(next.LogLevel)
		if err != nil {
			return
		}
		if level != container.Level.Level() {
			container.Level.SetLevel(level)
			logger.Info("Log level changed", zap.String("level", level.String()))
		}
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      container.Router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server",
			zap.String("address", cfg.Server.Address),
			zap.String("environment", string(cfg.Environment)),
			zap.Int("records", container.Index.Len()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error { return container.Hub.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("Server stopped")
	return err
}
