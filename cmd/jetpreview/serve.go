package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"jetpreview/internal/api"
	"jetpreview/internal/bot"
	"jetpreview/internal/storage"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, c)
		},
	}
}

func runServe(ctx context.Context, c *cli) error {
	log := c.log
	log.WithFields(logrus.Fields{
		"http_addr":     c.cfg.HTTP.Addr,
		"badgerdb_path": c.cfg.Storage.BadgerPath,
		"cache_backend": c.cfg.Cache.Backend,
		"browser":       c.cfg.Browser.Enabled,
	}).Info("Configuration loaded successfully")

	a, err := newApp(ctx, c.cfg, log, true)
	if err != nil {
		return fmt.Errorf("initialize components: %w", err)
	}
	defer a.Close()
	a.runMaintenance(ctx)

	if c.cfg.Telegram.Token != "" {
		repo := storage.NewBadgerRepository(a.db, log)
		botHandler, err := bot.NewHandler(c.cfg.Telegram, repo, a.previews, log)
		if err != nil {
			return fmt.Errorf("initialize telegram bot: %w", err)
		}
		go botHandler.Start(ctx)
	} else {
		log.Info("No Telegram token configured, bot disabled")
	}

	server := api.NewServer(a.previews, a.poolStats(), c.cfg.HTTP.RequestTimeout, log)
	httpServer := &http.Server{
		Addr:    c.cfg.HTTP.Addr,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", c.cfg.HTTP.Addr).Info("HTTP API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info("JetPreview is running. Press Ctrl+C to exit.")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	log.Info("Shutting down JetPreview...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}

	log.Info("JetPreview shut down gracefully.")
	return nil
}
