package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eternisai/deepr-console/internal/backend"
	"github.com/eternisai/deepr-console/internal/console"
	"github.com/eternisai/deepr-console/internal/export"
	"github.com/eternisai/deepr-console/internal/health"
	"github.com/eternisai/deepr-console/internal/metrics"
	"github.com/eternisai/deepr-console/internal/preview"
	"github.com/eternisai/deepr-console/internal/protocol"
	"github.com/eternisai/deepr-console/internal/session"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(consoleCmd)
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Connect to the backend and start the interactive console",
	Args:  cobra.NoArgs,
	RunE:  runConsole,
}

func runConsole(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	log := newLogger(cfg)
	m := metrics.New()

	wsURL, err := backend.WebSocketURL(cfg.BackendURL, cfg.SearchPath)
	if err != nil {
		return fmt.Errorf("derive websocket url: %w", err)
	}
	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	printer := console.NewPrinter(os.Stdout)
	artifacts := console.NewArtifactWriter(cfg.DownloadDir, log)
	presenter := console.NewPresenter(printer, artifacts)
	exporter := export.NewClient(cfg.BackendURL+cfg.ExportPath, cfg.DownloadDir, cfg.RequestTimeout, log)

	// The backend client and the session manager reference each other.
	// The closures resolve manager late; it is assigned before Run
	// starts, so no callback ever sees it nil.
	var manager *session.Manager
	client := backend.NewClient(backend.Options{
		URL:         wsURL,
		DialTimeout: cfg.DialTimeout,
		RetryDelay:  cfg.ReconnectDelay,
		MaxAttempts: cfg.ReconnectMaxAttempts,
	}, backend.Events{
		OnStateChange: func(s backend.State) { manager.HandleConnectionState(s) },
		OnMessage:     func(msg protocol.Inbound) { manager.HandleMessage(msg) },
		OnDisconnect:  func(err error) { manager.HandleDisconnect(err) },
	}, log, m)
	manager = session.NewManager(client, presenter, exporter, log, m, protocol.ParseDepth(cfg.DefaultDepth))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := client.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("backend connection stopped", slog.String("error", err.Error()))
		}
	}()

	healthClient := health.NewClient(cfg.BackendURL+cfg.HealthPath, cfg.RequestTimeout, log)
	poller := health.NewPoller(healthClient, cfg.HealthPollSchedule, log, m)
	if err := poller.Start(); err != nil {
		return err
	}
	defer poller.Stop()

	var previewServer *preview.Server
	if cfg.PreviewEnabled {
		previewServer = preview.NewServer(preview.Options{
			Addr:           cfg.PreviewAddr,
			Dir:            cfg.DownloadDir,
			AllowedOrigins: cfg.CORSAllowedOrigins,
		}, m, poller, log)
		go func() {
			if err := previewServer.Start(); err != nil {
				log.Error("preview server stopped", slog.String("error", err.Error()))
			}
		}()
	}

	loop := console.New(console.Options{
		Manager:        manager,
		Health:         healthClient,
		Metrics:        m,
		Printer:        printer,
		Logger:         log,
		Input:          os.Stdin,
		DownloadDir:    cfg.DownloadDir,
		RequestTimeout: cfg.RequestTimeout,
	})

	runErr := make(chan error, 1)
	go func() { runErr <- loop.Run(ctx) }()

	// Exit on the quit command or on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutting down", slog.String("signal", sig.String()))
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	cancel()

	if previewServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := previewServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("preview server shutdown failed", slog.String("error", err.Error()))
		}
	}
	return nil
}
