package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/buildgate/pkg/cli/config"
	githubctrl "github.com/m-mizutani/buildgate/pkg/controller/github"
	controller "github.com/m-mizutani/buildgate/pkg/controller/http"
	"github.com/m-mizutani/buildgate/pkg/infra/github"
	"github.com/m-mizutani/buildgate/pkg/usecase"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var (
		serverCfg   config.Server
		githubCfg   config.GitHub
		strategyCfg config.Strategy
		storageCfg  config.Storage
		slackCfg    config.Slack
		sentryCfg   config.Sentry
	)

	var flags []cli.Flag
	flags = append(flags, serverCfg.Flags()...)
	flags = append(flags, githubCfg.Flags()...)
	flags = append(flags, strategyCfg.Flags()...)
	flags = append(flags, storageCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			logger.Info("Starting buildgate server",
				slog.String("addr", serverCfg.Addr),
				slog.Any("github", githubCfg),
				slog.Any("strategy", strategyCfg),
				slog.Any("storage", storageCfg),
				slog.Any("slack", slackCfg),
				slog.Any("sentry", sentryCfg),
			)

			flush, err := sentryCfg.Configure()
			if err != nil {
				return err
			}
			defer flush()

			strategies, err := strategyCfg.Configure()
			if err != nil {
				return err
			}
			checkout, err := strategyCfg.CheckoutStrategy()
			if err != nil {
				return err
			}

			client, err := githubCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to create GitHub client")
			}
			if client == nil {
				logger.Warn("GitHub App is not configured, builds are decided but not dispatched")
			}

			store, closeStore, err := storageCfg.Configure(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeStore(); err != nil {
					logger.Warn("Failed to close revision store", slog.Any("error", err))
				}
			}()

			archive, closeArchive, err := storageCfg.ConfigureArchive(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeArchive(); err != nil {
					logger.Warn("Failed to close build request archive", slog.Any("error", err))
				}
			}()

			sources := github.NewSourceFactory(client,
				github.WithTrustedPermissions(githubCfg.TrustedPermissions...),
			)
			defer sources.Close()

			buildOpts := []usecase.BuildOption{
				usecase.WithStrategies(strategies...),
				usecase.WithDispatchEventType(githubCfg.DispatchEventType),
			}
			if archive != nil {
				buildOpts = append(buildOpts, usecase.WithArchive(archive))
			}
			if notifier := slackCfg.Configure(); notifier != nil {
				buildOpts = append(buildOpts, usecase.WithNotifier(notifier))
			}

			// Create use cases
			buildUC := usecase.NewBuild(store, sources, client, buildOpts...)
			processor := githubctrl.NewEventProcessor(buildUC, client,
				githubctrl.WithCheckoutStrategy(checkout),
			)

			names := make([]string, 0, len(strategies))
			for _, s := range strategies {
				names = append(names, s.String())
			}

			// Create HTTP server with options
			server, err := controller.NewServer(
				ctx,
				processor,
				controller.WithAddr(serverCfg.Addr),
				controller.WithWebhookSecret(githubCfg.WebhookSecret),
				controller.WithStrategyNames(names...),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			// Start server in goroutine
			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			// Wait for interrupt signal
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			}

			// Graceful shutdown
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
