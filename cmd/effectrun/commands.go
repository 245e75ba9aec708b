package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"slices"
	"syscall"

	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/assembly"
	"github.com/on-the-ground/effect_ive_runtime/internal/app"
	"github.com/on-the-ground/effect_ive_runtime/internal/config"
	"github.com/on-the-ground/effect_ive_runtime/internal/host"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "effectrun",
		Short:         "Algebraic-effect runtime reference application",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "effectrun.yaml", "path to a YAML or JSON config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Assemble the application and serve HTTP until interrupted",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				return serve(ctx, cfg)
			},
		},
		&cobra.Command{
			Use:   "check-config",
			Short: "Load and validate the configuration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "config ok: database=%s cache=%s messaging=%t auth=%t metrics=%t\n",
					cfg.Database.Driver, cfg.Cache.Backend, cfg.Messaging.Enabled, cfg.Auth.Enabled, cfg.Metrics.Enabled)
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)
	return root
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// serve runs the Startup Program, serves until ctx is done, then runs the
// Shutdown Program. Startup and shutdown go through the same effect
// machinery as request handling.
func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	web := host.New(host.WithLogger(logger.Named("host")))
	assembler := assembly.NewInterpreter(web.Callbacks())

	started := effects.Run(ctx, app.Startup(cfg), assembler)
	res, ok := started.Value()
	if !ok {
		ierr, _ := started.Err()
		return fmt.Errorf("startup: %w", ierr)
	}
	defer func() {
		// ctx is already done here; shutdown must still run.
		stopped := effects.Run(context.WithoutCancel(ctx), app.Shutdown(res), assembler)
		if ierr, failed := stopped.Err(); failed {
			logger.Error("shutdown failed", zap.Error(ierr))
		}
	}()

	rt, err := app.NewRuntime(cfg, res, logger.Named("runtime"))
	if err != nil {
		return err
	}
	defer rt.Close()

	router := app.Router(rt, app.RouterConfig{
		ChatTopic:      firstOr(cfg.Messaging.Topics, "chat"),
		RelayIdle:      cfg.ConsumeTimeout() * 12,
		AllowAnyOrigin: slices.Contains(cfg.HTTP.CorsOrigins, "*"),
	})
	if mounted := effects.Run(ctx, app.Mount(router), assembler); mounted.IsErr() {
		ierr, _ := mounted.Err()
		return fmt.Errorf("mount: %w", ierr)
	}

	err = web.Serve(ctx, cfg.HTTP.Addr, cfg.ShutdownTimeout())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func firstOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return values[0]
}
