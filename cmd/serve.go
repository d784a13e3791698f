// cmd/serve.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/portal-sentry/api/schemas"
	"github.com/xkilldash9x/portal-sentry/internal/browser"
	"github.com/xkilldash9x/portal-sentry/internal/config"
	"github.com/xkilldash9x/portal-sentry/internal/mailer"
	"github.com/xkilldash9x/portal-sentry/internal/observability"
	"github.com/xkilldash9x/portal-sentry/internal/registry"
	"github.com/xkilldash9x/portal-sentry/internal/runner"
	"github.com/xkilldash9x/portal-sentry/internal/server"
	"github.com/xkilldash9x/portal-sentry/internal/store"
)

// newServeCmd creates the `serve` command: the long-running daemon mode with
// the schedule registry and the HTTP API.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler daemon and HTTP API",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			if err := components.Registry.Seed(ctx, components.Store); err != nil {
				return fmt.Errorf("failed to seed schedule registry: %w", err)
			}
			components.Registry.Start()

			digestCron := startDigestCron(ctx, components.Mailer, logger)

			srv := server.New(cfg.Server, logger, components.Store, components.Runner, components.Registry)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server failed: %w", err)
				}
			case <-ctx.Done():
				logger.Info("Shutdown signal received")
			}

			if err := srv.Shutdown(context.Background()); err != nil {
				logger.Warn("HTTP shutdown incomplete", zap.Error(err))
			}

			if digestCron != nil {
				<-digestCron.Stop().Done()
			}

			// Let in-flight cron jobs finish, bounded.
			stopCtx := components.Registry.Stop()
			select {
			case <-stopCtx.Done():
			case <-time.After(cfg.Runner.AttemptTimeout):
				logger.Warn("Timed out waiting for in-flight runs")
			}

			logger.Info("Shutdown complete")
			return nil
		},
	}

	serveCmd.Flags().String("addr", "", "HTTP listen address (overrides config/env)")
	return serveCmd
}

// components holds the initialized services shared by the daemon and the
// one-shot commands.
type components struct {
	Store    *store.SQLiteStore
	Driver   *browser.Driver
	Runner   *runner.Orchestrator
	Registry *registry.Registry
	Mailer   *mailer.Mailer
}

// Shutdown releases held resources.
func (c *components) Shutdown() {
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			observability.GetLogger().Warn("Error closing store", zap.Error(err))
		}
	}
}

// initializeComponents handles dependency injection for the daemon and
// one-shot commands.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	c := &components{}

	// 1. Store
	st, err := store.Open(cfg.Store.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	c.Store = st

	// 2. Browser driver
	c.Driver = browser.NewDriver(cfg, logger)

	// 3. Notification sink (optional)
	var sink *mailer.Mailer
	if cfg.Mailer.Enabled {
		sink = mailer.New(cfg.Mailer, st, logger)
		c.Mailer = sink
	}

	// 4. Runner
	orch, err := runnerFor(cfg, logger, c, sink)
	if err != nil {
		c.Shutdown()
		return nil, err
	}
	c.Runner = orch

	// 5. Schedule registry, firing by account name so edits take effect on
	// the next trigger without re-registration.
	c.Registry = registry.New(logger, func(name string) {
		runCtx, cancel := context.WithTimeout(context.Background(), cfg.Runner.AttemptTimeout*2)
		defer cancel()
		c.Runner.RunAccountByName(runCtx, name)
	})

	return c, nil
}

// startDigestCron schedules the weekly and monthly digest emails when the
// mailer is enabled. Returns nil when there is nothing to schedule.
func startDigestCron(ctx context.Context, sink *mailer.Mailer, logger *zap.Logger) *cron.Cron {
	if sink == nil {
		return nil
	}

	c := cron.New()
	send := func(cadence schemas.DigestCadence) func() {
		return func() {
			sendCtx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			if err := sink.SendDigest(sendCtx, cadence); err != nil {
				logger.Warn("Digest send failed.",
					zap.String("cadence", string(cadence)),
					zap.Error(err))
			}
		}
	}

	// Monday mornings and the first of the month.
	if _, err := c.AddFunc("0 8 * * MON", send(schemas.DigestWeekly)); err != nil {
		logger.Error("Failed to schedule weekly digest.", zap.Error(err))
	}
	if _, err := c.AddFunc("0 8 1 * *", send(schemas.DigestMonthly)); err != nil {
		logger.Error("Failed to schedule monthly digest.", zap.Error(err))
	}

	c.Start()
	logger.Info("Digest schedule started")
	return c
}

func runnerFor(cfg *config.Config, logger *zap.Logger, c *components, sink *mailer.Mailer) (*runner.Orchestrator, error) {
	// A typed nil in an interface would dodge the runner's nil checks.
	if sink == nil {
		return runner.New(cfg, logger, c.Store, c.Driver, nil)
	}
	return runner.New(cfg, logger, c.Store, c.Driver, sink)
}
