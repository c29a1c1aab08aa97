package app

import (
	"context"
	"fmt"

	"tradewatch/internal/config"
	"tradewatch/internal/daemon"
	"tradewatch/internal/gateway/notifier"
	"tradewatch/internal/inference"
	"tradewatch/internal/logger"
	"tradewatch/internal/metrics"
	"tradewatch/internal/state"
	livehttp "tradewatch/internal/transport/http/live"

	"golang.org/x/sync/errgroup"
)

// App owns the running daemon: the main loop, the HTTP API and the config watcher.
type App struct {
	cfg         *config.Config
	state       *state.State
	coordinator *inference.Coordinator
	loop        *daemon.Loop
	httpServer  *livehttp.Server
	watcher     *config.Watcher
	alerter     *notifier.SetupAlerter
	metrics     *metrics.Metrics
	Summary     *StartupSummary
}

// NewApp builds the application without starting it.
func NewApp(ctx context.Context, cfg *config.Config, cfgPath string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(ctx, cfg, cfgPath)
}

// Run blocks until ctx is canceled or one of the components fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	a.state.SetRunning(a.cfg.App.StartRunning)

	group, ctx := errgroup.WithContext(ctx)
	a.coordinator.Bind(ctx)

	if a.httpServer != nil {
		group.Go(func() error {
			if err := a.httpServer.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}
	if a.watcher != nil {
		group.Go(func() error {
			if err := a.watcher.Run(ctx); err != nil {
				// A broken watcher must not take the daemon down.
				logger.Warnf("config hot reload disabled: %v", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		return a.loop.Run(ctx)
	})

	err := group.Wait()
	if a.alerter != nil {
		a.alerter.Wait()
	}
	return err
}

// State exposes the daemon state, mostly for tests.
func (a *App) State() *state.State {
	if a == nil {
		return nil
	}
	return a.state
}

// applyReload pushes the runtime-tunable parts of a reloaded config into the
// running daemon. Addresses, engine and market wiring need a restart.
func (a *App) applyReload(cfg *config.Config) {
	if cfg == nil {
		return
	}
	logger.SetLevel(cfg.App.LogLevel)
	a.state.SetInterval(cfg.Daemon.IntervalSeconds)
	a.state.SetAutoInferenceInterval(cfg.Daemon.AutoInferenceIntervalSeconds)
	logger.Infof("config applied: interval=%ds auto_inference=%ds log_level=%s",
		cfg.Daemon.IntervalSeconds, cfg.Daemon.AutoInferenceIntervalSeconds, cfg.App.LogLevel)
}
