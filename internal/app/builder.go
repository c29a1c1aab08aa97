package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradewatch/internal/config"
	"tradewatch/internal/daemon"
	"tradewatch/internal/gateway"
	"tradewatch/internal/gateway/engine"
	"tradewatch/internal/gateway/notifier"
	"tradewatch/internal/inference"
	"tradewatch/internal/logger"
	"tradewatch/internal/market"
	"tradewatch/internal/metrics"
	"tradewatch/internal/pkg/circuit"
	"tradewatch/internal/state"
	"tradewatch/internal/tradesetup"
	livehttp "tradewatch/internal/transport/http/live"
	"tradewatch/internal/trigger"
)

// AppBuilder assembles the daemon from a loaded configuration. The factory hooks
// exist so tests can swap the external collaborators.
type AppBuilder struct {
	cfg     *config.Config
	cfgPath string

	engineFn     func(config.EngineConfig) (inference.Engine, error)
	marketDataFn func(config.MarketConfig) (market.Source, error)
	notifierFn   func(config.NotifyConfig) notifier.TextNotifier
	clock        func() time.Time
}

type AppBuilderOption func(*AppBuilder)

// WithConfigPath enables hot reload of the file at path.
func WithConfigPath(path string) AppBuilderOption {
	return func(b *AppBuilder) { b.cfgPath = strings.TrimSpace(path) }
}

func WithEngineFactory(fn func(config.EngineConfig) (inference.Engine, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.engineFn = fn
		}
	}
}

func WithMarketData(fn func(config.MarketConfig) (market.Source, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.marketDataFn = fn
		}
	}
}

func WithNotifier(fn func(config.NotifyConfig) notifier.TextNotifier) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.notifierFn = fn
		}
	}
}

func WithClock(now func() time.Time) AppBuilderOption {
	return func(b *AppBuilder) {
		if now != nil {
			b.clock = now
		}
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:          cfg,
		engineFn:     buildEngine,
		marketDataFn: gateway.NewSourceFromConfig,
		notifierFn:   buildNotifier,
		clock:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Build wires every component. Nothing starts until App.Run.
func (b *AppBuilder) Build(_ context.Context) (*App, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	eng, err := b.engineFn(cfg.Engine)
	if err != nil {
		return nil, fmt.Errorf("build inference engine: %w", err)
	}
	data, err := b.marketDataFn(cfg.Market)
	if err != nil {
		return nil, fmt.Errorf("build market data source: %w", err)
	}
	calendar, err := buildCalendar(cfg.Market.Calendar)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	registry := tradesetup.NewRegistry(
		tradesetup.WithClock(b.clock),
		tradesetup.WithProximity(cfg.Market.ProximityBand),
	)
	st := state.New(registry,
		state.WithClock(b.clock),
		state.WithInterval(cfg.Daemon.IntervalSeconds),
		state.WithAutoInferenceInterval(cfg.Daemon.AutoInferenceIntervalSeconds),
	)
	registry.OnTransition(m.ObserveTransitions)

	var alerter *notifier.SetupAlerter
	if tn := b.notifierFn(cfg.Notify); tn != nil {
		alerter = notifier.NewSetupAlerter(tn, registry.Get, parseStatuses(cfg.Notify.Telegram.Statuses))
		registry.OnTransition(alerter.HandleTransitions)
		logger.Infof("✓ telegram alerts enabled for %v", cfg.Notify.Telegram.Statuses)
	}

	coord := inference.NewCoordinator(st, eng, calendar,
		inference.WithCooldown(seconds(cfg.Daemon.CooldownSeconds)),
		inference.WithTimeout(seconds(cfg.Engine.TimeoutSeconds)),
		inference.WithManualCooldown(cfg.Daemon.ManualRespectsCooldown),
		inference.WithObserver(m),
		inference.WithClock(b.clock),
	)
	proximity := trigger.NewProximity(st, data, coord, cfg.Market.Symbol, cfg.Market.TrendlineTimeframe)
	breaker := circuit.New("price-feed",
		cfg.Daemon.PriceBreakerThreshold,
		seconds(cfg.Daemon.PriceBreakerCooldownSeconds),
	)
	loop := daemon.New(st, coord, proximity, data, daemon.Settings{
		Symbol:       cfg.Market.Symbol,
		Tick:         seconds(cfg.Daemon.TickSeconds),
		TriggerEvery: seconds(cfg.Daemon.TriggerCheckSeconds),
		PruneMaxAge:  time.Duration(cfg.Daemon.PruneMaxAgeMinutes) * time.Minute,
	}, daemon.WithClock(b.clock), daemon.WithBreaker(breaker), daemon.WithPriceObserver(m))

	server, err := livehttp.NewServer(livehttp.ServerConfig{
		Addr:           cfg.HTTP.Addr,
		Deps:           livehttp.Deps{State: st, Trigger: coord, Metrics: m},
		StreamInterval: seconds(cfg.HTTP.StreamIntervalSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("build http server: %w", err)
	}
	logger.Infof("✓ http api listening on %s", server.Addr())

	a := &App{
		cfg:         cfg,
		state:       st,
		coordinator: coord,
		loop:        loop,
		httpServer:  server,
		alerter:     alerter,
		metrics:     m,
		Summary:     newStartupSummary(cfg, eng.Name()),
	}
	if b.cfgPath != "" {
		a.watcher = config.NewWatcher(b.cfgPath, a.applyReload)
	}
	return a, nil
}

func buildEngine(cfg config.EngineConfig) (inference.Engine, error) {
	return engine.New(engine.Settings{
		Kind:        cfg.Kind,
		Command:     cfg.Command,
		Args:        cfg.Args,
		WorkDir:     cfg.WorkDir,
		APIKeyEnv:   cfg.APIKeyEnv,
		APIURL:      cfg.APIURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxRetries:  cfg.MaxRetries,
		Headers:     cfg.Headers,
		PromptPath:  cfg.PromptPath,
		SystemPath:  cfg.SystemPromptPath,
		HTTPTimeout: seconds(cfg.HTTPTimeoutSeconds),
	})
}

func buildNotifier(cfg config.NotifyConfig) notifier.TextNotifier {
	if !cfg.Telegram.Enabled {
		return nil
	}
	return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
}

func buildCalendar(name string) (market.Calendar, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "regular":
		return market.RegularSession(), nil
	case "always":
		return market.AlwaysOpen{}, nil
	default:
		return nil, fmt.Errorf("unknown market calendar %q", name)
	}
}

func parseStatuses(raw []string) []tradesetup.Status {
	out := make([]tradesetup.Status, 0, len(raw))
	for _, s := range raw {
		if st, ok := tradesetup.ParseStatus(s); ok {
			out = append(out, st)
			continue
		}
		logger.Warnf("notify: ignoring unknown status %q", s)
	}
	return out
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
