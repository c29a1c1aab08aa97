package config

import (
	"fmt"
	"net/url"
	"strings"
)

func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Daemon.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Engine.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return c.HTTP.validate()
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("app.log_level must be one of debug|info|warn|error, got %q", a.LogLevel)
	}
}

func (d *DaemonConfig) validate() error {
	if d.TickSeconds <= 0 {
		return fmt.Errorf("daemon.tick_seconds must be > 0")
	}
	if d.TriggerCheckSeconds <= 0 {
		return fmt.Errorf("daemon.trigger_check_seconds must be > 0")
	}
	if d.IntervalSeconds <= 0 {
		return fmt.Errorf("daemon.interval_seconds must be > 0")
	}
	if d.AutoInferenceIntervalSeconds < 0 {
		return fmt.Errorf("daemon.auto_inference_interval_seconds must be >= 0")
	}
	if d.CooldownSeconds < 0 {
		return fmt.Errorf("daemon.cooldown_seconds must be >= 0")
	}
	if d.PruneMaxAgeMinutes <= 0 {
		return fmt.Errorf("daemon.prune_max_age_minutes must be > 0")
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if strings.TrimSpace(m.Symbol) == "" {
		return fmt.Errorf("market.symbol cannot be empty")
	}
	u, err := url.Parse(m.DataServiceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("market.data_service_url must be an absolute url, got %q", m.DataServiceURL)
	}
	if m.TrendlineTimeframe <= 0 {
		return fmt.Errorf("market.trendline_timeframe must be > 0")
	}
	if m.MaxRetries < 0 {
		return fmt.Errorf("market.max_retries must be >= 0")
	}
	switch m.Calendar {
	case "regular", "always":
	default:
		return fmt.Errorf("market.calendar must be regular or always, got %q", m.Calendar)
	}
	return nil
}

func (e *EngineConfig) validate() error {
	switch e.Kind {
	case "cli":
		if strings.TrimSpace(e.Command) == "" {
			return fmt.Errorf("engine.command is required when engine.kind=cli")
		}
	case "openai":
		if strings.TrimSpace(e.Model) == "" {
			return fmt.Errorf("engine.model is required when engine.kind=openai")
		}
	default:
		return fmt.Errorf("engine.kind must be cli or openai, got %q", e.Kind)
	}
	if e.TimeoutSeconds <= 0 {
		return fmt.Errorf("engine.timeout_seconds must be > 0")
	}
	if e.MaxRetries < 0 {
		return fmt.Errorf("engine.max_retries must be >= 0")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if !tg.Enabled {
		return nil
	}
	if strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "" {
		return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
	}
	for _, s := range tg.Statuses {
		switch strings.ToUpper(strings.TrimSpace(s)) {
		case "MONITORING", "CLOSE_TO_ENTRY", "TRADING", "PROFIT", "STOP_LOSS", "CANCELED":
		default:
			return fmt.Errorf("notify.telegram.statuses contains unknown status %q", s)
		}
	}
	return nil
}

func (h *HTTPConfig) validate() error {
	if strings.TrimSpace(h.Addr) == "" {
		return fmt.Errorf("http.addr cannot be empty")
	}
	if h.StreamIntervalSeconds <= 0 {
		return fmt.Errorf("http.stream_interval_seconds must be > 0")
	}
	return nil
}
