package config

import (
	"strings"
)

const (
	defaultAppEnv              = "dev"
	defaultAppLogLevel         = "info"
	defaultTickSeconds         = 5
	defaultTriggerCheckSeconds = 15
	defaultIntervalSeconds     = 120
	defaultCooldownSeconds     = 180
	defaultPruneMaxAgeMinutes  = 30
	defaultBreakerThreshold    = 5
	defaultBreakerCooldown     = 60
	defaultSymbol              = "@ES"
	defaultDataServiceURL      = "http://localhost:8000"
	defaultTrendlineTimeframe  = 5
	defaultPriceTimeout        = 10
	defaultTrendlineTimeout    = 5
	defaultMarketRetries       = 3
	defaultCalendar            = "regular"
	defaultProximityBand       = 3.0
	defaultEngineKind          = "cli"
	defaultEngineCommand       = "gemini"
	defaultEngineKeyEnv        = "GEMINI_API_KEY"
	defaultEngineTemperature   = 0.5
	defaultEngineRetries       = 2
	defaultPromptPath          = "prompts/user-prompt.md"
	defaultEngineTimeout       = 600
	defaultEngineHTTPTimeout   = 120
	defaultHTTPAddr            = ":8001"
	defaultStreamInterval      = 2
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Daemon.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Engine.applyDefaults(keys)
	c.HTTP.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		boolFieldDefault("app.start_running", &a.StartRunning, true),
	)
}

func (d *DaemonConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("daemon.tick_seconds", &d.TickSeconds, defaultTickSeconds),
		intFieldDefault("daemon.trigger_check_seconds", &d.TriggerCheckSeconds, defaultTriggerCheckSeconds),
		intFieldDefault("daemon.interval_seconds", &d.IntervalSeconds, defaultIntervalSeconds),
		intFieldDefault("daemon.prune_max_age_minutes", &d.PruneMaxAgeMinutes, defaultPruneMaxAgeMinutes),
		intFieldDefault("daemon.price_breaker_threshold", &d.PriceBreakerThreshold, defaultBreakerThreshold),
		intFieldDefault("daemon.price_breaker_cooldown_seconds", &d.PriceBreakerCooldownSeconds, defaultBreakerCooldown),
		// Zero is a legal cooldown, so only an absent key gets the default.
		fieldDefault{
			key:   "daemon.cooldown_seconds",
			apply: func() { d.CooldownSeconds = defaultCooldownSeconds },
		},
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market.symbol", &m.Symbol, defaultSymbol),
		stringFieldDefault("market.data_service_url", &m.DataServiceURL, defaultDataServiceURL),
		stringFieldDefault("market.calendar", &m.Calendar, defaultCalendar),
		intFieldDefault("market.trendline_timeframe", &m.TrendlineTimeframe, defaultTrendlineTimeframe),
		intFieldDefault("market.price_timeout_seconds", &m.PriceTimeoutSeconds, defaultPriceTimeout),
		intFieldDefault("market.trendline_timeout_seconds", &m.TrendlineTimeoutSeconds, defaultTrendlineTimeout),
		fieldDefault{
			key:   "market.max_retries",
			apply: func() { m.MaxRetries = defaultMarketRetries },
		},
		fieldDefault{
			key:   "market.proximity_band",
			need:  func() bool { return m.ProximityBand <= 0 },
			apply: func() { m.ProximityBand = defaultProximityBand },
		},
	)
	m.Calendar = strings.ToLower(strings.TrimSpace(m.Calendar))
}

func (e *EngineConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("engine.kind", &e.Kind, defaultEngineKind),
		stringFieldDefault("engine.api_key_env", &e.APIKeyEnv, defaultEngineKeyEnv),
		stringFieldDefault("engine.prompt_path", &e.PromptPath, defaultPromptPath),
		intFieldDefault("engine.timeout_seconds", &e.TimeoutSeconds, defaultEngineTimeout),
		intFieldDefault("engine.http_timeout_seconds", &e.HTTPTimeoutSeconds, defaultEngineHTTPTimeout),
		fieldDefault{
			key:   "engine.temperature",
			apply: func() { e.Temperature = defaultEngineTemperature },
		},
		fieldDefault{
			key:   "engine.max_retries",
			apply: func() { e.MaxRetries = defaultEngineRetries },
		},
	)
	e.Kind = strings.ToLower(strings.TrimSpace(e.Kind))
	if e.Kind == defaultEngineKind {
		applyFieldDefaults(keys, stringFieldDefault("engine.command", &e.Command, defaultEngineCommand))
	}
}

func (h *HTTPConfig) applyDefaults(keys keySet) {
	if h == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("http.addr", &h.Addr, defaultHTTPAddr),
		intFieldDefault("http.stream_interval_seconds", &h.StreamIntervalSeconds, defaultStreamInterval),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && strings.TrimSpace(*target) == "" },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
