package config

import "strings"

// Config is the root of the daemon configuration file.
type Config struct {
	App    AppConfig    `toml:"app"`
	Daemon DaemonConfig `toml:"daemon"`
	Market MarketConfig `toml:"market"`
	Engine EngineConfig `toml:"engine"`
	Notify NotifyConfig `toml:"notify"`
	HTTP   HTTPConfig   `toml:"http"`
}

type AppConfig struct {
	Env              string `toml:"env"`
	LogLevel         string `toml:"log_level"`
	LogPath          string `toml:"log_path"`
	InferenceLogPath string `toml:"inference_log_path"`
	StartRunning     bool   `toml:"start_running"`
}

// DaemonConfig drives the main loop cadences and the inference gates.
type DaemonConfig struct {
	TickSeconds                  int  `toml:"tick_seconds"`
	TriggerCheckSeconds          int  `toml:"trigger_check_seconds"`
	IntervalSeconds              int  `toml:"interval_seconds"`
	AutoInferenceIntervalSeconds int  `toml:"auto_inference_interval_seconds"`
	CooldownSeconds              int  `toml:"cooldown_seconds"`
	PruneMaxAgeMinutes           int  `toml:"prune_max_age_minutes"`
	ManualRespectsCooldown       bool `toml:"manual_respects_cooldown"`
	PriceBreakerThreshold        int  `toml:"price_breaker_threshold"`
	PriceBreakerCooldownSeconds  int  `toml:"price_breaker_cooldown_seconds"`
}

type MarketConfig struct {
	Symbol                  string  `toml:"symbol"`
	DataServiceURL          string  `toml:"data_service_url"`
	TrendlineTimeframe      int     `toml:"trendline_timeframe"`
	PriceTimeoutSeconds     int     `toml:"price_timeout_seconds"`
	TrendlineTimeoutSeconds int     `toml:"trendline_timeout_seconds"`
	MaxRetries              int     `toml:"max_retries"`
	Calendar                string  `toml:"calendar"` // regular | always
	ProximityBand           float64 `toml:"proximity_band"`
}

// EngineConfig selects the inference engine. The API key itself never lives in
// the file; APIKeyEnv names the environment variable holding it.
type EngineConfig struct {
	Kind               string            `toml:"kind"` // cli | openai
	Command            string            `toml:"command"`
	Args               []string          `toml:"args"`
	WorkDir            string            `toml:"work_dir"`
	APIKeyEnv          string            `toml:"api_key_env"`
	APIURL             string            `toml:"api_url"`
	Model              string            `toml:"model"`
	Temperature        float64           `toml:"temperature"`
	MaxRetries         int               `toml:"max_retries"`
	Headers            map[string]string `toml:"headers"`
	PromptPath         string            `toml:"prompt_path"`
	SystemPromptPath   string            `toml:"system_prompt_path"`
	TimeoutSeconds     int               `toml:"timeout_seconds"`
	HTTPTimeoutSeconds int               `toml:"http_timeout_seconds"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool     `toml:"enabled"`
	BotToken string   `toml:"bot_token"`
	ChatID   string   `toml:"chat_id"`
	Statuses []string `toml:"statuses"`
}

type HTTPConfig struct {
	Addr                  string `toml:"addr"`
	StreamIntervalSeconds int    `toml:"stream_interval_seconds"`
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
