package app

import (
	"fmt"
	"io"
	"strings"

	"tradewatch/internal/config"
	"tradewatch/internal/logger"
)

type StartupSummary struct {
	Market    MarketSummary
	Inference InferenceSummary
	HTTPAddr  string
	Alerts    []string

	out io.Writer
}

type MarketSummary struct {
	Symbol      string
	DataService string
	Calendar    string
	Timeframe   int
	Band        float64
}

type InferenceSummary struct {
	Engine       string
	IntervalSec  int
	AutoSec      int
	CooldownSec  int
	TimeoutSec   int
	StartRunning bool
}

func newStartupSummary(cfg *config.Config, engineName string) *StartupSummary {
	s := &StartupSummary{
		Market: MarketSummary{
			Symbol:      cfg.Market.Symbol,
			DataService: cfg.Market.DataServiceURL,
			Calendar:    cfg.Market.Calendar,
			Timeframe:   cfg.Market.TrendlineTimeframe,
			Band:        cfg.Market.ProximityBand,
		},
		Inference: InferenceSummary{
			Engine:       engineName,
			IntervalSec:  cfg.Daemon.IntervalSeconds,
			AutoSec:      cfg.Daemon.AutoInferenceIntervalSeconds,
			CooldownSec:  cfg.Daemon.CooldownSeconds,
			TimeoutSec:   cfg.Engine.TimeoutSeconds,
			StartRunning: cfg.App.StartRunning,
		},
		HTTPAddr: cfg.HTTP.Addr,
	}
	if cfg.Notify.Telegram.Enabled {
		s.Alerts = cfg.Notify.Telegram.Statuses
		if len(s.Alerts) == 0 {
			s.Alerts = []string{"TRADING", "PROFIT", "STOP_LOSS"}
		}
	}
	return s
}

// Print writes the summary to out, or through the logger when out is unset.
func (s *StartupSummary) Print() {
	block := s.render()
	if s.out == nil {
		logger.InfoBlock(block)
		return
	}
	fmt.Fprint(s.out, block)
}

func (s *StartupSummary) render() string {
	var b strings.Builder
	title := "STARTUP SUMMARY"
	fmt.Fprintln(&b, strings.Repeat("=", 60))
	fmt.Fprintf(&b, "%*s\n", 30+len(title)/2, title)
	fmt.Fprintln(&b, strings.Repeat("=", 60))

	fmt.Fprintln(&b, "[MARKET]")
	fmt.Fprintf(&b, "  Symbol:       %s\n", s.Market.Symbol)
	fmt.Fprintf(&b, "  Data service: %s\n", s.Market.DataService)
	fmt.Fprintf(&b, "  Calendar:     %s\n", s.Market.Calendar)
	fmt.Fprintf(&b, "  Trendlines:   %dmin, band %.2f\n", s.Market.Timeframe, s.Market.Band)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[INFERENCE]")
	fmt.Fprintf(&b, "  Engine:       %s\n", s.Inference.Engine)
	fmt.Fprintf(&b, "  Auto:         %s\n", formatAuto(s.Inference.AutoSec))
	fmt.Fprintf(&b, "  Cooldown:     %ds, timeout %ds\n", s.Inference.CooldownSec, s.Inference.TimeoutSec)
	fmt.Fprintf(&b, "  Start:        %s\n", formatRunning(s.Inference.StartRunning))
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[SERVICES]")
	fmt.Fprintf(&b, "  HTTP:         %s\n", s.HTTPAddr)
	fmt.Fprintf(&b, "  Alerts:       %s\n", formatList(s.Alerts))
	fmt.Fprintln(&b, strings.Repeat("=", 60))
	return b.String()
}

func formatAuto(sec int) string {
	if sec <= 0 {
		return "disabled"
	}
	return fmt.Sprintf("every %ds", sec)
}

func formatRunning(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
