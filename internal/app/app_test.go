package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tradewatch/internal/config"
	"tradewatch/internal/gateway/notifier"
	"tradewatch/internal/inference"
	"tradewatch/internal/logger"
	"tradewatch/internal/market"
	"tradewatch/internal/tradesetup"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct{}

func (stubEngine) Name() string { return "stub" }

func (stubEngine) Invoke(context.Context, string) (string, error) {
	return `{"setups": []}`, nil
}

type stubMarket struct{}

func (stubMarket) LatestPrice(context.Context, string) (float64, error) { return 5000, nil }

func (stubMarket) Trendlines(context.Context, string, int) (market.Trendlines, error) {
	return market.Trendlines{}, nil
}

type captureNotifier struct {
	sent chan string
}

func (c *captureNotifier) SendText(_ context.Context, text string) error {
	c.sent <- text
	return nil
}

func loadTestConfig(t *testing.T, body string) (*config.Config, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg, path
}

func stubOptions(n notifier.TextNotifier) []AppBuilderOption {
	return []AppBuilderOption{
		WithEngineFactory(func(config.EngineConfig) (inference.Engine, error) { return stubEngine{}, nil }),
		WithMarketData(func(config.MarketConfig) (market.Source, error) { return stubMarket{}, nil }),
		WithNotifier(func(config.NotifyConfig) notifier.TextNotifier { return n }),
	}
}

func TestBuildWiresState(t *testing.T) {
	cfg, _ := loadTestConfig(t, "daemon:\n  interval_seconds: 60\n  auto_inference_interval_seconds: 900\nhttp:\n  addr: 127.0.0.1:0\n")
	a, err := NewAppBuilder(cfg, stubOptions(nil)...).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 60, a.State().Interval())
	assert.Equal(t, 900, a.State().AutoInferenceInterval())
	assert.False(t, a.State().IsRunning())
	assert.Nil(t, a.watcher, "no config path, no watcher")
	assert.Nil(t, a.alerter)

	var buf bytes.Buffer
	a.Summary.out = &buf
	a.Summary.Print()
	assert.Contains(t, buf.String(), "@ES")
	assert.Contains(t, buf.String(), "every 900s")
	assert.Contains(t, buf.String(), "stub")
}

func TestSummaryDefaultsToLogger(t *testing.T) {
	cfg, _ := loadTestConfig(t, "http:\n  addr: 127.0.0.1:0\n")
	a, err := NewAppBuilder(cfg, stubOptions(nil)...).Build(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(nil)
	a.Summary.Print()
	assert.Contains(t, buf.String(), "STARTUP SUMMARY")
	assert.Contains(t, buf.String(), "[SERVICES]")
}

func TestBuildRejectsUnknownCalendar(t *testing.T) {
	cfg, _ := loadTestConfig(t, "http:\n  addr: 127.0.0.1:0\n")
	cfg.Market.Calendar = "lunar"
	_, err := NewAppBuilder(cfg, stubOptions(nil)...).Build(context.Background())
	assert.Error(t, err)
}

func TestTransitionsReachNotifier(t *testing.T) {
	cfg, _ := loadTestConfig(t, "http:\n  addr: 127.0.0.1:0\n")
	n := &captureNotifier{sent: make(chan string, 4)}
	a, err := NewAppBuilder(cfg, stubOptions(n)...).Build(context.Background())
	require.NoError(t, err)
	require.NotNil(t, a.alerter)

	reg := a.State().Setups()
	reg.AddSetups([]tradesetup.TradeSetup{{
		ID:        "long_1",
		Symbol:    "@ES",
		Direction: tradesetup.Long,
		Entry:     tradesetup.EntryRule{Type: "limit", Price: 5000},
		StopLoss:  tradesetup.StopLossRule{Price: 4990},
		Targets:   []tradesetup.TargetRule{{Price: 5020}},
	}})
	reg.UpdateSetups(4999)
	a.alerter.Wait()

	select {
	case msg := <-n.sent:
		assert.Contains(t, msg, "long_1")
	default:
		t.Fatal("expected a TRADING alert")
	}
}

func TestApplyReload(t *testing.T) {
	cfg, _ := loadTestConfig(t, "http:\n  addr: 127.0.0.1:0\n")
	a, err := NewAppBuilder(cfg, stubOptions(nil)...).Build(context.Background())
	require.NoError(t, err)

	next, _ := loadTestConfig(t, "daemon:\n  interval_seconds: 30\n  auto_inference_interval_seconds: 600\n")
	a.applyReload(next)
	assert.Equal(t, 30, a.State().Interval())
	assert.Equal(t, 600, a.State().AutoInferenceInterval())
	a.applyReload(nil)
	assert.Equal(t, 30, a.State().Interval())
}

func TestRunStopsOnCancel(t *testing.T) {
	prompt := filepath.Join(t.TempDir(), "user-prompt.md")
	require.NoError(t, os.WriteFile(prompt, []byte("Return setups as JSON."), 0o644))
	cfg, path := loadTestConfig(t, "daemon:\n  tick_seconds: 1\n"+
		"market:\n  data_service_url: http://127.0.0.1:1\n"+
		"engine:\n  prompt_path: "+prompt+"\n"+
		"http:\n  addr: 127.0.0.1:0\n")
	a, err := NewApp(context.Background(), cfg, path)
	require.NoError(t, err)
	a.Summary.out = &bytes.Buffer{}
	require.NotNil(t, a.watcher)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, a.State().IsRunning, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}
}
