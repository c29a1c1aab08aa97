package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradewatch/internal/tradesetup"
)

func TestMetricsRecord(t *testing.T) {
	m := New()
	m.InferenceSkipped("cooldown")
	m.InferenceSkipped("cooldown")
	m.InferenceFinished("complete", 12.5)
	m.ObserveTransitions([]tradesetup.Transition{{To: tradesetup.StatusTrading}, {To: tradesetup.StatusProfit}})
	m.SetActiveSetups(3)
	m.SetLastPrice(5001.25)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.skips.WithLabelValues("cooldown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("TRADING")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.active))
	assert.Equal(t, 5001.25, testutil.ToFloat64(m.lastPrice))
}

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.SetLastPrice(10)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "tradewatch_last_price 10")
}
