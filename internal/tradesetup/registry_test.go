package tradesetup

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRegistry() (*Registry, *fakeClock) {
	clk := &fakeClock{now: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)}
	return NewRegistry(WithClock(clk.Now)), clk
}

func TestRegistry_AddAndList(t *testing.T) {
	r, clk := newTestRegistry()
	first := longSetup()
	r.AddSetups([]TradeSetup{first})
	clk.Advance(time.Minute)
	r.AddSetups([]TradeSetup{shortSetup()})

	setups := r.ActiveSetups()
	require.Len(t, setups, 2)
	assert.Equal(t, "short_1", setups[0].ID, "newest first")
	assert.Equal(t, "long_1", setups[1].ID)
	assert.Equal(t, StatusNew, setups[1].Status)
	assert.Equal(t, clk.Now().Add(-time.Minute), setups[1].CreatedAt)
}

func TestRegistry_AddSkipsEmptyID(t *testing.T) {
	r, _ := newTestRegistry()
	s := longSetup()
	s.ID = "  "
	assert.Equal(t, 0, r.AddSetups([]TradeSetup{s}))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_MergePolicy(t *testing.T) {
	cases := []struct {
		existing Status
		replaced bool
	}{
		{StatusNew, true},
		{StatusMonitoring, true},
		{StatusCloseToEntry, true},
		{StatusCanceled, true},
		{StatusTrading, false},
		{StatusProfit, false},
		{StatusStopLoss, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.existing), func(t *testing.T) {
			r, _ := newTestRegistry()
			orig := longSetup()
			orig.Status = tc.existing
			r.AddSetups([]TradeSetup{orig})

			update := longSetup()
			update.Entry.Price = 5050.0
			update.Targets = []TargetRule{{Price: 5060.0}}
			r.AddSetups([]TradeSetup{update})

			got, ok := r.Get("long_1")
			require.True(t, ok)
			if tc.replaced {
				assert.Equal(t, 5050.0, got.Entry.Price)
				assert.Equal(t, StatusNew, got.Status)
			} else {
				assert.Equal(t, 5000.0, got.Entry.Price)
				assert.Equal(t, tc.existing, got.Status)
				assert.Len(t, got.Targets, 2)
			}
		})
	}
}

func TestRegistry_UpdateSetupsScenario(t *testing.T) {
	r, _ := newTestRegistry()
	r.AddSetups([]TradeSetup{longSetup(), shortSetup()})

	var mu sync.Mutex
	var seen []Transition
	r.OnTransition(func(ts []Transition) {
		mu.Lock()
		seen = append(seen, ts...)
		mu.Unlock()
	})

	tr := r.UpdateSetups(5005.0)
	require.Len(t, tr, 2)
	long, _ := r.Get("long_1")
	short, _ := r.Get("short_1")
	assert.Equal(t, StatusMonitoring, long.Status)
	assert.Equal(t, StatusTrading, short.Status)

	r.UpdateSetups(5000.0)
	long, _ = r.Get("long_1")
	assert.Equal(t, StatusTrading, long.Status)

	r.UpdateSetups(5010.0)
	long, _ = r.Get("long_1")
	short, _ = r.Get("short_1")
	assert.Equal(t, StatusProfit, long.Status)
	assert.Equal(t, StatusStopLoss, short.Status)

	assert.Empty(t, r.UpdateSetups(5010.0), "terminal setups emit nothing")

	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, seen)
	for _, s := range seen {
		assert.NotEqual(t, s.From, s.To)
	}
}

func TestRegistry_UpdateSetupsSkipsBadTicks(t *testing.T) {
	r, _ := newTestRegistry()
	r.AddSetups([]TradeSetup{longSetup()})
	r.UpdateSetups(5005.0)

	for _, p := range []float64{math.Inf(1), math.NaN(), 0} {
		assert.Empty(t, r.UpdateSetups(p))
	}
	got, _ := r.Get("long_1")
	assert.Equal(t, StatusMonitoring, got.Status)
}

func TestRegistry_PruneBacklog(t *testing.T) {
	r, clk := newTestRegistry()
	old := longSetup()
	old.ID = "old"
	old.Status = StatusTrading
	old.CreatedAt = clk.Now().Add(-31 * time.Minute)
	fresh := shortSetup()
	fresh.ID = "fresh"
	fresh.Status = StatusProfit
	fresh.CreatedAt = clk.Now().Add(-29 * time.Minute)
	r.AddSetups([]TradeSetup{old, fresh})

	assert.Equal(t, 1, r.PruneBacklog(30*time.Minute))
	_, ok := r.Get("old")
	assert.False(t, ok)
	_, ok = r.Get("fresh")
	assert.True(t, ok)
}

func TestRegistry_Cancel(t *testing.T) {
	r, _ := newTestRegistry()
	r.AddSetups([]TradeSetup{longSetup()})

	tr, ok := r.Cancel("long_1")
	require.True(t, ok)
	assert.Equal(t, StatusNew, tr.From)
	assert.Equal(t, StatusCanceled, tr.To)

	_, ok = r.Cancel("long_1")
	assert.False(t, ok, "already terminal")
	_, ok = r.Cancel("missing")
	assert.False(t, ok)

	r.UpdateSetups(5000.0)
	got, _ := r.Get("long_1")
	assert.Equal(t, StatusCanceled, got.Status)
}

func TestRegistry_SnapshotsAreCopies(t *testing.T) {
	r, _ := newTestRegistry()
	r.AddSetups([]TradeSetup{longSetup()})
	snap := r.ActiveSetups()
	snap[0].Status = StatusProfit
	snap[0].Targets[0].Price = 1

	got, _ := r.Get("long_1")
	assert.Equal(t, StatusNew, got.Status)
	assert.Equal(t, 5010.0, got.Targets[0].Price)
}

func TestRegistry_ListenerPanicIsContained(t *testing.T) {
	r, _ := newTestRegistry()
	r.AddSetups([]TradeSetup{longSetup()})
	r.OnTransition(func([]Transition) { panic("boom") })
	assert.NotPanics(t, func() { r.UpdateSetups(5010.0) })
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r, _ := newTestRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			r.AddSetups([]TradeSetup{longSetup(), shortSetup()})
		}()
		go func(p float64) {
			defer wg.Done()
			r.UpdateSetups(p)
		}(4995.0 + float64(i))
		go func() {
			defer wg.Done()
			_ = r.ActiveSetups()
		}()
	}
	wg.Wait()
	assert.Equal(t, 2, r.Len())
}
