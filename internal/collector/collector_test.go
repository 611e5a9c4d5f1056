package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"MarketLens/internal/market"
	"MarketLens/internal/model"
	"MarketLens/internal/recorder"
)

// Saturday: session-bound entries stay fresh until Monday's open.
var saturday = time.Date(2025, time.June, 14, 16, 0, 0, 0, time.UTC)

type memRecorder struct {
	*recorder.NoopRecorder
	mu       sync.Mutex
	resolves []*recorder.ResolveEvent
	failures []*recorder.FetchFailure
	options  []*recorder.OptionsEvent
}

func newMemRecorder() *memRecorder { return &memRecorder{NoopRecorder: recorder.NewNoopRecorder()} }

func (m *memRecorder) RecordResolve(evt *recorder.ResolveEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolves = append(m.resolves, evt)
	return nil
}

func (m *memRecorder) RecordFetchFailure(evt *recorder.FetchFailure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, evt)
	return nil
}

func (m *memRecorder) RecordOptions(evt *recorder.OptionsEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.options = append(m.options, evt)
	return nil
}

func newTestCollector(t *testing.T, f Fetcher, rec recorder.Recorder, tweak ...func(*Config)) *Collector {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Timeout = time.Second
	for _, fn := range tweak {
		fn(&cfg)
	}
	return NewCollector(f, market.NewClassifier(nil), market.NewNYSEClock(), cfg, rec, zaptest.NewLogger(t))
}

func TestResolve_HitAndMiss(t *testing.T) {
	f := &MockFetcher{Price: 100}
	rec := newMemRecorder()
	c := newTestCollector(t, f, rec)

	first := c.Resolve(context.Background(), []string{"AAPL"}, saturday)
	require.NoError(t, first["AAPL"].Err)
	assert.False(t, first["AAPL"].Cached)

	got := c.Resolve(context.Background(), []string{"AAPL", "MSFT"}, saturday.Add(time.Hour))
	require.Len(t, got, 2)
	assert.True(t, got["AAPL"].Cached)
	assert.False(t, got["MSFT"].Cached)
	assert.Equal(t, 100.0, got["MSFT"].Snapshot.Price)

	assert.Equal(t, 1, f.Calls("snapshot", "AAPL"))
	assert.Equal(t, 1, f.Calls("snapshot", "MSFT"))

	require.Len(t, rec.resolves, 2)
	assert.Equal(t, 1, rec.resolves[1].Hits)
	assert.Equal(t, 1, rec.resolves[1].Misses)
	assert.Equal(t, "snapshot", rec.resolves[1].Kind)
	assert.NotEqual(t, rec.resolves[0].BatchID, rec.resolves[1].BatchID)
}

func TestResolve_NormalisesSymbols(t *testing.T) {
	f := &MockFetcher{Price: 50}
	c := newTestCollector(t, f, nil)

	got := c.Resolve(context.Background(), []string{" aapl, msft", "AAPL"}, saturday)
	assert.Len(t, got, 2)
	assert.Contains(t, got, "AAPL")
	assert.Contains(t, got, "MSFT")
	assert.Equal(t, 1, f.Calls("snapshot", "AAPL"))
}

func TestResolve_PartialFailure(t *testing.T) {
	f := &MockFetcher{
		Price: 100,
		Errors: map[string]error{
			"GONE": model.NewFetchError("GONE", model.NotFound, errors.New("delisted")),
			"HOT":  model.NewFetchError("HOT", model.RateLimited, errors.New("slow down")),
		},
	}
	rec := newMemRecorder()
	c := newTestCollector(t, f, rec)

	got := c.Resolve(context.Background(), []string{"AAPL", "GONE", "HOT"}, saturday)
	require.Len(t, got, 3)
	require.NoError(t, got["AAPL"].Err)
	assert.ErrorIs(t, got["GONE"].Err, model.ErrNotFound)
	assert.ErrorIs(t, got["HOT"].Err, model.ErrRateLimited)
	assert.Nil(t, got["GONE"].Snapshot)

	require.Len(t, rec.failures, 2)
	kinds := map[string]string{}
	for _, f := range rec.failures {
		kinds[f.Symbol] = f.Kind
	}
	assert.Equal(t, map[string]string{"GONE": "not_found", "HOT": "rate_limited"}, kinds)
	assert.Equal(t, 2, rec.resolves[0].Failures)
}

func TestResolve_FailuresAreNotCached(t *testing.T) {
	f := &MockFetcher{
		Price:  100,
		Errors: map[string]error{"FLAKY": errors.New("boom")},
	}
	c := newTestCollector(t, f, nil)

	got := c.Resolve(context.Background(), []string{"FLAKY"}, saturday)
	assert.ErrorIs(t, got["FLAKY"].Err, model.ErrMalformedResponse)

	delete(f.Errors, "FLAKY")
	got = c.Resolve(context.Background(), []string{"FLAKY"}, saturday)
	require.NoError(t, got["FLAKY"].Err)
	assert.Equal(t, 2, f.Calls("snapshot", "FLAKY"))
	assert.Equal(t, 1, c.snapshots.Len())
}

func TestResolve_TimeoutIsolation(t *testing.T) {
	f := &MockFetcher{
		Price:  100,
		Delays: map[string]time.Duration{"SLOW": 5 * time.Second},
	}
	c := newTestCollector(t, f, nil, func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond })

	start := time.Now()
	got := c.Resolve(context.Background(), []string{"FAST", "SLOW"}, saturday)
	assert.Less(t, time.Since(start), 2*time.Second)

	require.NoError(t, got["FAST"].Err)
	assert.ErrorIs(t, got["SLOW"].Err, model.ErrTimeout)
	var fe *model.FetchError
	require.ErrorAs(t, got["SLOW"].Err, &fe)
	assert.Equal(t, "SLOW", fe.Symbol)
}

// hangingFetcher ignores its context for one symbol.
type hangingFetcher struct {
	*MockFetcher
	release chan struct{}
}

func (h *hangingFetcher) FetchSnapshot(ctx context.Context, symbol string) (*model.Snapshot, error) {
	if symbol == "HUNG" {
		<-h.release
	}
	return h.MockFetcher.FetchSnapshot(ctx, symbol)
}

func TestResolve_AbandonsHungCall(t *testing.T) {
	h := &hangingFetcher{MockFetcher: &MockFetcher{Price: 10}, release: make(chan struct{})}
	t.Cleanup(func() { close(h.release) })
	c := newTestCollector(t, h, nil, func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond })

	got := c.Resolve(context.Background(), []string{"HUNG", "OK"}, saturday)
	assert.ErrorIs(t, got["HUNG"].Err, model.ErrTimeout)
	require.NoError(t, got["OK"].Err)
}

type panickingFetcher struct{ *MockFetcher }

func (p panickingFetcher) FetchSnapshot(ctx context.Context, symbol string) (*model.Snapshot, error) {
	if symbol == "BOOM" {
		panic("decoder exploded")
	}
	return p.MockFetcher.FetchSnapshot(ctx, symbol)
}

func TestResolve_RecoversPanics(t *testing.T) {
	c := newTestCollector(t, panickingFetcher{&MockFetcher{Price: 10}}, nil)

	got := c.Resolve(context.Background(), []string{"BOOM", "OK"}, saturday)
	assert.ErrorIs(t, got["BOOM"].Err, model.ErrMalformedResponse)
	assert.Contains(t, got["BOOM"].Err.Error(), "decoder exploded")
	require.NoError(t, got["OK"].Err)
}

func TestResolve_BatchPath(t *testing.T) {
	f := &MockBatchFetcher{MockFetcher: &MockFetcher{
		Snapshots: map[string]*model.Snapshot{
			"A": {Symbol: "A", Price: 1},
			"B": {Symbol: "B", Price: 2},
			"C": {Symbol: "C", Price: 3},
			"D": {Symbol: "D", Price: 4},
		},
	}}
	c := newTestCollector(t, f, nil, func(cfg *Config) { cfg.BatchSize = 2 })

	got := c.Resolve(context.Background(), []string{"A", "B", "C", "D", "E"}, saturday)
	require.Len(t, got, 5)
	assert.Equal(t, 3, f.Calls("batch"))
	for i, sym := range []string{"A", "B", "C", "D"} {
		require.NoError(t, got[sym].Err, sym)
		assert.Equal(t, float64(i+1), got[sym].Snapshot.Price)
	}
	assert.ErrorIs(t, got["E"].Err, model.ErrNotFound)

	// all cached now except the missing one
	c.Resolve(context.Background(), []string{"A", "B", "C", "D", "E"}, saturday)
	assert.Equal(t, 4, f.Calls("batch"))
	assert.Equal(t, 2, f.Calls("snapshot", "E"))
	assert.Equal(t, 1, f.Calls("snapshot", "A"))
}

func TestResolve_BatchFailureFailsChunk(t *testing.T) {
	f := &MockBatchFetcher{
		MockFetcher: &MockFetcher{Price: 10},
		BatchErr:    model.NewFetchError("", model.RateLimited, errors.New("429")),
	}
	c := newTestCollector(t, f, nil)

	got := c.Resolve(context.Background(), []string{"A", "B"}, saturday)
	for _, sym := range []string{"A", "B"} {
		assert.ErrorIs(t, got[sym].Err, model.ErrRateLimited)
		var fe *model.FetchError
		require.ErrorAs(t, got[sym].Err, &fe)
		assert.Equal(t, sym, fe.Symbol)
	}
	assert.Equal(t, 0, c.snapshots.Len())
}

func TestResolve_BatchPerSymbolErrors(t *testing.T) {
	f := &MockBatchFetcher{MockFetcher: &MockFetcher{
		Price:  10,
		Errors: map[string]error{"B": model.NewFetchError("B", model.RateLimited, errors.New("429"))},
	}}
	rec := newMemRecorder()
	c := newTestCollector(t, f, rec)

	got := c.Resolve(context.Background(), []string{"A", "B"}, saturday)
	require.NoError(t, got["A"].Err)
	assert.ErrorIs(t, got["B"].Err, model.ErrRateLimited)
	assert.NotErrorIs(t, got["B"].Err, model.ErrNotFound)
	assert.Equal(t, 1, f.Calls("batch"))
	assert.Equal(t, 1, c.snapshots.Len())
	require.Len(t, rec.failures, 1)
	assert.Equal(t, "B", rec.failures[0].Symbol)
	assert.Equal(t, model.RateLimited.String(), rec.failures[0].Kind)
}

func TestResolve_BatchNilSnapshotIsMalformed(t *testing.T) {
	f := &MockBatchFetcher{MockFetcher: &MockFetcher{
		Snapshots: map[string]*model.Snapshot{
			"A": {Symbol: "A", Price: 1},
			"B": nil,
		},
	}}
	c := newTestCollector(t, f, nil)

	got := c.Resolve(context.Background(), []string{"A", "B"}, saturday)
	require.NoError(t, got["A"].Err)
	assert.ErrorIs(t, got["B"].Err, model.ErrMalformedResponse)
	assert.Nil(t, got["B"].Snapshot)
	assert.Equal(t, 1, c.snapshots.Len())

	// B was not cached, so it goes upstream again
	c.Resolve(context.Background(), []string{"A", "B"}, saturday)
	assert.Equal(t, 2, f.Calls("snapshot", "B"))
	assert.Equal(t, 1, f.Calls("snapshot", "A"))
}

func TestResolve_ManySymbolsBoundedPool(t *testing.T) {
	f := &MockFetcher{Price: 10}
	c := newTestCollector(t, f, nil, func(cfg *Config) { cfg.Workers = 3 })

	syms := make([]string, 40)
	for i := range syms {
		syms[i] = fmt.Sprintf("S%02d", i)
	}
	got := c.Resolve(context.Background(), syms, saturday)
	require.Len(t, got, 40)
	for _, sym := range syms {
		assert.NoError(t, got[sym].Err)
	}
	assert.Equal(t, 40, f.Calls("snapshot"))
}

// series builds daily bars ending at end whose returns follow rets.
func series(symbol string, end time.Time, rets []float64) *model.PriceSeries {
	bars := make([]model.OHLCV, len(rets)+1)
	price := 100.0
	for i := range bars {
		if i > 0 {
			price *= 1 + rets[i-1]
		}
		bars[i] = model.OHLCV{
			Time:   end.AddDate(0, 0, i-len(rets)).Truncate(24 * time.Hour),
			Open:   price,
			High:   price * 1.01,
			Low:    price * 0.99,
			Close:  price,
			Volume: 1000 + float64(i),
		}
	}
	return &model.PriceSeries{Symbol: symbol, Bars: bars}
}

func TestTickers(t *testing.T) {
	pattern := []float64{0.01, -0.005, 0.007, -0.012, 0.004}
	bench := make([]float64, 300)
	stock := make([]float64, 300)
	for i := range bench {
		bench[i] = pattern[i%len(pattern)]
		stock[i] = 2 * bench[i]
	}
	f := &MockFetcher{
		Snapshots: map[string]*model.Snapshot{
			"AAPL": {Symbol: "AAPL", Price: 150, Volume: 2000, AvgVolume3mo: 1000, AvgVolume10d: 4000},
		},
		Histories: map[string]*model.PriceSeries{
			"AAPL":                 series("AAPL", saturday, stock),
			market.BenchmarkSymbol: series(market.BenchmarkSymbol, saturday, bench),
		},
	}
	c := newTestCollector(t, f, nil)

	reports := c.Tickers(context.Background(), []string{"aapl", "NOPE"}, saturday)
	require.Len(t, reports, 2)

	r := reports[0]
	assert.Equal(t, "AAPL", r.Symbol)
	require.NoError(t, r.Err)
	assert.Empty(t, r.Issues)
	assert.Equal(t, model.BaselineThreeMonth, r.VolumeBaseline)
	require.NotNil(t, r.RelVolume)
	assert.InDelta(t, 2.0, *r.RelVolume, 1e-9)
	for name, v := range map[string]*float64{
		"1w": r.Momentum1W, "1m": r.Momentum1M, "1y": r.Momentum1Y,
		"rsi": r.RSI14, "ma50": r.MA50, "ma200": r.MA200, "pos": r.Position52w, "volmom": r.VolumeMom1W,
	} {
		assert.NotNil(t, v, name)
	}
	require.NotNil(t, r.Regression)
	assert.Equal(t, market.BenchmarkSymbol, r.Regression.Benchmark)
	assert.InDelta(t, 2.0, r.Regression.Beta, 1e-9)
	assert.InDelta(t, 0.0, r.Regression.Alpha, 1e-12)
	assert.InDelta(t, 2.0, r.Regression.RelativeVol, 1e-9)

	assert.Equal(t, "NOPE", reports[1].Symbol)
	assert.ErrorIs(t, reports[1].Err, model.ErrNotFound)
	assert.NotEmpty(t, reports[1].Error)

	// the benchmark history is fetched once even though it was not requested
	assert.Equal(t, 1, f.Calls("history", market.BenchmarkSymbol))
	assert.Equal(t, 0, f.Calls("snapshot", market.BenchmarkSymbol))
}

func TestTickers_ShortHistoryListsIssues(t *testing.T) {
	f := &MockFetcher{
		Snapshots: map[string]*model.Snapshot{"NEW": {Symbol: "NEW", Price: 10, AvgVolume3mo: 100, Volume: 100}},
		Histories: map[string]*model.PriceSeries{
			"NEW":                  series("NEW", saturday, []float64{0.01, 0.02, -0.01}),
			market.BenchmarkSymbol: series(market.BenchmarkSymbol, saturday, []float64{0.01, 0.02, -0.01}),
		},
	}
	c := newTestCollector(t, f, nil)

	r := c.Tickers(context.Background(), []string{"NEW"}, saturday)[0]
	require.NoError(t, r.Err)
	assert.Nil(t, r.Momentum1Y)
	assert.Nil(t, r.MA200)
	assert.Nil(t, r.Regression)
	assert.NotNil(t, r.High52w)
	assert.NotEmpty(t, r.Issues)
}

func TestMarkets(t *testing.T) {
	f := &MockFetcher{
		Price:  100,
		Errors: map[string]error{"SOL-USD": model.NewFetchError("SOL-USD", model.NotFound, errors.New("gone"))},
	}
	c := newTestCollector(t, f, nil)

	quotes := c.Markets(context.Background(), saturday, market.CategoryCrypto)
	require.Len(t, quotes, 3)
	assert.Equal(t, "btc", quotes[0].Key)

	btc := quotes[0]
	require.NoError(t, btc.Err)
	assert.Equal(t, model.BaselineTenDay, btc.VolumeBaseline)
	require.NotNil(t, btc.RelVolume)
	assert.InDelta(t, 1.0, *btc.RelVolume, 1e-9)
	assert.NotNil(t, btc.Momentum1M)
	assert.NotNil(t, btc.Momentum1Y)

	sol := quotes[2]
	assert.Equal(t, "SOL-USD", sol.Symbol)
	assert.ErrorIs(t, sol.Err, model.ErrNotFound)
	assert.Nil(t, sol.Snapshot)
}

func TestCacheStatsAndWarm(t *testing.T) {
	f := &MockFetcher{Price: 100}
	c := newTestCollector(t, f, nil)

	failed := c.Warm(context.Background(), saturday)
	assert.Zero(t, failed)

	stats := c.CacheStats(saturday)
	n := len(market.OverviewSymbols())
	assert.Equal(t, n, stats["snapshots"].Entries)
	assert.Equal(t, n, stats["histories"].Entries)

	c.Invalidate("^GSPC")
	assert.Equal(t, n-1, c.CacheStats(saturday)["snapshots"].Entries)
}

func testChain(symbol string) *model.OptionChain {
	exp := time.Date(2025, time.June, 20, 0, 0, 0, 0, time.UTC)
	chain := &model.OptionChain{
		Symbol:     symbol,
		Expiration: exp,
		Spot:       100,
		Expirations: []time.Time{
			exp,
			time.Date(2025, time.June, 27, 0, 0, 0, 0, time.UTC),
			time.Date(2025, time.July, 18, 0, 0, 0, 0, time.UTC),
			time.Date(2025, time.August, 15, 0, 0, 0, 0, time.UTC),
		},
	}
	for k := 90.0; k <= 110; k += 5 {
		chain.Calls = append(chain.Calls, model.OptionContract{Side: model.Call, Strike: k, OpenInterest: 100, Volume: 50, ImpliedVol: 0.25})
		chain.Puts = append(chain.Puts, model.OptionContract{Side: model.Put, Strike: k, OpenInterest: 120, Volume: 300, ImpliedVol: 0.28})
	}
	return chain
}

func TestOptions(t *testing.T) {
	yield := 0.01
	f := &MockFetcher{
		Snapshots: map[string]*model.Snapshot{"AAPL": {Symbol: "AAPL", Price: 100, DividendYield: &yield}},
		Chains:    map[string]*model.OptionChain{"AAPL": testChain("AAPL")},
	}
	rec := newMemRecorder()
	c := newTestCollector(t, f, rec, func(cfg *Config) { cfg.TermExpirations = 2 })

	report, err := c.Options(context.Background(), "aapl", NearestExpiration, saturday, true)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", report.Symbol)
	assert.Equal(t, 7, report.DaysToExpiry)
	require.NotNil(t, report.MaxPain)
	require.NotNil(t, report.Positioning)
	require.NotNil(t, report.Positioning.PutCallOI)
	assert.InDelta(t, 1.2, *report.Positioning.PutCallOI, 1e-9)
	require.NotNil(t, report.Term)
	assert.Len(t, report.Term.Points, 3)
	assert.Len(t, report.Greeks, 10)
	assert.Equal(t, 5, report.UnusualPuts)

	assert.Equal(t, 3, f.Calls("chain", "AAPL"))
	require.Len(t, rec.options, 1)
	assert.Equal(t, "AAPL", rec.options[0].Symbol)
	assert.Equal(t, 5, rec.options[0].Unusual)
}

func TestOptions_Errors(t *testing.T) {
	f := &MockFetcher{Price: 100}
	c := newTestCollector(t, f, nil)

	_, err := c.Options(context.Background(), "AAPL", "20-06-2025", saturday, false)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = c.Options(context.Background(), " ", "", saturday, false)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = c.Options(context.Background(), "AAPL", "2025-06-20", saturday, false)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestOptions_TermFailureIsAnIssue(t *testing.T) {
	chain := testChain("SPY")
	chain.Expirations = append(chain.Expirations[:1], time.Date(2025, time.June, 27, 0, 0, 0, 0, time.UTC))
	f := &termFailFetcher{MockFetcher: &MockFetcher{
		Price:  100,
		Chains: map[string]*model.OptionChain{"SPY": chain},
	}}
	c := newTestCollector(t, f, nil)

	report, err := c.Options(context.Background(), "SPY", "", saturday, false)
	require.NoError(t, err)
	assert.Nil(t, report.Term)
	assert.Contains(t, fmt.Sprint(report.Issues), "term 2025-06-27")
}

// termFailFetcher serves the nearest chain and fails every other expiration.
type termFailFetcher struct{ *MockFetcher }

func (f *termFailFetcher) FetchOptionChain(ctx context.Context, symbol string, expiration time.Time) (*model.OptionChain, error) {
	if !expiration.IsZero() {
		return nil, model.NewFetchError(symbol, model.RateLimited, errors.New("429"))
	}
	return f.MockFetcher.FetchOptionChain(ctx, symbol, expiration)
}

func TestParseExpiration(t *testing.T) {
	for _, s := range []string{"", "nearest", "NEAREST"} {
		exp, err := ParseExpiration(s)
		require.NoError(t, err)
		assert.True(t, exp.IsZero())
	}
	exp, err := ParseExpiration("2025-06-20")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.June, 20, 0, 0, 0, 0, time.UTC), exp)
}
