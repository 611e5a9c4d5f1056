package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MarketLens/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Symbols without fixed data get generated data around Price, or NotFound
// when Price is zero.
type MockFetcher struct {
	Price     float64
	Snapshots map[string]*model.Snapshot
	Histories map[string]*model.PriceSeries
	Chains    map[string]*model.OptionChain // keyed by symbol
	Errors    map[string]error              // returned for the symbol on every call
	Delays    map[string]time.Duration      // per-symbol latency; honours ctx

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) record(kind, symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[kind+":"+symbol]++
	m.calls[kind]++
}

// Calls returns how many times kind ("snapshot", "history", "chain",
// "batch") was requested, for symbol if given.
func (m *MockFetcher) Calls(kind string, symbol ...string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(symbol) > 0 {
		return m.calls[kind+":"+symbol[0]]
	}
	return m.calls[kind]
}

func (m *MockFetcher) wait(ctx context.Context, symbol string) error {
	d := m.Delays[symbol]
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return model.NewFetchError(symbol, model.Timeout, ctx.Err())
	}
}

func (m *MockFetcher) fail(symbol string) error {
	if err, ok := m.Errors[symbol]; ok {
		return model.AsFetchError(symbol, err)
	}
	return nil
}

func (m *MockFetcher) FetchSnapshot(ctx context.Context, symbol string) (*model.Snapshot, error) {
	m.record("snapshot", symbol)
	if err := m.wait(ctx, symbol); err != nil {
		return nil, err
	}
	return m.snapshot(symbol)
}

func (m *MockFetcher) snapshot(symbol string) (*model.Snapshot, error) {
	if err := m.fail(symbol); err != nil {
		return nil, err
	}
	if s, ok := m.Snapshots[symbol]; ok {
		if s == nil {
			return nil, nil
		}
		cp := *s
		return &cp, nil
	}
	if m.Price <= 0 {
		return nil, model.NewFetchError(symbol, model.NotFound, fmt.Errorf("mock: no data"))
	}
	return &model.Snapshot{
		Symbol:        symbol,
		Price:         m.Price,
		PreviousClose: m.Price * 0.99,
		Change:        m.Price * 0.01,
		ChangePercent: 1.0101,
		DayHigh:       m.Price * 1.005,
		DayLow:        m.Price * 0.995,
		High52w:       m.Price * 1.2,
		Low52w:        m.Price * 0.8,
		Volume:        1000000,
		AvgVolume10d:  1000000,
		AvgVolume3mo:  1000000,
		QuoteTime:     time.Now().UTC(),
	}, nil
}

func (m *MockFetcher) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*model.PriceSeries, error) {
	m.record("history", symbol)
	if err := m.wait(ctx, symbol); err != nil {
		return nil, err
	}
	if err := m.fail(symbol); err != nil {
		return nil, err
	}
	if s, ok := m.Histories[symbol]; ok {
		cp := *s
		return &cp, nil
	}
	if m.Price <= 0 {
		return nil, model.NewFetchError(symbol, model.NotFound, fmt.Errorf("mock: no history"))
	}
	days := int(end.Sub(start).Hours()/24*252/365) + 1
	return &model.PriceSeries{Symbol: symbol, Bars: generateMockBars(m.Price, days, end), FetchedAt: time.Now()}, nil
}

func (m *MockFetcher) FetchOptionChain(ctx context.Context, symbol string, expiration time.Time) (*model.OptionChain, error) {
	m.record("chain", symbol)
	if err := m.wait(ctx, symbol); err != nil {
		return nil, err
	}
	if err := m.fail(symbol); err != nil {
		return nil, err
	}
	c, ok := m.Chains[symbol]
	if !ok {
		return nil, model.NewFetchError(symbol, model.NotFound, fmt.Errorf("mock: no chain"))
	}
	cp := *c
	if !expiration.IsZero() {
		cp.Expiration = expiration
	}
	return &cp, nil
}

// MockBatchFetcher is a MockFetcher that also quotes in batches.
type MockBatchFetcher struct {
	*MockFetcher
	// BatchErr fails every batch call when set.
	BatchErr error
}

// FetchSnapshots reports Errors per symbol. Symbols without data are left
// out of both maps, and a nil entry in Snapshots is passed through as nil.
func (m *MockBatchFetcher) FetchSnapshots(ctx context.Context, symbols []string) (map[string]*model.Snapshot, map[string]error, error) {
	m.record("batch", "")
	for _, s := range symbols {
		m.record("snapshot", s)
	}
	if m.BatchErr != nil {
		return nil, nil, model.AsFetchError("", m.BatchErr)
	}
	for _, s := range symbols {
		if err := m.wait(ctx, s); err != nil {
			return nil, nil, err
		}
	}
	out := make(map[string]*model.Snapshot, len(symbols))
	errs := make(map[string]error)
	for _, s := range symbols {
		if err := m.fail(s); err != nil {
			errs[s] = err
			continue
		}
		if snap, ok := m.Snapshots[s]; ok && snap == nil {
			out[s] = nil
			continue
		}
		snap, err := m.snapshot(s)
		if err != nil {
			continue // absent from the response
		}
		out[s] = snap
	}
	return out, errs, nil
}

func generateMockBars(basePrice float64, count int, end time.Time) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:   end.AddDate(0, 0, -(count - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
