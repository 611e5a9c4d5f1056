package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"MarketLens/internal/cache"
	"MarketLens/internal/market"
	"MarketLens/internal/model"
	"MarketLens/internal/recorder"
)

// Config tunes the orchestrator.
type Config struct {
	Workers         int
	Timeout         time.Duration // per upstream call
	BatchSize       int
	HistoryDays     int // calendar days of daily history to fetch
	RiskFreeRate    float64
	TermExpirations int
	SkewDistance    float64
	TopStrikes      int
	Policy          cache.Policy
}

// DefaultConfig returns the stock orchestrator settings.
func DefaultConfig() Config {
	return Config{
		Workers:         10,
		Timeout:         10 * time.Second,
		BatchSize:       25,
		HistoryDays:     400,
		RiskFreeRate:    0.045,
		TermExpirations: 3,
		SkewDistance:    0.05,
		TopStrikes:      5,
		Policy:          cache.DefaultPolicy(),
	}
}

// Result is the outcome of resolving one symbol: a snapshot or an error.
type Result struct {
	Symbol   string          `json:"symbol"`
	Snapshot *model.Snapshot `json:"snapshot,omitempty"`
	Err      error           `json:"-"`
	Cached   bool            `json:"cached"`
}

// HistoryResult is the outcome of resolving one symbol's daily history.
type HistoryResult struct {
	Symbol string             `json:"symbol"`
	Series *model.PriceSeries `json:"series,omitempty"`
	Err    error              `json:"-"`
	Cached bool               `json:"cached"`
}

// Collector orchestrates cache lookups, upstream fetches and analytics.
type Collector struct {
	fetcher    Fetcher
	classifier *market.Classifier
	clock      *market.Clock
	snapshots  *cache.Store[*model.Snapshot]
	histories  *cache.Store[*model.PriceSeries]
	recorder   recorder.Recorder
	logger     *zap.Logger
	cfg        Config
}

// NewCollector creates a new Collector with its own caches.
func NewCollector(fetcher Fetcher, classifier *market.Classifier, clock *market.Clock, cfg Config, rec recorder.Recorder, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if classifier == nil {
		classifier = market.NewClassifier(nil)
	}
	if clock == nil {
		clock = market.NewNYSEClock()
	}
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = def.HistoryDays
	}
	return &Collector{
		fetcher:    fetcher,
		classifier: classifier,
		clock:      clock,
		snapshots:  cache.New[*model.Snapshot]("snapshots", classifier, clock, cfg.Policy, logger),
		histories:  cache.New[*model.PriceSeries]("histories", classifier, clock, cfg.Policy, logger),
		recorder:   rec,
		logger:     logger.With(zap.String("component", "collector"), zap.String("fetcher", fetcher.Name())),
		cfg:        cfg,
	}
}

// Resolve returns a snapshot or typed error for every requested symbol.
// Fresh cache entries are served as is; misses go upstream on the worker
// pool, batched when the fetcher supports it. Failures are never cached.
func (c *Collector) Resolve(ctx context.Context, symbols []string, now time.Time) map[string]Result {
	one := func(ctx context.Context, symbol string) (*model.Snapshot, error) {
		s, err := c.fetcher.FetchSnapshot(ctx, symbol)
		if err == nil && s == nil {
			err = model.NewFetchError(symbol, model.MalformedResponse, errors.New("empty snapshot"))
		}
		return s, err
	}
	var batch func(context.Context, []string) (map[string]*model.Snapshot, map[string]error, error)
	if bf, ok := c.fetcher.(BatchFetcher); ok {
		batch = func(ctx context.Context, symbols []string) (map[string]*model.Snapshot, map[string]error, error) {
			snaps, errs, err := bf.FetchSnapshots(ctx, symbols)
			if err != nil {
				return nil, nil, err
			}
			for sym, s := range snaps {
				if s != nil {
					continue
				}
				if errs == nil {
					errs = make(map[string]error)
				}
				if _, ok := errs[sym]; !ok {
					errs[sym] = model.NewFetchError(sym, model.MalformedResponse, errors.New("empty snapshot"))
				}
				delete(snaps, sym)
			}
			return snaps, errs, nil
		}
	}

	resolved := resolve(ctx, c, "snapshot", c.snapshots, symbols, now, one, batch)
	out := make(map[string]Result, len(resolved))
	for sym, r := range resolved {
		out[sym] = Result{Symbol: sym, Snapshot: r.value, Err: r.err, Cached: r.cached}
	}
	return out
}

// History returns about a year of daily bars, or a typed error, for every
// requested symbol. Series are cached under the same expiry rules as
// snapshots.
func (c *Collector) History(ctx context.Context, symbols []string, now time.Time) map[string]HistoryResult {
	start := now.AddDate(0, 0, -c.cfg.HistoryDays)
	one := func(ctx context.Context, symbol string) (*model.PriceSeries, error) {
		s, err := c.fetcher.FetchHistory(ctx, symbol, start, now)
		if err == nil && (s == nil || len(s.Bars) == 0) {
			err = model.NewFetchError(symbol, model.NotFound, errors.New("empty history"))
		}
		return s, err
	}

	resolved := resolve(ctx, c, "history", c.histories, symbols, now, one, nil)
	out := make(map[string]HistoryResult, len(resolved))
	for sym, r := range resolved {
		out[sym] = HistoryResult{Symbol: sym, Series: r.value, Err: r.err, Cached: r.cached}
	}
	return out
}

// chunkResult is what one upstream call yields: values and per-symbol
// errors. A symbol in neither map was not found.
type chunkResult[T any] struct {
	values map[string]T
	errs   map[string]error
}

type resolved[T any] struct {
	value  T
	err    error
	cached bool
}

// resolve implements the hit/miss partition and pooled fetch shared by
// snapshots and histories.
func resolve[T any](
	ctx context.Context,
	c *Collector,
	kind string,
	store *cache.Store[T],
	symbols []string,
	now time.Time,
	one func(context.Context, string) (T, error),
	batch func(context.Context, []string) (map[string]T, map[string]error, error),
) map[string]resolved[T] {
	start := time.Now()
	batchID := uuid.NewString()
	syms := market.NormalizeSymbols(symbols...)
	out := make(map[string]resolved[T], len(syms))

	var misses []string
	for _, sym := range syms {
		if v, ok := store.Get(sym, now); ok {
			out[sym] = resolved[T]{value: v, cached: true}
			continue
		}
		misses = append(misses, sym)
	}
	hits := len(syms) - len(misses)

	// each call covers one chunk of misses
	var chunks [][]string
	var calls []func(context.Context) (chunkResult[T], error)
	if batch != nil {
		for i := 0; i < len(misses); i += c.cfg.BatchSize {
			chunk := misses[i:min(i+c.cfg.BatchSize, len(misses))]
			chunks = append(chunks, chunk)
			calls = append(calls, func(ctx context.Context) (chunkResult[T], error) {
				values, errs, err := batch(ctx, chunk)
				return chunkResult[T]{values: values, errs: errs}, err
			})
		}
	} else {
		for _, sym := range misses {
			chunks = append(chunks, []string{sym})
			calls = append(calls, func(ctx context.Context) (chunkResult[T], error) {
				v, err := one(ctx, sym)
				if err != nil {
					return chunkResult[T]{}, err
				}
				return chunkResult[T]{values: map[string]T{sym: v}}, nil
			})
		}
	}

	failures := 0
	for i, o := range runPool(ctx, c.cfg.Workers, c.cfg.Timeout, calls) {
		for _, sym := range chunks[i] {
			var err error
			v, ok := o.value.values[sym]
			symErr, failed := o.value.errs[sym]
			switch {
			case o.err != nil:
				err = o.err
			case failed && symErr != nil:
				err = symErr
			case !ok:
				err = model.NewFetchError(sym, model.NotFound, fmt.Errorf("%s missing from upstream response", kind))
			}
			if err != nil {
				fe := model.AsFetchError(sym, err)
				if fe.Symbol != sym {
					fe = fe.WithSymbol(sym)
				}
				out[sym] = resolved[T]{err: fe}
				failures++
				c.recordFailure(batchID, fe, now)
				continue
			}
			store.Put(sym, v, now)
			out[sym] = resolved[T]{value: v}
		}
	}

	elapsed := time.Since(start)
	if len(misses) > 0 {
		c.logger.Info("resolved",
			zap.String("batch_id", batchID),
			zap.String("kind", kind),
			zap.Int("requested", len(syms)),
			zap.Int("hits", hits),
			zap.Int("misses", len(misses)),
			zap.Int("calls", len(calls)),
			zap.Int("failures", failures),
			zap.Duration("elapsed", elapsed),
		)
	} else {
		c.logger.Debug("resolved from cache", zap.String("batch_id", batchID), zap.String("kind", kind), zap.Int("requested", len(syms)))
	}
	if err := c.recorder.RecordResolve(&recorder.ResolveEvent{
		BatchID:   batchID,
		Kind:      kind,
		Requested: len(syms),
		Hits:      hits,
		Misses:    len(misses),
		Failures:  failures,
		Elapsed:   elapsed,
		At:        now,
	}); err != nil {
		c.logger.Error("record resolve", zap.Error(err))
	}
	return out
}

func (c *Collector) recordFailure(batchID string, fe *model.FetchError, now time.Time) {
	c.logger.Warn("fetch failed",
		zap.String("batch_id", batchID),
		zap.String("symbol", fe.Symbol),
		zap.Stringer("kind", fe.Kind),
		zap.Error(fe.Err),
	)
	if err := c.recorder.RecordFetchFailure(&recorder.FetchFailure{
		BatchID: batchID,
		Symbol:  fe.Symbol,
		Kind:    fe.Kind.String(),
		Message: fe.Error(),
		At:      now,
	}); err != nil {
		c.logger.Error("record fetch failure", zap.Error(err))
	}
}

// Invalidate drops every cached payload for symbol.
func (c *Collector) Invalidate(symbol string) {
	c.snapshots.Invalidate(symbol)
	c.histories.Invalidate(symbol)
}

// CacheStats reports both caches as of now, keyed by store name.
func (c *Collector) CacheStats(now time.Time) map[string]cache.Stats {
	return map[string]cache.Stats{
		c.snapshots.Name(): c.snapshots.Stats(now),
		c.histories.Name(): c.histories.Stats(now),
	}
}

// Warm resolves the overview catalogue so interactive requests hit the
// cache. It returns how many symbols failed.
func (c *Collector) Warm(ctx context.Context, now time.Time) int {
	var syms []string
	for _, s := range market.OverviewSymbols() {
		syms = append(syms, s.Symbol)
	}
	failed := 0
	for _, r := range c.Resolve(ctx, syms, now) {
		if r.Err != nil {
			failed++
		}
	}
	for _, r := range c.History(ctx, syms, now) {
		if r.Err != nil {
			failed++
		}
	}
	return failed
}

// sessionFraction is the elapsed share of the exchange session for
// session-bound symbols and 0 for round-the-clock ones.
func (c *Collector) sessionFraction(symbol string, now time.Time) float64 {
	if c.classifier.Classify(symbol) == model.SessionTwentyFourHour {
		return 0
	}
	return c.clock.SessionFraction(now)
}
