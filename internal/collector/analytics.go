package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"MarketLens/internal/calculator"
	"MarketLens/internal/market"
	"MarketLens/internal/model"
	"MarketLens/internal/options"
	"MarketLens/internal/recorder"
)

// NearestExpiration selects the first listed expiration.
const NearestExpiration = "nearest"

func ptr(v float64) *float64 { return &v }

func issue(issues *[]string, metric string, err error) {
	*issues = append(*issues, fmt.Sprintf("%s: %v", metric, err))
}

// fetchBoth resolves snapshots and histories concurrently.
func (c *Collector) fetchBoth(ctx context.Context, snapSyms, histSyms []string, now time.Time) (map[string]Result, map[string]HistoryResult) {
	var (
		wg    conc.WaitGroup
		snaps map[string]Result
		hists map[string]HistoryResult
	)
	wg.Go(func() { snaps = c.Resolve(ctx, snapSyms, now) })
	wg.Go(func() { hists = c.History(ctx, histSyms, now) })
	wg.Wait()
	return snaps, hists
}

// Markets builds the overview for the given categories, or all of them.
// Relative volume is against the 10-day average; momentum is 1M and 1Y.
func (c *Collector) Markets(ctx context.Context, now time.Time, categories ...string) []model.MarketQuote {
	overview := market.OverviewSymbols(categories...)
	syms := make([]string, 0, len(overview))
	for _, o := range overview {
		syms = append(syms, o.Symbol)
	}
	snaps, hists := c.fetchBoth(ctx, syms, syms, now)

	quotes := make([]model.MarketQuote, 0, len(overview))
	for _, o := range overview {
		q := model.MarketQuote{
			Key:            o.Key,
			Symbol:         o.Symbol,
			Category:       o.Category,
			VolumeBaseline: model.BaselineTenDay,
		}
		snap := snaps[o.Symbol]
		if snap.Err != nil {
			q.Err = snap.Err
			q.Error = snap.Err.Error()
			quotes = append(quotes, q)
			continue
		}
		q.Snapshot = snap.Snapshot
		q.Cached = snap.Cached

		vol := calculator.ExtrapolateVolume(snap.Snapshot.Volume, c.sessionFraction(o.Symbol, now))
		if rv, err := calculator.RelativeVolume(vol, snap.Snapshot.AvgVolume10d); err != nil {
			issue(&q.Issues, "rel_volume", err)
		} else {
			q.RelVolume = ptr(rv)
		}

		hist := hists[o.Symbol]
		if hist.Err != nil {
			issue(&q.Issues, "history", hist.Err)
			quotes = append(quotes, q)
			continue
		}
		closes := hist.Series.Closes()
		if m, err := calculator.Momentum(closes, calculator.Window1M); err != nil {
			issue(&q.Issues, "momentum_1m", err)
		} else {
			q.Momentum1M = ptr(m)
		}
		if m, err := calculator.Momentum(closes, calculator.Window1Y); err != nil {
			issue(&q.Issues, "momentum_1y", err)
		} else {
			q.Momentum1Y = ptr(m)
		}
		quotes = append(quotes, q)
	}
	return quotes
}

// Tickers builds the detail report for each symbol, in normalised input
// order. Relative volume is against the 3-month average and the regression
// is on market.BenchmarkSymbol.
func (c *Collector) Tickers(ctx context.Context, symbols []string, now time.Time) []model.TickerReport {
	syms := market.NormalizeSymbols(symbols...)
	histSyms := market.NormalizeSymbols(append(append([]string{}, syms...), market.BenchmarkSymbol)...)
	snaps, hists := c.fetchBoth(ctx, syms, histSyms, now)
	bench := hists[market.BenchmarkSymbol]

	reports := make([]model.TickerReport, 0, len(syms))
	for _, sym := range syms {
		reports = append(reports, c.ticker(sym, snaps[sym], hists[sym], bench, now))
	}
	return reports
}

func (c *Collector) ticker(sym string, snap Result, hist, bench HistoryResult, now time.Time) model.TickerReport {
	r := model.TickerReport{Symbol: sym, VolumeBaseline: model.BaselineThreeMonth}
	if snap.Err != nil {
		r.Err = snap.Err
		r.Error = snap.Err.Error()
		return r
	}
	r.Snapshot = snap.Snapshot
	r.Cached = snap.Cached

	vol := calculator.ExtrapolateVolume(snap.Snapshot.Volume, c.sessionFraction(sym, now))
	if rv, err := calculator.RelativeVolume(vol, snap.Snapshot.AvgVolume3mo); err != nil {
		issue(&r.Issues, "rel_volume", err)
	} else {
		r.RelVolume = ptr(rv)
	}

	if hist.Err != nil {
		issue(&r.Issues, "history", hist.Err)
		return r
	}
	closes := hist.Series.Closes()

	for _, m := range []struct {
		name   string
		window int
		dst    **float64
	}{
		{"momentum_1w", calculator.Window1W, &r.Momentum1W},
		{"momentum_1m", calculator.Window1M, &r.Momentum1M},
		{"momentum_1y", calculator.Window1Y, &r.Momentum1Y},
	} {
		if v, err := calculator.Momentum(closes, m.window); err != nil {
			issue(&r.Issues, m.name, err)
		} else {
			*m.dst = ptr(v)
		}
	}

	if v, err := calculator.RSI(closes, calculator.DefaultRSIPeriod); err != nil {
		issue(&r.Issues, "rsi_14", err)
	} else {
		r.RSI14 = ptr(v)
	}

	mas, err := calculator.MovingAverages(closes)
	r.MA50, r.MA200 = mas.MA50, mas.MA200
	if err != nil {
		issue(&r.Issues, "moving_averages", err)
	}

	if high, low, err := calculator.Range52Week(hist.Series.Bars); err != nil {
		issue(&r.Issues, "range_52w", err)
	} else {
		r.High52w, r.Low52w = ptr(high), ptr(low)
		if pos, err := calculator.RangePosition(snap.Snapshot.Price, high, low); err != nil {
			issue(&r.Issues, "position_52w", err)
		} else {
			r.Position52w = ptr(pos)
		}
	}

	if v, err := calculator.VolumeMomentum(hist.Series.Volumes(), calculator.VolumeMomentumLookback); err != nil {
		issue(&r.Issues, "volume_momentum_1w", err)
	} else {
		r.VolumeMom1W = ptr(v)
	}

	if sym == market.BenchmarkSymbol {
		return r
	}
	if bench.Err != nil {
		issue(&r.Issues, "regression", bench.Err)
		return r
	}
	reg, err := regress(hist.Series, bench.Series)
	if err != nil {
		issue(&r.Issues, "regression", err)
		return r
	}
	reg.Benchmark = market.BenchmarkSymbol
	r.Regression = reg
	return r
}

func regress(series, benchmark *model.PriceSeries) (*model.Regression, error) {
	a, b := calculator.AlignCloses(series.Bars, benchmark.Bars)
	ra, err := calculator.Returns(a)
	if err != nil {
		return nil, err
	}
	rb, err := calculator.Returns(b)
	if err != nil {
		return nil, err
	}
	return calculator.Regress(ra, rb)
}

// ParseExpiration accepts "nearest", "" or a YYYY-MM-DD date. The zero time
// means the nearest listed expiration.
func ParseExpiration(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, NearestExpiration) {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: expiration %q: want YYYY-MM-DD or %q", model.ErrInvalidInput, s, NearestExpiration)
	}
	return t, nil
}

// Options fetches a fresh chain for symbol and analyses it. Chains are never
// cached. Up to TermExpirations later expirations are fetched concurrently
// for the term structure; their failures only add report issues.
func (c *Collector) Options(ctx context.Context, symbol, expiration string, now time.Time, includeGreeks bool) (*options.Report, error) {
	syms := market.NormalizeSymbols(symbol)
	if len(syms) != 1 {
		return nil, fmt.Errorf("%w: symbol %q", model.ErrInvalidInput, symbol)
	}
	sym := syms[0]
	exp, err := ParseExpiration(expiration)
	if err != nil {
		return nil, err
	}

	var (
		wg    conc.WaitGroup
		snap  Result
		chain *model.OptionChain
	)
	wg.Go(func() { snap = c.Resolve(ctx, []string{sym}, now)[sym] })
	wg.Go(func() {
		chain, err = callWithTimeout(ctx, c.cfg.Timeout, func(ctx context.Context) (*model.OptionChain, error) {
			return c.fetcher.FetchOptionChain(ctx, sym, exp)
		})
	})
	wg.Wait()
	if err == nil && chain == nil {
		err = errors.New("empty chain")
	}
	if err != nil {
		fe := model.AsFetchError(sym, err)
		c.recordFailure("options", fe, now)
		return nil, fe
	}

	params := options.Params{
		Now:           now,
		Rate:          c.cfg.RiskFreeRate,
		SkewDistance:  c.cfg.SkewDistance,
		TopN:          c.cfg.TopStrikes,
		IncludeGreeks: includeGreeks,
	}
	var pre []string
	if snap.Err != nil {
		pre = append(pre, fmt.Sprintf("snapshot: %v", snap.Err))
	} else {
		if chain.Spot <= 0 {
			chain.Spot = snap.Snapshot.Price
		}
		if snap.Snapshot.DividendYield != nil {
			params.Dividend = *snap.Snapshot.DividendYield
		}
	}

	termChains, termIssues := c.termChains(ctx, sym, chain)
	params.TermChains = termChains

	report := options.Analyze(chain, params)
	report.Issues = append(append(pre, termIssues...), report.Issues...)

	c.logger.Info("options analysed",
		zap.String("symbol", sym),
		zap.Time("expiration", chain.Expiration),
		zap.Int("calls", len(chain.Calls)),
		zap.Int("puts", len(chain.Puts)),
		zap.Int("term_chains", len(termChains)),
		zap.Int("issues", len(report.Issues)),
	)
	if err := c.recorder.RecordOptions(optionsEvent(&report, now)); err != nil {
		c.logger.Error("record options", zap.Error(err))
	}
	return &report, nil
}

func (c *Collector) termChains(ctx context.Context, sym string, front *model.OptionChain) ([]*model.OptionChain, []string) {
	if c.cfg.TermExpirations <= 0 {
		return nil, nil
	}
	var exps []time.Time
	for _, e := range front.Expirations {
		if e.After(front.Expiration) {
			exps = append(exps, e)
		}
		if len(exps) == c.cfg.TermExpirations {
			break
		}
	}
	calls := make([]func(context.Context) (*model.OptionChain, error), len(exps))
	for i, e := range exps {
		calls[i] = func(ctx context.Context) (*model.OptionChain, error) {
			return c.fetcher.FetchOptionChain(ctx, sym, e)
		}
	}

	var (
		chains []*model.OptionChain
		issues []string
	)
	for i, o := range runPool(ctx, c.cfg.Workers, c.cfg.Timeout, calls) {
		if o.err != nil || o.value == nil {
			err := o.err
			if err == nil {
				err = errors.New("empty chain")
			}
			issues = append(issues, fmt.Sprintf("term %s: %v", exps[i].Format(time.DateOnly), model.AsFetchError(sym, err)))
			continue
		}
		chains = append(chains, o.value)
	}
	return chains, issues
}

func optionsEvent(r *options.Report, now time.Time) *recorder.OptionsEvent {
	evt := &recorder.OptionsEvent{
		Symbol:     r.Symbol,
		Expiration: r.Expiration,
		Spot:       r.Spot,
		MaxPain:    r.MaxPain,
		Unusual:    len(r.Unusual),
		Issues:     len(r.Issues),
		At:         now,
	}
	if r.Positioning != nil {
		evt.PutCallOI = r.Positioning.PutCallOI
		evt.PutCallVol = r.Positioning.PutCallVolume
	}
	if r.ATM != nil {
		evt.ATMIV = ptr(r.ATM.IV)
	}
	if r.Skew != nil {
		evt.Skew = ptr(r.Skew.Value)
	}
	if r.Term != nil {
		evt.TermShape = r.Term.Shape
	}
	return evt
}
