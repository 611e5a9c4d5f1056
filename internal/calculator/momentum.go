package calculator

import (
	"fmt"

	"MarketLens/internal/model"
)

// Momentum windows in trading days.
const (
	Window1W = 5
	Window1M = 21
	Window1Y = 252
)

// Momentum returns the percent change of the last close against the close
// window sessions earlier.
func Momentum(closes []float64, window int) (float64, error) {
	if window <= 0 {
		return 0, fmt.Errorf("momentum window %d: %w", window, model.ErrInvalidInput)
	}
	if len(closes) < window+1 {
		return 0, fmt.Errorf("momentum(%d) needs %d closes, have %d: %w", window, window+1, len(closes), model.ErrInsufficientHistory)
	}
	base := closes[len(closes)-1-window]
	if base <= 0 {
		return 0, fmt.Errorf("momentum base close %v: %w", base, model.ErrInvalidInput)
	}
	return (closes[len(closes)-1]/base - 1) * 100, nil
}

// Returns converts closes into simple daily returns; the result is one
// shorter than the input. Non-positive closes are rejected.
func Returns(closes []float64) ([]float64, error) {
	if len(closes) < 2 {
		return nil, fmt.Errorf("returns need 2 closes, have %d: %w", len(closes), model.ErrInsufficientHistory)
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 {
			return nil, fmt.Errorf("close %v at %d: %w", closes[i-1], i-1, model.ErrInvalidInput)
		}
		out[i-1] = closes[i]/closes[i-1] - 1
	}
	return out, nil
}

// AlignCloses pairs the closes of two bar series on shared calendar dates,
// oldest first. Dates present in only one series are dropped.
func AlignCloses(a, b []model.OHLCV) ([]float64, []float64) {
	const layout = "2006-01-02"
	byDate := make(map[string]float64, len(b))
	for _, bar := range b {
		byDate[bar.Time.UTC().Format(layout)] = bar.Close
	}
	var xs, ys []float64
	for _, bar := range a {
		if c, ok := byDate[bar.Time.UTC().Format(layout)]; ok {
			xs = append(xs, bar.Close)
			ys = append(ys, c)
		}
	}
	return xs, ys
}
