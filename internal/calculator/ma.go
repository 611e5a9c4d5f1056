package calculator

import (
	"errors"
	"fmt"

	"github.com/markcheno/go-talib"

	"MarketLens/internal/model"
)

// SMA computes the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("sma period %d: %w", period, model.ErrInvalidInput)
	}
	if len(values) < period {
		return 0, fmt.Errorf("sma(%d) needs %d values, have %d: %w", period, period, len(values), model.ErrInsufficientHistory)
	}
	if period == 1 {
		return values[len(values)-1], nil
	}
	out := talib.Sma(values, period)
	return out[len(out)-1], nil
}

// MovingAverageSet holds the long-horizon averages shown on the ticker screen.
type MovingAverageSet struct {
	MA50  *float64
	MA200 *float64
}

// MovingAverages returns the 50-day and 200-day simple moving averages of
// daily closes. Each is computed independently; the error joins whichever
// could not be.
func MovingAverages(closes []float64) (MovingAverageSet, error) {
	var set MovingAverageSet
	var errs []error
	if v, err := SMA(closes, 50); err != nil {
		errs = append(errs, fmt.Errorf("ma50: %w", err))
	} else {
		set.MA50 = &v
	}
	if v, err := SMA(closes, 200); err != nil {
		errs = append(errs, fmt.Errorf("ma200: %w", err))
	} else {
		set.MA200 = &v
	}
	return set, errors.Join(errs...)
}
