package calculator

import (
	"fmt"
	"math"

	"MarketLens/internal/model"
)

// TradingDaysPerYear is the session count used for 52-week windows and
// volatility annualisation.
const TradingDaysPerYear = 252

// Range52Week scans the most recent 252 trading days and returns the high and low.
func Range52Week(dailyBars []model.OHLCV) (high, low float64, err error) {
	if len(dailyBars) == 0 {
		return 0, 0, fmt.Errorf("52-week range: no daily bars: %w", model.ErrInsufficientHistory)
	}
	n := len(dailyBars)
	start := n - TradingDaysPerYear
	if start < 0 {
		start = 0
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for i := start; i < n; i++ {
		if dailyBars[i].High > high {
			high = dailyBars[i].High
		}
		if dailyBars[i].Low < low {
			low = dailyBars[i].Low
		}
	}
	return high, low, nil
}

// RangePosition returns where current sits within [low, high], clamped to 0.0~1.0.
// A collapsed range reads 0.5.
func RangePosition(current, high, low float64) (float64, error) {
	if high < low {
		return 0, fmt.Errorf("range high %v below low %v: %w", high, low, model.ErrInvalidInput)
	}
	if high == low {
		return 0.5, nil
	}
	pos := (current - low) / (high - low)
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return pos, nil
}
