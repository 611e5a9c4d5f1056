package calculator

import (
	"fmt"
	"math"

	"MarketLens/internal/model"
)

// MinRegressionObservations is the fewest paired returns Regress accepts.
const MinRegressionObservations = 20

// Regress fits returns = alpha + beta*benchmark on the common tail of the two
// series. Volatilities are annualised with sqrt(252); Alpha stays daily.
func Regress(returns, benchmark []float64) (*model.Regression, error) {
	n := len(returns)
	if len(benchmark) < n {
		n = len(benchmark)
	}
	if n < MinRegressionObservations {
		return nil, fmt.Errorf("regression needs %d observations, have %d: %w",
			MinRegressionObservations, n, model.ErrInsufficientHistory)
	}
	y := returns[len(returns)-n:]
	x := benchmark[len(benchmark)-n:]

	mx, my := mean(x), mean(y)
	var sxx, sxy float64
	for i := 0; i < n; i++ {
		dx := x[i] - mx
		sxx += dx * dx
		sxy += dx * (y[i] - my)
	}
	if sxx == 0 {
		return nil, fmt.Errorf("benchmark returns have no variance: %w", model.ErrInvalidInput)
	}
	beta := sxy / sxx
	alpha := my - beta*mx

	residuals := make([]float64, n)
	for i := 0; i < n; i++ {
		residuals[i] = y[i] - alpha - beta*x[i]
	}

	annualise := math.Sqrt(TradingDaysPerYear)
	total := stdev(y) * annualise
	bench := stdev(x) * annualise
	r := &model.Regression{
		Beta:         beta,
		Alpha:        alpha,
		IdioVol:      stdev(residuals) * annualise,
		TotalVol:     total,
		BenchmarkVol: bench,
		Observations: n,
	}
	if bench > 0 {
		r.RelativeVol = total / bench
	}
	return r, nil
}

func mean(xs []float64) float64 {
	var sum float64
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}

// stdev is the sample standard deviation (n-1).
func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, v := range xs {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
