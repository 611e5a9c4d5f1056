package options

import (
	"fmt"
	"math"
	"time"
	_ "time/tzdata"

	"MarketLens/internal/model"
)

const daysPerYear = 365.0

// GreeksInput holds the Black-Scholes inputs for one contract. Vol, Rate and
// Dividend are annualised decimals; T is in years.
type GreeksInput struct {
	Spot     float64
	Strike   float64
	T        float64
	Vol      float64
	Rate     float64
	Dividend float64
	Side     model.OptionSide
}

// ComputeGreeks returns European Black-Scholes Greeks. Theta is per calendar
// day, vega and rho per percentage point. At or past expiry delta is the
// intrinsic indicator and every other Greek is zero.
func ComputeGreeks(in GreeksInput) (model.Greeks, error) {
	if in.Spot <= 0 || in.Strike <= 0 || !finite(in.Spot) || !finite(in.Strike) {
		return model.Greeks{}, fmt.Errorf("spot %v strike %v: %w", in.Spot, in.Strike, model.ErrInvalidInput)
	}
	if in.Side != model.Call && in.Side != model.Put {
		return model.Greeks{}, fmt.Errorf("option side %q: %w", in.Side, model.ErrInvalidInput)
	}

	if in.T <= 0 {
		var delta float64
		if in.Side == model.Call && in.Spot > in.Strike {
			delta = 1
		}
		if in.Side == model.Put && in.Spot < in.Strike {
			delta = -1
		}
		return model.Greeks{Delta: delta}, nil
	}
	if in.Vol <= 0 || !finite(in.Vol) {
		return model.Greeks{}, fmt.Errorf("volatility %v: %w", in.Vol, model.ErrInvalidInput)
	}

	sqrtT := math.Sqrt(in.T)
	d1 := (math.Log(in.Spot/in.Strike) + (in.Rate-in.Dividend+0.5*in.Vol*in.Vol)*in.T) / (in.Vol * sqrtT)
	d2 := d1 - in.Vol*sqrtT
	divDisc := math.Exp(-in.Dividend * in.T)
	rateDisc := math.Exp(-in.Rate * in.T)
	pdf := normPDF(d1)

	g := model.Greeks{
		Gamma: divDisc * pdf / (in.Spot * in.Vol * sqrtT),
		Vega:  in.Spot * divDisc * pdf * sqrtT / 100,
	}
	decay := -in.Spot * pdf * in.Vol * divDisc / (2 * sqrtT)
	if in.Side == model.Call {
		g.Delta = divDisc * normCDF(d1)
		g.Rho = in.Strike * in.T * rateDisc * normCDF(d2) / 100
		g.Theta = (decay - in.Rate*in.Strike*rateDisc*normCDF(d2) + in.Dividend*in.Spot*divDisc*normCDF(d1)) / daysPerYear
	} else {
		g.Delta = -divDisc * normCDF(-d1)
		g.Rho = -in.Strike * in.T * rateDisc * normCDF(-d2) / 100
		g.Theta = (decay + in.Rate*in.Strike*rateDisc*normCDF(-d2) - in.Dividend*in.Spot*divDisc*normCDF(-d1)) / daysPerYear
	}
	return g, nil
}

func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

var expiryZone = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}()

// TimeToExpiry returns the years from now until 16:00 New York time on the
// expiration date. It is negative once that instant has passed.
func TimeToExpiry(expiration, now time.Time) float64 {
	// expirations arrive as UTC midnight of the listed date
	y, m, d := expiration.UTC().Date()
	closeAt := time.Date(y, m, d, 16, 0, 0, 0, expiryZone)
	return closeAt.Sub(now).Hours() / 24 / daysPerYear
}
