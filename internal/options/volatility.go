package options

import (
	"fmt"
	"math"
	"sort"
	"time"

	"MarketLens/internal/model"
)

// DefaultSkewDistance is the moneyness offset used when delta matching is
// not possible.
const DefaultSkewDistance = 0.05

const skewDelta = 0.25

// Skew methods.
const (
	SkewByDelta     = "delta_25"
	SkewByMoneyness = "moneyness"
)

// ATM holds the implied volatility of the contracts nearest the money.
type ATM struct {
	CallStrike float64  `json:"call_strike,omitempty"`
	PutStrike  float64  `json:"put_strike,omitempty"`
	CallIV     *float64 `json:"call_iv,omitempty"`
	PutIV      *float64 `json:"put_iv,omitempty"`
	// IV averages whichever sides are present.
	IV float64 `json:"iv"`
}

// ATMIV returns the IV of the call and put strikes nearest spot. Contracts
// without a positive IV are ignored.
func ATMIV(chain *model.OptionChain) (ATM, error) {
	var atm ATM
	if chain.Spot <= 0 {
		return atm, fmt.Errorf("spot %v: %w", chain.Spot, model.ErrInvalidInput)
	}
	var sum float64
	var n int
	if c, ok := nearest(chain.Calls, chain.Spot, nil); ok {
		iv := c.ImpliedVol
		atm.CallStrike, atm.CallIV = c.Strike, &iv
		sum += iv
		n++
	}
	if p, ok := nearest(chain.Puts, chain.Spot, nil); ok {
		iv := p.ImpliedVol
		atm.PutStrike, atm.PutIV = p.Strike, &iv
		sum += iv
		n++
	}
	if n == 0 {
		return atm, fmt.Errorf("no contract with implied volatility: %w", model.ErrDegenerateChain)
	}
	atm.IV = sum / float64(n)
	return atm, nil
}

// nearest returns the contract with positive IV whose strike is closest to
// target, lower strike on ties. keep filters candidates when non-nil.
func nearest(contracts []model.OptionContract, target float64, keep func(model.OptionContract) bool) (model.OptionContract, bool) {
	var best model.OptionContract
	found := false
	for _, c := range contracts {
		if c.ImpliedVol <= 0 || (keep != nil && !keep(c)) {
			continue
		}
		d, bd := math.Abs(c.Strike-target), math.Abs(best.Strike-target)
		if !found || d < bd || (d == bd && c.Strike < best.Strike) {
			best, found = c, true
		}
	}
	return best, found
}

// SkewParams configures Skew.
type SkewParams struct {
	Now      time.Time
	Rate     float64
	Dividend float64
	Distance float64 // moneyness offset for the fallback method
}

// SkewResult is put IV minus call IV at equidistant out-of-the-money points.
// Positive means puts are richer.
type SkewResult struct {
	Value      float64 `json:"value"`
	Method     string  `json:"method"`
	PutStrike  float64 `json:"put_strike"`
	CallStrike float64 `json:"call_strike"`
	PutIV      float64 `json:"put_iv"`
	CallIV     float64 `json:"call_iv"`
}

// Skew compares 25-delta put and call IV when Greeks can be computed, and
// otherwise the OTM strikes nearest spot*(1-d) and spot*(1+d).
func Skew(chain *model.OptionChain, params SkewParams) (SkewResult, error) {
	if chain.Spot <= 0 {
		return SkewResult{}, fmt.Errorf("spot %v: %w", chain.Spot, model.ErrInvalidInput)
	}
	if r, ok := skewByDelta(chain, params); ok {
		return r, nil
	}

	d := params.Distance
	if d <= 0 {
		d = DefaultSkewDistance
	}
	put, okPut := nearest(chain.Puts, chain.Spot*(1-d), func(c model.OptionContract) bool { return c.Strike <= chain.Spot })
	call, okCall := nearest(chain.Calls, chain.Spot*(1+d), func(c model.OptionContract) bool { return c.Strike >= chain.Spot })
	if !okPut || !okCall {
		return SkewResult{}, fmt.Errorf("skew needs OTM puts and calls with IV: %w", model.ErrDegenerateChain)
	}
	return SkewResult{
		Value:      put.ImpliedVol - call.ImpliedVol,
		Method:     SkewByMoneyness,
		PutStrike:  put.Strike,
		CallStrike: call.Strike,
		PutIV:      put.ImpliedVol,
		CallIV:     call.ImpliedVol,
	}, nil
}

func skewByDelta(chain *model.OptionChain, params SkewParams) (SkewResult, bool) {
	t := TimeToExpiry(chain.Expiration, params.Now)
	if t <= 0 {
		return SkewResult{}, false
	}
	pick := func(contracts []model.OptionContract, side model.OptionSide, target float64, otm func(float64) bool) (model.OptionContract, bool) {
		var best model.OptionContract
		bestDist := math.Inf(1)
		for _, c := range contracts {
			if c.ImpliedVol <= 0 || !otm(c.Strike) {
				continue
			}
			g, err := ComputeGreeks(GreeksInput{
				Spot: chain.Spot, Strike: c.Strike, T: t, Vol: c.ImpliedVol,
				Rate: params.Rate, Dividend: params.Dividend, Side: side,
			})
			if err != nil {
				continue
			}
			if dist := math.Abs(g.Delta - target); dist < bestDist {
				best, bestDist = c, dist
			}
		}
		return best, !math.IsInf(bestDist, 1)
	}
	put, okPut := pick(chain.Puts, model.Put, -skewDelta, func(k float64) bool { return k < chain.Spot })
	call, okCall := pick(chain.Calls, model.Call, skewDelta, func(k float64) bool { return k > chain.Spot })
	if !okPut || !okCall {
		return SkewResult{}, false
	}
	return SkewResult{
		Value:      put.ImpliedVol - call.ImpliedVol,
		Method:     SkewByDelta,
		PutStrike:  put.Strike,
		CallStrike: call.Strike,
		PutIV:      put.ImpliedVol,
		CallIV:     call.ImpliedVol,
	}, true
}

// Term structure shapes.
const (
	ShapeContango      = "contango"
	ShapeBackwardation = "backwardation"
	ShapeFlat          = "flat"
	ShapeMixed         = "mixed"
)

// TermPoint is the ATM IV of one expiration.
type TermPoint struct {
	Expiration time.Time `json:"expiration"`
	T          float64   `json:"t"` // years
	ATMIV      float64   `json:"atm_iv"`
}

// Term is an ordered term structure and its shape.
type Term struct {
	Points []TermPoint `json:"points"`
	Shape  string      `json:"shape"`
}

// TermStructure orders points by time to expiry and classifies the curve:
// strictly rising is contango, strictly falling backwardation.
func TermStructure(points []TermPoint) Term {
	sorted := make([]TermPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].T < sorted[j].T })

	term := Term{Points: sorted, Shape: ShapeFlat}
	if len(sorted) < 2 {
		return term
	}
	rising, falling := true, true
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1].ATMIV, sorted[i].ATMIV
		if cur <= prev {
			rising = false
		}
		if cur >= prev {
			falling = false
		}
	}
	switch {
	case rising:
		term.Shape = ShapeContango
	case falling:
		term.Shape = ShapeBackwardation
	case allEqual(sorted):
		term.Shape = ShapeFlat
	default:
		term.Shape = ShapeMixed
	}
	return term
}

func allEqual(points []TermPoint) bool {
	for _, p := range points[1:] {
		if p.ATMIV != points[0].ATMIV {
			return false
		}
	}
	return true
}
