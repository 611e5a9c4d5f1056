package options

import (
	"fmt"
	"math"
	"sort"

	"MarketLens/internal/model"
)

// WriterPayout is the total intrinsic value option writers owe if the
// underlying settles at s.
func WriterPayout(chain *model.OptionChain, s float64) float64 {
	var total float64
	for _, c := range chain.Calls {
		total += math.Max(0, s-c.Strike) * c.OpenInterest
	}
	for _, p := range chain.Puts {
		total += math.Max(0, p.Strike-s) * p.OpenInterest
	}
	return total
}

// MaxPain returns the chain strike minimising WriterPayout. Ties go to the
// lower strike, so the result does not depend on contract order.
func MaxPain(chain *model.OptionChain) (float64, error) {
	strikes := chainStrikes(chain)
	if len(strikes) == 0 {
		return 0, fmt.Errorf("max pain: %w", model.ErrDegenerateChain)
	}
	best, bestPayout := strikes[0], WriterPayout(chain, strikes[0])
	for _, k := range strikes[1:] {
		// strictly less keeps the lower of two equal strikes
		if p := WriterPayout(chain, k); p < bestPayout {
			best, bestPayout = k, p
		}
	}
	return best, nil
}

// chainStrikes returns every distinct strike of the chain, ascending.
func chainStrikes(chain *model.OptionChain) []float64 {
	set := make(map[float64]struct{}, len(chain.Calls)+len(chain.Puts))
	for _, c := range chain.Calls {
		set[c.Strike] = struct{}{}
	}
	for _, p := range chain.Puts {
		set[p.Strike] = struct{}{}
	}
	strikes := make([]float64, 0, len(set))
	for k := range set {
		strikes = append(strikes, k)
	}
	sort.Float64s(strikes)
	return strikes
}
