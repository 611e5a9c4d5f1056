package options

import (
	"fmt"
	"sort"

	"MarketLens/internal/model"
)

// Sentiment thresholds on the open-interest put/call ratio.
const (
	BullishBelow = 0.8
	BearishAbove = 1.2
)

// Positioning aggregates open interest and volume per side. A ratio is nil
// when the call side is zero.
type Positioning struct {
	CallOI        float64  `json:"call_oi"`
	PutOI         float64  `json:"put_oi"`
	CallVolume    float64  `json:"call_volume"`
	PutVolume     float64  `json:"put_volume"`
	PutCallOI     *float64 `json:"put_call_oi,omitempty"`
	PutCallVolume *float64 `json:"put_call_volume,omitempty"`
	Sentiment     string   `json:"sentiment,omitempty"`
}

// Position sums the chain. It returns ErrDegenerateChain, alongside whatever
// could be computed, when the chain is empty or a ratio is undefined.
func Position(chain *model.OptionChain) (Positioning, error) {
	var p Positioning
	if len(chain.Calls) == 0 && len(chain.Puts) == 0 {
		return p, fmt.Errorf("no contracts: %w", model.ErrDegenerateChain)
	}
	for _, c := range chain.Calls {
		p.CallOI += c.OpenInterest
		p.CallVolume += c.Volume
	}
	for _, c := range chain.Puts {
		p.PutOI += c.OpenInterest
		p.PutVolume += c.Volume
	}

	var err error
	if p.CallOI > 0 {
		r := p.PutOI / p.CallOI
		p.PutCallOI = &r
		switch {
		case r < BullishBelow:
			p.Sentiment = "bullish"
		case r > BearishAbove:
			p.Sentiment = "bearish"
		default:
			p.Sentiment = "neutral"
		}
	} else {
		err = fmt.Errorf("put/call OI ratio undefined, call OI is zero: %w", model.ErrDegenerateChain)
	}
	if p.CallVolume > 0 {
		r := p.PutVolume / p.CallVolume
		p.PutCallVolume = &r
	} else if err == nil {
		err = fmt.Errorf("put/call volume ratio undefined, call volume is zero: %w", model.ErrDegenerateChain)
	}
	return p, err
}

// TopStrikes returns up to n contracts ranked by open interest descending,
// ties by strike ascending. The input is not modified.
func TopStrikes(contracts []model.OptionContract, n int) []model.OptionContract {
	if n <= 0 || len(contracts) == 0 {
		return nil
	}
	ranked := make([]model.OptionContract, len(contracts))
	copy(ranked, contracts)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].OpenInterest != ranked[j].OpenInterest {
			return ranked[i].OpenInterest > ranked[j].OpenInterest
		}
		return ranked[i].Strike < ranked[j].Strike
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
