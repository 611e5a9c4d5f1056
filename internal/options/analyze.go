package options

import (
	"fmt"
	"math"
	"time"

	"MarketLens/internal/model"
)

// DefaultTopStrikes is how many strikes per side a report lists.
const DefaultTopStrikes = 5

// Params configures Analyze.
type Params struct {
	Now           time.Time
	Rate          float64 // risk-free, annualised decimal
	Dividend      float64 // annualised decimal
	SkewDistance  float64
	TopN          int
	IncludeGreeks bool
	// TermChains are further expirations of the same underlying, used only
	// for the term structure.
	TermChains []*model.OptionChain
}

// ContractGreeks pairs a contract with its Greeks.
type ContractGreeks struct {
	ContractSymbol string           `json:"contract_symbol,omitempty"`
	Side           model.OptionSide `json:"side"`
	Strike         float64          `json:"strike"`
	ImpliedVol     float64          `json:"implied_vol"`
	Greeks         model.Greeks     `json:"greeks"`
}

// Report is the full analysis of one chain. A nil section could not be
// computed; Issues says why.
type Report struct {
	Symbol          string                 `json:"symbol"`
	Expiration      time.Time              `json:"expiration"`
	DaysToExpiry    int                    `json:"days_to_expiry"`
	Spot            float64                `json:"spot"`
	Positioning     *Positioning           `json:"positioning,omitempty"`
	TopCalls        []model.OptionContract `json:"top_calls,omitempty"`
	TopPuts         []model.OptionContract `json:"top_puts,omitempty"`
	ATM             *ATM                   `json:"atm,omitempty"`
	Skew            *SkewResult            `json:"skew,omitempty"`
	Term            *Term                  `json:"term,omitempty"`
	MaxPain         *float64               `json:"max_pain,omitempty"`
	MaxPainDistance *float64               `json:"max_pain_distance_pct,omitempty"` // percent of spot, positive above
	Unusual         []model.OptionContract `json:"unusual,omitempty"`
	UnusualCalls    int                    `json:"unusual_calls"`
	UnusualPuts     int                    `json:"unusual_puts"`
	Greeks          []ContractGreeks       `json:"greeks,omitempty"`
	ContractIssues  []ContractIssue        `json:"contract_issues,omitempty"`
	Issues          []string               `json:"issues,omitempty"`
}

func (r *Report) issue(metric string, err error) {
	r.Issues = append(r.Issues, fmt.Sprintf("%s: %v", metric, err))
}

// Analyze validates chain and runs every metric on the clean contracts. A
// failing metric is recorded in Issues and does not stop the others.
func Analyze(chain *model.OptionChain, params Params) Report {
	clean, contractIssues := Validate(chain)
	r := Report{
		Symbol:         chain.Symbol,
		Expiration:     chain.Expiration,
		Spot:           chain.Spot,
		ContractIssues: contractIssues,
	}
	t := TimeToExpiry(chain.Expiration, params.Now)
	r.DaysToExpiry = int(math.Max(0, math.Ceil(t*daysPerYear)))

	p, err := Position(clean)
	if err != nil {
		r.issue("positioning", err)
	}
	if len(clean.Calls)+len(clean.Puts) > 0 {
		r.Positioning = &p
	}

	n := params.TopN
	if n <= 0 {
		n = DefaultTopStrikes
	}
	r.TopCalls = TopStrikes(clean.Calls, n)
	r.TopPuts = TopStrikes(clean.Puts, n)

	atm, atmErr := ATMIV(clean)
	if atmErr != nil {
		r.issue("atm_iv", atmErr)
	} else {
		r.ATM = &atm
	}

	if s, err := Skew(clean, SkewParams{
		Now: params.Now, Rate: params.Rate, Dividend: params.Dividend, Distance: params.SkewDistance,
	}); err != nil {
		r.issue("skew", err)
	} else {
		r.Skew = &s
	}

	if len(params.TermChains) > 0 {
		term := r.termStructure(clean, atm, atmErr == nil, params)
		r.Term = &term
	}

	if mp, err := MaxPain(clean); err != nil {
		r.issue("max_pain", err)
	} else {
		r.MaxPain = &mp
		if clean.Spot > 0 {
			d := (mp - clean.Spot) / clean.Spot * 100
			r.MaxPainDistance = &d
		}
	}

	r.Unusual = Unusual(clean)
	for _, c := range r.Unusual {
		if c.Side == model.Call {
			r.UnusualCalls++
		} else {
			r.UnusualPuts++
		}
	}

	if params.IncludeGreeks {
		r.Greeks = r.contractGreeks(clean, t, params)
	}
	return r
}

func (r *Report) termStructure(front *model.OptionChain, frontATM ATM, frontOK bool, params Params) Term {
	var points []TermPoint
	if frontOK {
		points = append(points, TermPoint{
			Expiration: front.Expiration,
			T:          TimeToExpiry(front.Expiration, params.Now),
			ATMIV:      frontATM.IV,
		})
	}
	for _, c := range params.TermChains {
		if c == nil || c.Expiration.Equal(front.Expiration) {
			continue
		}
		clean, _ := Validate(c)
		atm, err := ATMIV(clean)
		if err != nil {
			r.issue("term "+c.Expiration.Format("2006-01-02"), err)
			continue
		}
		points = append(points, TermPoint{
			Expiration: c.Expiration,
			T:          TimeToExpiry(c.Expiration, params.Now),
			ATMIV:      atm.IV,
		})
	}
	return TermStructure(points)
}

func (r *Report) contractGreeks(chain *model.OptionChain, t float64, params Params) []ContractGreeks {
	all := make([]model.OptionContract, 0, len(chain.Calls)+len(chain.Puts))
	all = append(all, chain.Calls...)
	all = append(all, chain.Puts...)

	out := make([]ContractGreeks, 0, len(all))
	for _, c := range all {
		g, err := ComputeGreeks(GreeksInput{
			Spot: chain.Spot, Strike: c.Strike, T: t, Vol: c.ImpliedVol,
			Rate: params.Rate, Dividend: params.Dividend, Side: c.Side,
		})
		if err != nil {
			r.issue(fmt.Sprintf("greeks %s %v", c.Side, c.Strike), err)
			continue
		}
		out = append(out, ContractGreeks{
			ContractSymbol: c.ContractSymbol,
			Side:           c.Side,
			Strike:         c.Strike,
			ImpliedVol:     c.ImpliedVol,
			Greeks:         g,
		})
	}
	return out
}
