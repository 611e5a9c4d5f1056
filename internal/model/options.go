package model

import (
	"fmt"
	"time"
)

// OptionSide distinguishes calls from puts.
type OptionSide string

const (
	Call OptionSide = "call"
	Put  OptionSide = "put"
)

// OptionContract is one listed contract of a chain.
type OptionContract struct {
	ContractSymbol string     `json:"contract_symbol,omitempty"`
	Side           OptionSide `json:"side"`
	Strike         float64    `json:"strike"`
	OpenInterest   float64    `json:"open_interest"`
	Volume         float64    `json:"volume"`
	LastPrice      float64    `json:"last_price"`
	Bid            float64    `json:"bid,omitempty"`
	Ask            float64    `json:"ask,omitempty"`
	ImpliedVol     float64    `json:"implied_vol"` // annualised, decimal (0.25 = 25%)
	InTheMoney     bool       `json:"in_the_money"`
}

// OptionChain is the chain for a single (symbol, expiration) pair.
// Chains are fetched fresh on every request and never cached.
type OptionChain struct {
	Symbol      string           `json:"symbol"`
	Expiration  time.Time        `json:"expiration"`
	Spot        float64          `json:"spot"`
	Calls       []OptionContract `json:"calls"`
	Puts        []OptionContract `json:"puts"`
	Expirations []time.Time      `json:"expirations,omitempty"`
	// Rejected lists contracts the upstream sent that could not be decoded.
	Rejected  []ContractIssue `json:"rejected,omitempty"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// ContractIssue describes a contract that was excluded from analysis.
type ContractIssue struct {
	ContractSymbol string     `json:"contract_symbol,omitempty"`
	Side           OptionSide `json:"side"`
	Strike         float64    `json:"strike"`
	Reason         string     `json:"reason"`
}

func (i ContractIssue) String() string {
	return fmt.Sprintf("%s %v: %s", i.Side, i.Strike, i.Reason)
}

// Greeks are Black-Scholes sensitivities. Theta is per calendar day,
// vega and rho per one percentage point.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
	Rho   float64 `json:"rho"`
}
