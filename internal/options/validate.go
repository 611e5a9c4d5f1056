// Package options turns a raw option chain into positioning and volatility
// analytics. Everything here is synchronous and side-effect free.
package options

import (
	"math"

	"MarketLens/internal/model"
)

// ContractIssue describes a contract that was excluded from analysis.
type ContractIssue = model.ContractIssue

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func contractProblem(c model.OptionContract) string {
	switch {
	case !finite(c.Strike) || !finite(c.OpenInterest) || !finite(c.Volume) ||
		!finite(c.ImpliedVol) || !finite(c.LastPrice):
		return "non-finite field"
	case c.Strike <= 0:
		return "strike must be positive"
	case c.ImpliedVol < 0:
		return "negative implied volatility"
	case c.OpenInterest < 0:
		return "negative open interest"
	case c.Volume < 0:
		return "negative volume"
	}
	return ""
}

// Validate returns a copy of chain holding only well-formed contracts, with
// one issue per contract it dropped. Contracts rejected at ingestion are
// reported first. The first contract at a strike wins.
func Validate(chain *model.OptionChain) (*model.OptionChain, []ContractIssue) {
	clean := *chain
	clean.Rejected = nil
	issues := append([]ContractIssue(nil), chain.Rejected...)
	clean.Calls, issues = validateSide(chain.Calls, model.Call, issues)
	clean.Puts, issues = validateSide(chain.Puts, model.Put, issues)
	return &clean, issues
}

func validateSide(contracts []model.OptionContract, side model.OptionSide, issues []ContractIssue) ([]model.OptionContract, []ContractIssue) {
	out := make([]model.OptionContract, 0, len(contracts))
	seen := make(map[float64]bool, len(contracts))
	for _, c := range contracts {
		c.Side = side
		reason := contractProblem(c)
		if reason == "" && seen[c.Strike] {
			reason = "duplicate strike"
		}
		if reason != "" {
			issues = append(issues, ContractIssue{
				ContractSymbol: c.ContractSymbol,
				Side:           side,
				Strike:         c.Strike,
				Reason:         reason,
			})
			continue
		}
		seen[c.Strike] = true
		out = append(out, c)
	}
	return out, issues
}
