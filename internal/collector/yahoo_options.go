package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/Jeffail/gabs/v2"

	"MarketLens/internal/model"
)

// yahooContract mirrors one entry of the calls/puts arrays.
type yahooContract struct {
	ContractSymbol    string   `json:"contractSymbol"`
	Strike            float64  `json:"strike"`
	LastPrice         float64  `json:"lastPrice"`
	Bid               float64  `json:"bid"`
	Ask               float64  `json:"ask"`
	Volume            *float64 `json:"volume"`
	OpenInterest      *float64 `json:"openInterest"`
	ImpliedVolatility float64  `json:"impliedVolatility"`
	InTheMoney        bool     `json:"inTheMoney"`
}

func (c yahooContract) contract(side model.OptionSide) model.OptionContract {
	oc := model.OptionContract{
		ContractSymbol: c.ContractSymbol,
		Side:           side,
		Strike:         c.Strike,
		LastPrice:      c.LastPrice,
		Bid:            c.Bid,
		Ask:            c.Ask,
		ImpliedVol:     c.ImpliedVolatility,
		InTheMoney:     c.InTheMoney,
	}
	// thinly traded contracts omit volume and open interest
	if c.Volume != nil {
		oc.Volume = *c.Volume
	}
	if c.OpenInterest != nil {
		oc.OpenInterest = *c.OpenInterest
	}
	return oc
}

// FetchOptionChain fetches one expiration of symbol's option chain. The zero
// expiration selects the nearest one listed.
func (f *YahooFetcher) FetchOptionChain(ctx context.Context, symbol string, expiration time.Time) (*model.OptionChain, error) {
	query := url.Values{}
	if !expiration.IsZero() {
		day := time.Date(expiration.Year(), expiration.Month(), expiration.Day(), 0, 0, 0, 0, time.UTC)
		query.Set("date", fmt.Sprint(day.Unix()))
	}
	body, err := f.get(ctx, symbol, "/v7/finance/options/"+url.PathEscape(f.yahooSymbol(symbol)), query, true)
	if err != nil {
		return nil, err
	}
	return parseOptionChain(symbol, body)
}

func parseOptionChain(symbol string, body []byte) (*model.OptionChain, error) {
	parsed, err := gabs.ParseJSON(body)
	if err != nil {
		return nil, model.NewFetchError(symbol, model.MalformedResponse, fmt.Errorf("yahoo decode: %w", err))
	}
	if desc, ok := parsed.Search("optionChain", "error", "description").Data().(string); ok {
		return nil, model.NewFetchError(symbol, model.MalformedResponse, fmt.Errorf("yahoo api error: %s", desc))
	}

	results := parsed.Search("optionChain", "result").Children()
	if len(results) == 0 {
		return nil, model.NewFetchError(symbol, model.NotFound, fmt.Errorf("yahoo: no option chain returned"))
	}
	result := results[0]

	spot, _ := result.Search("quote", "regularMarketPrice").Data().(float64)
	if spot <= 0 {
		return nil, model.NewFetchError(symbol, model.MalformedResponse, fmt.Errorf("yahoo: invalid underlying price %v", spot))
	}

	chain := &model.OptionChain{Symbol: symbol, Spot: spot, FetchedAt: time.Now()}
	for _, d := range result.Search("expirationDates").Children() {
		if ts, ok := d.Data().(float64); ok {
			chain.Expirations = append(chain.Expirations, time.Unix(int64(ts), 0).UTC())
		}
	}

	options := result.Search("options").Children()
	if len(options) == 0 {
		return nil, model.NewFetchError(symbol, model.NotFound, fmt.Errorf("yahoo: no listed options"))
	}
	series := options[0]
	if ts, ok := series.Search("expirationDate").Data().(float64); ok {
		chain.Expiration = time.Unix(int64(ts), 0).UTC()
	} else {
		return nil, model.NewFetchError(symbol, model.MalformedResponse, fmt.Errorf("yahoo: option series without expiration"))
	}

	var rejected []model.ContractIssue
	if chain.Calls, rejected, err = decodeContracts(series.Search("calls"), model.Call); err != nil {
		return nil, model.NewFetchError(symbol, model.MalformedResponse, fmt.Errorf("decode calls: %w", err))
	}
	chain.Rejected = append(chain.Rejected, rejected...)
	if chain.Puts, rejected, err = decodeContracts(series.Search("puts"), model.Put); err != nil {
		return nil, model.NewFetchError(symbol, model.MalformedResponse, fmt.Errorf("decode puts: %w", err))
	}
	chain.Rejected = append(chain.Rejected, rejected...)
	return chain, nil
}

// decodeContracts decodes each contract on its own so one bad entry is
// rejected without losing the rest of the side. Only a side that is not an
// array at all is an error.
func decodeContracts(c *gabs.Container, side model.OptionSide) ([]model.OptionContract, []model.ContractIssue, error) {
	if c == nil || c.Data() == nil {
		return nil, nil, nil
	}
	if _, ok := c.Data().([]interface{}); !ok {
		return nil, nil, fmt.Errorf("expected array, got %T", c.Data())
	}
	children := c.Children()
	out := make([]model.OptionContract, 0, len(children))
	var rejected []model.ContractIssue
	for _, child := range children {
		var r yahooContract
		if err := json.Unmarshal(child.Bytes(), &r); err != nil {
			issue := model.ContractIssue{Side: side, Reason: fmt.Sprintf("decode: %v", err)}
			issue.ContractSymbol, _ = child.Search("contractSymbol").Data().(string)
			issue.Strike, _ = child.Search("strike").Data().(float64)
			rejected = append(rejected, issue)
			continue
		}
		out = append(out, r.contract(side))
	}
	return out, rejected, nil
}
