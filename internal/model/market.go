package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries holds a chronological daily history for one symbol.
type PriceSeries struct {
	Symbol    string    `json:"symbol"`
	Bars      []OHLCV   `json:"bars"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Closes returns the close of every bar, oldest first.
func (s *PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Volumes returns the volume of every bar, oldest first.
func (s *PriceSeries) Volumes() []float64 {
	vols := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		vols[i] = b.Volume
	}
	return vols
}

// Snapshot is the fast quote payload for one symbol. Optional upstream
// fields are pointers and stay nil when the provider omits them.
type Snapshot struct {
	Symbol           string    `json:"symbol"`
	Name             string    `json:"name,omitempty"`
	Currency         string    `json:"currency,omitempty"`
	MarketState      string    `json:"market_state,omitempty"`
	Price            float64   `json:"price"`
	PreviousClose    float64   `json:"previous_close"`
	Change           float64   `json:"change"`
	ChangePercent    float64   `json:"change_percent"`
	DayHigh          float64   `json:"day_high"`
	DayLow           float64   `json:"day_low"`
	High52w          float64   `json:"high_52w"`
	Low52w           float64   `json:"low_52w"`
	Volume           float64   `json:"volume"`
	AvgVolume10d     float64   `json:"avg_volume_10d"`
	AvgVolume3mo     float64   `json:"avg_volume_3mo"`
	FiftyDayAvg      float64   `json:"fifty_day_avg"`
	TwoHundredDayAvg float64   `json:"two_hundred_day_avg"`
	MarketCap        float64   `json:"market_cap,omitempty"`
	Beta             *float64  `json:"beta,omitempty"`
	DividendYield    *float64  `json:"dividend_yield,omitempty"`
	QuoteTime        time.Time `json:"quote_time"`
}
