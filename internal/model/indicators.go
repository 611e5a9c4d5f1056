package model

// VolumeBaseline names the average a relative-volume figure was computed
// against. The overview and ticker screens use different ones.
type VolumeBaseline string

const (
	BaselineTenDay     VolumeBaseline = "10d"
	BaselineThreeMonth VolumeBaseline = "3mo"
)

// Regression is the result of regressing a symbol's daily returns on a benchmark.
type Regression struct {
	Benchmark    string  `json:"benchmark"`
	Beta         float64 `json:"beta"`
	Alpha        float64 `json:"alpha"`
	IdioVol      float64 `json:"idio_vol"`      // annualised stdev of residuals
	TotalVol     float64 `json:"total_vol"`     // annualised stdev of returns
	BenchmarkVol float64 `json:"benchmark_vol"` // annualised
	RelativeVol  float64 `json:"relative_vol"`  // TotalVol / BenchmarkVol
	Observations int     `json:"observations"`
}

// MarketQuote is one row of the market overview.
type MarketQuote struct {
	Key            string         `json:"key"`
	Symbol         string         `json:"symbol"`
	Category       string         `json:"category"`
	Snapshot       *Snapshot      `json:"snapshot,omitempty"`
	Cached         bool           `json:"cached"`
	RelVolume      *float64       `json:"rel_volume,omitempty"`
	VolumeBaseline VolumeBaseline `json:"volume_baseline"`
	Momentum1M     *float64       `json:"momentum_1m,omitempty"`
	Momentum1Y     *float64       `json:"momentum_1y,omitempty"`
	Issues         []string       `json:"issues,omitempty"`
	Err            error          `json:"-"`
	Error          string         `json:"error,omitempty"`
}

// TickerReport holds the detail analytics for one symbol. A nil metric
// means it could not be computed; the reason is listed in Issues.
type TickerReport struct {
	Symbol         string         `json:"symbol"`
	Snapshot       *Snapshot      `json:"snapshot,omitempty"`
	Cached         bool           `json:"cached"`
	Momentum1W     *float64       `json:"momentum_1w,omitempty"`
	Momentum1M     *float64       `json:"momentum_1m,omitempty"`
	Momentum1Y     *float64       `json:"momentum_1y,omitempty"`
	RSI14          *float64       `json:"rsi_14,omitempty"`
	MA50           *float64       `json:"ma_50,omitempty"`
	MA200          *float64       `json:"ma_200,omitempty"`
	High52w        *float64       `json:"high_52w,omitempty"`
	Low52w         *float64       `json:"low_52w,omitempty"`
	Position52w    *float64       `json:"position_52w,omitempty"` // 0.0 ~ 1.0
	RelVolume      *float64       `json:"rel_volume,omitempty"`
	VolumeBaseline VolumeBaseline `json:"volume_baseline"`
	VolumeMom1W    *float64       `json:"volume_momentum_1w,omitempty"`
	Regression     *Regression    `json:"regression,omitempty"`
	Issues         []string       `json:"issues,omitempty"`
	Err            error          `json:"-"`
	Error          string         `json:"error,omitempty"`
}
