// Package market knows which symbols trade when: the session-class table,
// the exchange calendar and the overview symbol catalogue.
package market

import (
	"strings"

	"MarketLens/internal/model"
)

// defaultClasses is the static membership table. Anything absent falls back
// to the suffix rules and then to SessionContinuous.
var defaultClasses = map[string]model.SessionClass{
	// Crypto
	"BTC-USD": model.SessionTwentyFourHour,
	"ETH-USD": model.SessionTwentyFourHour,
	"SOL-USD": model.SessionTwentyFourHour,
	// US index futures
	"ES=F":  model.SessionTwentyFourHour,
	"NQ=F":  model.SessionTwentyFourHour,
	"YM=F":  model.SessionTwentyFourHour,
	"RTY=F": model.SessionTwentyFourHour,
	// Commodity futures
	"GC=F": model.SessionTwentyFourHour,
	"SI=F": model.SessionTwentyFourHour,
	"PL=F": model.SessionTwentyFourHour,
	"HG=F": model.SessionTwentyFourHour,
	"CL=F": model.SessionTwentyFourHour,
	"NG=F": model.SessionTwentyFourHour,
	// Volatility and rates track the cash session they are derived from
	"^VIX":   model.SessionDerivative,
	"^VIX9D": model.SessionDerivative,
	"^VVIX":  model.SessionDerivative,
	"^TNX":   model.SessionDerivative,
	"^IRX":   model.SessionDerivative,
	"^FVX":   model.SessionDerivative,
	"^TYX":   model.SessionDerivative,
	// Cash indices, sector and style ETFs
	"^GSPC": model.SessionContinuous,
	"^IXIC": model.SessionContinuous,
	"^DJI":  model.SessionContinuous,
	"^RUT":  model.SessionContinuous,
	"XLK":   model.SessionContinuous,
	"XLF":   model.SessionContinuous,
	"XLV":   model.SessionContinuous,
	"XLE":   model.SessionContinuous,
	"XLY":   model.SessionContinuous,
	"XLP":   model.SessionContinuous,
	"XLI":   model.SessionContinuous,
	"XLU":   model.SessionContinuous,
	"XLB":   model.SessionContinuous,
	"XLRE":  model.SessionContinuous,
	"XLC":   model.SessionContinuous,
	"MTUM":  model.SessionContinuous,
	"VTV":   model.SessionContinuous,
	"VUG":   model.SessionContinuous,
	"QUAL":  model.SessionContinuous,
	"IWM":   model.SessionContinuous,
	"BIZD":  model.SessionContinuous,
}

var suffixClasses = []struct {
	suffix string
	class  model.SessionClass
}{
	{"=F", model.SessionTwentyFourHour},   // futures
	{"=X", model.SessionTwentyFourHour},   // FX
	{"-USD", model.SessionTwentyFourHour}, // crypto pairs
}

// Classifier maps symbols to session classes.
type Classifier struct {
	table map[string]model.SessionClass
}

// NewClassifier returns a classifier over the default table extended by extra.
// Entries in extra win over the defaults.
func NewClassifier(extra map[string]model.SessionClass) *Classifier {
	table := make(map[string]model.SessionClass, len(defaultClasses)+len(extra))
	for k, v := range defaultClasses {
		table[k] = v
	}
	for k, v := range extra {
		table[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return &Classifier{table: table}
}

// Classify returns the session class of symbol.
func (c *Classifier) Classify(symbol string) model.SessionClass {
	symbol = strings.ToUpper(symbol)
	if class, ok := c.table[symbol]; ok {
		return class
	}
	for _, r := range suffixClasses {
		if strings.HasSuffix(symbol, r.suffix) {
			return r.class
		}
	}
	return model.SessionContinuous
}

var defaultClassifier = NewClassifier(nil)

// Classify classifies symbol against the default table.
func Classify(symbol string) model.SessionClass {
	return defaultClassifier.Classify(symbol)
}
