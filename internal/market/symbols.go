package market

import "strings"

// BenchmarkSymbol is the index single names are regressed against.
const BenchmarkSymbol = "^GSPC"

// Overview categories.
const (
	CategoryUS          = "us"
	CategoryFutures     = "futures"
	CategoryAsia        = "asia"
	CategoryEurope      = "europe"
	CategoryLatAm       = "latam"
	CategoryCrypto      = "crypto"
	CategorySectors     = "sectors"
	CategoryStyles      = "styles"
	CategoryCredit      = "credit"
	CategoryCommodities = "commodities"
	CategoryVolatility  = "volatility"
	CategoryRates       = "rates"
)

// OverviewSymbol is one row of the market overview catalogue.
type OverviewSymbol struct {
	Key      string `json:"key"`
	Symbol   string `json:"symbol"`
	Category string `json:"category"`
}

var overview = []OverviewSymbol{
	{"sp500", "^GSPC", CategoryUS},
	{"nasdaq", "^IXIC", CategoryUS},
	{"dow", "^DJI", CategoryUS},
	{"russell2000", "^RUT", CategoryUS},

	{"es_futures", "ES=F", CategoryFutures},
	{"nq_futures", "NQ=F", CategoryFutures},
	{"ym_futures", "YM=F", CategoryFutures},
	{"rty_futures", "RTY=F", CategoryFutures},

	{"nikkei", "^N225", CategoryAsia},
	{"hangseng", "^HSI", CategoryAsia},
	{"shanghai", "000001.SS", CategoryAsia},
	{"kospi", "^KS11", CategoryAsia},
	{"nifty50", "^NSEI", CategoryAsia},
	{"asx200", "^AXJO", CategoryAsia},
	{"taiwan", "^TWII", CategoryAsia},

	{"stoxx50", "^STOXX50E", CategoryEurope},

	{"bovespa", "^BVSP", CategoryLatAm},

	{"btc", "BTC-USD", CategoryCrypto},
	{"eth", "ETH-USD", CategoryCrypto},
	{"sol", "SOL-USD", CategoryCrypto},

	{"tech", "XLK", CategorySectors},
	{"financials", "XLF", CategorySectors},
	{"healthcare", "XLV", CategorySectors},
	{"energy", "XLE", CategorySectors},
	{"consumer_disc", "XLY", CategorySectors},
	{"consumer_stpl", "XLP", CategorySectors},
	{"industrials", "XLI", CategorySectors},
	{"utilities", "XLU", CategorySectors},
	{"materials", "XLB", CategorySectors},
	{"real_estate", "XLRE", CategorySectors},
	{"communication", "XLC", CategorySectors},

	{"momentum", "MTUM", CategoryStyles},
	{"value", "VTV", CategoryStyles},
	{"growth", "VUG", CategoryStyles},
	{"quality", "QUAL", CategoryStyles},
	{"small_cap", "IWM", CategoryStyles},

	{"private_credit", "BIZD", CategoryCredit},

	{"gold", "GC=F", CategoryCommodities},
	{"silver", "SI=F", CategoryCommodities},
	{"platinum", "PL=F", CategoryCommodities},
	{"copper", "HG=F", CategoryCommodities},
	{"oil_wti", "CL=F", CategoryCommodities},
	{"natgas", "NG=F", CategoryCommodities},

	{"vix", "^VIX", CategoryVolatility},

	{"us10y", "^TNX", CategoryRates},
}

// OverviewSymbols returns the overview catalogue, restricted to the given
// categories when any are passed. Order is catalogue order.
func OverviewSymbols(categories ...string) []OverviewSymbol {
	want := make(map[string]bool, len(categories))
	for _, c := range categories {
		want[strings.ToLower(strings.TrimSpace(c))] = true
	}
	out := make([]OverviewSymbol, 0, len(overview))
	for _, s := range overview {
		if len(want) == 0 || want[s.Category] {
			out = append(out, s)
		}
	}
	return out
}

// Categories lists the overview categories in catalogue order.
func Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range overview {
		if !seen[s.Category] {
			seen[s.Category] = true
			out = append(out, s.Category)
		}
	}
	return out
}

// NormalizeSymbols trims, upper-cases and splits comma-separated inputs,
// dropping blanks and duplicates while keeping first-seen order.
func NormalizeSymbols(inputs ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, in := range inputs {
		for _, part := range strings.Split(in, ",") {
			sym := strings.ToUpper(strings.TrimSpace(part))
			if sym == "" || seen[sym] {
				continue
			}
			seen[sym] = true
			out = append(out, sym)
		}
	}
	return out
}
