package options

import "MarketLens/internal/model"

// UnusualVolumeRatio is the volume to open-interest multiple above which a
// contract is flagged.
const UnusualVolumeRatio = 2.0

// IsUnusual reports whether volume strictly exceeds twice open interest.
func IsUnusual(c model.OptionContract) bool {
	return c.Volume > UnusualVolumeRatio*c.OpenInterest
}

// Unusual returns the flagged contracts, calls first, in chain order.
func Unusual(chain *model.OptionChain) []model.OptionContract {
	var out []model.OptionContract
	for _, c := range chain.Calls {
		if IsUnusual(c) {
			out = append(out, c)
		}
	}
	for _, p := range chain.Puts {
		if IsUnusual(p) {
			out = append(out, p)
		}
	}
	return out
}
