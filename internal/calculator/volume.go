package calculator

import (
	"fmt"

	"MarketLens/internal/model"
)

// minExtrapolationFraction is how much of the session must have elapsed
// before partial volume is scaled up.
const minExtrapolationFraction = 0.1

// VolumeMomentumLookback is the session gap compared by VolumeMomentum.
const VolumeMomentumLookback = 5

// RelativeVolume returns volume as a multiple of baseline.
func RelativeVolume(volume, baseline float64) (float64, error) {
	if baseline <= 0 {
		return 0, fmt.Errorf("volume baseline %v: %w", baseline, model.ErrInvalidInput)
	}
	if volume < 0 {
		return 0, fmt.Errorf("volume %v: %w", volume, model.ErrInvalidInput)
	}
	return volume / baseline, nil
}

// ExtrapolateVolume scales partial-session volume to a full-day estimate.
// fraction is the elapsed share of the session (0 when closed); volume is
// returned unchanged until more than 10% of the session has passed.
func ExtrapolateVolume(volume, fraction float64) float64 {
	if fraction <= minExtrapolationFraction || fraction >= 1 {
		return volume
	}
	return volume / fraction
}

// VolumeMomentum returns the percent change of the latest session volume
// against the volume lookback sessions earlier.
func VolumeMomentum(volumes []float64, lookback int) (float64, error) {
	if lookback <= 0 {
		return 0, fmt.Errorf("volume lookback %d: %w", lookback, model.ErrInvalidInput)
	}
	if len(volumes) < lookback+1 {
		return 0, fmt.Errorf("volume momentum needs %d sessions, have %d: %w", lookback+1, len(volumes), model.ErrInsufficientHistory)
	}
	base := volumes[len(volumes)-1-lookback]
	if base <= 0 {
		return 0, fmt.Errorf("volume %v %d sessions ago: %w", base, lookback, model.ErrInvalidInput)
	}
	return (volumes[len(volumes)-1] - base) / base * 100, nil
}
