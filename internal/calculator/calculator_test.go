package calculator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketLens/internal/model"
)

func series(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   float64
	}{
		{"monotonic up", series(100, 1, 30), 100},
		{"monotonic down", series(130, -1, 30), 0},
		{"flat", series(100, 0, 30), 50},
		{"exactly period+1", series(100, 1, 15), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RSI(tt.closes, DefaultRSIPeriod)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	t.Run("bounded on mixed series", func(t *testing.T) {
		closes := make([]float64, 60)
		for i := range closes {
			closes[i] = 100 + 5*math.Sin(float64(i)/3)
		}
		got, err := RSI(closes, DefaultRSIPeriod)
		require.NoError(t, err)
		assert.Greater(t, got, 0.0)
		assert.Less(t, got, 100.0)
	})

	t.Run("insufficient history", func(t *testing.T) {
		_, err := RSI(series(100, 1, 14), DefaultRSIPeriod)
		assert.ErrorIs(t, err, model.ErrInsufficientHistory)
	})

	t.Run("invalid period", func(t *testing.T) {
		_, err := RSI(series(100, 1, 30), 0)
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})
}

func TestSMA(t *testing.T) {
	got, err := SMA(series(1, 1, 10), 5)
	require.NoError(t, err)
	assert.InDelta(t, 8.0, got, 1e-9)

	got, err = SMA([]float64{3, 4}, 1)
	require.NoError(t, err)
	assert.Equal(t, 4.0, got)

	_, err = SMA(series(1, 1, 4), 5)
	assert.ErrorIs(t, err, model.ErrInsufficientHistory)
}

func TestMovingAverages_Partial(t *testing.T) {
	set, err := MovingAverages(series(100, 0, 60))
	require.NotNil(t, set.MA50)
	assert.InDelta(t, 100.0, *set.MA50, 1e-9)
	assert.Nil(t, set.MA200)
	assert.ErrorIs(t, err, model.ErrInsufficientHistory)

	set, err = MovingAverages(series(1, 1, 250))
	require.NoError(t, err)
	assert.InDelta(t, 225.5, *set.MA50, 1e-9)
	assert.InDelta(t, 150.5, *set.MA200, 1e-9)
}

func TestMomentum(t *testing.T) {
	closes := series(100, 0, 30)
	closes[len(closes)-1] = 110

	got, err := Momentum(closes, Window1W)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, got, 1e-9)

	_, err = Momentum(closes, Window1Y)
	assert.ErrorIs(t, err, model.ErrInsufficientHistory)

	closes[len(closes)-1-Window1M] = 0
	_, err = Momentum(closes, Window1M)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestReturns(t *testing.T) {
	got, err := Returns([]float64{100, 110, 99})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.10, got[0], 1e-12)
	assert.InDelta(t, -0.10, got[1], 1e-12)

	_, err = Returns([]float64{100})
	assert.ErrorIs(t, err, model.ErrInsufficientHistory)
}

func TestRange52Week(t *testing.T) {
	bars := make([]model.OHLCV, 300)
	for i := range bars {
		p := float64(i + 1)
		bars[i] = model.OHLCV{High: p + 1, Low: p - 1, Close: p}
	}
	high, low, err := Range52Week(bars)
	require.NoError(t, err)
	assert.Equal(t, 301.0, high)
	assert.Equal(t, 48.0, low) // first bar of the last 252

	_, _, err = Range52Week(nil)
	assert.ErrorIs(t, err, model.ErrInsufficientHistory)
}

func TestRangePosition(t *testing.T) {
	pos, err := RangePosition(150, 200, 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, pos, 1e-9)

	pos, _ = RangePosition(250, 200, 100)
	assert.Equal(t, 1.0, pos)

	pos, _ = RangePosition(100, 100, 100)
	assert.Equal(t, 0.5, pos)

	_, err = RangePosition(100, 90, 110)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestRelativeVolume(t *testing.T) {
	got, err := RelativeVolume(20e6, 80e6)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, got, 1e-9)

	_, err = RelativeVolume(1, 0)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestExtrapolateVolume(t *testing.T) {
	assert.Equal(t, 20e6, ExtrapolateVolume(20e6, 0))    // closed
	assert.Equal(t, 20e6, ExtrapolateVolume(20e6, 0.05)) // too early
	assert.Equal(t, 20e6, ExtrapolateVolume(20e6, 0.1))  // boundary is exclusive
	assert.InDelta(t, 40e6, ExtrapolateVolume(20e6, 0.5), 1e-3)
}

func TestVolumeMomentum(t *testing.T) {
	vols := []float64{90, 100, 120, 110, 105, 95, 150}
	got, err := VolumeMomentum(vols, VolumeMomentumLookback)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, got, 1e-9)

	_, err = VolumeMomentum(vols[:5], VolumeMomentumLookback)
	assert.ErrorIs(t, err, model.ErrInsufficientHistory)

	vols[1] = 0
	_, err = VolumeMomentum(vols, VolumeMomentumLookback)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestRegress(t *testing.T) {
	bench := make([]float64, 40)
	for i := range bench {
		bench[i] = 0.01 * math.Sin(float64(i)*1.7)
	}

	t.Run("exact linear relation", func(t *testing.T) {
		returns := make([]float64, len(bench))
		for i, b := range bench {
			returns[i] = 0.0005 + 2*b
		}
		r, err := Regress(returns, bench)
		require.NoError(t, err)
		assert.InDelta(t, 2.0, r.Beta, 1e-9)
		assert.InDelta(t, 0.0005, r.Alpha, 1e-12)
		assert.InDelta(t, 0.0, r.IdioVol, 1e-9)
		assert.InDelta(t, 2.0, r.RelativeVol, 1e-9)
		assert.Equal(t, 40, r.Observations)
	})

	t.Run("aligned on common tail", func(t *testing.T) {
		returns := make([]float64, 25)
		for i := range returns {
			returns[i] = bench[len(bench)-25+i]
		}
		r, err := Regress(returns, bench)
		require.NoError(t, err)
		assert.Equal(t, 25, r.Observations)
		assert.InDelta(t, 1.0, r.Beta, 1e-9)
	})

	t.Run("too few observations", func(t *testing.T) {
		_, err := Regress(bench[:19], bench[:19])
		assert.ErrorIs(t, err, model.ErrInsufficientHistory)
	})

	t.Run("flat benchmark", func(t *testing.T) {
		_, err := Regress(bench, make([]float64, len(bench)))
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})
}

func TestAlignCloses(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, time.October, d, 20, 0, 0, 0, time.UTC) }
	a := []model.OHLCV{{Time: day(12), Close: 1}, {Time: day(13), Close: 2}, {Time: day(14), Close: 3}}
	b := []model.OHLCV{{Time: day(13), Close: 20}, {Time: day(14), Close: 30}, {Time: day(15), Close: 40}}

	xs, ys := AlignCloses(a, b)
	assert.Equal(t, []float64{2, 3}, xs)
	assert.Equal(t, []float64{20, 30}, ys)
}
