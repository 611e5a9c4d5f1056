package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketLens/internal/model"
)

var newYork = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}()

func ny(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, newYork)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		symbol string
		want   model.SessionClass
	}{
		{"BTC-USD", model.SessionTwentyFourHour},
		{"ES=F", model.SessionTwentyFourHour},
		{"NG=F", model.SessionTwentyFourHour},
		{"ZB=F", model.SessionTwentyFourHour}, // suffix rule
		{"EURUSD=X", model.SessionTwentyFourHour},
		{"DOGE-USD", model.SessionTwentyFourHour},
		{"^VIX", model.SessionDerivative},
		{"^TNX", model.SessionDerivative},
		{"^GSPC", model.SessionContinuous},
		{"XLK", model.SessionContinuous},
		{"AAPL", model.SessionContinuous},
		{"aapl", model.SessionContinuous},
		{"btc-usd", model.SessionTwentyFourHour},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.symbol))
		})
	}
}

func TestNewClassifier_ExtraOverrides(t *testing.T) {
	c := NewClassifier(map[string]model.SessionClass{
		" tsla ": model.SessionTwentyFourHour,
		"^VIX":   model.SessionContinuous,
	})
	assert.Equal(t, model.SessionTwentyFourHour, c.Classify("TSLA"))
	assert.Equal(t, model.SessionContinuous, c.Classify("^VIX"))
	// defaults untouched
	assert.Equal(t, model.SessionDerivative, Classify("^VIX"))
}

func TestNYSEHolidays(t *testing.T) {
	cal := NewNYSECalendar("2025-01-09")
	holidays := []string{
		"2024-03-29", // Good Friday
		"2025-04-18",
		"2026-04-03",
		"2027-03-26",
		"2022-12-26", // Christmas on Sunday
		"2023-06-19", // Juneteenth
		"2025-07-04",
		"2025-11-27", // Thanksgiving
		"2026-01-19", // MLK
		"2026-05-25", // Memorial Day
		"2025-01-09", // extra closure
	}
	for _, d := range holidays {
		day, err := time.Parse(dateLayout, d)
		require.NoError(t, err)
		assert.True(t, cal.IsHoliday(day), d)
	}

	trading := []string{
		"2021-12-31", // New Year's on Saturday is not observed
		"2021-06-18", // before Juneteenth was added
		"2025-07-03",
		"2026-10-19",
	}
	for _, d := range trading {
		day, err := time.Parse(dateLayout, d)
		require.NoError(t, err)
		assert.False(t, cal.IsHoliday(day), d)
	}
}

func TestClock_IsOpen(t *testing.T) {
	c := NewNYSEClock()

	assert.True(t, c.IsOpen(ny(2026, time.October, 19, 9, 30)))
	assert.True(t, c.IsOpen(ny(2026, time.October, 19, 15, 59)))
	assert.False(t, c.IsOpen(ny(2026, time.October, 19, 16, 0)))
	assert.False(t, c.IsOpen(ny(2026, time.October, 19, 9, 29)))
	assert.False(t, c.IsOpen(ny(2026, time.October, 17, 12, 0)), "saturday")
	assert.False(t, c.IsOpen(ny(2025, time.July, 4, 12, 0)), "holiday")

	// the instant is what matters, not the zone it is expressed in
	assert.True(t, c.IsOpen(time.Date(2026, time.March, 9, 13, 30, 0, 0, time.UTC)), "EDT open")
	assert.False(t, c.IsOpen(time.Date(2026, time.March, 6, 14, 0, 0, 0, time.UTC)), "EST pre-open")
}

func TestClock_NextOpen(t *testing.T) {
	c := NewNYSEClock()

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"pre-open same day", ny(2026, time.October, 19, 8, 0), ny(2026, time.October, 19, 9, 30)},
		{"during session", ny(2026, time.October, 16, 10, 0), ny(2026, time.October, 19, 9, 30)},
		{"exactly at open", ny(2026, time.October, 19, 9, 30), ny(2026, time.October, 20, 9, 30)},
		{"over holiday weekend", ny(2025, time.July, 3, 17, 0), ny(2025, time.July, 7, 9, 30)},
		{"good friday", ny(2025, time.April, 17, 16, 30), ny(2025, time.April, 21, 9, 30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.NextOpen(tt.now)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
			assert.True(t, got.After(tt.now))
		})
	}
}

func TestClock_SessionFraction(t *testing.T) {
	c := NewNYSEClock()
	assert.InDelta(t, 0.5, c.SessionFraction(ny(2026, time.October, 19, 12, 45)), 1e-9)
	assert.InDelta(t, 0.0, c.SessionFraction(ny(2026, time.October, 19, 9, 30)), 1e-9)
	assert.Zero(t, c.SessionFraction(ny(2026, time.October, 19, 18, 0)))
}

func TestNewClock_Invalid(t *testing.T) {
	_, err := NewClock("Mars/Olympus", "09:30", "16:00", nil)
	assert.Error(t, err)

	_, err = NewClock("America/New_York", "9h30", "16:00", nil)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = NewClock("America/New_York", "16:00", "09:30", nil)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestOverviewSymbols(t *testing.T) {
	all := OverviewSymbols()
	require.NotEmpty(t, all)
	assert.Equal(t, "sp500", all[0].Key)

	sectors := OverviewSymbols("Sectors")
	assert.Len(t, sectors, 11)
	for _, s := range sectors {
		assert.Equal(t, CategorySectors, s.Category)
	}

	keys := make(map[string]bool)
	for _, s := range all {
		assert.False(t, keys[s.Key], "duplicate key %s", s.Key)
		keys[s.Key] = true
	}
	assert.Contains(t, Categories(), CategoryRates)
}

func TestNormalizeSymbols(t *testing.T) {
	got := NormalizeSymbols(" aapl, msft ,", "AAPL", "", "tsla")
	assert.Equal(t, []string{"AAPL", "MSFT", "TSLA"}, got)
	assert.Empty(t, NormalizeSymbols(" , "))
}
