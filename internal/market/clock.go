package market

import (
	"fmt"
	"time"
	_ "time/tzdata" // America/New_York must resolve on minimal hosts

	"MarketLens/internal/model"
)

// maxScanDays bounds the NextOpen search; no exchange closure run is longer.
const maxScanDays = 14

// Clock answers session-hours questions for one exchange.
type Clock struct {
	loc       *time.Location
	openHour  int
	openMin   int
	closeHour int
	closeMin  int
	calendar  Calendar
}

// NewClock builds a clock for a session running open to end ("15:04" form)
// in timezone, Monday to Friday, skipping calendar holidays.
func NewClock(timezone, open, end string, calendar Calendar) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	oh, om, err := parseHHMM(open)
	if err != nil {
		return nil, fmt.Errorf("session open: %w", err)
	}
	ch, cm, err := parseHHMM(end)
	if err != nil {
		return nil, fmt.Errorf("session close: %w", err)
	}
	if ch*60+cm <= oh*60+om {
		return nil, fmt.Errorf("session close %s not after open %s: %w", end, open, model.ErrInvalidInput)
	}
	if calendar == nil {
		calendar = NewNYSECalendar()
	}
	return &Clock{
		loc:       loc,
		openHour:  oh,
		openMin:   om,
		closeHour: ch,
		closeMin:  cm,
		calendar:  calendar,
	}, nil
}

// NewNYSEClock returns the regular NYSE session clock (09:30-16:00 New York).
func NewNYSEClock() *Clock {
	c, err := NewClock("America/New_York", "09:30", "16:00", NewNYSECalendar())
	if err != nil {
		// tzdata is embedded, this cannot fail
		panic(err)
	}
	return c
}

func parseHHMM(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("parse %q: %w", s, model.ErrInvalidInput)
	}
	return t.Hour(), t.Minute(), nil
}

// Location returns the exchange time zone.
func (c *Clock) Location() *time.Location { return c.loc }

// IsTradingDay reports whether the exchange-local date of t has a session.
func (c *Clock) IsTradingDay(t time.Time) bool {
	local := t.In(c.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.calendar.IsHoliday(local)
}

// SessionBounds returns the open and close instants of the session on the
// exchange-local date of day, whether or not that date trades.
func (c *Clock) SessionBounds(day time.Time) (time.Time, time.Time) {
	local := day.In(c.loc)
	y, m, d := local.Date()
	open := time.Date(y, m, d, c.openHour, c.openMin, 0, 0, c.loc)
	end := time.Date(y, m, d, c.closeHour, c.closeMin, 0, 0, c.loc)
	return open, end
}

// IsOpen reports whether t falls inside a regular session, open inclusive,
// close exclusive.
func (c *Clock) IsOpen(t time.Time) bool {
	if !c.IsTradingDay(t) {
		return false
	}
	open, end := c.SessionBounds(t)
	return !t.Before(open) && t.Before(end)
}

// NextOpen returns the first session open strictly after t.
func (c *Clock) NextOpen(t time.Time) time.Time {
	local := t.In(c.loc)
	for i := 0; i <= maxScanDays; i++ {
		day := local.AddDate(0, 0, i)
		if !c.IsTradingDay(day) {
			continue
		}
		open, _ := c.SessionBounds(day)
		if open.After(t) {
			return open
		}
	}
	// unreachable with a sane calendar; fall back to the next weekday open
	open, _ := c.SessionBounds(local.AddDate(0, 0, 1))
	return open
}

// SessionFraction returns the elapsed fraction of the session in progress at
// t, in (0, 1). It is 0 when the market is closed.
func (c *Clock) SessionFraction(t time.Time) float64 {
	if !c.IsOpen(t) {
		return 0
	}
	open, end := c.SessionBounds(t)
	return float64(t.Sub(open)) / float64(end.Sub(open))
}
