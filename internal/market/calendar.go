package market

import "time"

// Calendar reports exchange holidays. Weekends are handled by Clock.
type Calendar interface {
	IsHoliday(date time.Time) bool
}

// NYSECalendar computes NYSE full-day closures for any year, plus optional
// extra closure dates (special closures such as national days of mourning).
type NYSECalendar struct {
	extra map[string]bool
}

// NewNYSECalendar returns a calendar with extra closures in "2006-01-02" form.
func NewNYSECalendar(extra ...string) *NYSECalendar {
	m := make(map[string]bool, len(extra))
	for _, d := range extra {
		m[d] = true
	}
	return &NYSECalendar{extra: m}
}

// IsHoliday reports whether the calendar date of t is a closure.
func (c *NYSECalendar) IsHoliday(t time.Time) bool {
	key := t.Format(dateLayout)
	if c.extra[key] {
		return true
	}
	for _, h := range NYSEHolidays(t.Year()) {
		if h.Format(dateLayout) == key {
			return true
		}
	}
	return false
}

const dateLayout = "2006-01-02"

// NYSEHolidays returns the observed full-day holidays of year (dates in UTC).
func NYSEHolidays(year int) []time.Time {
	var days []time.Time

	// A Saturday New Year's Day is not observed on the preceding Friday.
	ny := date(year, time.January, 1)
	if ny.Weekday() == time.Sunday {
		ny = ny.AddDate(0, 0, 1)
	}
	if ny.Weekday() != time.Saturday {
		days = append(days, ny)
	}

	days = append(days,
		nthWeekday(year, time.January, time.Monday, 3),  // Martin Luther King Jr. Day
		nthWeekday(year, time.February, time.Monday, 3), // Washington's Birthday
		easter(year).AddDate(0, 0, -2),                  // Good Friday
		lastWeekday(year, time.May, time.Monday),        // Memorial Day
	)
	if year >= 2022 {
		days = append(days, observed(date(year, time.June, 19)))
	}
	days = append(days,
		observed(date(year, time.July, 4)),
		nthWeekday(year, time.September, time.Monday, 1),  // Labor Day
		nthWeekday(year, time.November, time.Thursday, 4), // Thanksgiving
		observed(date(year, time.December, 25)),
	)
	return days
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// observed moves Saturday holidays to Friday and Sunday holidays to Monday.
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	d := date(year, month, 1)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, 1)
	}
	return d.AddDate(0, 0, 7*(n-1))
}

func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	d := date(year, month+1, 1).AddDate(0, 0, -1)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// easter returns Easter Sunday (anonymous Gregorian computus).
func easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return date(year, time.Month(month), day)
}
