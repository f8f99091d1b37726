// Package marketcal decides whether a given date is a trading day for an
// exchange calendar and performs trading-day arithmetic. It is a pure leaf
// package: every function takes the reference time as an argument, so the
// caller owns the clock.
package marketcal

import "time"

// Regular NYSE session bounds, in minutes since local midnight.
const (
	openMinute  = 9*60 + 30 // 09:30
	closeMinute = 16 * 60   // 16:00
)

// maxWalk bounds the day-by-day trading-day walk. Guards against an
// unbounded loop if the holiday table is ever malformed; the original
// schedule never has more than four consecutive closed days.
const maxWalk = 10

// Calendar answers trading-day and market-hours questions for one exchange.
type Calendar struct {
	loc      *time.Location
	holidays map[string]bool // keyed by "2006-01-02" in exchange-local time
}

// nyseHolidays lists NYSE/NASDAQ full-closure days for 2025–2027.
var nyseHolidays = []string{
	// 2025
	"2025-01-01", // New Year's Day
	"2025-01-20", // MLK Day
	"2025-02-17", // Presidents Day
	"2025-04-18", // Good Friday
	"2025-05-26", // Memorial Day
	"2025-06-19", // Juneteenth
	"2025-07-04", // Independence Day
	"2025-09-01", // Labor Day
	"2025-11-27", // Thanksgiving
	"2025-12-25", // Christmas
	// 2026
	"2026-01-01", // New Year's Day
	"2026-01-19", // MLK Day
	"2026-02-16", // Presidents Day
	"2026-04-03", // Good Friday
	"2026-05-25", // Memorial Day
	"2026-06-19", // Juneteenth
	"2026-07-03", // Independence Day (observed)
	"2026-09-07", // Labor Day
	"2026-11-26", // Thanksgiving
	"2026-12-25", // Christmas
	// 2027
	"2027-01-01", // New Year's Day
	"2027-01-18", // MLK Day
	"2027-02-15", // Presidents Day
	"2027-03-26", // Good Friday
	"2027-05-31", // Memorial Day
	"2027-06-18", // Juneteenth (observed)
	"2027-07-05", // Independence Day (observed)
	"2027-09-06", // Labor Day
	"2027-11-25", // Thanksgiving
	"2027-12-24", // Christmas (observed)
}

// NewNYSE returns the calendar for the US equity markets (Eastern Time,
// Mon–Fri 09:30–16:00, NYSE holiday schedule).
func NewNYSE() *Calendar {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// No tzdata available; EST without DST is the closest fallback.
		loc = time.FixedZone("EST", -5*3600)
	}
	holidays := make(map[string]bool, len(nyseHolidays))
	for _, d := range nyseHolidays {
		holidays[d] = true
	}
	return &Calendar{loc: loc, holidays: holidays}
}

// Location returns the exchange-local timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsHoliday reports whether the date (in exchange-local time) is a full
// market closure.
func (c *Calendar) IsHoliday(t time.Time) bool {
	return c.holidays[t.In(c.loc).Format("2006-01-02")]
}

// IsTradingDay reports whether the market trades on the given date:
// a weekday that is not a holiday.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	local := t.In(c.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.holidays[local.Format("2006-01-02")]
}

// PreviousTradingDay walks backward day by day from the date before t and
// returns the first trading day found.
func (c *Calendar) PreviousTradingDay(t time.Time) time.Time {
	d := t.In(c.loc).AddDate(0, 0, -1)
	for i := 0; !c.IsTradingDay(d) && i < maxWalk; i++ {
		d = d.AddDate(0, 0, -1)
	}
	return c.dateOf(d)
}

// NextTradingDay walks forward day by day from the date after t and
// returns the first trading day found.
func (c *Calendar) NextTradingDay(t time.Time) time.Time {
	d := t.In(c.loc).AddDate(0, 0, 1)
	for i := 0; !c.IsTradingDay(d) && i < maxWalk; i++ {
		d = d.AddDate(0, 0, 1)
	}
	return c.dateOf(d)
}

// MostRecentTradingDay returns t's date if it is a trading day, otherwise
// the previous trading day.
func (c *Calendar) MostRecentTradingDay(t time.Time) time.Time {
	if c.IsTradingDay(t) {
		return c.dateOf(t.In(c.loc))
	}
	return c.PreviousTradingDay(t)
}

// IsMarketOpen reports whether the regular session is in progress at the
// given instant: a trading day, between 09:30 inclusive and 16:00 exclusive
// exchange-local time.
func (c *Calendar) IsMarketOpen(now time.Time) bool {
	local := now.In(c.loc)
	if !c.IsTradingDay(local) {
		return false
	}
	m := local.Hour()*60 + local.Minute()
	return m >= openMinute && m < closeMinute
}

// LastMarketClose returns the instant of the most recent 16:00 close on or
// before now. Non-trading days roll back to the previous trading day's
// close; on a trading day the answer depends on where now falls relative
// to the session.
func (c *Calendar) LastMarketClose(now time.Time) time.Time {
	local := now.In(c.loc)
	m := local.Hour()*60 + local.Minute()

	switch {
	case !c.IsTradingDay(local):
		// Weekend or holiday: previous trading day's close.
		return c.closeAt(c.PreviousTradingDay(local))
	case m < openMinute:
		// Before today's open: previous trading day's close.
		return c.closeAt(c.PreviousTradingDay(local))
	case m >= closeMinute:
		// After today's close.
		return c.closeAt(local)
	default:
		// During the session: today has not closed yet.
		return c.closeAt(c.PreviousTradingDay(local))
	}
}

// closeAt returns 16:00 exchange-local time on the given date.
func (c *Calendar) closeAt(d time.Time) time.Time {
	d = d.In(c.loc)
	return time.Date(d.Year(), d.Month(), d.Day(), 16, 0, 0, 0, c.loc)
}

// dateOf truncates to midnight exchange-local time.
func (c *Calendar) dateOf(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, c.loc)
}
