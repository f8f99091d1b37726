package marketcal

import (
	"testing"
	"time"
)

// et builds an instant in the exchange timezone.
func et(t *testing.T, c *Calendar, y int, mo time.Month, d, h, mi int) time.Time {
	t.Helper()
	return time.Date(y, mo, d, h, mi, 0, 0, c.Location())
}

func TestIsTradingDay(t *testing.T) {
	c := NewNYSE()

	cases := []struct {
		name string
		date time.Time
		want bool
	}{
		{"regular weekday", et(t, c, 2026, time.August, 25, 0, 0), true},  // Tuesday
		{"saturday", et(t, c, 2026, time.August, 22, 0, 0), false},
		{"sunday", et(t, c, 2026, time.August, 23, 0, 0), false},
		{"christmas", et(t, c, 2026, time.December, 25, 0, 0), false},
		{"juneteenth", et(t, c, 2026, time.June, 19, 0, 0), false},
		{"day after holiday", et(t, c, 2026, time.June, 22, 0, 0), true}, // Monday
	}

	for _, tc := range cases {
		if got := c.IsTradingDay(tc.date); got != tc.want {
			t.Errorf("%s: IsTradingDay(%s) = %v, want %v", tc.name, tc.date.Format("2006-01-02"), got, tc.want)
		}
	}
}

func TestPreviousTradingDay_SkipsWeekendAndHoliday(t *testing.T) {
	c := NewNYSE()

	// Monday 2026-09-07 is Labor Day. From Tuesday 2026-09-08 the previous
	// trading day must skip the holiday and the weekend back to Friday.
	got := c.PreviousTradingDay(et(t, c, 2026, time.September, 8, 0, 0))
	want := "2026-09-04"
	if got.Format("2006-01-02") != want {
		t.Errorf("PreviousTradingDay = %s, want %s", got.Format("2006-01-02"), want)
	}
}

func TestNextTradingDay_SkipsWeekendAndHoliday(t *testing.T) {
	c := NewNYSE()

	// From Friday 2026-09-04: Saturday, Sunday, Labor Day Monday → Tuesday.
	got := c.NextTradingDay(et(t, c, 2026, time.September, 4, 0, 0))
	want := "2026-09-08"
	if got.Format("2006-01-02") != want {
		t.Errorf("NextTradingDay = %s, want %s", got.Format("2006-01-02"), want)
	}
}

func TestIsMarketOpen(t *testing.T) {
	c := NewNYSE()

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"mid session", et(t, c, 2026, time.August, 25, 11, 0), true},
		{"at open", et(t, c, 2026, time.August, 25, 9, 30), true},
		{"just before open", et(t, c, 2026, time.August, 25, 9, 29), false},
		{"at close", et(t, c, 2026, time.August, 25, 16, 0), false},
		{"saturday midday", et(t, c, 2026, time.August, 22, 12, 0), false},
		{"saturday early", et(t, c, 2026, time.August, 22, 10, 0), false},
		{"holiday midday", et(t, c, 2026, time.December, 25, 12, 0), false},
	}

	for _, tc := range cases {
		if got := c.IsMarketOpen(tc.now); got != tc.want {
			t.Errorf("%s: IsMarketOpen(%s) = %v, want %v", tc.name, tc.now, got, tc.want)
		}
	}
}

func TestLastMarketClose_FourBranches(t *testing.T) {
	c := NewNYSE()

	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			"saturday rolls back to friday",
			et(t, c, 2026, time.August, 22, 10, 0),
			et(t, c, 2026, time.August, 21, 16, 0),
		},
		{
			"monday before open rolls back to friday",
			et(t, c, 2026, time.August, 24, 9, 0),
			et(t, c, 2026, time.August, 21, 16, 0),
		},
		{
			"during session rolls back to previous day",
			et(t, c, 2026, time.August, 25, 11, 0),
			et(t, c, 2026, time.August, 24, 16, 0),
		},
		{
			"after close is today",
			et(t, c, 2026, time.August, 25, 16, 5),
			et(t, c, 2026, time.August, 25, 16, 0),
		},
		{
			"tuesday after labor day before open rolls back past holiday",
			et(t, c, 2026, time.September, 8, 8, 0),
			et(t, c, 2026, time.September, 4, 16, 0),
		},
	}

	for _, tc := range cases {
		got := c.LastMarketClose(tc.now)
		if !got.Equal(tc.want) {
			t.Errorf("%s: LastMarketClose(%s) = %s, want %s", tc.name, tc.now, got, tc.want)
		}
	}
}

func TestLastMarketClose_StableAcrossClosedWindow(t *testing.T) {
	c := NewNYSE()

	// From Friday close until Monday open the last close must not move.
	want := et(t, c, 2026, time.August, 21, 16, 0)
	probes := []time.Time{
		et(t, c, 2026, time.August, 21, 16, 1),
		et(t, c, 2026, time.August, 22, 3, 0),
		et(t, c, 2026, time.August, 23, 23, 59),
		et(t, c, 2026, time.August, 24, 9, 29),
	}
	for _, now := range probes {
		if got := c.LastMarketClose(now); !got.Equal(want) {
			t.Errorf("LastMarketClose(%s) = %s, want %s", now, got, want)
		}
	}
}
