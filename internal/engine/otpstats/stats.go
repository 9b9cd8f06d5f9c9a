package otpstats

import (
	"fmt"
	"math"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// DailyAggregate is the verified/unverified breakdown of one calendar day.
type DailyAggregate struct {
	Date          string  `json:"date"`
	Verified      int     `json:"verified"`
	Unverified    int     `json:"unverified"`
	Total         int     `json:"total"`
	UnverifiedPct float64 `json:"unverified_percentage"`
}

func NewDailyAggregate(date string, verified, unverified int) DailyAggregate {
	total := verified + unverified
	return DailyAggregate{
		Date:          date,
		Verified:      verified,
		Unverified:    unverified,
		Total:         total,
		UnverifiedPct: UnverifiedPercentage(unverified, total),
	}
}

// UnverifiedPercentage rounds half to even at two decimals, matching the
// database's $round, and is 0 for an empty day.
func UnverifiedPercentage(unverified, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.RoundToEven(float64(unverified)/float64(total)*100*100) / 100
}

// DateRange is an inclusive span of calendar days. Start and End are
// midnights in the report time zone.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: StartOfDay(start), End: StartOfDay(end)}
	if r.Start.After(r.End) {
		return DateRange{}, fmt.Errorf("start date %s is after end date %s",
			r.Start.Format(DateLayout), r.End.Format(DateLayout))
	}
	return r, nil
}

func SingleDay(t time.Time) DateRange {
	d := StartOfDay(t)
	return DateRange{Start: d, End: d}
}

// Bounds returns the half-open instant interval [from, to) covering every
// day of the range.
func (r DateRange) Bounds() (from, to time.Time) {
	return r.Start, r.End.AddDate(0, 0, 1)
}

func (r DateRange) IsSingleDay() bool {
	return r.Start.Equal(r.End)
}

func (r DateRange) String() string {
	if r.IsSingleDay() {
		return r.Start.Format(DateLayout)
	}
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func FirstOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// FirstOfNextMonth relies on time.Date normalising month 13 to January of
// the following year.
func FirstOfNextMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, t.Location())
}

// MonthTab is the sheet tab title for the month containing t.
func MonthTab(t time.Time) string {
	return t.Format(MonthLayout)
}

// MonthTabOfDate returns the tab title for a YYYY-MM-DD date string.
func MonthTabOfDate(date string) (string, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", err
	}
	return MonthTab(t), nil
}
