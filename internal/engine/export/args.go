package export

import (
	"time"

	"otpreport/internal/engine/otpstats"
	jobErrors "otpreport/internal/pkg/errors"
)

// ArgLayout is the DD/MM/YYYY form operators type on the command line.
const ArgLayout = "02/01/2006"

// ParseArgs turns zero, one or two DD/MM/YYYY arguments into the export
// range. No argument means today in loc.
func ParseArgs(args []string, now time.Time, loc *time.Location) (otpstats.DateRange, error) {
	switch len(args) {
	case 0:
		return otpstats.SingleDay(now.In(loc)), nil
	case 1:
		d, err := parseDate(args[0], loc)
		if err != nil {
			return otpstats.DateRange{}, err
		}
		return otpstats.SingleDay(d), nil
	case 2:
		start, err := parseDate(args[0], loc)
		if err != nil {
			return otpstats.DateRange{}, err
		}
		end, err := parseDate(args[1], loc)
		if err != nil {
			return otpstats.DateRange{}, err
		}
		rng, err := otpstats.NewDateRange(start, end)
		if err != nil {
			return otpstats.DateRange{}, jobErrors.Usage("%v", err)
		}
		return rng, nil
	default:
		return otpstats.DateRange{}, jobErrors.Usage("expected at most 2 dates, got %d", len(args))
	}
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(ArgLayout, s, loc)
	if err != nil {
		return time.Time{}, jobErrors.Usage("invalid date %q: use DD/MM/YYYY", s)
	}
	return d, nil
}
