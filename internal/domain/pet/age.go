package pet

import (
	"fmt"
	"time"
)

// CalculateAge renders the whole years and remaining months between birth
// and now, e.g. "2 years and 3 months". A month only counts once the
// day-of-month has been reached.
func CalculateAge(birth, now time.Time) string {
	years, months := ageParts(birth, now)
	switch {
	case years < 1:
		return plural(months, "month")
	case months == 0:
		return plural(years, "year")
	default:
		return plural(years, "year") + " and " + plural(months, "month")
	}
}

func ageParts(birth, now time.Time) (years, months int) {
	birth = birth.In(now.Location())
	if now.Before(birth) {
		return 0, 0
	}
	total := (now.Year()-birth.Year())*12 + int(now.Month()) - int(birth.Month())
	if now.Day() < birth.Day() {
		total--
	}
	if total < 0 {
		total = 0
	}
	return total / 12, total % 12
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
