// Package dates implements the calendar arithmetic the recommendation
// pipeline relies on: tolerant sowing-date parsing, harvest projection and
// the mapping of arbitrary dates onto the fixed reference year used for
// climate comparisons.
package dates

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JuanD1P/AGRO-SABANA/internal/es"
)

// ErrInvalidFormat is returned when no supported date pattern matches.
var ErrInvalidFormat = errors.New("invalid date format")

var (
	isoRe  = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	dmyRe  = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`)
	textRe = regexp.MustCompile(`^(\d{1,2})\s*(?:de\s+)?([a-zñ]+)\s*(?:de\s+)?(\d{4})?$`)
)

// AtNoon returns the calendar date anchored at 12:00 UTC. Anchoring at noon
// keeps day arithmetic stable across daylight-saving boundaries.
func AtNoon(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}

// ParseFlexible parses a date in any of the accepted forms: ISO
// "2025-03-30", "30/03/2025" or "30-03-2025", and Spanish free text such as
// "30 de marzo 2025" or "30 mar 2025" (diacritics ignored). When the free-text
// form omits the year, the current year is assumed.
func ParseFlexible(input string) (time.Time, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, ErrInvalidFormat
	}

	if m := isoRe.FindStringSubmatch(s); m != nil {
		return makeDate(m[1], m[2], m[3])
	}
	if m := dmyRe.FindStringSubmatch(s); m != nil {
		return makeDate(m[3], m[2], m[1])
	}

	folded := es.Fold(strings.ReplaceAll(s, ".", ""))
	if m := textRe.FindStringSubmatch(folded); m != nil {
		idx, ok := es.MonthIndex(m[2])
		if !ok {
			return time.Time{}, ErrInvalidFormat
		}
		year := m[3]
		if year == "" {
			year = strconv.Itoa(time.Now().Year())
		}
		return makeDate(year, strconv.Itoa(idx+1), m[1])
	}

	return time.Time{}, ErrInvalidFormat
}

// makeDate builds a noon-anchored date and rejects inputs that do not name a
// real calendar day (e.g. 31/02), which time.Date would silently normalize.
func makeDate(year, month, day string) (time.Time, error) {
	y, _ := strconv.Atoi(year)
	mo, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)

	t := AtNoon(y, time.Month(mo), d)
	if t.Year() != y || int(t.Month()) != mo || t.Day() != d {
		return time.Time{}, ErrInvalidFormat
	}
	return t, nil
}

// AddDays adds n whole days (n may be negative) to a calendar date. The
// result is noon-anchored regardless of the input's time of day.
func AddDays(d time.Time, n int) time.Time {
	return AtNoon(d.Year(), d.Month(), d.Day()).AddDate(0, 0, n)
}

// ProjectToYear maps a date's month and day onto the given reference year.
// Feb 29 becomes Feb 28 when the reference year is not a leap year; the
// climate archive used for comparison is anchored to one fixed year.
func ProjectToYear(d time.Time, year int) time.Time {
	month, day := d.Month(), d.Day()
	if month == time.February && day == 29 && !IsLeap(year) {
		day = 28
	}
	return AtNoon(year, month, day)
}

// IsLeap reports whether the year has a Feb 29.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// MonthIndex returns the zero-based calendar month of a date.
func MonthIndex(d time.Time) int {
	return int(d.Month()) - 1
}

// YMD formats a date as ISO "2006-01-02".
func YMD(d time.Time) string {
	return d.Format("2006-01-02")
}
