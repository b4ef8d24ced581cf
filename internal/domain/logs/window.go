package logs

import (
	"time"

	"pet-care-log/internal/apperr"
)

const dayLayout = "2006-01-02"

// DayWindow devuelve [medianoche, medianoche siguiente - 1s] del día de date
// en loc, ambos extremos inclusivos.
func DayWindow(date time.Time, loc *time.Location) (from, to time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.In(loc).Date()
	from = time.Date(y, m, d, 0, 0, 0, 0, loc)
	to = time.Date(y, m, d+1, 0, 0, 0, 0, loc).Add(-time.Second)
	return from, to
}

// ParseDay interpreta YYYY-MM-DD como un día calendario de loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dayLayout, s, loc)
	if err != nil {
		return time.Time{}, apperr.Validation("date", "must be YYYY-MM-DD")
	}
	return t, nil
}
