package utils

import "time"

const DateLayout = "02.01.2006"

// DateOnly отбрасывает время, оставляя полночь того же дня в часовом поясе loc.
func DateOnly(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
