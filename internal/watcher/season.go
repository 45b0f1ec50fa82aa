package watcher

import "time"

// Season is an inclusive month window. StartMonth > EndMonth wraps the new year.
type Season struct {
	StartMonth time.Month
	EndMonth   time.Month
	Year       int // fixed season year; 0 derives it from the clock
	Location   *time.Location
}

func (s Season) local(t time.Time) time.Time {
	if s.Location != nil {
		return t.In(s.Location)
	}
	return t
}

func (s Season) Contains(t time.Time) bool {
	if s.StartMonth == 0 || s.EndMonth == 0 {
		return true
	}
	m := s.local(t).Month()
	if s.StartMonth <= s.EndMonth {
		return m >= s.StartMonth && m <= s.EndMonth
	}
	return m >= s.StartMonth || m <= s.EndMonth
}

// YearAt is the stats season for t. In a wrapping window the months after the
// new year belong to the season that started the year before.
func (s Season) YearAt(t time.Time) int {
	if s.Year > 0 {
		return s.Year
	}
	lt := s.local(t)
	if s.StartMonth > s.EndMonth && s.EndMonth != 0 && lt.Month() <= s.EndMonth {
		return lt.Year() - 1
	}
	return lt.Year()
}
