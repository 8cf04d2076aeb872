package stats

import (
	"strings"
	"time"

	"github.com/erazemk/shramba/internal/model"
)

// Granularity is the calendar bucket size of a series.
type Granularity string

// Granularities.
const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// ParseGranularity matches s case-insensitively. Anything unrecognised is
// treated as Month.
func ParseGranularity(s string) Granularity {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case Day:
		return Day
	case Week:
		return Week
	default:
		return Month
	}
}

// Key maps a date to the start of the bucket containing it.
func (g Granularity) Key(d model.Date) model.Date {
	switch g {
	case Day:
		return DayStart(d)
	case Week:
		return WeekStart(d)
	default:
		return MonthStart(d)
	}
}

// Next returns the start of the bucket following key.
func (g Granularity) Next(key model.Date) model.Date {
	switch g {
	case Day:
		return key.AddDays(1)
	case Week:
		return key.AddDays(7)
	default:
		return key.AddMonths(1)
	}
}

// DayStart is the identity bucket: every date is its own key.
func DayStart(d model.Date) model.Date {
	return d
}

// WeekStart returns the Monday on or before d.
func WeekStart(d model.Date) model.Date {
	if d.Weekday() == time.Sunday {
		return d.AddDays(-6)
	}
	return d.AddDays(-(int(d.Weekday()) - 1))
}

// MonthStart returns the first day of d's month.
func MonthStart(d model.Date) model.Date {
	return model.NewDate(d.Year(), d.Month(), 1)
}

// Buckets lists every bucket key from key(from) to key(to) inclusive, in
// ascending order. It is empty when key(to) precedes key(from).
func Buckets(from, to model.Date, key, next func(model.Date) model.Date) []model.Date {
	var keys []model.Date
	end := key(to)
	for cur := key(from); !cur.After(end); cur = next(cur) {
		keys = append(keys, cur)
	}
	return keys
}
