package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/erazemk/shramba/internal/model"
)

func date(s string) model.Date {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestParseGranularity(t *testing.T) {
	tests := []struct {
		in   string
		want Granularity
	}{
		{"day", Day},
		{"DAY", Day},
		{"Week", Week},
		{" week ", Week},
		{"month", Month},
		{"", Month},
		{"yearly", Month},
		{"days", Month},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseGranularity(tt.in), "input %q", tt.in)
	}
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2024-03-10", "2024-03-04"}, // Sunday
		{"2024-03-11", "2024-03-11"}, // Monday
		{"2024-03-13", "2024-03-11"},
		{"2024-03-16", "2024-03-11"}, // Saturday
		{"2024-03-02", "2024-02-26"},
		{"2025-01-01", "2024-12-30"},
	}
	for _, tt := range tests {
		got := WeekStart(date(tt.in))
		assert.Equal(t, tt.want, got.String(), "WeekStart(%s)", tt.in)
		assert.Equal(t, time.Monday, got.Weekday())
	}
}

func TestMonthStart(t *testing.T) {
	assert.Equal(t, "2024-02-01", MonthStart(date("2024-02-29")).String())
	assert.Equal(t, "2024-12-01", MonthStart(date("2024-12-01")).String())
	assert.Equal(t, "2024-03-05", DayStart(date("2024-03-05")).String())
}

func TestBucketsDay(t *testing.T) {
	from, to := date("2024-02-26"), date("2024-03-03")
	keys := Buckets(from, to, Day.Key, Day.Next)

	assert.Len(t, keys, from.DaysUntil(to)+1)
	for i := 1; i < len(keys); i++ {
		assert.Equal(t, 1, keys[i-1].DaysUntil(keys[i]))
	}
	assert.Equal(t, "2024-02-29", keys[3].String())
}

func TestBucketsMonth(t *testing.T) {
	keys := Buckets(date("2024-01-15"), date("2024-04-03"), Month.Key, Month.Next)

	var got []string
	for _, k := range keys {
		got = append(got, k.String())
	}
	assert.Equal(t, []string{"2024-01-01", "2024-02-01", "2024-03-01", "2024-04-01"}, got)
}

func TestBucketsMonthAcrossYear(t *testing.T) {
	keys := Buckets(date("2023-11-30"), date("2024-02-01"), Month.Key, Month.Next)
	assert.Len(t, keys, 4)
	assert.Equal(t, "2024-01-01", keys[2].String())
}

func TestBucketsWeek(t *testing.T) {
	keys := Buckets(date("2024-03-10"), date("2024-03-25"), Week.Key, Week.Next)

	var got []string
	for _, k := range keys {
		got = append(got, k.String())
	}
	assert.Equal(t, []string{"2024-03-04", "2024-03-11", "2024-03-18", "2024-03-25"}, got)
}

func TestBucketsReversed(t *testing.T) {
	assert.Empty(t, Buckets(date("2024-03-05"), date("2024-03-04"), Day.Key, Day.Next))
	assert.Empty(t, Buckets(date("2024-04-01"), date("2024-03-31"), Month.Key, Month.Next))

	// Reversed bounds inside one bucket still share a key.
	assert.Len(t, Buckets(date("2024-03-20"), date("2024-03-10"), Month.Key, Month.Next), 1)
}
