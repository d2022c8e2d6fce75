package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextDateRollover(t *testing.T) {
	cases := []struct {
		name string
		in   Date
		want Date
	}{
		{"leap february", NewDate(2024, 2, 28), NewDate(2024, 2, 29)},
		{"common february", NewDate(2023, 2, 28), NewDate(2023, 3, 1)},
		{"leap day", NewDate(2024, 2, 29), NewDate(2024, 3, 1)},
		{"year end", NewDate(2024, 12, 31), NewDate(2025, 1, 1)},
		{"thirty day month", NewDate(2024, 4, 30), NewDate(2024, 5, 1)},
		{"mid month", NewDate(2024, 7, 14), NewDate(2024, 7, 15)},
		{"century not leap", NewDate(1900, 2, 28), NewDate(1900, 3, 1)},
		{"four hundred leap", NewDate(2000, 2, 28), NewDate(2000, 2, 29)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Next(tc.in))
		})
	}
}

func TestPrevDateRollover(t *testing.T) {
	cases := []struct {
		name string
		in   Date
		want Date
	}{
		{"year start", NewDate(2025, 1, 1), NewDate(2024, 12, 31)},
		{"leap march", NewDate(2024, 3, 1), NewDate(2024, 2, 29)},
		{"common march", NewDate(2023, 3, 1), NewDate(2023, 2, 28)},
		{"after thirty day month", NewDate(2024, 5, 1), NewDate(2024, 4, 30)},
		{"after thirty one day month", NewDate(2024, 8, 1), NewDate(2024, 7, 31)},
		{"mid month", NewDate(2024, 7, 15), NewDate(2024, 7, 14)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Prev(tc.in))
		})
	}
}

func TestNextPrevRoundTrip(t *testing.T) {
	for _, year := range []int{1900, 2000, 2023, 2024} {
		d := NewDate(year, 1, 1)
		for d.Year == year {
			require.True(t, d.Valid(), "invalid date %s", d)
			assert.Equal(t, d, Prev(Next(d)), "prev(next(%s))", d)
			assert.Equal(t, d, Next(Prev(d)), "next(prev(%s))", d)
			d = Next(d)
		}
	}
}

func TestNextMatchesTimePackage(t *testing.T) {
	start := time.Date(2019, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 366*6; i++ {
		day := start.AddDate(0, 0, i)
		assert.Equal(t, FromTime(day.AddDate(0, 0, 1)), Next(FromTime(day)))
	}
}

func TestValid(t *testing.T) {
	assert.True(t, NewDate(2024, 2, 29).Valid())
	assert.False(t, NewDate(2023, 2, 29).Valid())
	assert.False(t, NewDate(2024, 13, 1).Valid())
	assert.False(t, NewDate(2024, 0, 1).Valid())
	assert.False(t, NewDate(2024, 4, 31).Valid())
	assert.False(t, NewDate(2024, 4, 0).Valid())
}

func TestIsSameDate(t *testing.T) {
	assert.True(t, IsSameDate(NewDate(2024, 3, 20), NewDate(2024, 3, 20)))
	assert.False(t, IsSameDate(NewDate(2024, 3, 20), NewDate(2024, 3, 21)))
	assert.False(t, IsSameDate(NewDate(2023, 3, 20), NewDate(2024, 3, 20)))
}

func TestTodayUsesLocalZone(t *testing.T) {
	defer func(loc *time.Location) { time.Local = loc }(time.Local)
	time.Local = time.FixedZone("UTC+9", 9*3600)

	// 20:00 UTC on the 19th is already the 20th at UTC+9.
	now := time.Date(2024, 3, 19, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, NewDate(2024, 3, 20), Today(now))
}

func TestParseISO(t *testing.T) {
	d, err := ParseISO("2024-03-20")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2024, 3, 20), d)
	assert.Equal(t, "2024-03-20", d.String())

	_, err = ParseISO("2024-02-30")
	assert.Error(t, err)
}
