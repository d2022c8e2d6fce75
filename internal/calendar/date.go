package calendar

import (
	"fmt"
	"time"
)

var daysPerMonth = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// Date is a calendar day without a time zone. Month is 1-based.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

func NewDate(year, month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// FromTime returns the date of t in t's own location.
func FromTime(t time.Time) Date {
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// Today returns the local calendar date at now.
func Today(now time.Time) Date {
	return FromTime(now.In(time.Local))
}

func TodaysDate() Date {
	return Today(time.Now())
}

func IsLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

// DaysIn returns the number of days of month in year, or 0 for an invalid month.
func DaysIn(year, month int) int {
	if month < 1 || month > 12 {
		return 0
	}
	if month == 2 && IsLeapYear(year) {
		return 29
	}
	return daysPerMonth[month-1]
}

func (d Date) Valid() bool {
	if d.Month < 1 || d.Month > 12 || d.Day < 1 {
		return false
	}
	return d.Day <= DaysIn(d.Year, d.Month)
}

// Next returns the following calendar day.
func Next(d Date) Date {
	switch {
	case d.Month == 12 && d.Day >= 31:
		return Date{Year: d.Year + 1, Month: 1, Day: 1}
	case d.Month == 2 && d.Day == 28 && IsLeapYear(d.Year):
		return Date{Year: d.Year, Month: 2, Day: 29}
	case d.Day >= daysPerMonth[d.Month-1]:
		return Date{Year: d.Year, Month: d.Month + 1, Day: 1}
	default:
		return Date{Year: d.Year, Month: d.Month, Day: d.Day + 1}
	}
}

// Prev returns the preceding calendar day.
func Prev(d Date) Date {
	switch {
	case d.Month == 1 && d.Day == 1:
		return Date{Year: d.Year - 1, Month: 12, Day: 31}
	case d.Month == 3 && d.Day == 1 && IsLeapYear(d.Year):
		return Date{Year: d.Year, Month: 2, Day: 29}
	case d.Day == 1:
		return Date{Year: d.Year, Month: d.Month - 1, Day: daysPerMonth[d.Month-2]}
	default:
		return Date{Year: d.Year, Month: d.Month, Day: d.Day - 1}
	}
}

func IsSameDate(a, b Date) bool {
	return a.Year == b.Year && a.Month == b.Month && a.Day == b.Day
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// ParseISO parses a YYYY-MM-DD string and validates the result.
func ParseISO(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return FromTime(t), nil
}
