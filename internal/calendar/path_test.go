package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.Local)

func TestParseActiveDate(t *testing.T) {
	today := Today(fixedNow)

	cases := []struct {
		name      string
		segments  []string
		want      Date
		wantReset bool
	}{
		{"valid", []string{"2024", "3", "20", "tokyo"}, NewDate(2024, 3, 20), false},
		{"zero padded", []string{"2024", "03", "09"}, NewDate(2024, 3, 9), false},
		{"leap day", []string{"2024", "2", "29"}, NewDate(2024, 2, 29), false},
		{"invalid month", []string{"2024", "13", "01"}, today, true},
		{"invalid leap day", []string{"2023", "2", "29"}, today, true},
		{"non numeric", []string{"2024", "march", "20"}, today, true},
		{"missing day", []string{"2024", "3"}, today, true},
		{"empty", nil, today, true},
		{"zero day", []string{"2024", "3", "0"}, today, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, reset := ParseActiveDate(tc.segments, fixedNow)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantReset, reset)
		})
	}
}

func TestUrlify(t *testing.T) {
	assert.Equal(t, "new+york", Urlify("New York"))
	assert.Equal(t, "rio+de+janeiro,+rj", Urlify("  Rio   de\tJaneiro, RJ "))
	assert.Equal(t, "tokyo", Urlify("Tokyo"))
	assert.Equal(t, "new york", Deurlify("new+york"))
}

func TestBuildPathAndRouteLocation(t *testing.T) {
	path := BuildPath(NewDate(2024, 3, 20), "San Francisco")
	assert.Equal(t, "/2024/3/20/san+francisco", path)
	assert.Equal(t, "san francisco", RouteLocation(path))

	assert.Equal(t, "/2024/3/20", BuildPath(NewDate(2024, 3, 20), ""))
	assert.Equal(t, "/2024/3/20/what%3F", BuildPath(NewDate(2024, 3, 20), "What?"))
	assert.Equal(t, "/2024/3/20/a%2Fb", BuildPath(NewDate(2024, 3, 20), "a/b"))
	assert.Equal(t, "a/b", RouteLocation(BuildPath(NewDate(2024, 3, 20), "a/b")))
	assert.Equal(t, "", RouteLocation("/"))
	assert.Equal(t, "", RouteLocation("/2024/3/20"))
	assert.Equal(t, "", RouteLocation("/2024/3/20/tokyo/extra"))
}

func TestSplitPath(t *testing.T) {
	assert.Equal(t, []string{"2024", "3", "20", "tokyo"}, SplitPath("/2024/3/20/tokyo/"))
	assert.Nil(t, SplitPath("/"))
}
