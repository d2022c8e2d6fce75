package calendar

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// ParseActiveDate reads year, month and day from the leading path segments.
// Anything missing, non-numeric or out of range yields today's date with
// reset set, telling the caller to send the browser back to "/".
func ParseActiveDate(segments []string, now time.Time) (Date, bool) {
	if len(segments) < 3 {
		return Today(now), true
	}

	var parts [3]int
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(segments[i]))
		if err != nil {
			return Today(now), true
		}
		parts[i] = n
	}

	d := Date{Year: parts[0], Month: parts[1], Day: parts[2]}
	if !d.Valid() {
		return Today(now), true
	}
	return d, false
}

// Urlify lowercases a location and replaces whitespace runs with "+".
func Urlify(location string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(location)), "+")
}

// Deurlify turns a path token back into a location string.
func Deurlify(token string) string {
	return strings.TrimSpace(strings.ReplaceAll(token, "+", " "))
}

// BuildPath returns the routable path /{year}/{month}/{day}/{location}.
// The location token is escaped so characters like "?" stay in the path.
func BuildPath(d Date, location string) string {
	path := fmt.Sprintf("/%d/%d/%d", d.Year, d.Month, d.Day)
	if token := Urlify(location); token != "" {
		path += "/" + url.PathEscape(token)
	}
	return path
}

// SplitPath splits a request path into its non-empty segments.
func SplitPath(path string) []string {
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// RouteLocation returns the location encoded in the fourth segment of an
// escaped routable path, or "" when the path does not follow the four
// segment form.
func RouteLocation(path string) string {
	segments := SplitPath(path)
	if len(segments) != 4 {
		return ""
	}
	token, err := url.PathUnescape(segments[3])
	if err != nil {
		token = segments[3]
	}
	return Deurlify(token)
}
