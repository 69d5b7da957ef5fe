// Package extract pulls structured fields out of a job posting's summary.
//
// Every function here is pure and total: input that doesn't carry the field,
// or carries it malformed, reports it as absent instead of failing.
package extract

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// PostedOnLayout is the layout of the "Posted On" marker's date.
const PostedOnLayout = "January 2, 2006 15:04"

// Each field is looked for under the bold label the feed generates first.
// Only when that's missing is a plain label at the start of a line accepted,
// so text the client wrote in the description can't stand in for the field.
var (
	hourlyRangeRes = markerRes(`Hourly Range`, `:\s*([$\d.,]+)\s*-\s*([$\d.,]+)`)
	skillsRes      = markerRes(`Skills`, `:(.*?)(?:<br\s*/?>|\n)`)
	postedOnRes    = markerRes(`Posted On`, `:\s+(.*?)\s+UTC`)
)

func markerRes(label, rest string) []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`<b>` + label + `</b>` + rest),
		regexp.MustCompile(`(?m)^[ \t]*` + label + rest),
	}
}

// firstMatch returns the submatches of the first marker form present.
func firstMatch(res []*regexp.Regexp, s string) []string {
	for _, re := range res {
		if m := re.FindStringSubmatch(s); m != nil {
			return m
		}
	}

	return nil
}

// HourlyRange finds "Hourly Range: $A-$B" and returns both bounds verbatim.
func HourlyRange(summary string) (low, high string, ok bool) {
	m := firstMatch(hourlyRangeRes, summary)
	if m == nil {
		return "", "", false
	}

	return m[1], m[2], true
}

// Skills finds "Skills: a, b, c" up to the next line break and normalizes
// the list to ", " separated, trimmed items.
func Skills(summary string) (string, bool) {
	m := firstMatch(skillsRes, summary)
	if m == nil {
		return "", false
	}

	var skills []string
	for _, s := range strings.Split(m[1], ",") {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}
	if len(skills) == 0 {
		return "", false
	}

	return strings.Join(skills, ", "), true
}

// PostedOn finds "Posted On: January 5, 2024 13:45 UTC" and returns it in UTC.
//
// Every occurrence is tried in turn; the first that parses wins.
func PostedOn(summary string) (time.Time, bool) {
	for _, re := range postedOnRes {
		for _, m := range re.FindAllStringSubmatch(summary, -1) {
			t, err := time.ParseInLocation(PostedOnLayout, strings.TrimSpace(m[1]), time.UTC)
			if err == nil {
				return t, true
			}
		}
	}

	return time.Time{}, false
}

// A space goes where each tag was so that adjacent blocks don't run together.
var stripPolicy = bluemonday.StrictPolicy().AddSpaceWhenStrippingTag(true)

// CleanText removes all markup from s and collapses it to single-spaced text.
func CleanText(s string) string {
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)

	return strings.Join(strings.Fields(s), " ")
}

// TrimSiteSuffix drops the "- Site" suffix job boards append to titles.
func TrimSiteSuffix(title, site string) string {
	if site == "" {
		return strings.TrimSpace(title)
	}

	return strings.TrimSpace(strings.ReplaceAll(title, "- "+site, ""))
}
