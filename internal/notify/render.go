package notify

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"time"

	"github.com/jdholdren/upwatch/internal/upwatch"
)

//go:embed digest.html
var digestTmpl string

var digest = template.Must(template.New("digest").Parse(digestTmpl))

// HTMLRenderer renders entries as an HTML table, one row each.
type HTMLRenderer struct {
	// Site names the job board in the subject and heading.
	Site string
}

type digestRow struct {
	URL      string
	Title    string
	Ago      string
	Rate     string
	Skills   string
	Keywords string
}

func (r HTMLRenderer) Render(entries []upwatch.Entry, now time.Time) (Message, error) {
	rows := make([]digestRow, 0, len(entries))
	for _, e := range entries {
		row := digestRow{
			URL:   e.URL,
			Title: e.Title,
			Ago:   TimeAgo(now.Sub(e.PostedOn)),
		}
		if e.LowHourly != nil && e.HighHourly != nil {
			row.Rate = fmt.Sprintf("%s - %s hourly", *e.LowHourly, *e.HighHourly)
		}
		if e.Skills != nil {
			row.Skills = *e.Skills
		}
		if e.Keywords != nil {
			row.Keywords = *e.Keywords
		}
		rows = append(rows, row)
	}

	site := r.Site
	if site == "" {
		site = "RSS"
	}
	title := fmt.Sprintf("%s feed update (%d)", site, len(entries))

	var buf bytes.Buffer
	if err := digest.Execute(&buf, struct {
		Title   string
		Entries []digestRow
	}{title, rows}); err != nil {
		return Message{}, fmt.Errorf("error executing digest template: %w", err)
	}

	return Message{Subject: title, HTML: buf.String()}, nil
}

// TimeAgo describes an age the way the digest shows it, e.g. "3 hours ago".
func TimeAgo(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d/(24*time.Hour)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
