// Package v1 holds the request and response bodies of the v1 admin API.
package v1

import (
	"net/http"
	"net/url"
	"time"

	upwerrs "github.com/jdholdren/upwatch/internal/errors"
	"github.com/jdholdren/upwatch/internal/upwatch"
)

type CreateFeedRequest struct {
	URL string `json:"url"`
}

// Validate checks that the body (minus logic checks) is valid.
//
// Returns an *errors.Error with a 400 status if the request is invalid.
func (r CreateFeedRequest) Validate() error {
	var details []upwerrs.Detail
	if r.URL == "" {
		details = append(details, upwerrs.Detail{
			Field: "url",
			Error: "url is required",
		})
	} else if u, err := url.Parse(r.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		details = append(details, upwerrs.Detail{
			Field: "url",
			Error: "url must be an absolute http(s) url",
		})
	}
	if len(details) > 0 {
		return upwerrs.E("request was invalid", http.StatusBadRequest, details)
	}

	return nil
}

type Feed struct {
	ID            int64     `json:"id"`
	URL           string    `json:"url"`
	LastCheckedAt time.Time `json:"last_checked_at"`
}

func FeedFrom(f upwatch.Feed) Feed {
	return Feed{
		ID:            f.ID,
		URL:           f.URL,
		LastCheckedAt: f.LastCheckedAt,
	}
}

type ListFeedsResponse struct {
	Feeds []Feed `json:"feeds"`
}

type Entry struct {
	ID         int64     `json:"id"`
	FeedID     int64     `json:"feed_id"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	PostedOn   time.Time `json:"posted_on"`
	LowHourly  *string   `json:"low_hourly,omitempty"`
	HighHourly *string   `json:"high_hourly,omitempty"`
	Skills     *string   `json:"skills,omitempty"`
	Keywords   *string   `json:"keywords,omitempty"`
}

func EntryFrom(e upwatch.Entry) Entry {
	return Entry{
		ID:         e.ID,
		FeedID:     e.FeedID,
		URL:        e.URL,
		Title:      e.Title,
		PostedOn:   e.PostedOn,
		LowHourly:  e.LowHourly,
		HighHourly: e.HighHourly,
		Skills:     e.Skills,
		Keywords:   e.Keywords,
	}
}

type ListEntriesResponse struct {
	Entries []Entry `json:"entries"`
}
