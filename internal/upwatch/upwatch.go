// Package upwatch holds the domain types shared by the feed watcher: feeds,
// their entries, and the storage surface the pipeline depends on.
package upwatch

import (
	"context"
	"errors"
	"time"
)

var (
	ErrConflict = errors.New("resource already exists")
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidFeed is returned when a feed being added for the first time
	// could not be fetched or yielded no entries.
	ErrInvalidFeed = errors.New("invalid feed")
)

type (
	// Feed represents an RSS feed being watched.
	Feed struct {
		ID            int64     `db:"id" json:"id"`
		URL           string    `db:"url" json:"url"`
		LastCheckedAt time.Time `db:"last_checked_at" json:"last_checked_at"`
		CreatedAt     time.Time `db:"created_at" json:"created_at"`
	}

	// Entry represents a unique item seen in a feed, identified by its URL.
	Entry struct {
		ID         int64     `db:"id" json:"id"`
		FeedID     int64     `db:"feed_id" json:"feed_id"`
		URL        string    `db:"url" json:"url"`
		Title      string    `db:"title" json:"title"`
		PostedOn   time.Time `db:"posted_on" json:"posted_on"`
		LowHourly  *string   `db:"low_hourly" json:"low_hourly,omitempty"`
		HighHourly *string   `db:"high_hourly" json:"high_hourly,omitempty"`
		Skills     *string   `db:"skills" json:"skills,omitempty"`
		Keywords   *string   `db:"keywords" json:"keywords,omitempty"`
		Sent       bool      `db:"sent" json:"sent"`
		CreatedAt  time.Time `db:"created_at" json:"created_at"`
	}

	// Repository is the storage the pipeline reads from and writes to.
	//
	// Every call is expected to be atomic on its own.
	Repository interface {
		AllFeeds(ctx context.Context) ([]Feed, error)
		InsertFeed(ctx context.Context, url string) (Feed, error)
		TouchFeedChecked(ctx context.Context, feedID int64, t time.Time) error

		AllEntries(ctx context.Context) ([]Entry, error)
		InsertEntries(ctx context.Context, entries []Entry) error
		// Entries not yet notified, most recently posted first.
		UnsentEntries(ctx context.Context) ([]Entry, error)
		MarkSent(ctx context.Context, entryIDs []int64) error
	}
)

// EntryIDs collects the IDs of the given entries.
func EntryIDs(entries []Entry) []int64 {
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}

	return ids
}
