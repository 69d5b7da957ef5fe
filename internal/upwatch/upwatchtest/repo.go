// Package upwatchtest provides an in-memory [upwatch.Repository] for tests.
package upwatchtest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jdholdren/upwatch/internal/upwatch"
)

// Repo keeps feeds and entries in memory.
//
// Setting one of the Err fields makes the matching call fail.
type Repo struct {
	mu      sync.Mutex
	feeds   []upwatch.Feed
	entries []upwatch.Entry
	nextID  int64

	InsertFeedErr    error
	InsertEntriesErr error
	UnsentErr        error
	MarkSentErr      error

	// Number of InsertEntries calls made.
	InsertCalls int
}

func NewRepo() *Repo {
	return &Repo{}
}

func (r *Repo) AllFeeds(context.Context) ([]upwatch.Feed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.feeds), nil
}

func (r *Repo) InsertFeed(_ context.Context, url string) (upwatch.Feed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.InsertFeedErr != nil {
		return upwatch.Feed{}, r.InsertFeedErr
	}
	for _, f := range r.feeds {
		if f.URL == url {
			return upwatch.Feed{}, upwatch.ErrConflict
		}
	}

	now := time.Now().UTC()
	r.nextID++
	f := upwatch.Feed{ID: r.nextID, URL: url, LastCheckedAt: now, CreatedAt: now}
	r.feeds = append(r.feeds, f)

	return f, nil
}

// AddFeed stores a feed directly, keeping its timestamps.
func (r *Repo) AddFeed(url string, lastChecked time.Time) upwatch.Feed {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	f := upwatch.Feed{ID: r.nextID, URL: url, LastCheckedAt: lastChecked, CreatedAt: lastChecked}
	r.feeds = append(r.feeds, f)

	return f
}

func (r *Repo) TouchFeedChecked(_ context.Context, feedID int64, t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.feeds {
		if r.feeds[i].ID == feedID {
			if t.After(r.feeds[i].LastCheckedAt) {
				r.feeds[i].LastCheckedAt = t
			}
			return nil
		}
	}

	return upwatch.ErrNotFound
}

func (r *Repo) AllEntries(context.Context) ([]upwatch.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.entries), nil
}

// InsertEntries assigns IDs as they're inserted; URLs already present are skipped.
func (r *Repo) InsertEntries(_ context.Context, entries []upwatch.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.InsertCalls++
	if r.InsertEntriesErr != nil {
		return r.InsertEntriesErr
	}

	for _, e := range entries {
		if slices.ContainsFunc(r.entries, func(have upwatch.Entry) bool { return have.URL == e.URL }) {
			continue
		}
		r.nextID++
		e.ID = r.nextID
		e.CreatedAt = time.Now().UTC()
		r.entries = append(r.entries, e)
	}

	return nil
}

func (r *Repo) UnsentEntries(context.Context) ([]upwatch.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.UnsentErr != nil {
		return nil, r.UnsentErr
	}

	var unsent []upwatch.Entry
	for _, e := range r.entries {
		if !e.Sent {
			unsent = append(unsent, e)
		}
	}
	slices.SortStableFunc(unsent, func(a, b upwatch.Entry) int {
		return b.PostedOn.Compare(a.PostedOn)
	})

	return unsent, nil
}

func (r *Repo) MarkSent(_ context.Context, entryIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.MarkSentErr != nil {
		return r.MarkSentErr
	}
	for i := range r.entries {
		if slices.Contains(entryIDs, r.entries[i].ID) {
			r.entries[i].Sent = true
		}
	}

	return nil
}

// Feed returns the stored feed with the given ID.
func (r *Repo) Feed(id int64) (upwatch.Feed, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range r.feeds {
		if f.ID == id {
			return f, true
		}
	}

	return upwatch.Feed{}, false
}
