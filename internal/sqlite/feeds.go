package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"

	"github.com/jdholdren/upwatch/internal/upwatch"
)

const feedColumns = "id, url, last_checked_at, created_at"

func (r Repo) Feed(ctx context.Context, id int64) (upwatch.Feed, error) {
	const q = `SELECT ` + feedColumns + ` FROM feeds WHERE id = ?;`

	var feed upwatch.Feed
	err := r.db.GetContext(ctx, &feed, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return upwatch.Feed{}, upwatch.ErrNotFound
	}
	if err != nil {
		return upwatch.Feed{}, fmt.Errorf("error fetching feed: %s", err)
	}

	return feed, nil
}

// InsertFeed stores a new feed, treating it as checked at the time of
// insertion.
func (r Repo) InsertFeed(ctx context.Context, url string) (upwatch.Feed, error) {
	const q = `INSERT INTO feeds (url, last_checked_at, created_at)
	VALUES (:url, :last_checked_at, :created_at);`

	now := time.Now().UTC()
	f := upwatch.Feed{
		URL:           url,
		LastCheckedAt: now,
		CreatedAt:     now,
	}
	res, err := r.db.NamedExecContext(ctx, q, f)
	if sqliteErr := (&sqlite.Error{}); errors.As(err, &sqliteErr) && sqliteErr.Code() == 2067 {
		return upwatch.Feed{}, fmt.Errorf("feed already exists: %w", upwatch.ErrConflict)
	}
	if err != nil {
		return upwatch.Feed{}, fmt.Errorf("error inserting feed: %s", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return upwatch.Feed{}, fmt.Errorf("error getting feed id: %s", err)
	}

	return r.Feed(ctx, id)
}

// AllFeeds retrieves _all_ feeds from the database.
func (r Repo) AllFeeds(ctx context.Context) ([]upwatch.Feed, error) {
	const q = `SELECT ` + feedColumns + ` FROM feeds ORDER BY id;`

	var feeds []upwatch.Feed
	if err := r.db.SelectContext(ctx, &feeds, q); err != nil {
		return nil, fmt.Errorf("error selecting all feeds: %s", err)
	}

	return feeds, nil
}

// TouchFeedChecked records that the feed was checked at t. The stored time
// never moves backwards.
func (r Repo) TouchFeedChecked(ctx context.Context, feedID int64, t time.Time) error {
	const q = `UPDATE feeds SET last_checked_at = ? WHERE id = ? AND last_checked_at < ?;`

	t = t.UTC()
	if _, err := r.db.ExecContext(ctx, q, t, feedID, t); err != nil {
		return fmt.Errorf("error updating feed checked time: %s", err)
	}

	return nil
}
