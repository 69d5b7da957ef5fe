package sqlite

import (
	"context"
	"fmt"
	"slices"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/jdholdren/upwatch/internal/upwatch"
)

var entryColumns = []string{
	"id", "feed_id", "url", "title", "posted_on",
	"low_hourly", "high_hourly", "skills", "keywords",
	"sent", "created_at",
}

func (r Repo) AllEntries(ctx context.Context) ([]upwatch.Entry, error) {
	query, args, err := sq.Select(entryColumns...).From("entries").OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	var entries []upwatch.Entry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("error selecting all entries: %s", err)
	}

	return entries, nil
}

// InsertEntries writes all entries at once. Entries whose URL is already
// stored are skipped, so the first feed to record a posting keeps it.
func (r Repo) InsertEntries(ctx context.Context, entries []upwatch.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := slices.Clone(entries)
	for i := range rows {
		rows[i].CreatedAt = now
		rows[i].PostedOn = rows[i].PostedOn.UTC()
	}

	const q = `INSERT INTO entries (feed_id, url, title, posted_on, low_hourly, high_hourly, skills, keywords, sent, created_at)
	VALUES (:feed_id, :url, :title, :posted_on, :low_hourly, :high_hourly, :skills, :keywords, :sent, :created_at)
	ON CONFLICT(url) DO NOTHING;`
	if _, err := r.db.NamedExecContext(ctx, q, rows); err != nil {
		return fmt.Errorf("error inserting entries: %s", err)
	}

	return nil
}

// UnsentEntries returns the entries not yet notified, newest posting first.
func (r Repo) UnsentEntries(ctx context.Context) ([]upwatch.Entry, error) {
	query, args, err := sq.Select(entryColumns...).
		From("entries").
		Where(sq.Eq{"sent": false}).
		OrderBy("posted_on DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	var entries []upwatch.Entry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("error selecting unsent entries: %s", err)
	}

	return entries, nil
}

func (r Repo) MarkSent(ctx context.Context, entryIDs []int64) error {
	if len(entryIDs) == 0 {
		return nil
	}

	query, args, err := sq.Update("entries").Set("sent", true).Where(sq.Eq{"id": entryIDs}).ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %s", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("error marking entries sent: %s", err)
	}

	return nil
}
