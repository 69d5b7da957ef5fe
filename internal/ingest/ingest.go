// Package ingest turns freshly fetched feed items into stored entries.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jdholdren/upwatch/internal/dedup"
	"github.com/jdholdren/upwatch/internal/extract"
	"github.com/jdholdren/upwatch/internal/fetch"
	"github.com/jdholdren/upwatch/internal/keywords"
	"github.com/jdholdren/upwatch/internal/upwatch"
)

type Config struct {
	// Site name stripped from the end of entry titles, e.g. "Upwork".
	Site string
	// Defaults to [keywords.Disabled].
	Keywords keywords.Extractor
	// Defaults to time.Now.
	Now func() time.Time
}

// Pipeline filters out entries already seen, extracts their fields and
// persists the rest.
type Pipeline struct {
	repo  upwatch.Repository
	known *dedup.Set
	site  string
	kw    keywords.Extractor
	now   func() time.Time
}

func NewPipeline(repo upwatch.Repository, known *dedup.Set, cfg Config) *Pipeline {
	if cfg.Keywords == nil {
		cfg.Keywords = keywords.Disabled{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Pipeline{
		repo:  repo,
		known: known,
		site:  cfg.Site,
		kw:    cfg.Keywords,
		now:   cfg.Now,
	}
}

// Process stores the items of feed that haven't been seen before and returns
// the entries it wrote.
//
// Items without a link, already known, or repeated within items are skipped.
// All new entries are written in a single call; only once that succeeds are
// their URLs admitted to the known set.
func (p *Pipeline) Process(ctx context.Context, feed upwatch.Feed, items []fetch.Item) ([]upwatch.Entry, error) {
	var (
		entries []upwatch.Entry
		batch   = make(map[string]struct{})
	)
	for _, item := range items {
		if item.Link == "" || !p.known.IsNew(item.Link) {
			continue
		}
		if _, ok := batch[item.Link]; ok {
			continue
		}
		batch[item.Link] = struct{}{}

		entries = append(entries, p.entry(ctx, feed, item))
	}

	if len(entries) == 0 {
		return nil, nil
	}

	if err := p.repo.InsertEntries(ctx, entries); err != nil {
		return nil, fmt.Errorf("error inserting entries: %w", err)
	}

	urls := make([]string, 0, len(entries))
	for _, e := range entries {
		urls = append(urls, e.URL)
	}
	p.known.Admit(urls...)

	slog.InfoContext(ctx, "ingested entries", "feed_id", feed.ID, "count", len(entries))

	return entries, nil
}

func (p *Pipeline) entry(ctx context.Context, feed upwatch.Feed, item fetch.Item) upwatch.Entry {
	e := upwatch.Entry{
		FeedID:   feed.ID,
		URL:      item.Link,
		Title:    extract.CleanText(extract.TrimSiteSuffix(item.Title, p.site)),
		PostedOn: p.postedOn(item),
	}

	if low, high, ok := extract.HourlyRange(item.Summary); ok {
		e.LowHourly, e.HighHourly = &low, &high
	}
	if skills, ok := extract.Skills(item.Summary); ok {
		e.Skills = &skills
	}

	kws, err := p.kw.Extract(ctx, extract.CleanText(item.Summary))
	if err != nil {
		slog.WarnContext(ctx, "error extracting keywords", "url", item.Link, "error", err)
	} else if len(kws) > 0 {
		joined := strings.Join(kws, ", ")
		e.Keywords = &joined
	}

	return e
}

// postedOn prefers the time in the summary, then the feed's own publish time,
// then now. Stored at second precision in UTC.
func (p *Pipeline) postedOn(item fetch.Item) time.Time {
	t, ok := extract.PostedOn(item.Summary)
	switch {
	case ok:
	case item.Published != nil:
		t = *item.Published
	default:
		t = p.now()
	}

	return t.UTC().Truncate(time.Second)
}
