// Package scheduler drives the watch loop: pick the feeds that are due,
// check them in parallel, then send whatever is new.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jdholdren/upwatch/internal/dedup"
	"github.com/jdholdren/upwatch/internal/fetch"
	"github.com/jdholdren/upwatch/internal/notify"
	"github.com/jdholdren/upwatch/internal/upwatch"
	"github.com/jdholdren/upwatch/logger"
)

const (
	DefaultInterval             = 60 * time.Second
	DefaultMaxConcurrentFetches = 8
)

type (
	Fetcher interface {
		Fetch(ctx context.Context, url string) ([]fetch.Item, error)
	}

	Ingester interface {
		Process(ctx context.Context, feed upwatch.Feed, items []fetch.Item) ([]upwatch.Entry, error)
	}

	Notifier interface {
		Notify(ctx context.Context) error
	}
)

type Config struct {
	Interval             time.Duration
	MaxConcurrentFetches int
	// Defaults to time.Now.
	Now func() time.Time
}

// Scheduler owns the in-memory feed list and, through the ingester, the set
// of known entry URLs.
type Scheduler struct {
	repo     upwatch.Repository
	known    *dedup.Set
	fetcher  Fetcher
	ingester Ingester
	notifier Notifier

	interval      time.Duration
	maxConcurrent int
	now           func() time.Time

	mu    sync.Mutex
	feeds []upwatch.Feed
}

func New(
	repo upwatch.Repository,
	known *dedup.Set,
	fetcher Fetcher,
	ingester Ingester,
	notifier Notifier,
	cfg Config,
) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = DefaultMaxConcurrentFetches
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Scheduler{
		repo:          repo,
		known:         known,
		fetcher:       fetcher,
		ingester:      ingester,
		notifier:      notifier,
		interval:      cfg.Interval,
		maxConcurrent: cfg.MaxConcurrentFetches,
		now:           cfg.Now,
	}
}

// Load reads the feeds and the known entry URLs from storage.
func (s *Scheduler) Load(ctx context.Context) error {
	feeds, err := s.repo.AllFeeds(ctx)
	if err != nil {
		return fmt.Errorf("error loading feeds: %w", err)
	}
	entries, err := s.repo.AllEntries(ctx)
	if err != nil {
		return fmt.Errorf("error loading entries: %w", err)
	}

	urls := make([]string, 0, len(entries))
	for _, e := range entries {
		urls = append(urls, e.URL)
	}
	s.known.Seed(urls)

	s.mu.Lock()
	s.feeds = feeds
	s.mu.Unlock()

	slog.InfoContext(ctx, "loaded state", "feeds", len(feeds), "entries", len(entries), "known_urls", s.known.Len())

	return nil
}

// Feeds returns a copy of the feeds being watched.
func (s *Scheduler) Feeds() []upwatch.Feed {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.feeds)
}

// Run checks feeds until ctx is done or notifying fails fatally.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		wait, err := s.RunCycle(ctx)
		if err != nil {
			return err
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// RunCycle checks every due feed, waits for all of them, then notifies.
//
// The returned wait is how long until the next feed comes due, as of the
// start of the cycle. Only a fatal notification error is returned.
func (s *Scheduler) RunCycle(ctx context.Context) (time.Duration, error) {
	ctx = logger.Ctx(ctx, slog.String("cycle_id", uuid.NewString()))

	due, wait := Due(s.Feeds(), s.now(), s.interval)
	if len(due) > 0 {
		slog.InfoContext(ctx, "checking feeds", "due", len(due))

		// Tasks never fail, failures are logged per feed.
		var g errgroup.Group
		g.SetLimit(s.maxConcurrent)
		for _, feed := range due {
			g.Go(func() error {
				s.check(ctx, feed)
				return nil
			})
		}
		_ = g.Wait()
	}

	err := s.notifier.Notify(ctx)
	if errors.Is(err, notify.ErrFatal) {
		return 0, err
	}
	if err != nil {
		slog.ErrorContext(ctx, "error notifying", "error", err)
	}

	return wait, nil
}

// check fetches and ingests one feed. The feed counts as checked even when
// the fetch fails so a dead feed doesn't get retried every cycle.
func (s *Scheduler) check(ctx context.Context, feed upwatch.Feed) {
	ctx = logger.Ctx(ctx, slog.Int64("feed_id", feed.ID), slog.String("feed_url", feed.URL))

	items, err := s.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		slog.WarnContext(ctx, "error fetching feed", "error", err)
		items = nil
	}

	if len(items) > 0 {
		if _, err := s.ingester.Process(ctx, feed, items); err != nil {
			slog.ErrorContext(ctx, "error ingesting feed", "error", err)
		}
	}

	s.touch(ctx, feed.ID, s.now())
}

func (s *Scheduler) touch(ctx context.Context, feedID int64, t time.Time) {
	t = t.UTC()
	if err := s.repo.TouchFeedChecked(ctx, feedID, t); err != nil {
		slog.ErrorContext(ctx, "error touching feed", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.feeds {
		if s.feeds[i].ID == feedID && t.After(s.feeds[i].LastCheckedAt) {
			s.feeds[i].LastCheckedAt = t
		}
	}
}

// AddFeed starts watching url.
//
// The feed is fetched first; if that fails or it has no entries nothing is
// stored and [upwatch.ErrInvalidFeed] is returned. Its entries are ingested
// right away rather than on the next cycle.
func (s *Scheduler) AddFeed(ctx context.Context, url string) (upwatch.Feed, error) {
	items, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return upwatch.Feed{}, fmt.Errorf("%w: error fetching feed: %s", upwatch.ErrInvalidFeed, err)
	}
	if len(items) == 0 {
		return upwatch.Feed{}, fmt.Errorf("%w: feed has no entries", upwatch.ErrInvalidFeed)
	}

	feed, err := s.repo.InsertFeed(ctx, url)
	if err != nil {
		return upwatch.Feed{}, fmt.Errorf("error inserting feed: %w", err)
	}

	s.mu.Lock()
	s.feeds = append(s.feeds, feed)
	s.mu.Unlock()

	ctx = logger.Ctx(ctx, slog.Int64("feed_id", feed.ID), slog.String("feed_url", feed.URL))
	if _, err := s.ingester.Process(ctx, feed, items); err != nil {
		// Stored already; the next cycle picks the entries up.
		slog.ErrorContext(ctx, "error ingesting new feed", "error", err)
	}
	slog.InfoContext(ctx, "added feed")

	return feed, nil
}

// Due splits feeds into those checked at least interval ago and returns the
// wait until the next one comes due: zero if any are due already, interval
// if there are no feeds.
func Due(feeds []upwatch.Feed, now time.Time, interval time.Duration) ([]upwatch.Feed, time.Duration) {
	var due []upwatch.Feed
	wait := interval
	for _, f := range feeds {
		elapsed := now.Sub(f.LastCheckedAt)
		if elapsed >= interval {
			due = append(due, f)
			continue
		}
		// A last check in the future still waits at most one interval.
		if remaining := interval - elapsed; remaining < wait {
			wait = remaining
		}
	}

	if len(due) > 0 {
		return due, 0
	}

	return nil, wait
}
