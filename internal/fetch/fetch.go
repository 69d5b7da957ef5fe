// Package fetch retrieves feed documents and parses them into raw items.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultUserAgent = "upwatch/1.0 (+rss)"
)

// Item is one entry of a feed as the document presented it, before any
// cleanup or extraction.
type Item struct {
	Link      string
	Title     string
	Summary   string
	Published *time.Time
}

type Config struct {
	Timeout   time.Duration
	UserAgent string

	// Requests per second and burst allowed against any one host.
	HostRate  float64
	HostBurst int
}

// Client fetches feeds over HTTP.
type Client struct {
	http      *http.Client
	userAgent string
	limiter   *hostLimiter
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.HostRate <= 0 {
		cfg.HostRate = 1
	}
	if cfg.HostBurst <= 0 {
		cfg.HostBurst = 2
	}

	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		limiter:   newHostLimiter(rate.Limit(cfg.HostRate), cfg.HostBurst),
	}
}

// Fetch performs a single GET of feedURL and parses the document.
//
// Transport failures, timeouts, non-2xx statuses and documents that aren't a
// feed all return an error; it's up to the caller whether that's fatal.
func (c *Client) Fetch(ctx context.Context, feedURL string) ([]Item, error) {
	if err := c.limiter.wait(ctx, feedURL); err != nil {
		return nil, fmt.Errorf("error waiting on rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error getting feed url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	// Parsers carry state between calls, so each fetch gets its own.
	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error decoding feed: %w", err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		summary := it.Description
		if summary == "" {
			summary = it.Content
		}

		published := it.PublishedParsed
		if published == nil {
			published = it.UpdatedParsed
		}

		items = append(items, Item{
			Link:      it.Link,
			Title:     it.Title,
			Summary:   summary,
			Published: published,
		})
	}

	return items, nil
}

// hostLimiter rate limits requests per host so that many feeds on the same
// site don't get fired at it all at once.
type hostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	b        int
}

func newHostLimiter(r rate.Limit, b int) *hostLimiter {
	return &hostLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		b:        b,
	}
}

func (hl *hostLimiter) wait(ctx context.Context, rawURL string) error {
	host := "_"
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	hl.mu.Lock()
	lim, ok := hl.limiters[host]
	if !ok {
		lim = rate.NewLimiter(hl.r, hl.b)
		hl.limiters[host] = lim
	}
	hl.mu.Unlock()

	return lim.Wait(ctx)
}
