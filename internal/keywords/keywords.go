// Package keywords extracts technical keywords from a posting's text.
//
// Extraction is best effort: callers treat any error as "no keywords".
package keywords

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Extractor pulls keywords out of plain text.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]string, error)
}

// Disabled is the extractor used when keyword extraction is turned off.
type Disabled struct{}

func (Disabled) Extract(context.Context, string) ([]string, error) {
	return nil, nil
}

// Cached memoizes another extractor's results by input text.
//
// The same posting often shows up in several search feeds, and remote
// extractors are slow and metered.
type Cached struct {
	inner Extractor
	cache *lru.Cache[string, []string]
}

func NewCached(inner Extractor, size int) (*Cached, error) {
	cache, err := lru.New[string, []string](size)
	if err != nil {
		return nil, err
	}

	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Extract(ctx context.Context, text string) ([]string, error) {
	if kws, ok := c.cache.Get(text); ok {
		return kws, nil
	}

	kws, err := c.inner.Extract(ctx, text)
	if err != nil {
		// Failures aren't cached so the next sighting gets another try
		return nil, err
	}
	c.cache.Add(text, kws)

	return kws, nil
}
