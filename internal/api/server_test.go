package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/jdholdren/upwatch/api/feeds/v1"
	upwerrs "github.com/jdholdren/upwatch/internal/errors"
	"github.com/jdholdren/upwatch/internal/upwatch"
	"github.com/jdholdren/upwatch/internal/upwatch/upwatchtest"
)

type fakeWatcher struct {
	feeds []upwatch.Feed
	err   error
}

func (f *fakeWatcher) AddFeed(_ context.Context, url string) (upwatch.Feed, error) {
	if f.err != nil {
		return upwatch.Feed{}, f.err
	}
	feed := upwatch.Feed{ID: int64(len(f.feeds) + 1), URL: url}
	f.feeds = append(f.feeds, feed)
	return feed, nil
}

func (f *fakeWatcher) Feeds() []upwatch.Feed {
	return f.feeds
}

func newTestApiServer(t *testing.T, w *fakeWatcher, repo *upwatchtest.Repo) *Server {
	t.Helper()

	if repo == nil {
		repo = upwatchtest.NewRepo()
	}
	return NewServer(ServerConfig{Port: 0}, w, repo)
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var (
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		rec = httptest.NewRecorder()
	)
	s.Handler.ServeHTTP(rec, req)

	return rec
}

func TestPostFeeds(t *testing.T) {
	w := &fakeWatcher{}
	s := newTestApiServer(t, w, nil)

	rec := do(s, http.MethodPost, "/v1/feeds", `{"url": "https://example.com/rss"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var feed v1.Feed
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&feed))
	assert.Equal(t, int64(1), feed.ID)
	assert.Equal(t, "https://example.com/rss", feed.URL)
	assert.Len(t, w.feeds, 1)
}

func TestPostFeeds_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{
			name:   "not json",
			body:   `{"url":`,
			status: http.StatusBadRequest,
		},
		{
			name:   "missing url",
			body:   `{}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "relative url",
			body:   `{"url": "/rss"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "invalid feed",
			body:   `{"url": "https://example.com/rss"}`,
			err:    fmt.Errorf("%w: feed has no entries", upwatch.ErrInvalidFeed),
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "duplicate",
			body:   `{"url": "https://example.com/rss"}`,
			err:    fmt.Errorf("error inserting feed: %w", upwatch.ErrConflict),
			status: http.StatusConflict,
		},
		{
			name:   "anything else",
			body:   `{"url": "https://example.com/rss"}`,
			err:    fmt.Errorf("disk on fire"),
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestApiServer(t, &fakeWatcher{err: tt.err}, nil)

			rec := do(s, http.MethodPost, "/v1/feeds", tt.body)
			assert.Equal(t, tt.status, rec.Code)

			var body upwerrs.Error
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.status, body.Status)
		})
	}
}

func TestPostFeeds_ValidationDetails(t *testing.T) {
	s := newTestApiServer(t, &fakeWatcher{}, nil)

	rec := do(s, http.MethodPost, "/v1/feeds", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body upwerrs.Error
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Details, 1)
	assert.Equal(t, "url", body.Details[0].Field)
}

func TestGetFeeds(t *testing.T) {
	checked := time.Date(2024, time.January, 5, 12, 0, 0, 0, time.UTC)
	s := newTestApiServer(t, &fakeWatcher{feeds: []upwatch.Feed{
		{ID: 1, URL: "https://example.com/rss/1", LastCheckedAt: checked},
		{ID: 2, URL: "https://example.com/rss/2", LastCheckedAt: checked},
	}}, nil)

	rec := do(s, http.MethodGet, "/v1/feeds", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp v1.ListFeedsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Feeds, 2)
	assert.Equal(t, "https://example.com/rss/2", resp.Feeds[1].URL)
	assert.True(t, resp.Feeds[0].LastCheckedAt.Equal(checked))
}

func TestGetUnsentEntries(t *testing.T) {
	repo := upwatchtest.NewRepo()
	base := time.Date(2024, time.January, 5, 12, 0, 0, 0, time.UTC)
	var entries []upwatch.Entry
	for i := range 5 {
		entries = append(entries, upwatch.Entry{
			FeedID:   1,
			URL:      fmt.Sprintf("https://example.com/jobs/%d", i),
			Title:    fmt.Sprintf("Job %d", i),
			PostedOn: base.Add(time.Duration(i) * time.Hour),
		})
	}
	require.NoError(t, repo.InsertEntries(context.Background(), entries))

	s := newTestApiServer(t, &fakeWatcher{}, repo)

	rec := do(s, http.MethodGet, "/v1/entries/unsent?limit=2&offset=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp unsentEntriesResp
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Entries, 2)
	// Newest first, skipping the newest
	assert.Equal(t, "Job 3", resp.Entries[0].Title)
	assert.Equal(t, "Job 2", resp.Entries[1].Title)
	assert.Equal(t, paginationMeta{Limit: 2, Offset: 1, Total: 5}, resp.Pagination)

	rec = do(s, http.MethodGet, "/v1/entries/unsent?offset=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Entries)
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestApiServer(t, &fakeWatcher{}, nil)

	rec := do(s, http.MethodDelete, "/v1/feeds", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
