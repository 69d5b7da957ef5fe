// Package api is the admin HTTP API for managing watched feeds.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	v1 "github.com/jdholdren/upwatch/api/feeds/v1"
	upwerrs "github.com/jdholdren/upwatch/internal/errors"
	"github.com/jdholdren/upwatch/internal/serverutil"
	"github.com/jdholdren/upwatch/internal/upwatch"
)

type (
	// Watcher adds feeds and reports the ones being watched.
	Watcher interface {
		AddFeed(ctx context.Context, url string) (upwatch.Feed, error)
		Feeds() []upwatch.Feed
	}

	EntryLister interface {
		UnsentEntries(ctx context.Context) ([]upwatch.Entry, error)
	}

	Server struct {
		*http.Server

		watcher Watcher
		entries EntryLister
	}

	ServerConfig struct {
		Port int
	}
)

func NewServer(config ServerConfig, watcher Watcher, entries EntryLister) *Server {
	r := serverutil.ErrRouter{Router: mux.NewRouter()}

	srvr := Server{
		watcher: watcher,
		entries: entries,
		Server: &http.Server{
			Addr:        fmt.Sprintf(":%d", config.Port),
			ReadTimeout: 5 * time.Second,
			// Adding a feed fetches it before responding.
			WriteTimeout: 30 * time.Second,
			Handler:      handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(r),
		},
	}

	r.Use(serverutil.AccessLogMiddleware) // Log everything
	r.HandleFuncE("/v1/feeds", srvr.postFeeds).Methods(http.MethodPost)
	r.HandleFuncE("/v1/feeds", srvr.getFeeds).Methods(http.MethodGet)
	r.HandleFuncE("/v1/entries/unsent", srvr.getUnsentEntries).Methods(http.MethodGet)

	slog.Debug("configured admin server", "port", config.Port)

	return &srvr
}

func (s Server) postFeeds(w http.ResponseWriter, r *http.Request) error {
	req, err := serverutil.DecodeValid[v1.CreateFeedRequest](r.Body)
	if err != nil {
		return err
	}

	feed, err := s.watcher.AddFeed(r.Context(), req.URL)
	switch {
	case errors.Is(err, upwatch.ErrInvalidFeed):
		return upwerrs.E(err, http.StatusUnprocessableEntity)
	case errors.Is(err, upwatch.ErrConflict):
		return upwerrs.E("feed already exists", http.StatusConflict)
	case err != nil:
		return err
	}

	return serverutil.WriteJSON(w, http.StatusCreated, v1.FeedFrom(feed))
}

func (s Server) getFeeds(w http.ResponseWriter, r *http.Request) error {
	feeds := s.watcher.Feeds()

	resp := v1.ListFeedsResponse{Feeds: make([]v1.Feed, 0, len(feeds))}
	for _, f := range feeds {
		resp.Feeds = append(resp.Feeds, v1.FeedFrom(f))
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}

type unsentEntriesResp struct {
	v1.ListEntriesResponse
	Pagination paginationMeta `json:"pagination"`
}

func (s Server) getUnsentEntries(w http.ResponseWriter, r *http.Request) error {
	entries, err := s.entries.UnsentEntries(r.Context())
	if err != nil {
		return fmt.Errorf("error listing unsent entries: %w", err)
	}

	limit, offset := parsePaginationParams(r, 50, 500)
	window, meta := page(entries, limit, offset)

	resp := unsentEntriesResp{Pagination: meta}
	resp.Entries = make([]v1.Entry, 0, len(window))
	for _, e := range window {
		resp.Entries = append(resp.Entries, v1.EntryFrom(e))
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}
