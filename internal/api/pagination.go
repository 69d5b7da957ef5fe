package api

import (
	"net/http"
	"strconv"
)

// paginationMeta holds pagination metadata for API responses.
type paginationMeta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// parsePaginationParams parses pagination parameters from an HTTP request.
// Supports offset-based pagination (?offset=20&limit=10).
func parsePaginationParams(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	query := r.URL.Query()

	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}

	offset, _ := strconv.Atoi(query.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

// page returns the window of items selected by limit and offset along with
// its metadata.
func page[T any](items []T, limit, offset int) ([]T, paginationMeta) {
	meta := paginationMeta{Limit: limit, Offset: offset, Total: len(items)}
	if offset >= len(items) {
		return []T{}, meta
	}

	return items[offset:min(offset+limit, len(items))], meta
}
