package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/virtuaplant-core/internal/audit"
)

// ListResponse wraps a page of history records.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func (s *Server) handleTagHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "history is not configured")
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	recs, err := s.history.TagHistory(r.Context(), limit)
	if err != nil {
		s.logger.Error("tag history query failed", "error", err)
		writeInternalError(w, "querying tag history")
		return
	}
	writeJSON(w, http.StatusOK, newList(recs))
}

func (s *Server) handleFillHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "history is not configured")
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	recs, err := s.history.Fills(r.Context(), limit)
	if err != nil {
		s.logger.Error("fill history query failed", "error", err)
		writeInternalError(w, "querying fill history")
		return
	}
	writeJSON(w, http.StatusOK, newList(recs))
}

// handleWriteHistory lists audited tag writes, filtered by ?tag= and ?source=.
func (s *Server) handleWriteHistory(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeUnavailable(w, "write audit is not configured")
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	offset := 0
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		offset = n
	}
	source := q.Get("source")
	if source != "" && source != audit.SourceAPI && source != audit.SourceMQTT {
		writeBadRequest(w, "source must be api or mqtt")
		return
	}

	res, err := s.audit.List(r.Context(), audit.Filter{
		Tag:    q.Get("tag"),
		Source: source,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("write history query failed", "error", err)
		writeInternalError(w, "querying write history")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parseLimit reads the optional limit query parameter. Zero or absent means
// the repository default.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeBadRequest(w, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

// newList keeps an empty result encoding as [] rather than null.
func newList[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}
