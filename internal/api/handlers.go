package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wesm/chatarchive/internal/query"
	"github.com/wesm/chatarchive/internal/store"
	"github.com/wesm/chatarchive/internal/tags"
)

// Response is the envelope every /api endpoint returns.
type Response struct {
	Success    bool              `json:"success"`
	Data       interface{}       `json:"data,omitempty"`
	Pagination *query.Pagination `json:"pagination,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// StatsResponse represents corpus statistics.
type StatsResponse struct {
	TotalMessages int64  `json:"totalMessages"`
	TotalUsers    int64  `json:"totalUsers"`
	TotalTopics   int64  `json:"totalTopics"`
	TaggedCount   int64  `json:"taggedMessages"`
	Earliest      int64  `json:"earliestTimestamp"`
	Latest        int64  `json:"latestTimestamp"`
	DatabaseSize  int64  `json:"databaseSizeBytes"`
	Engine        string `json:"engine"`
}

// TagResponse describes one vocabulary tag.
type TagResponse struct {
	Tag         string `json:"tag"`
	Label       string `json:"label"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	Count       int64  `json:"count"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: false, Error: message})
}

// queryError maps an engine error to a status code and client message. The
// underlying error is logged, never returned.
func (s *Server) queryError(w http.ResponseWriter, r *http.Request, err error, what string) {
	switch {
	case errors.Is(err, query.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
		return
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
		s.logger.Debug("request cancelled", "path", r.URL.Path)
		return
	case errors.Is(err, store.ErrNotInitialized):
		s.logger.Error(what, "error", err)
		writeError(w, http.StatusServiceUnavailable, "Database not initialized")
		return
	}
	s.logger.Error(what, "error", err, "path", r.URL.Path)
	writeError(w, http.StatusInternalServerError, "Failed to "+what)
}

func (s *Server) requireEngine(w http.ResponseWriter) bool {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "Database not available")
		return false
	}
	return true
}

// searchParamsFromRequest reads query, searchBy, sortBy, tags, page and
// limit. Malformed values fall back to defaults. Tags may come as one
// comma-separated "tags" value, as repeated "tag" values, or both.
func (s *Server) searchParamsFromRequest(q url.Values) query.SearchParams {
	p := query.SearchParams{
		Query: q.Get("query"),
		Scope: query.SearchScope(q.Get("searchBy")),
		Sort:  query.SortOrder(q.Get("sortBy")),
		Tags:  tags.ParseList(strings.Join(append([]string{q.Get("tags")}, q["tag"]...), ",")),
		Page:  query.ParseIntDefault(q.Get("page"), 1),
		Limit: query.ParseIntDefault(q.Get("limit"), s.cfg.Server.DefaultPageSize),
	}
	return p.Normalize(s.cfg.Server.DefaultPageSize, s.cfg.Server.MaxPageSize)
}

// handleSearch serves GET /api/messages.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !s.requireEngine(w) {
		return
	}

	p := s.searchParamsFromRequest(r.URL.Query())
	res, err := s.engine.Search(r.Context(), p)
	if err != nil {
		s.queryError(w, r, err, "fetch messages")
		return
	}

	msgs := res.Messages
	if msgs == nil {
		msgs = []query.Message{}
	}
	writeJSON(w, http.StatusOK, Response{
		Success:    true,
		Data:       msgs,
		Pagination: &res.Pagination,
	})
}

// handleUserStats serves GET /api/users/{email}.
func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireEngine(w) {
		return
	}

	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil || strings.TrimSpace(email) == "" {
		writeError(w, http.StatusBadRequest, "Invalid email")
		return
	}

	stats, err := s.engine.UserStats(r.Context(), email)
	if err != nil {
		s.queryError(w, r, err, "fetch user statistics")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: stats})
}

// leaderboardFromRequest loads the leaderboard and applies ?sort=&dir=.
// Unknown columns leave the default order.
func (s *Server) leaderboardFromRequest(r *http.Request) ([]query.UserStats, query.Column, query.Direction, error) {
	rows, err := s.engine.Leaderboard(r.Context())
	if err != nil {
		return nil, query.TotalColumn, query.Desc, err
	}

	col, ok := query.ParseColumn(r.URL.Query().Get("sort"))
	if !ok {
		col = query.TotalColumn
	}
	dir := query.ParseDirection(r.URL.Query().Get("dir"))
	if col != query.TotalColumn || dir != query.Desc {
		query.SortLeaderboard(rows, col, dir)
	}
	return rows, col, dir, nil
}

// handleLeaderboard serves GET /api/leaderboard.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if !s.requireEngine(w) {
		return
	}

	rows, _, _, err := s.leaderboardFromRequest(r)
	if err != nil {
		s.queryError(w, r, err, "fetch leaderboard statistics")
		return
	}
	if rows == nil {
		rows = []query.UserStats{}
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: rows})
}

// handleTags serves GET /api/tags: the vocabulary with corpus counts.
func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	if !s.requireEngine(w) {
		return
	}

	counts, err := s.engine.TagCounts(r.Context())
	if err != nil {
		s.queryError(w, r, err, "fetch tag counts")
		return
	}

	out := make([]TagResponse, 0, len(tags.Infos()))
	for _, info := range tags.Infos() {
		out = append(out, TagResponse{
			Tag:         string(info.Tag),
			Label:       info.Label,
			Color:       info.Color,
			Icon:        info.Icon,
			Description: info.Description,
			Count:       counts[info.Tag],
		})
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: out})
}

// handleStats serves GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "Database not available")
		return
	}

	stats, err := s.stats.GetStats()
	if err != nil {
		s.queryError(w, r, err, "retrieve statistics")
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: StatsResponse{
		TotalMessages: stats.MessageCount,
		TotalUsers:    stats.UserCount,
		TotalTopics:   stats.TopicCount,
		TaggedCount:   stats.TaggedCount,
		Earliest:      stats.EarliestMillis,
		Latest:        stats.LatestMillis,
		DatabaseSize:  stats.DatabaseSize,
		Engine:        s.cfg.Server.Engine,
	}})
}
