package query

import (
	"strconv"
	"strings"

	"github.com/wesm/chatarchive/internal/tags"
)

// SearchScope selects which columns a text query is matched against.
type SearchScope string

const (
	ScopeBoth    SearchScope = "both"
	ScopeCreator SearchScope = "creator"
	ScopeText    SearchScope = "text"
)

// SortOrder orders search results by timestamp.
type SortOrder string

const (
	SortDateDesc SortOrder = "date_desc"
	SortDateAsc  SortOrder = "date_asc"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Message is a row as returned to clients. JSON names follow the column
// names so exported rows and API rows look the same.
type Message struct {
	ID               int64  `json:"id"`
	MessageID        string `json:"message_id"`
	CreatorName      string `json:"creator_name"`
	CreatorEmail     string `json:"creator_email"`
	CreatorUserType  string `json:"creator_user_type"`
	CreatedDate      string `json:"created_date"`
	CreatedTimestamp int64  `json:"created_timestamp"`
	Text             string `json:"text"`
	TopicID          string `json:"topic_id"`
	Tags             string `json:"tags"`
}

// TagList splits the stored tags column.
func (m Message) TagList() []tags.Tag {
	return tags.Parse(m.Tags)
}

// SearchParams describes one page of a message search.
type SearchParams struct {
	Query string
	Scope SearchScope
	Sort  SortOrder
	Tags  []tags.Tag // OR-filter; empty means no tag filter
	Page  int
	Limit int
}

// Normalize fills defaults and clamps out-of-range values. defaultLimit
// and maxLimit fall back to the package defaults when non-positive.
func (p SearchParams) Normalize(defaultLimit, maxLimit int) SearchParams {
	if defaultLimit <= 0 {
		defaultLimit = DefaultPageSize
	}
	if maxLimit <= 0 {
		maxLimit = MaxPageSize
	}
	p.Query = strings.TrimSpace(p.Query)
	switch p.Scope {
	case ScopeBoth, ScopeCreator, ScopeText:
	default:
		p.Scope = ScopeBoth
	}
	switch p.Sort {
	case SortDateAsc, SortDateDesc:
	default:
		p.Sort = SortDateDesc
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// Offset is the row offset of the page. Normalize first.
func (p SearchParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// ParseIntDefault parses s as a positive integer, returning def for empty,
// malformed or non-positive input.
func ParseIntDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	return n
}

// Pagination describes the page returned by Search.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NewPagination computes the page count for total rows.
func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// SearchResult is one page of messages plus the total match count.
type SearchResult struct {
	Messages   []Message  `json:"messages"`
	Pagination Pagination `json:"pagination"`
}

// UserStats is the per-user breakdown shared by the profile view and the
// leaderboard. MessagesByTag has one entry per vocabulary tag.
type UserStats struct {
	Email          string           `json:"email"`
	Name           string           `json:"name"`
	TotalMessages  int64            `json:"totalMessages"`
	MessagesByYear map[string]int64 `json:"messagesByYear"`
	MessagesByTag  map[string]int64 `json:"messagesByTag"`
}

func newUserStats(email, name string) *UserStats {
	byTag := make(map[string]int64, len(tags.All()))
	for _, t := range tags.All() {
		byTag[string(t)] = 0
	}
	return &UserStats{
		Email:          email,
		Name:           name,
		MessagesByYear: make(map[string]int64),
		MessagesByTag:  byTag,
	}
}

// YearTotal sums the year buckets. It always equals TotalMessages.
func (u *UserStats) YearTotal() int64 {
	var n int64
	for _, c := range u.MessagesByYear {
		n += c
	}
	return n
}

// Years returns the year keys in ascending order.
func (u *UserStats) Years() []string {
	return sortedKeys(u.MessagesByYear)
}
