// Package querytest provides shared test doubles for the query.Engine interface.
package querytest

import (
	"context"

	"github.com/wesm/chatarchive/internal/query"
	"github.com/wesm/chatarchive/internal/tags"
)

// MockEngine implements query.Engine for testing. Each method delegates to an
// optional function field; when the field is nil, the canned data is used.
type MockEngine struct {
	Messages    []query.Message
	Users       map[string]*query.UserStats
	Board       []query.UserStats
	TagTotals   map[tags.Tag]int64
	LastSearch  query.SearchParams
	SearchCalls int
	Closed      bool

	SearchFunc      func(context.Context, query.SearchParams) (*query.SearchResult, error)
	UserStatsFunc   func(context.Context, string) (*query.UserStats, error)
	LeaderboardFunc func(context.Context) ([]query.UserStats, error)
	TagCountsFunc   func(context.Context) (map[tags.Tag]int64, error)
}

// Compile-time check.
var _ query.Engine = (*MockEngine)(nil)

// Search records the normalized parameters and pages through Messages
// without filtering.
func (m *MockEngine) Search(ctx context.Context, p query.SearchParams) (*query.SearchResult, error) {
	p = p.Normalize(0, 0)
	m.LastSearch = p
	m.SearchCalls++
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, p)
	}

	total := len(m.Messages)
	start := min(p.Offset(), total)
	end := min(start+p.Limit, total)
	page := append([]query.Message{}, m.Messages[start:end]...)
	return &query.SearchResult{
		Messages:   page,
		Pagination: query.NewPagination(p.Page, p.Limit, int64(total)),
	}, nil
}

func (m *MockEngine) UserStats(ctx context.Context, email string) (*query.UserStats, error) {
	if m.UserStatsFunc != nil {
		return m.UserStatsFunc(ctx, email)
	}
	if u, ok := m.Users[email]; ok {
		return u, nil
	}
	return nil, query.ErrUserNotFound
}

func (m *MockEngine) Leaderboard(ctx context.Context) ([]query.UserStats, error) {
	if m.LeaderboardFunc != nil {
		return m.LeaderboardFunc(ctx)
	}
	return append([]query.UserStats{}, m.Board...), nil
}

func (m *MockEngine) TagCounts(ctx context.Context) (map[tags.Tag]int64, error) {
	if m.TagCountsFunc != nil {
		return m.TagCountsFunc(ctx)
	}
	out := make(map[tags.Tag]int64)
	for _, t := range tags.All() {
		out[t] = m.TagTotals[t]
	}
	return out, nil
}

func (m *MockEngine) Close() error {
	m.Closed = true
	return nil
}

// NewUser builds a UserStats with zero-filled tag buckets for tests.
func NewUser(email, name string, byYear map[string]int64) *query.UserStats {
	u := &query.UserStats{
		Email:          email,
		Name:           name,
		MessagesByYear: map[string]int64{},
		MessagesByTag:  map[string]int64{},
	}
	for _, t := range tags.All() {
		u.MessagesByTag[string(t)] = 0
	}
	for y, n := range byYear {
		u.MessagesByYear[y] = n
		u.TotalMessages += n
	}
	return u
}
