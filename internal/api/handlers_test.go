package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wesm/chatarchive/internal/query"
	"github.com/wesm/chatarchive/internal/query/querytest"
	"github.com/wesm/chatarchive/internal/store"
	"github.com/wesm/chatarchive/internal/tags"
	"github.com/wesm/chatarchive/internal/testutil"
)

func sampleMessages(n int) []query.Message {
	out := make([]query.Message, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, query.Message{
			ID:               int64(i + 1),
			MessageID:        fmt.Sprintf("m%d", i),
			CreatorName:      "Alice",
			CreatorEmail:     "alice@example.com",
			CreatedTimestamp: int64(i),
			Text:             "hello",
		})
	}
	return out
}

func TestHandleSearch(t *testing.T) {
	eng := &querytest.MockEngine{Messages: sampleMessages(3)}
	srv := newTestServer(t, eng)

	w := doGet(t, srv, "/api/messages?query=gout&searchBy=text&sortBy=date_asc&tags=Funny,%20Gay&page=1&limit=50")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Success    bool             `json:"success"`
		Data       []query.Message  `json:"data"`
		Pagination query.Pagination `json:"pagination"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || len(resp.Data) != 3 {
		t.Errorf("success=%v data=%d", resp.Success, len(resp.Data))
	}
	want := query.Pagination{Page: 1, Limit: 50, Total: 3, TotalPages: 1}
	if diff := cmp.Diff(want, resp.Pagination); diff != "" {
		t.Errorf("pagination mismatch (-want +got):\n%s", diff)
	}

	p := eng.LastSearch
	if p.Query != "gout" || p.Scope != query.ScopeText || p.Sort != query.SortDateAsc {
		t.Errorf("params = %+v", p)
	}
	testutil.AssertStrings(t, tags.Strings(p.Tags), "Funny", "Gay")
}

func TestHandleSearch_RepeatedTagParams(t *testing.T) {
	eng := &querytest.MockEngine{}
	srv := newTestServer(t, eng)

	doGet(t, srv, "/api/messages?tags=Funny&tag=Sport&tag=Funny")
	testutil.AssertStrings(t, tags.Strings(eng.LastSearch.Tags), "Funny", "Sport")
}

func TestHandleSearch_MalformedParamsDefault(t *testing.T) {
	eng := &querytest.MockEngine{}
	srv := newTestServer(t, eng)

	w := doGet(t, srv, "/api/messages?page=abc&limit=-4&searchBy=nope&sortBy=up")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	p := eng.LastSearch
	if p.Page != 1 || p.Limit != 50 || p.Scope != query.ScopeBoth || p.Sort != query.SortDateDesc {
		t.Errorf("params = %+v", p)
	}

	doGet(t, srv, "/api/messages?limit=100000")
	if eng.LastSearch.Limit != 500 {
		t.Errorf("limit = %d, want clamp to 500", eng.LastSearch.Limit)
	}
}

func TestHandleSearch_EmptyDataIsArray(t *testing.T) {
	srv := newTestServer(t, &querytest.MockEngine{Messages: sampleMessages(2)})

	w := doGet(t, srv, "/api/messages?page=9")
	resp := decodeResponse(t, w)
	if string(resp["data"]) != "[]" {
		t.Errorf("data = %s, want []", resp["data"])
	}
	var pg query.Pagination
	if err := json.Unmarshal(resp["pagination"], &pg); err != nil {
		t.Fatal(err)
	}
	if pg.Total != 2 {
		t.Errorf("total past end = %d, want 2", pg.Total)
	}
}

func TestHandleSearch_EngineError(t *testing.T) {
	eng := &querytest.MockEngine{
		SearchFunc: func(context.Context, query.SearchParams) (*query.SearchResult, error) {
			return nil, errors.New("disk I/O error: secret path /var/db")
		},
	}
	srv := newTestServer(t, eng)

	w := doGet(t, srv, "/api/messages")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var resp Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Success || resp.Error != "Failed to fetch messages" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHandleSearch_NotInitialized(t *testing.T) {
	eng := &querytest.MockEngine{
		SearchFunc: func(context.Context, query.SearchParams) (*query.SearchResult, error) {
			return nil, fmt.Errorf("count messages: %w", store.ErrNotInitialized)
		},
	}
	srv := newTestServer(t, eng)
	if w := doGet(t, srv, "/api/messages"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestHandleUserStats(t *testing.T) {
	alice := querytest.NewUser("alice+chat@example.com", "Alice", map[string]int64{"2016": 2, "2017": 1})
	eng := &querytest.MockEngine{Users: map[string]*query.UserStats{alice.Email: alice}}
	srv := newTestServer(t, eng)

	w := doGet(t, srv, "/api/users/alice+chat%40example.com")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Success bool            `json:"success"`
		Data    query.UserStats `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(*alice, resp.Data); diff != "" {
		t.Errorf("user mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleUserStats_NotFound(t *testing.T) {
	srv := newTestServer(t, &querytest.MockEngine{})

	w := doGet(t, srv, "/api/users/nobody@example.com")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var resp Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Success || resp.Error != "User not found" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHandleLeaderboard(t *testing.T) {
	board := []query.UserStats{
		*querytest.NewUser("a@example.com", "A", map[string]int64{"2016": 5}),
		*querytest.NewUser("b@example.com", "B", map[string]int64{"2016": 1, "2017": 3}),
		*querytest.NewUser("c@example.com", "C", map[string]int64{"2017": 2}),
	}
	board[2].MessagesByTag["Funny"] = 9

	srv := newTestServer(t, &querytest.MockEngine{Board: board})

	tests := []struct {
		path string
		want []string
	}{
		{"/api/leaderboard", []string{"a@example.com", "b@example.com", "c@example.com"}},
		{"/api/leaderboard?sort=2017", []string{"b@example.com", "c@example.com", "a@example.com"}},
		{"/api/leaderboard?sort=2017&dir=asc", []string{"a@example.com", "c@example.com", "b@example.com"}},
		{"/api/leaderboard?sort=funny", []string{"c@example.com", "a@example.com", "b@example.com"}},
		{"/api/leaderboard?sort=bogus", []string{"a@example.com", "b@example.com", "c@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := doGet(t, srv, tt.path)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			var resp struct {
				Data []query.UserStats `json:"data"`
			}
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			var got []string
			var sum int64
			for _, r := range resp.Data {
				got = append(got, r.Email)
				sum += r.TotalMessages
			}
			testutil.AssertStrings(t, got, tt.want...)
			if sum != 11 {
				t.Errorf("sum of totals = %d, want 11", sum)
			}
		})
	}
}

func TestHandleTags(t *testing.T) {
	eng := &querytest.MockEngine{TagTotals: map[tags.Tag]int64{tags.Funny: 4}}
	srv := newTestServer(t, eng)

	w := doGet(t, srv, "/api/tags")
	var resp struct {
		Data []TagResponse `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != len(tags.All()) {
		t.Fatalf("got %d tags, want %d", len(resp.Data), len(tags.All()))
	}
	for _, tr := range resp.Data {
		if tr.Tag == "Funny" && tr.Count != 4 {
			t.Errorf("Funny count = %d, want 4", tr.Count)
		}
		if tr.Icon == "" || tr.Color == "" {
			t.Errorf("tag %s missing presentation metadata", tr.Tag)
		}
	}
}

type stubStats struct {
	stats *store.Stats
	err   error
}

func (s stubStats) GetStats() (*store.Stats, error) { return s.stats, s.err }

func TestHandleStats(t *testing.T) {
	srv := NewServer(testConfig(), &querytest.MockEngine{}, stubStats{stats: &store.Stats{
		MessageCount: 10, UserCount: 3, TopicCount: 2, TaggedCount: 4, DatabaseSize: 2048,
	}}, testLogger())
	defer srv.rateLimiter.Close()

	w := doGet(t, srv, "/api/stats")
	var resp struct {
		Data StatsResponse `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data.TotalMessages != 10 || resp.Data.TotalUsers != 3 || resp.Data.Engine != "sqlite" {
		t.Errorf("stats = %+v", resp.Data)
	}
}

func TestErrorResponseShape(t *testing.T) {
	srv := newTestServer(t, &querytest.MockEngine{})
	w := doGet(t, srv, "/api/users/nobody@example.com")
	resp := decodeResponse(t, w)
	if string(resp["success"]) != "false" {
		t.Errorf("success = %s", resp["success"])
	}
	if _, ok := resp["error"]; !ok {
		t.Error("missing error field")
	}
	if _, ok := resp["data"]; ok {
		t.Error("error response should not carry data")
	}
}
