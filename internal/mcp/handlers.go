package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wesm/chatarchive/internal/query"
	"github.com/wesm/chatarchive/internal/tags"
)

const maxLimit = query.MaxPageSize

type handlers struct {
	engine query.Engine
	stats  StatsSource
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

func (h *handlers) searchMessages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	p := query.SearchParams{
		Query: stringArg(args, "query"),
		Scope: query.SearchScope(stringArg(args, "search_by")),
		Sort:  query.SortOrder(stringArg(args, "sort")),
		Tags:  tags.ParseList(stringArg(args, "tags")),
		Page:  pageArg(args),
		Limit: limitArg(args, "limit", 20),
	}
	if p.Limit == 0 {
		p.Limit = 20
	}

	res, err := h.engine.Search(ctx, p.Normalize(20, maxLimit))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if res.Messages == nil {
		res.Messages = []query.Message{}
	}
	return jsonResult(res)
}

func (h *handlers) getUserStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	email := stringArg(req.GetArguments(), "email")
	if email == "" {
		return mcp.NewToolResultError("email parameter is required"), nil
	}

	u, err := h.engine.UserStats(ctx, email)
	if errors.Is(err, query.ErrUserNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("user not found: %s", email)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("user stats failed: %v", err)), nil
	}
	return jsonResult(u)
}

func (h *handlers) getLeaderboard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	col := query.TotalColumn
	if s := stringArg(args, "sort"); s != "" {
		var ok bool
		if col, ok = query.ParseColumn(s); !ok {
			return mcp.NewToolResultError(fmt.Sprintf("invalid sort column: %s", s)), nil
		}
	}
	dir := query.ParseDirection(stringArg(args, "dir"))

	rows, err := h.engine.Leaderboard(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("leaderboard failed: %v", err)), nil
	}
	if col != query.TotalColumn || dir != query.Desc {
		query.SortLeaderboard(rows, col, dir)
	}
	if n := limitArg(args, "limit", 0); n > 0 && n < len(rows) {
		rows = rows[:n]
	}
	if rows == nil {
		rows = []query.UserStats{}
	}
	return jsonResult(rows)
}

type tagEntry struct {
	Tag         string `json:"tag"`
	Description string `json:"description"`
	Computed    bool   `json:"computed,omitempty"`
	Count       int64  `json:"count"`
}

func (h *handlers) listTags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	counts, err := h.engine.TagCounts(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("tag counts failed: %v", err)), nil
	}
	out := make([]tagEntry, 0, len(tags.Infos()))
	for _, info := range tags.Infos() {
		out = append(out, tagEntry{
			Tag:         string(info.Tag),
			Description: info.Description,
			Computed:    info.Computed,
			Count:       counts[info.Tag],
		})
	}
	return jsonResult(out)
}

func (h *handlers) getStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.stats == nil {
		return mcp.NewToolResultError("statistics not available"), nil
	}
	st, err := h.stats.GetStats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stats failed: %v", err)), nil
	}

	resp := struct {
		Messages int64  `json:"messages"`
		Users    int64  `json:"users"`
		Topics   int64  `json:"topics"`
		Tagged   int64  `json:"tagged"`
		Earliest string `json:"earliest,omitempty"`
		Latest   string `json:"latest,omitempty"`
	}{
		Messages: st.MessageCount,
		Users:    st.UserCount,
		Topics:   st.TopicCount,
		Tagged:   st.TaggedCount,
	}
	if st.MessageCount > 0 {
		resp.Earliest = time.UnixMilli(st.EarliestMillis).UTC().Format(time.RFC3339)
		resp.Latest = time.UnixMilli(st.LatestMillis).UTC().Format(time.RFC3339)
	}
	return jsonResult(resp)
}

// pageArg reads the 1-based page number; anything unusable means page 1.
func pageArg(args map[string]any) int {
	v, ok := args["page"].(float64)
	if !ok || math.IsNaN(v) || v < 1 || v > math.MaxInt32 {
		return 1
	}
	return int(v)
}

// limitArg extracts a non-negative integer from a map, with a default.
// JSON numbers arrive as float64. Clamps to maxLimit.
func limitArg(args map[string]any, key string, def int) int {
	v, ok := args[key].(float64)
	if !ok {
		return def
	}
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if math.IsInf(v, 1) || v > float64(maxLimit) {
		return maxLimit
	}
	return int(v)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
