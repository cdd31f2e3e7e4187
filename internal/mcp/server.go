// Package mcp exposes the chat archive to MCP clients over stdio.
package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wesm/chatarchive/internal/query"
	"github.com/wesm/chatarchive/internal/store"
)

// Tool name constants.
const (
	ToolSearchMessages = "search_messages"
	ToolGetUserStats   = "get_user_stats"
	ToolGetLeaderboard = "get_leaderboard"
	ToolListTags       = "list_tags"
	ToolGetStats       = "get_stats"
)

// StatsSource supplies corpus totals. *store.Store satisfies it.
type StatsSource interface {
	GetStats() (*store.Stats, error)
}

func withLimit(defaultDesc string) mcp.ToolOption {
	return mcp.WithNumber("limit",
		mcp.Description("Maximum results to return (default "+defaultDesc+")"),
	)
}

// Serve creates an MCP server with archive tools and serves over stdio.
// It blocks until stdin is closed or the context is cancelled.
func Serve(ctx context.Context, engine query.Engine, stats StatsSource, version string) error {
	s := newServer(engine, stats, version)
	stdio := server.NewStdioServer(s)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func newServer(engine query.Engine, stats StatsSource, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"chatarchive",
		version,
		server.WithToolCapabilities(false),
	)

	h := &handlers{engine: engine, stats: stats}

	s.AddTool(searchMessagesTool(), h.searchMessages)
	s.AddTool(getUserStatsTool(), h.getUserStats)
	s.AddTool(getLeaderboardTool(), h.getLeaderboard)
	s.AddTool(listTagsTool(), h.listTags)
	s.AddTool(getStatsTool(), h.getStats)
	return s
}

func searchMessagesTool() mcp.Tool {
	return mcp.NewTool(ToolSearchMessages,
		mcp.WithDescription("Search archived chat messages by case-insensitive substring in the creator name and/or text, optionally filtered to messages carrying any of the given tags. Results are paginated."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("query",
			mcp.Description("Substring to look for (empty matches everything)"),
		),
		mcp.WithString("search_by",
			mcp.Description("Which fields the query matches (default both)"),
			mcp.Enum(string(query.ScopeBoth), string(query.ScopeCreator), string(query.ScopeText)),
		),
		mcp.WithString("sort",
			mcp.Description("Date order (default date_desc)"),
			mcp.Enum(string(query.SortDateDesc), string(query.SortDateAsc)),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags; a message matches when it has any of them (e.g. 'Funny, Sport')"),
		),
		mcp.WithNumber("page",
			mcp.Description("1-based page number (default 1)"),
		),
		withLimit("20"),
	)
}

func getUserStatsTool() mcp.Tool {
	return mcp.NewTool(ToolGetUserStats,
		mcp.WithDescription("Get one participant's message totals: overall, per year, and per tag."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("email",
			mcp.Required(),
			mcp.Description("Participant email address"),
		),
	)
}

func getLeaderboardTool() mcp.Tool {
	return mcp.NewTool(ToolGetLeaderboard,
		mcp.WithDescription("Rank participants by message count, overall or by a single year or tag column."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("sort",
			mcp.Description("Column to rank by: 'total', a year such as '2016', or a tag name (default total)"),
		),
		mcp.WithString("dir",
			mcp.Description("Sort direction (default desc)"),
			mcp.Enum(string(query.Desc), string(query.Asc)),
		),
		withLimit("all"),
	)
}

func listTagsTool() mcp.Tool {
	return mcp.NewTool(ToolListTags,
		mcp.WithDescription("List the tag vocabulary with descriptions and how many messages carry each tag."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func getStatsTool() mcp.Tool {
	return mcp.NewTool(ToolGetStats,
		mcp.WithDescription("Get archive overview: message, participant and topic counts, tagged messages, and date range."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}
