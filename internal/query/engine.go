package query

import (
	"context"
	"errors"

	"github.com/wesm/chatarchive/internal/tags"
)

// ErrUserNotFound is returned by UserStats when no message has the email.
var ErrUserNotFound = errors.New("user not found")

// Engine provides the read-side queries over the archive.
// Implementations:
//   - SQLiteEngine: direct SQLite queries
//   - DuckDBEngine: DuckDB over the SQLite file for the aggregations
type Engine interface {
	// Search returns one page of messages matching p and the total count
	// under the same predicate. p is normalized by the engine.
	Search(ctx context.Context, p SearchParams) (*SearchResult, error)

	// UserStats returns the breakdown for one creator email.
	UserStats(ctx context.Context, email string) (*UserStats, error)

	// Leaderboard returns one row per distinct (email, name), ordered by
	// total descending.
	Leaderboard(ctx context.Context) ([]UserStats, error)

	// TagCounts counts messages per vocabulary tag over the whole corpus.
	TagCounts(ctx context.Context) (map[tags.Tag]int64, error)

	// Close releases any resources held by the engine.
	Close() error
}
