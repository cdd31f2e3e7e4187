package query

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/wesm/chatarchive/internal/tags"
)

// DuckDBEngine implements Engine with DuckDB reading the SQLite file through
// its sqlite extension. Aggregations (user stats, leaderboard, tag counts)
// run in DuckDB; Search is delegated to a SQLiteEngine on the same file so
// LIKE semantics and tie-breaks are identical across engines.
type DuckDBEngine struct {
	db           *sql.DB
	sqlitePath   string
	sqliteEngine *SQLiteEngine
}

// NewDuckDBEngine creates a DuckDB engine over the SQLite database at
// sqlitePath. sqliteDB is a direct connection to the same file, used for
// Search.
func NewDuckDBEngine(sqlitePath string, sqliteDB *sql.DB, opts ...SQLiteOption) (*DuckDBEngine, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	// Session settings and ATTACH are per connection.
	db.SetMaxOpenConns(1)

	threads := runtime.GOMAXPROCS(0)
	if _, err := db.Exec(fmt.Sprintf("SET threads = %d", threads)); err != nil {
		db.Close()
		return nil, fmt.Errorf("set threads: %w", err)
	}

	if _, err := db.Exec("INSTALL sqlite; LOAD sqlite;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("load sqlite extension: %w", err)
	}

	escapedPath := strings.ReplaceAll(sqlitePath, "'", "''")
	attachSQL := fmt.Sprintf("ATTACH '%s' AS sqlite_db (TYPE sqlite, READ_ONLY)", escapedPath)
	if _, err := db.Exec(attachSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("attach sqlite database: %w", err)
	}

	return &DuckDBEngine{
		db:           db,
		sqlitePath:   sqlitePath,
		sqliteEngine: NewSQLiteEngine(sqliteDB, opts...),
	}, nil
}

// Close releases DuckDB resources. The SQLite connection is owned by the
// caller.
func (e *DuckDBEngine) Close() error {
	return e.db.Close()
}

// Search implements Engine by delegating to SQLite.
func (e *DuckDBEngine) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	return e.sqliteEngine.Search(ctx, p)
}

// UserStats implements Engine.
func (e *DuckDBEngine) UserStats(ctx context.Context, email string) (*UserStats, error) {
	return userStatsShared(ctx, e.db, duckDialect, email, e.sqliteEngine.hasTagsColumn(ctx))
}

// Leaderboard implements Engine.
func (e *DuckDBEngine) Leaderboard(ctx context.Context) ([]UserStats, error) {
	return leaderboardShared(ctx, e.db, duckDialect, e.sqliteEngine.hasTagsColumn(ctx))
}

// TagCounts implements Engine.
func (e *DuckDBEngine) TagCounts(ctx context.Context) (map[tags.Tag]int64, error) {
	return tagCountsShared(ctx, e.db, duckDialect, e.sqliteEngine.hasTagsColumn(ctx))
}
