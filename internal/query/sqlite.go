package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/wesm/chatarchive/internal/tags"
)

// SQLiteEngine implements Engine using direct SQLite queries.
type SQLiteEngine struct {
	db *sql.DB

	defaultLimit int
	maxLimit     int

	// Tags column availability cache. Only successful checks are cached;
	// errors cause a retry on the next call.
	tagsMu      sync.Mutex
	tagsResult  bool
	tagsChecked bool
}

// SQLiteOption configures a SQLiteEngine.
type SQLiteOption func(*SQLiteEngine)

// WithPageSizes sets the default and maximum page size used when
// normalizing search parameters.
func WithPageSizes(defaultLimit, maxLimit int) SQLiteOption {
	return func(e *SQLiteEngine) {
		e.defaultLimit = defaultLimit
		e.maxLimit = maxLimit
	}
}

// NewSQLiteEngine creates a new SQLite-backed query engine. The engine does
// not own db.
func NewSQLiteEngine(db *sql.DB, opts ...SQLiteOption) *SQLiteEngine {
	e := &SQLiteEngine{db: db, defaultLimit: DefaultPageSize, maxLimit: MaxPageSize}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Close is a no-op for SQLiteEngine since it doesn't own the connection.
func (e *SQLiteEngine) Close() error {
	return nil
}

// hasTagsColumn reports whether messages.tags exists. Databases imported
// but never migrated lack it; they behave as if every row were untagged.
func (e *SQLiteEngine) hasTagsColumn(ctx context.Context) bool {
	e.tagsMu.Lock()
	defer e.tagsMu.Unlock()

	if e.tagsChecked {
		return e.tagsResult
	}

	var count int
	err := e.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM pragma_table_info('messages') WHERE name = 'tags'
	`).Scan(&count)
	if err != nil {
		return false
	}

	e.tagsResult = count > 0
	e.tagsChecked = true
	return e.tagsResult
}

// escapeLike escapes LIKE wildcards so the query matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// normalizedTagsExpr wraps the trimmed tags column in commas with single
// spaces around separators removed, so a tag T is present exactly when ',T,'
// occurs in it. This is the SQL form of tags.Has.
const normalizedTagsExpr = `(',' || REPLACE(REPLACE(TRIM(COALESCE(tags, '')), ', ', ','), ' ,', ',') || ',')`

// buildSearchWhere returns the WHERE clause (including the keyword, or empty)
// and its arguments.
func buildSearchWhere(p SearchParams, withTags bool) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if p.Query != "" {
		pattern := "%" + escapeLike(p.Query) + "%"
		var or []string
		if p.Scope == ScopeCreator || p.Scope == ScopeBoth {
			or = append(or, `creator_name LIKE ? ESCAPE '\'`)
			args = append(args, pattern)
		}
		if p.Scope == ScopeText || p.Scope == ScopeBoth {
			or = append(or, `text LIKE ? ESCAPE '\'`)
			args = append(args, pattern)
		}
		conditions = append(conditions, "("+strings.Join(or, " OR ")+")")
	}

	if len(p.Tags) > 0 {
		if !withTags {
			conditions = append(conditions, "0")
		} else {
			or := make([]string, 0, len(p.Tags))
			for _, t := range p.Tags {
				or = append(or, "instr("+normalizedTagsExpr+", ?) > 0")
				args = append(args, ","+string(t)+",")
			}
			conditions = append(conditions, "("+strings.Join(or, " OR ")+")")
		}
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func orderClause(s SortOrder) string {
	if s == SortDateAsc {
		return "ORDER BY created_timestamp ASC, message_id ASC"
	}
	return "ORDER BY created_timestamp DESC, message_id DESC"
}

// Search implements Engine.
func (e *SQLiteEngine) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	p = p.Normalize(e.defaultLimit, e.maxLimit)
	withTags := e.hasTagsColumn(ctx)
	where, args := buildSearchWhere(p, withTags)

	var total int64
	countSQL := "SELECT COUNT(*) FROM messages " + where
	if err := e.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	tagsCol := "''"
	if withTags {
		tagsCol = "COALESCE(tags, '')"
	}
	dataSQL := fmt.Sprintf(`
		SELECT id, message_id, creator_name, creator_email, creator_user_type,
			created_date, created_timestamp, text, topic_id, %s
		FROM messages
		%s
		%s
		LIMIT ? OFFSET ?
	`, tagsCol, where, orderClause(p.Sort))

	rows, err := e.db.QueryContext(ctx, dataSQL, append(args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]Message, 0, p.Limit)
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID, &m.MessageID, &m.CreatorName, &m.CreatorEmail, &m.CreatorUserType,
			&m.CreatedDate, &m.CreatedTimestamp, &m.Text, &m.TopicID, &m.Tags,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}

	return &SearchResult{
		Messages:   msgs,
		Pagination: NewPagination(p.Page, p.Limit, total),
	}, nil
}

// UserStats implements Engine.
func (e *SQLiteEngine) UserStats(ctx context.Context, email string) (*UserStats, error) {
	return userStatsShared(ctx, e.db, sqliteDialect, email, e.hasTagsColumn(ctx))
}

// Leaderboard implements Engine.
func (e *SQLiteEngine) Leaderboard(ctx context.Context) ([]UserStats, error) {
	return leaderboardShared(ctx, e.db, sqliteDialect, e.hasTagsColumn(ctx))
}

// TagCounts implements Engine.
func (e *SQLiteEngine) TagCounts(ctx context.Context) (map[tags.Tag]int64, error) {
	return tagCountsShared(ctx, e.db, sqliteDialect, e.hasTagsColumn(ctx))
}
