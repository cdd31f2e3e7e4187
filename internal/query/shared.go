package query

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/wesm/chatarchive/internal/tags"
)

// dialect captures what differs between direct SQLite and DuckDB reading the
// same file. table is "messages" for SQLite or "sqlite_db.messages" for an
// attached database; yearExpr extracts the UTC year of created_timestamp as
// text.
type dialect struct {
	table    string
	yearExpr string
}

var (
	sqliteDialect = dialect{
		table:    "messages",
		yearExpr: `strftime('%Y', created_timestamp / 1000, 'unixepoch')`,
	}
	duckDialect = dialect{
		table:    "sqlite_db.messages",
		yearExpr: `strftime(epoch_ms(created_timestamp), '%Y')`,
	}
)

type userKey struct{ email, name string }

// statsAccumulator collects grouped rows into UserStats, remembering the
// order in which users were first seen.
type statsAccumulator struct {
	byKey map[userKey]*UserStats
	order []userKey
}

func newStatsAccumulator() *statsAccumulator {
	return &statsAccumulator{byKey: make(map[userKey]*UserStats)}
}

func (a *statsAccumulator) get(k userKey) *UserStats {
	if s, ok := a.byKey[k]; ok {
		return s
	}
	s := newUserStats(k.email, k.name)
	a.byKey[k] = s
	a.order = append(a.order, k)
	return s
}

func (a *statsAccumulator) result() []UserStats {
	out := make([]UserStats, 0, len(a.order))
	for _, k := range a.order {
		out = append(out, *a.byKey[k])
	}
	return out
}

// addTagColumn credits count messages to every known tag in column. A tag
// repeated within one column is counted once.
func addTagColumn(byTag map[string]int64, column string, count int64) {
	seen := make(map[tags.Tag]bool)
	for _, t := range tags.Parse(column) {
		if seen[t] || !tags.Known(t) {
			continue
		}
		seen[t] = true
		byTag[string(t)] += count
	}
}

// leaderboardShared builds the per-(email, name) breakdowns in three grouped
// scans. Rows come back ordered by total descending; equal totals are ordered
// by email then name.
func leaderboardShared(ctx context.Context, db *sql.DB, d dialect, withTags bool) ([]UserStats, error) {
	acc := newStatsAccumulator()

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT creator_email, creator_name, COUNT(*) AS total
		FROM %s
		GROUP BY creator_email, creator_name
		ORDER BY total DESC, creator_email, creator_name
	`, d.table))
	if err != nil {
		return nil, fmt.Errorf("leaderboard totals: %w", err)
	}
	if err := scanGrouped(rows, func(k userKey, _ string, n int64) {
		acc.get(k).TotalMessages = n
	}, false); err != nil {
		return nil, fmt.Errorf("leaderboard totals: %w", err)
	}

	rows, err = db.QueryContext(ctx, fmt.Sprintf(`
		SELECT creator_email, creator_name, %s AS yr, COUNT(*)
		FROM %s
		GROUP BY creator_email, creator_name, yr
	`, d.yearExpr, d.table))
	if err != nil {
		return nil, fmt.Errorf("leaderboard years: %w", err)
	}
	if err := scanGrouped(rows, func(k userKey, year string, n int64) {
		acc.get(k).MessagesByYear[year] += n
	}, true); err != nil {
		return nil, fmt.Errorf("leaderboard years: %w", err)
	}

	if withTags {
		rows, err = db.QueryContext(ctx, fmt.Sprintf(`
			SELECT creator_email, creator_name, tags, COUNT(*)
			FROM %s
			WHERE tags IS NOT NULL AND tags != ''
			GROUP BY creator_email, creator_name, tags
		`, d.table))
		if err != nil {
			return nil, fmt.Errorf("leaderboard tags: %w", err)
		}
		if err := scanGrouped(rows, func(k userKey, column string, n int64) {
			addTagColumn(acc.get(k).MessagesByTag, column, n)
		}, true); err != nil {
			return nil, fmt.Errorf("leaderboard tags: %w", err)
		}
	}

	return acc.result(), nil
}

// scanGrouped reads (email, name, [label,] count) rows and closes rows.
func scanGrouped(rows *sql.Rows, fn func(k userKey, label string, n int64), withLabel bool) error {
	defer rows.Close()
	for rows.Next() {
		var (
			k     userKey
			label sql.NullString
			n     int64
		)
		var err error
		if withLabel {
			err = rows.Scan(&k.email, &k.name, &label, &n)
		} else {
			err = rows.Scan(&k.email, &k.name, &n)
		}
		if err != nil {
			return err
		}
		fn(k, label.String, n)
	}
	return rows.Err()
}

// userStatsShared aggregates every message with the given creator email.
// When the email appears under several names, the most frequent name wins.
func userStatsShared(ctx context.Context, db *sql.DB, d dialect, email string, withTags bool) (*UserStats, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT creator_name, COUNT(*) AS n
		FROM %s
		WHERE creator_email = ?
		GROUP BY creator_name
		ORDER BY n DESC, creator_name
	`, d.table), email)
	if err != nil {
		return nil, fmt.Errorf("user totals: %w", err)
	}

	var stats *UserStats
	for rows.Next() {
		var name string
		var n int64
		if err := rows.Scan(&name, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("user totals: %w", err)
		}
		if stats == nil {
			stats = newUserStats(email, name)
		}
		stats.TotalMessages += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user totals: %w", err)
	}
	if stats == nil {
		return nil, ErrUserNotFound
	}

	rows, err = db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s AS yr, COUNT(*)
		FROM %s
		WHERE creator_email = ?
		GROUP BY yr
	`, d.yearExpr, d.table), email)
	if err != nil {
		return nil, fmt.Errorf("user years: %w", err)
	}
	if err := scanLabelCounts(rows, func(year string, n int64) {
		stats.MessagesByYear[year] += n
	}); err != nil {
		return nil, fmt.Errorf("user years: %w", err)
	}

	if withTags {
		rows, err = db.QueryContext(ctx, fmt.Sprintf(`
			SELECT tags, COUNT(*)
			FROM %s
			WHERE creator_email = ? AND tags IS NOT NULL AND tags != ''
			GROUP BY tags
		`, d.table), email)
		if err != nil {
			return nil, fmt.Errorf("user tags: %w", err)
		}
		if err := scanLabelCounts(rows, func(column string, n int64) {
			addTagColumn(stats.MessagesByTag, column, n)
		}); err != nil {
			return nil, fmt.Errorf("user tags: %w", err)
		}
	}

	return stats, nil
}

// tagCountsShared counts messages per vocabulary tag over the corpus.
func tagCountsShared(ctx context.Context, db *sql.DB, d dialect, withTags bool) (map[tags.Tag]int64, error) {
	byTag := make(map[string]int64)
	if withTags {
		rows, err := db.QueryContext(ctx, fmt.Sprintf(`
			SELECT tags, COUNT(*)
			FROM %s
			WHERE tags IS NOT NULL AND tags != ''
			GROUP BY tags
		`, d.table))
		if err != nil {
			return nil, fmt.Errorf("tag counts: %w", err)
		}
		if err := scanLabelCounts(rows, func(column string, n int64) {
			addTagColumn(byTag, column, n)
		}); err != nil {
			return nil, fmt.Errorf("tag counts: %w", err)
		}
	}

	out := make(map[tags.Tag]int64, len(tags.All()))
	for _, t := range tags.All() {
		out[t] = byTag[string(t)]
	}
	return out, nil
}

func scanLabelCounts(rows *sql.Rows, fn func(label string, n int64)) error {
	defer rows.Close()
	for rows.Next() {
		var label sql.NullString
		var n int64
		if err := rows.Scan(&label, &n); err != nil {
			return err
		}
		fn(label.String, n)
	}
	return rows.Err()
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
