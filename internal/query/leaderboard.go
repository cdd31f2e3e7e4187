package query

import (
	"regexp"
	"sort"
	"strings"

	"github.com/wesm/chatarchive/internal/tags"
)

// ColumnKind identifies what a leaderboard column counts.
type ColumnKind int

const (
	ColumnTotal ColumnKind = iota
	ColumnYear
	ColumnTag
)

// Direction is a sort direction.
type Direction string

const (
	Desc Direction = "desc"
	Asc  Direction = "asc"
)

// Column is a sortable leaderboard column: the total, one year, or one tag.
type Column struct {
	Kind ColumnKind
	Key  string // year ("2016") or tag name; empty for the total
}

// TotalColumn is the default sort column.
var TotalColumn = Column{Kind: ColumnTotal}

var yearRe = regexp.MustCompile(`^\d{4}$`)

// ParseColumn parses the column names used in query strings: "total", a
// four-digit year, or a vocabulary tag (case-insensitive).
func ParseColumn(s string) (Column, bool) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || strings.EqualFold(s, "total"):
		return TotalColumn, true
	case yearRe.MatchString(s):
		return Column{Kind: ColumnYear, Key: s}, true
	}
	for _, t := range tags.All() {
		if strings.EqualFold(string(t), s) {
			return Column{Kind: ColumnTag, Key: string(t)}, true
		}
	}
	return Column{}, false
}

// String is the inverse of ParseColumn.
func (c Column) String() string {
	if c.Kind == ColumnTotal {
		return "total"
	}
	return c.Key
}

// Value returns the row's numeric value in this column; absent years count
// as zero.
func (c Column) Value(u *UserStats) int64 {
	switch c.Kind {
	case ColumnYear:
		return u.MessagesByYear[c.Key]
	case ColumnTag:
		return u.MessagesByTag[c.Key]
	default:
		return u.TotalMessages
	}
}

// ParseDirection returns Asc for "asc" and Desc otherwise.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Asc)) {
		return Asc
	}
	return Desc
}

// NextSort returns the sort state after the user selects clicked while the
// table is sorted by current/dir: selecting the same column flips the
// direction, a new column starts descending.
func NextSort(current Column, dir Direction, clicked Column) (Column, Direction) {
	if clicked == current {
		if dir == Desc {
			return current, Asc
		}
		return current, Desc
	}
	return clicked, Desc
}

// SortLeaderboard orders rows in place by col. The sort is stable, so ties
// keep the order the rows arrived in.
func SortLeaderboard(rows []UserStats, col Column, dir Direction) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := col.Value(&rows[i]), col.Value(&rows[j])
		if dir == Asc {
			return a < b
		}
		return a > b
	})
}

// LeaderboardYears returns every year present in any row, ascending.
func LeaderboardYears(rows []UserStats) []string {
	all := make(map[string]int64)
	for i := range rows {
		for y, n := range rows[i].MessagesByYear {
			all[y] += n
		}
	}
	return sortedKeys(all)
}
