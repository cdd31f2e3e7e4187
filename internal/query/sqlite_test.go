package query

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wesm/chatarchive/internal/store"
	"github.com/wesm/chatarchive/internal/tags"
	"github.com/wesm/chatarchive/internal/testutil"
)

func ms(year int, month time.Month, day int) int64 {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC).UnixMilli()
}

func newTestEngine(t *testing.T, msgs ...store.Message) *SQLiteEngine {
	t.Helper()
	st := testutil.NewTestStore(t)
	testutil.SeedMessages(t, st, msgs...)
	return NewSQLiteEngine(st.DB())
}

func messageIDs(msgs []Message) []string {
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.MessageID)
	}
	return ids
}

func TestSearch_UnfilteredReturnsEveryRowInOrder(t *testing.T) {
	e := newTestEngine(t,
		testutil.NewMessage("c").WithTimestamp(200).Build(),
		testutil.NewMessage("a").WithTimestamp(100).Build(),
		testutil.NewMessage("b").WithTimestamp(200).Build(),
		testutil.NewMessage("d").WithTimestamp(300).Build(),
	)
	ctx := context.Background()

	res, err := e.Search(ctx, SearchParams{Sort: SortDateAsc})
	testutil.MustNoErr(t, err, "Search asc")
	testutil.AssertStrings(t, messageIDs(res.Messages), "a", "b", "c", "d")
	if res.Pagination.Total != 4 {
		t.Errorf("total = %d, want 4", res.Pagination.Total)
	}

	res, err = e.Search(ctx, SearchParams{})
	testutil.MustNoErr(t, err, "Search default")
	testutil.AssertStrings(t, messageIDs(res.Messages), "d", "c", "b", "a")
}

func TestSearch_Pagination(t *testing.T) {
	var msgs []store.Message
	for i := 0; i < 23; i++ {
		msgs = append(msgs, testutil.NewMessage(fmt.Sprintf("m%02d", i)).WithTimestamp(int64(i)).Build())
	}
	e := newTestEngine(t, msgs...)
	ctx := context.Background()

	seen := map[string]bool{}
	for page := 1; page <= 3; page++ {
		res, err := e.Search(ctx, SearchParams{Page: page, Limit: 10, Sort: SortDateAsc})
		testutil.MustNoErr(t, err, "Search")
		if len(res.Messages) == 0 {
			t.Fatalf("page %d empty with total %d", page, res.Pagination.Total)
		}
		for _, m := range res.Messages {
			if seen[m.MessageID] {
				t.Errorf("message %s on more than one page", m.MessageID)
			}
			seen[m.MessageID] = true
		}
		if res.Pagination.TotalPages != 3 {
			t.Errorf("totalPages = %d, want 3", res.Pagination.TotalPages)
		}
	}
	if len(seen) != 23 {
		t.Errorf("saw %d messages across pages, want 23", len(seen))
	}

	res, err := e.Search(ctx, SearchParams{Page: 4, Limit: 10})
	testutil.MustNoErr(t, err, "Search past end")
	if len(res.Messages) != 0 || res.Pagination.Total != 23 {
		t.Errorf("past end: %d messages, total %d; want 0, 23", len(res.Messages), res.Pagination.Total)
	}
}

func TestSearch_DefaultsMalformedParams(t *testing.T) {
	e := newTestEngine(t, testutil.NewMessage("1").Build())
	res, err := e.Search(context.Background(), SearchParams{Page: -3, Limit: 0, Scope: "bogus", Sort: "sideways"})
	testutil.MustNoErr(t, err, "Search")
	want := Pagination{Page: 1, Limit: DefaultPageSize, Total: 1, TotalPages: 1}
	if diff := cmp.Diff(want, res.Pagination); diff != "" {
		t.Errorf("pagination mismatch (-want +got):\n%s", diff)
	}
}

func TestSearch_TextQuery(t *testing.T) {
	e := newTestEngine(t,
		testutil.NewMessage("1").WithText("My gout is playing up").Build(),
		testutil.NewMessage("2").WithText("GOUT again").Build(),
		testutil.NewMessage("3").WithText("sauerkraut and gouty toes").Build(),
		testutil.NewMessage("4").WithText("nothing to see").Build(),
		testutil.NewMessage("5").WithCreator("Gouty McGee", "g@example.com").WithText("hello").Build(),
	)
	res, err := e.Search(context.Background(), SearchParams{Query: "gout", Scope: ScopeText, Page: 1, Limit: 50})
	testutil.MustNoErr(t, err, "Search")
	if res.Pagination.Total != 3 || len(res.Messages) != 3 {
		t.Errorf("total %d, page %d; want 3 and 3", res.Pagination.Total, len(res.Messages))
	}
}

func TestSearch_Scopes(t *testing.T) {
	e := newTestEngine(t,
		testutil.NewMessage("1").WithCreator("Bob Jones", "bob@example.com").WithText("hi there").Build(),
		testutil.NewMessage("2").WithCreator("Alice", "alice@example.com").WithText("ask bob").Build(),
	)
	ctx := context.Background()
	tests := []struct {
		scope SearchScope
		want  []string
	}{
		{ScopeCreator, []string{"1"}},
		{ScopeText, []string{"2"}},
		{ScopeBoth, []string{"1", "2"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.scope), func(t *testing.T) {
			res, err := e.Search(ctx, SearchParams{Query: "BOB", Scope: tt.scope, Sort: SortDateAsc})
			testutil.MustNoErr(t, err, "Search")
			testutil.AssertStrings(t, messageIDs(res.Messages), tt.want...)
		})
	}
}

func TestSearch_LikeWildcardsAreLiteral(t *testing.T) {
	e := newTestEngine(t,
		testutil.NewMessage("1").WithText("100% sure").Build(),
		testutil.NewMessage("2").WithText("1000 sure").Build(),
		testutil.NewMessage("3").WithText("snake_case").Build(),
		testutil.NewMessage("4").WithText("snakeXcase").Build(),
	)
	ctx := context.Background()
	for q, want := range map[string]string{"0%": "1", "e_c": "3"} {
		res, err := e.Search(ctx, SearchParams{Query: q, Scope: ScopeText})
		testutil.MustNoErr(t, err, "Search")
		testutil.AssertStrings(t, messageIDs(res.Messages), want)
	}
}

func TestSearch_TagFilterIsExactToken(t *testing.T) {
	e := newTestEngine(t,
		testutil.NewMessage("only").WithTimestamp(1).WithTags("Gay").Build(),
		testutil.NewMessage("bar").WithTimestamp(2).WithTags("Gay Bar").Build(),
		testutil.NewMessage("last").WithTimestamp(3).WithTags("Funny, Gay").Build(),
		testutil.NewMessage("first").WithTimestamp(4).WithTags("Gay,Funny").Build(),
		testutil.NewMessage("prefix").WithTimestamp(5).WithTags("Gaynor, Sport").Build(),
		testutil.NewMessage("none").WithTimestamp(6).Build(),
	)
	ctx := context.Background()

	res, err := e.Search(ctx, SearchParams{Tags: []tags.Tag{tags.Gay}, Sort: SortDateAsc})
	testutil.MustNoErr(t, err, "Search Gay")
	testutil.AssertStrings(t, messageIDs(res.Messages), "only", "last", "first")

	res, err = e.Search(ctx, SearchParams{Tags: []tags.Tag{tags.Funny, tags.Sport}, Sort: SortDateAsc})
	testutil.MustNoErr(t, err, "Search Funny|Sport")
	testutil.AssertStrings(t, messageIDs(res.Messages), "last", "first", "prefix")

	res, err = e.Search(ctx, SearchParams{Tags: []tags.Tag{"Nonexistent"}})
	testutil.MustNoErr(t, err, "Search unknown")
	if res.Pagination.Total != 0 {
		t.Errorf("unknown tag matched %d rows", res.Pagination.Total)
	}
}

func TestSearch_TagFilterMatchesHelper(t *testing.T) {
	columns := []string{"", "Gay", "Gay Bar", "Funny, Gay", " Gay ,Funny", "Gayish", "Poor Grammar, Gay Bar"}
	var msgs []store.Message
	for i, c := range columns {
		msgs = append(msgs, testutil.NewMessage(fmt.Sprintf("m%d", i)).WithTimestamp(int64(i)).WithTags(c).Build())
	}
	e := newTestEngine(t, msgs...)

	res, err := e.Search(context.Background(), SearchParams{Tags: []tags.Tag{tags.Gay}, Sort: SortDateAsc, Limit: 100})
	testutil.MustNoErr(t, err, "Search")
	got := map[string]bool{}
	for _, m := range res.Messages {
		got[m.Tags] = true
	}
	for _, c := range columns {
		if want := tags.Has(c, tags.Gay); got[c] != want {
			t.Errorf("column %q: SQL match %v, helper %v", c, got[c], want)
		}
	}
}

func TestUserStats(t *testing.T) {
	e := newTestEngine(t,
		testutil.NewMessage("1").WithCreator("Alice", "alice@example.com").WithTimestamp(ms(2016, 4, 1)).WithTags("Funny, Sport").Build(),
		testutil.NewMessage("2").WithCreator("Alice", "alice@example.com").WithTimestamp(ms(2016, 12, 31)).WithTags("Funny").Build(),
		testutil.NewMessage("3").WithCreator("Ally", "alice@example.com").WithTimestamp(ms(2019, 1, 1)).WithTags("Gay Bar, Bogus").Build(),
		testutil.NewMessage("4").WithCreator("Bob", "bob@example.com").WithTimestamp(ms(2019, 1, 1)).WithTags("Funny").Build(),
	)

	u, err := e.UserStats(context.Background(), "alice@example.com")
	testutil.MustNoErr(t, err, "UserStats")

	if u.Email != "alice@example.com" || u.Name != "Alice" || u.TotalMessages != 3 {
		t.Errorf("user = %s/%s/%d", u.Email, u.Name, u.TotalMessages)
	}
	if diff := cmp.Diff(map[string]int64{"2016": 2, "2019": 1}, u.MessagesByYear); diff != "" {
		t.Errorf("years mismatch (-want +got):\n%s", diff)
	}
	if u.YearTotal() != u.TotalMessages {
		t.Errorf("year sum %d != total %d", u.YearTotal(), u.TotalMessages)
	}
	if len(u.MessagesByTag) != len(tags.All()) {
		t.Errorf("tag buckets = %d, want %d", len(u.MessagesByTag), len(tags.All()))
	}
	if u.MessagesByTag["Funny"] != 2 || u.MessagesByTag["Sport"] != 1 || u.MessagesByTag["Gay"] != 0 {
		t.Errorf("tag counts = %v", u.MessagesByTag)
	}
	if _, ok := u.MessagesByTag["Bogus"]; ok {
		t.Error("unknown tag should not get a bucket")
	}
}

func TestUserStats_NotFound(t *testing.T) {
	e := newTestEngine(t, testutil.NewMessage("1").Build())
	_, err := e.UserStats(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}

func TestUserStats_ZeroTimestampIs1970(t *testing.T) {
	e := newTestEngine(t, testutil.NewMessage("1").WithTimestamp(0).Build())
	u, err := e.UserStats(context.Background(), "alice@example.com")
	testutil.MustNoErr(t, err, "UserStats")
	if u.MessagesByYear["1970"] != 1 {
		t.Errorf("years = %v, want 1970:1", u.MessagesByYear)
	}
}

func TestLeaderboard(t *testing.T) {
	e := newTestEngine(t,
		testutil.NewMessage("1").WithCreator("Bob", "bob@example.com").WithTimestamp(ms(2017, 1, 1)).Build(),
		testutil.NewMessage("2").WithCreator("Alice", "alice@example.com").WithTimestamp(ms(2016, 1, 1)).WithTags("Funny").Build(),
		testutil.NewMessage("3").WithCreator("Alice", "alice@example.com").WithTimestamp(ms(2017, 1, 1)).Build(),
		testutil.NewMessage("4").WithCreator("Ally", "alice@example.com").WithTimestamp(ms(2018, 1, 1)).Build(),
		testutil.NewMessage("5").WithCreator("Carol", "carol@example.com").WithTimestamp(ms(2018, 1, 1)).Build(),
	)

	rows, err := e.Leaderboard(context.Background())
	testutil.MustNoErr(t, err, "Leaderboard")

	var keys []string
	var sum int64
	for i := range rows {
		r := &rows[i]
		keys = append(keys, r.Email+"/"+r.Name)
		sum += r.TotalMessages
		if r.YearTotal() != r.TotalMessages {
			t.Errorf("%s: year sum %d != total %d", r.Email, r.YearTotal(), r.TotalMessages)
		}
		if len(r.MessagesByTag) != len(tags.All()) {
			t.Errorf("%s: %d tag buckets", r.Email, len(r.MessagesByTag))
		}
	}
	testutil.AssertStrings(t, keys,
		"alice@example.com/Alice",
		"alice@example.com/Ally",
		"bob@example.com/Bob",
		"carol@example.com/Carol",
	)
	if sum != 5 {
		t.Errorf("sum of totals = %d, want 5", sum)
	}
	if rows[0].MessagesByTag["Funny"] != 1 {
		t.Errorf("Alice Funny = %d, want 1", rows[0].MessagesByTag["Funny"])
	}
}

func TestTagCounts(t *testing.T) {
	e := newTestEngine(t,
		testutil.NewMessage("1").WithTags("Funny, Sport").Build(),
		testutil.NewMessage("2").WithTags("Funny").Build(),
		testutil.NewMessage("3").WithTags("Funny").Build(),
		testutil.NewMessage("4").Build(),
	)
	counts, err := e.TagCounts(context.Background())
	testutil.MustNoErr(t, err, "TagCounts")
	if counts[tags.Funny] != 3 || counts[tags.Sport] != 1 || counts[tags.Music] != 0 {
		t.Errorf("counts = %v", counts)
	}
	if len(counts) != len(tags.All()) {
		t.Errorf("len(counts) = %d", len(counts))
	}
}

func TestEngine_DatabaseWithoutTagsColumn(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "old.db"))
	testutil.MustNoErr(t, err, "Open")
	defer st.Close()

	_, err = st.DB().Exec(`
		CREATE TABLE messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id TEXT UNIQUE NOT NULL,
			creator_name TEXT NOT NULL,
			creator_email TEXT NOT NULL,
			creator_user_type TEXT NOT NULL,
			created_date TEXT NOT NULL,
			created_timestamp INTEGER NOT NULL,
			text TEXT NOT NULL,
			topic_id TEXT NOT NULL
		);
		INSERT INTO messages (message_id, creator_name, creator_email, creator_user_type,
			created_date, created_timestamp, text, topic_id)
		VALUES ('1', 'Alice', 'alice@example.com', 'Human', 'x', 0, 'hello', 't');
	`)
	testutil.MustNoErr(t, err, "create old schema")

	e := NewSQLiteEngine(st.DB())
	ctx := context.Background()

	res, err := e.Search(ctx, SearchParams{})
	testutil.MustNoErr(t, err, "Search")
	if len(res.Messages) != 1 || res.Messages[0].Tags != "" {
		t.Errorf("messages = %+v", res.Messages)
	}
	res, err = e.Search(ctx, SearchParams{Tags: []tags.Tag{tags.Funny}})
	testutil.MustNoErr(t, err, "Search tags")
	if res.Pagination.Total != 0 {
		t.Errorf("tag filter on untagged db matched %d", res.Pagination.Total)
	}
	u, err := e.UserStats(ctx, "alice@example.com")
	testutil.MustNoErr(t, err, "UserStats")
	if u.TotalMessages != 1 || u.MessagesByTag["Funny"] != 0 {
		t.Errorf("user = %+v", u)
	}
}

func TestSearch_CancelledContext(t *testing.T) {
	e := newTestEngine(t, testutil.NewMessage("1").Build())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Search(ctx, SearchParams{}); err == nil {
		t.Error("expected error for cancelled context")
	}
}
