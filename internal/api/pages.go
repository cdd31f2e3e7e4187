package api

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/wesm/chatarchive/internal/query"
	"github.com/wesm/chatarchive/internal/tags"
)

//go:embed templates/*.html
var templateFS embed.FS

type pages struct {
	feed        *template.Template
	user        *template.Template
	leaderboard *template.Template
}

var templateFuncs = template.FuncMap{
	"comma": humanize.Comma,
	"date": func(ms int64) string {
		if ms == 0 {
			return "unknown date"
		}
		return time.UnixMilli(ms).UTC().Format("2 Jan 2006 15:04")
	},
	"tagInfos": func(column string) []tags.Info {
		var out []tags.Info
		for _, t := range tags.Parse(column) {
			if info, ok := tags.Lookup(t); ok {
				out = append(out, info)
			}
		}
		return out
	},
	"userURL": func(email string) string {
		return "/user/" + url.PathEscape(email)
	},
}

func mustLoadPages() *pages {
	load := func(name string) *template.Template {
		return template.Must(template.New(name).Funcs(templateFuncs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name))
	}
	return &pages{
		feed:        load("feed.html"),
		user:        load("user.html"),
		leaderboard: load("leaderboard.html"),
	}
}

// render executes the layout with data into a buffer first so a template
// error still yields a clean 500.
func (s *Server) render(w http.ResponseWriter, t *template.Template, status int, data interface{}) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.Error("render page", "template", t.Name(), "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, t *template.Template, status int, title, message string) {
	s.render(w, t, status, map[string]interface{}{"Title": title, "Error": message})
}

type tagOption struct {
	tags.Info
	Selected bool
}

type feedPage struct {
	Title    string
	Error    string
	Params   query.SearchParams
	Result   *query.SearchResult
	Tags     []tagOption
	PrevURL  string
	NextURL  string
	FirstRow int64
	LastRow  int64
}

func pageURL(q url.Values, page int) string {
	v := url.Values{}
	for k, vs := range q {
		v[k] = vs
	}
	v.Set("page", strconv.Itoa(page))
	return "/?" + v.Encode()
}

// handleFeedPage renders the searchable message feed.
func (s *Server) handleFeedPage(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		s.renderError(w, s.pages.feed, http.StatusServiceUnavailable, "Messages", "Database not available")
		return
	}

	q := r.URL.Query()
	p := s.searchParamsFromRequest(q)
	res, err := s.engine.Search(r.Context(), p)
	if err != nil {
		s.logger.Error("feed page", "error", err)
		s.renderError(w, s.pages.feed, http.StatusInternalServerError, "Messages", "Failed to fetch messages")
		return
	}

	selected := make(map[tags.Tag]bool, len(p.Tags))
	for _, t := range p.Tags {
		selected[t] = true
	}
	opts := make([]tagOption, 0, len(tags.Infos()))
	for _, info := range tags.Infos() {
		opts = append(opts, tagOption{Info: info, Selected: selected[info.Tag]})
	}

	data := feedPage{Title: "Messages", Params: p, Result: res, Tags: opts}
	if n := len(res.Messages); n > 0 {
		data.FirstRow = int64(p.Offset() + 1)
		data.LastRow = int64(p.Offset() + n)
	}
	if p.Page > 1 {
		data.PrevURL = pageURL(q, p.Page-1)
	}
	if p.Page < res.Pagination.TotalPages {
		data.NextURL = pageURL(q, p.Page+1)
	}
	s.render(w, s.pages.feed, http.StatusOK, data)
}

type tagCount struct {
	tags.Info
	Count int64
}

type userPage struct {
	Title string
	Error string
	User  *query.UserStats
	Years []yearCount
	Tags  []tagCount
}

type yearCount struct {
	Year  string
	Count int64
}

// handleUserPage renders one user's profile.
func (s *Server) handleUserPage(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		s.renderError(w, s.pages.user, http.StatusServiceUnavailable, "User", "Database not available")
		return
	}

	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil || email == "" {
		s.renderError(w, s.pages.user, http.StatusBadRequest, "User", "Invalid email")
		return
	}

	u, err := s.engine.UserStats(r.Context(), email)
	if errors.Is(err, query.ErrUserNotFound) {
		s.renderError(w, s.pages.user, http.StatusNotFound, "User", "User not found")
		return
	}
	if err != nil {
		s.logger.Error("user page", "email", email, "error", err)
		s.renderError(w, s.pages.user, http.StatusInternalServerError, "User", "Failed to fetch user statistics")
		return
	}

	data := userPage{Title: u.Name, User: u}
	for _, y := range u.Years() {
		data.Years = append(data.Years, yearCount{Year: y, Count: u.MessagesByYear[y]})
	}
	for _, info := range tags.Infos() {
		if n := u.MessagesByTag[string(info.Tag)]; n > 0 {
			data.Tags = append(data.Tags, tagCount{Info: info, Count: n})
		}
	}
	s.render(w, s.pages.user, http.StatusOK, data)
}

type boardHeader struct {
	Label  string
	Icon   string
	URL    string
	Active bool
	Dir    query.Direction
}

type boardRow struct {
	Rank  int
	User  query.UserStats
	Cells []int64
}

type leaderboardPage struct {
	Title   string
	Error   string
	Headers []boardHeader
	Rows    []boardRow
}

// handleLeaderboardPage renders the sortable leaderboard. Column headers
// link to the next sort state for that column.
func (s *Server) handleLeaderboardPage(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		s.renderError(w, s.pages.leaderboard, http.StatusServiceUnavailable, "Leaderboard", "Database not available")
		return
	}

	rows, col, dir, err := s.leaderboardFromRequest(r)
	if err != nil {
		s.logger.Error("leaderboard page", "error", err)
		s.renderError(w, s.pages.leaderboard, http.StatusInternalServerError, "Leaderboard", "Failed to fetch leaderboard statistics")
		return
	}

	cols := []query.Column{query.TotalColumn}
	for _, y := range query.LeaderboardYears(rows) {
		cols = append(cols, query.Column{Kind: query.ColumnYear, Key: y})
	}
	for _, t := range tags.All() {
		cols = append(cols, query.Column{Kind: query.ColumnTag, Key: string(t)})
	}

	data := leaderboardPage{Title: "Leaderboard"}
	for _, c := range cols {
		next, nextDir := query.NextSort(col, dir, c)
		h := boardHeader{
			Label:  c.String(),
			URL:    "/leaderboard?" + url.Values{"sort": {next.String()}, "dir": {string(nextDir)}}.Encode(),
			Active: c == col,
			Dir:    dir,
		}
		if c.Kind == query.ColumnTotal {
			h.Label = "Total"
		}
		if c.Kind == query.ColumnTag {
			info, _ := tags.Lookup(tags.Tag(c.Key))
			h.Icon = info.Icon
		}
		data.Headers = append(data.Headers, h)
	}
	for i := range rows {
		br := boardRow{Rank: i + 1, User: rows[i]}
		for _, c := range cols {
			br.Cells = append(br.Cells, c.Value(&rows[i]))
		}
		data.Rows = append(data.Rows, br)
	}
	s.render(w, s.pages.leaderboard, http.StatusOK, data)
}
