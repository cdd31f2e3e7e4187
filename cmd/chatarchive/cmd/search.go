package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wesm/chatarchive/internal/query"
	"github.com/wesm/chatarchive/internal/tags"
	"github.com/wesm/chatarchive/internal/textutil"
)

var (
	searchBy    string
	searchSort  string
	searchTags  []string
	searchPage  int
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search messages by text, creator, and tags",
	Long: `Search the archive the same way the web feed does.

The query is a case-insensitive substring matched against the message text,
the creator name, or both (--by). Tag filters are OR-ed: a message
matches when it carries any of the given tags.

Examples:
  chatarchive search gout
  chatarchive search --by creator alice
  chatarchive search --tags Funny,Music --sort date_asc
  chatarchive search --json --limit 10 football`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, engine, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		defer engine.Close()

		p := query.SearchParams{
			Query: strings.Join(args, " "),
			Scope: query.SearchScope(searchBy),
			Sort:  query.SortOrder(searchSort),
			Tags:  tags.ParseList(strings.Join(searchTags, ",")),
			Page:  searchPage,
			Limit: searchLimit,
		}
		res, err := engine.Search(cmd.Context(), p)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		out := cmd.OutOrStdout()
		if searchJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		return outputSearchTable(out, res)
	},
}

func outputSearchTable(out io.Writer, res *query.SearchResult) error {
	if len(res.Messages) == 0 {
		fmt.Fprintln(out, "No messages found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tFROM\tTEXT\tTAGS")
	fmt.Fprintln(w, "──\t────\t────\t────\t────")
	for _, m := range res.Messages {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			m.ID,
			formatMillis(m.CreatedTimestamp),
			textutil.TruncateRunes(m.CreatorName, 24),
			textutil.TruncateRunes(textutil.SingleLine(m.Text), 60),
			m.Tags)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	pg := res.Pagination
	fmt.Fprintf(out, "\nPage %d of %d (%s matches)\n", pg.Page, max(pg.TotalPages, 1), humanize.Comma(pg.Total))
	return nil
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchBy, "by", string(query.ScopeBoth), "match against: both, creator, or text")
	searchCmd.Flags().StringVar(&searchSort, "sort", string(query.SortDateDesc), "date_desc or date_asc")
	searchCmd.Flags().StringSliceVar(&searchTags, "tags", nil, "only messages with any of these tags (comma-separated)")
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "page number")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "results per page")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
}
