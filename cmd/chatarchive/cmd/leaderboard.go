package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wesm/chatarchive/internal/query"
	"github.com/wesm/chatarchive/internal/tags"
)

var (
	leaderboardSort  string
	leaderboardDir   string
	leaderboardLimit int
	leaderboardJSON  bool
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Rank users by total, year, or tag counts",
	Long: `Rank every creator by message count.

--sort takes "total", a year such as 2016, or a tag name such as Funny.

Examples:
  chatarchive leaderboard
  chatarchive leaderboard --sort 2016
  chatarchive leaderboard --sort "Poor Grammar" --dir asc`,
	RunE: func(cmd *cobra.Command, args []string) error {
		col, ok := query.ParseColumn(leaderboardSort)
		if !ok {
			return fmt.Errorf("unknown sort column %q", leaderboardSort)
		}
		dir := query.ParseDirection(leaderboardDir)

		s, engine, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		defer engine.Close()

		rows, err := engine.Leaderboard(cmd.Context())
		if err != nil {
			return fmt.Errorf("leaderboard: %w", err)
		}
		query.SortLeaderboard(rows, col, dir)
		if leaderboardLimit > 0 && len(rows) > leaderboardLimit {
			rows = rows[:leaderboardLimit]
		}

		out := cmd.OutOrStdout()
		if leaderboardJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}

		years := query.LeaderboardYears(rows)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		header := []string{"#", "USER", "TOTAL"}
		header = append(header, years...)
		if col.Kind == query.ColumnTag {
			header = append(header, strings.ToUpper(col.Key))
		}
		fmt.Fprintln(w, strings.Join(header, "\t")+"\t")

		for i := range rows {
			u := &rows[i]
			cells := []string{fmt.Sprint(i + 1), u.Name, humanize.Comma(u.TotalMessages)}
			for _, y := range years {
				cells = append(cells, humanize.Comma(u.MessagesByYear[y]))
			}
			if col.Kind == query.ColumnTag {
				cells = append(cells, humanize.Comma(u.MessagesByTag[col.Key]))
			}
			fmt.Fprintln(w, strings.Join(cells, "\t")+"\t")
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if col.Kind == query.ColumnTag {
			if info, ok := tags.Lookup(tags.Tag(col.Key)); ok {
				fmt.Fprintf(out, "\nSorted by %s %s (%s)\n", info.Icon, info.Label, dir)
				return nil
			}
		}
		fmt.Fprintf(out, "\nSorted by %s (%s)\n", col, dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(leaderboardCmd)
	leaderboardCmd.Flags().StringVar(&leaderboardSort, "sort", "total", "column: total, a year, or a tag")
	leaderboardCmd.Flags().StringVar(&leaderboardDir, "dir", string(query.Desc), "asc or desc")
	leaderboardCmd.Flags().IntVarP(&leaderboardLimit, "limit", "n", 0, "show only the top N users")
	leaderboardCmd.Flags().BoolVar(&leaderboardJSON, "json", false, "output as JSON")
}
