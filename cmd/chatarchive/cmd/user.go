package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wesm/chatarchive/internal/query"
	"github.com/wesm/chatarchive/internal/tags"
)

var userJSON bool

var userCmd = &cobra.Command{
	Use:   "user <email>",
	Short: "Show message counts for one user by year and tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, engine, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		defer engine.Close()

		u, err := engine.UserStats(cmd.Context(), args[0])
		if errors.Is(err, query.ErrUserNotFound) {
			return fmt.Errorf("no messages from %s", args[0])
		}
		if err != nil {
			return fmt.Errorf("user stats: %w", err)
		}

		out := cmd.OutOrStdout()
		if userJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(u)
		}

		fmt.Fprintf(out, "%s <%s>\n", u.Name, u.Email)
		fmt.Fprintf(out, "Total messages: %s\n\n", humanize.Comma(u.TotalMessages))

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "YEAR\tMESSAGES")
		for _, y := range u.Years() {
			fmt.Fprintf(w, "%s\t%s\n", y, humanize.Comma(u.MessagesByYear[y]))
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "TAG\tMESSAGES")
		for _, info := range tags.Infos() {
			fmt.Fprintf(w, "%s %s\t%s\n", info.Icon, info.Label, humanize.Comma(u.MessagesByTag[string(info.Tag)]))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.Flags().BoolVar(&userJSON, "json", false, "output as JSON")
}
