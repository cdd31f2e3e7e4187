package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wesm/chatarchive/internal/tags"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show archive statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, engine, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		defer engine.Close()

		st, err := s.GetStats()
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Database: %s\n", s.Path())
		fmt.Fprintf(out, "  Messages:  %s\n", humanize.Comma(st.MessageCount))
		fmt.Fprintf(out, "  Users:     %s\n", humanize.Comma(st.UserCount))
		fmt.Fprintf(out, "  Topics:    %s\n", humanize.Comma(st.TopicCount))
		fmt.Fprintf(out, "  Tagged:    %s\n", humanize.Comma(st.TaggedCount))
		if st.MessageCount > 0 {
			fmt.Fprintf(out, "  Range:     %s to %s UTC\n", formatMillis(st.EarliestMillis), formatMillis(st.LatestMillis))
		}
		fmt.Fprintf(out, "  Size:      %s\n", humanize.Bytes(uint64(st.DatabaseSize)))

		counts, err := engine.TagCounts(cmd.Context())
		if err != nil {
			return fmt.Errorf("tag counts: %w", err)
		}
		fmt.Fprintln(out, "\nTags:")
		for _, info := range tags.Infos() {
			if n := counts[info.Tag]; n > 0 {
				fmt.Fprintf(out, "  %s %-22s %s\n", info.Icon, info.Label, humanize.Comma(n))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
