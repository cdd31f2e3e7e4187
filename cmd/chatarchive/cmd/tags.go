package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wesm/chatarchive/internal/tags"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List the tag vocabulary with message counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, engine, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		defer engine.Close()

		counts, err := engine.TagCounts(cmd.Context())
		if err != nil {
			return fmt.Errorf("tag counts: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TAG\tCOLOR\tMESSAGES\tDESCRIPTION")
		for _, info := range tags.Infos() {
			label := info.Label
			if info.Computed {
				label += " *"
			}
			fmt.Fprintf(w, "%s %s\t%s\t%s\t%s\n", info.Icon, label, info.Color,
				humanize.Comma(counts[info.Tag]), info.Description)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "\n* computed by `chatarchive stoppers`, not the classifier")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tagsCmd)
}
