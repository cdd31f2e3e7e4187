package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var clearTagsYes bool

var clearTagsCmd = &cobra.Command{
	Use:   "clear-tags",
	Short: "Remove every tag from every message",
	Long: `Remove every tag from every message and delete the tagging checkpoint,
so the next 'chatarchive tag' starts from scratch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearTagsYes {
			fmt.Fprint(cmd.OutOrStdout(), "Remove all tags from the archive? [y/N]: ")
			reader := bufio.NewReader(cmd.InOrStdin())
			response, _ := reader.ReadString('\n')
			response = strings.TrimSpace(strings.ToLower(response))
			if response != "y" && response != "yes" {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
		}

		s, err := openWritable()
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := s.ClearTags()
		if err != nil {
			return fmt.Errorf("clear tags: %w", err)
		}
		if err := os.Remove(cfg.CheckpointPath()); err != nil && !os.IsNotExist(err) {
			logger.Warn("could not remove checkpoint", "path", cfg.CheckpointPath(), "error", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared tags on %s messages.\n", humanize.Comma(n))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearTagsCmd)
	clearTagsCmd.Flags().BoolVarP(&clearTagsYes, "yes", "y", false, "skip confirmation")
}
