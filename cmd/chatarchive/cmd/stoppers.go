package cmd

import (
	"github.com/spf13/cobra"
)

var (
	stoppersGap   string
	stoppersScope string
)

var stoppersCmd = &cobra.Command{
	Use:   "stoppers",
	Short: "Recompute the Conversation Stopper tag",
	Long: `Tag every message that got no reply within the gap as a Conversation
Stopper, and untag messages that no longer qualify. The last message in a
scope is always a stopper.

--scope topic compares each message with the next one in the same topic;
--scope global compares with the next message anywhere.

Examples:
  chatarchive stoppers
  chatarchive stoppers --gap 90m --scope global`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openWritable()
		if err != nil {
			return err
		}
		defer s.Close()
		return runStopperPass(cmd.Context(), cmd.OutOrStdout(), s, stoppersGap, stoppersScope)
	},
}

func init() {
	rootCmd.AddCommand(stoppersCmd)
	stoppersCmd.Flags().StringVar(&stoppersGap, "gap", "", "silence that ends a conversation, e.g. 2h (overrides [tagger] stopper_gap)")
	stoppersCmd.Flags().StringVar(&stoppersScope, "scope", "", "topic or global (overrides [tagger] stopper_scope)")
}
