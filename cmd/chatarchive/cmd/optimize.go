package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Vacuum the database to reclaim space",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openWritable()
		if err != nil {
			return err
		}
		defer s.Close()

		before := fileSize(s.Path())
		if err := s.Vacuum(); err != nil {
			return err
		}
		after := fileSize(s.Path())

		fmt.Fprintf(cmd.OutOrStdout(), "Database: %s\n", s.Path())
		fmt.Fprintf(cmd.OutOrStdout(), "Size:     %s -> %s\n",
			humanize.Bytes(uint64(before)), humanize.Bytes(uint64(after)))
		return nil
	},
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
}
