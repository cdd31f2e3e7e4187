package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialize the database schema",
	Long: `Initialize the chatarchive database with the required schema.

Creates the messages table and its indexes if they don't exist, and adds the
tags column to databases created before tagging existed. It is safe to run
multiple times.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := cfg.DatabasePath()
		logger.Info("initializing database", "path", dbPath)

		s, err := openWritable()
		if err != nil {
			return err
		}
		defer s.Close()

		logger.Info("database initialized successfully")

		stats, err := s.GetStats()
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Database: %s\n", dbPath)
		fmt.Fprintf(out, "  Messages: %s\n", humanize.Comma(stats.MessageCount))
		fmt.Fprintf(out, "  Size:     %s\n", humanize.Bytes(uint64(stats.DatabaseSize)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}
