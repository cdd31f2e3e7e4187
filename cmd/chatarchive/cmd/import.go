package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wesm/chatarchive/internal/importer"
)

var (
	importReplace   bool
	importBatchSize int
)

var importCmd = &cobra.Command{
	Use:   "import <export.json>",
	Short: "Import a chat export into the database",
	Long: `Import messages from a JSON chat export.

The export is either {"messages": [...]} or a bare array. Each entry carries
message_id, creator {name, email, user_type}, created_date (for example
"Friday, 1 April 2016 at 10:41:58 UTC"), text and topic_id.

Rows whose message_id already exists are skipped and counted as errors.
Use --replace to start from an empty database.

Examples:
  chatarchive import messages.json
  chatarchive import --replace export/messages.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sourcePath := args[0]
		if _, err := os.Stat(sourcePath); err != nil {
			return fmt.Errorf("source file not found: %w", err)
		}

		if importReplace {
			if err := removeDatabase(cfg.DatabasePath()); err != nil {
				return err
			}
		}

		s, err := openWritable()
		if err != nil {
			return err
		}
		defer s.Close()

		progress := newProgressLine("Importing")
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Importing %s into %s\n", sourcePath, cfg.DatabasePath())

		sum, err := importer.ImportFile(cmd.Context(), s, sourcePath, importer.ImportOptions{
			BatchSize: importBatchSize,
			Progress:  func(done, total int) { progress.Update(int64(done), int64(total)) },
			Logger:    logger,
		})
		progress.Done()
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}

		fmt.Fprintln(out)
		fmt.Fprintf(out, "Imported:  %s of %s messages\n", humanize.Comma(int64(sum.Imported)), humanize.Comma(int64(sum.Total)))
		if sum.Errors > 0 {
			fmt.Fprintf(out, "Errors:    %s (duplicates or invalid rows)\n", humanize.Comma(int64(sum.Errors)))
		}
		if sum.DateWarnings > 0 {
			fmt.Fprintf(out, "Warnings:  %s unparseable dates stored as 1970-01-01\n", humanize.Comma(int64(sum.DateWarnings)))
		}
		if sum.Charset != "" && sum.Charset != "UTF-8" {
			fmt.Fprintf(out, "Charset:   %s (converted to UTF-8)\n", sum.Charset)
		}
		if sum.Imported > 0 {
			fmt.Fprintf(out, "Range:     %s to %s UTC\n", formatMillis(sum.Earliest), formatMillis(sum.Latest))
		}
		fmt.Fprintf(out, "Duration:  %s\n", formatDuration(sum.Duration))
		return nil
	},
}

// removeDatabase deletes the database file and its WAL sidecars.
func removeDatabase(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	logger.Info("removed existing database", "path", path)
	return nil
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "delete the existing database before importing")
	importCmd.Flags().IntVar(&importBatchSize, "batch-size", 1000, "rows per insert transaction")
}
