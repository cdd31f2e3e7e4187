package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wesm/chatarchive/internal/dbfile"
)

var fetchDBCmd = &cobra.Command{
	Use:   "fetch-db",
	Short: "Resolve the database file, downloading or expanding it if needed",
	Long: `Resolve the SQLite file that serve and the query commands will read.

Sources are tried in order: [data] database_path, the gzip or zstd snapshot
in [data] compressed_path, then [data] download_url (verified against
[data] download_sha256 when set). Snapshots and downloads land in the
scratch directory and are reused while they are up to date.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		progress := newProgressLine("Fetching")
		progress.bytes = true

		path, err := dbfile.NewLocator(dbfileOptions(progress.Update)).Path(cmd.Context())
		progress.Done()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Database: %s (%s)\n", path, humanize.Bytes(uint64(fileSize(path))))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchDBCmd)
}
