package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesm/chatarchive/internal/api"
	"github.com/wesm/chatarchive/internal/query"
	"github.com/wesm/chatarchive/internal/store"
)

var (
	servePort   int
	serveBind   string
	serveEngine string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the archive over HTTP",
	Long: `Serve the archive as a read-only web application.

The backing database is resolved once at startup: the local database file,
else the compressed snapshot in [data] compressed_path, else a download of
[data] download_url into the scratch directory.

Routes:
  /                   searchable message feed
  /user/{email}       per-user statistics
  /leaderboard        sortable leaderboard
  /api/messages       JSON search (query, searchBy, sortBy, tags, page, limit)
  /api/users/{email}  JSON user statistics
  /api/leaderboard    JSON leaderboard (sort, dir)
  /api/tags           tag vocabulary with counts
  /api/stats          corpus statistics
  /health             liveness probe
  /metrics            Prometheus metrics (when [server] metrics_enabled)

If the database cannot be opened the server still starts and answers
data requests with 503 so the failure is visible to clients.

Use Ctrl+C to stop the server gracefully.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides [server] api_port)")
	serveCmd.Flags().StringVar(&serveBind, "bind", "", "bind address (overrides [server] bind_addr)")
	serveCmd.Flags().StringVar(&serveEngine, "engine", "", "query engine: sqlite or duckdb (overrides [server] engine)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if servePort > 0 {
		cfg.Server.APIPort = servePort
	}
	if serveBind != "" {
		cfg.Server.BindAddr = serveBind
	}
	if serveEngine != "" {
		cfg.Server.Engine = serveEngine
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var (
		engine query.Engine
		stats  api.StatsSource
	)
	s, err := openReadOnly(ctx)
	if err != nil {
		logger.Error("database unavailable; serving 503 for data routes", "error", err)
	} else {
		defer s.Close()
		engine = newEngine(s, cfg.Server.Engine)
		defer engine.Close()
		stats = s
		logStartupStats(s)
	}

	apiServer := api.NewServer(cfg, engine, stats, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "chatarchive serving on http://%s\n", apiServer.Addr())
	fmt.Fprintln(out, "Press Ctrl+C to stop.")

	var runErr error
	select {
	case err := <-serverErr:
		logger.Error("API server error", "error", err)
		runErr = err
	case <-ctx.Done():
		logger.Info("shutdown requested")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown error", "error", err)
	}
	return runErr
}

func logStartupStats(s *store.Store) {
	st, err := s.GetStats()
	if err != nil {
		logger.Warn("could not read database stats", "error", err)
		return
	}
	logger.Info("database ready",
		"path", s.Path(),
		"messages", st.MessageCount,
		"users", st.UserCount,
		"engine", cfg.Server.Engine)
}
