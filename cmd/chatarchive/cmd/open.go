package cmd

import (
	"context"
	"fmt"

	"github.com/wesm/chatarchive/internal/config"
	"github.com/wesm/chatarchive/internal/dbfile"
	"github.com/wesm/chatarchive/internal/query"
	"github.com/wesm/chatarchive/internal/store"
)

// openWritable opens the local database for the offline commands and makes
// sure the schema, including the tags column, is current.
func openWritable() (*store.Store, error) {
	s, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := s.InitSchema(); err != nil {
		s.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func dbfileOptions(progress func(done, total int64)) dbfile.Options {
	return dbfile.Options{
		DatabasePath:   cfg.DatabasePath(),
		CompressedPath: cfg.Data.CompressedPath,
		DownloadURL:    cfg.Data.DownloadURL,
		SHA256:         cfg.Data.DownloadSHA256,
		ScratchDir:     cfg.ScratchDir(),
		Progress:       progress,
		Logger:         logger,
	}
}

// openReadOnly resolves the backing file (local, snapshot, or download) and
// opens it read-only.
func openReadOnly(ctx context.Context) (*store.Store, error) {
	s, err := dbfile.NewLocator(dbfileOptions(nil)).OpenReadOnly(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.CheckReady(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// newEngine builds the configured query engine over s. DuckDB falls back
// to SQLite when it cannot attach the file.
func newEngine(s *store.Store, engineName string) query.Engine {
	opts := []query.SQLiteOption{query.WithPageSizes(cfg.Server.DefaultPageSize, cfg.Server.MaxPageSize)}
	if engineName == config.EngineDuckDB {
		eng, err := query.NewDuckDBEngine(s.Path(), s.DB(), opts...)
		if err == nil {
			logger.Debug("using duckdb engine", "path", s.Path())
			return eng
		}
		logger.Warn("duckdb engine unavailable, falling back to sqlite", "error", err)
	}
	return query.NewSQLiteEngine(s.DB(), opts...)
}

// openEngine is openReadOnly plus newEngine for the query commands. The
// caller closes both.
func openEngine(ctx context.Context) (*store.Store, query.Engine, error) {
	s, err := openReadOnly(ctx)
	if err != nil {
		return nil, nil, err
	}
	return s, newEngine(s, cfg.Server.Engine), nil
}
