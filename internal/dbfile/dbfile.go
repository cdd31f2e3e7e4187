// Package dbfile locates the SQLite file that backs the archive. The file
// may already be on disk, may ship as a gzip or zstd snapshot that has to be
// expanded into a scratch directory, or may have to be downloaded first.
package dbfile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/wesm/chatarchive/internal/store"
)

var (
	// ErrChecksumMismatch is returned when a downloaded file does not match
	// the configured SHA-256.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrNoSource is returned when no local, compressed or remote database
	// is configured or present.
	ErrNoSource = errors.New("no database file available")
)

const expandedName = "messages.db"

// Options describes where the database may come from. Sources are tried in
// field order.
type Options struct {
	DatabasePath   string // plain SQLite file
	CompressedPath string // .gz or .zst snapshot
	DownloadURL    string
	SHA256         string // hex digest of the downloaded object, optional
	ScratchDir     string // where snapshots are expanded and downloads land

	HTTPClient *http.Client
	Progress   func(done, total int64)
	Logger     *slog.Logger
}

// Locator resolves the database file at most once per process. A failed
// resolution is not cached, so a later call can retry.
type Locator struct {
	opts Options
	log  *slog.Logger

	mu   sync.Mutex
	path string
}

// NewLocator creates a Locator for opts.
func NewLocator(opts Options) *Locator {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Locator{opts: opts, log: log}
}

// Path returns the path of a ready-to-open SQLite file.
func (l *Locator) Path(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.path != "" {
		return l.path, nil
	}
	p, err := l.resolve(ctx)
	if err != nil {
		return "", err
	}
	l.path = p
	return p, nil
}

// OpenReadOnly resolves the file and opens it read-only.
func (l *Locator) OpenReadOnly(ctx context.Context) (*store.Store, error) {
	p, err := l.Path(ctx)
	if err != nil {
		return nil, err
	}
	return store.OpenReadOnly(p)
}

func (l *Locator) resolve(ctx context.Context) (string, error) {
	if p := l.opts.DatabasePath; p != "" && fileExists(p) {
		l.log.Debug("using local database", "path", p)
		return p, nil
	}

	dest := filepath.Join(l.opts.ScratchDir, expandedName)

	if src := l.opts.CompressedPath; src != "" && fileExists(src) {
		if upToDate(dest, src) {
			l.log.Debug("reusing expanded database", "path", dest)
			return dest, nil
		}
		l.log.Info("expanding database snapshot", "from", src, "to", dest)
		if err := Decompress(src, dest); err != nil {
			return "", err
		}
		return dest, nil
	}

	if l.opts.DownloadURL != "" {
		if fileExists(dest) {
			l.log.Debug("reusing downloaded database", "path", dest)
			return dest, nil
		}
		if err := l.fetch(ctx, dest); err != nil {
			return "", err
		}
		return dest, nil
	}

	return "", ErrNoSource
}

func (l *Locator) fetch(ctx context.Context, dest string) error {
	if err := os.MkdirAll(l.opts.ScratchDir, 0755); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}

	name := remoteName(l.opts.DownloadURL)
	tmp := filepath.Join(l.opts.ScratchDir, name+".part")
	defer os.Remove(tmp)

	l.log.Info("downloading database", "url", l.opts.DownloadURL)
	sum, err := download(ctx, l.opts.HTTPClient, l.opts.DownloadURL, tmp, l.opts.Progress)
	if err != nil {
		return err
	}
	if want := strings.ToLower(strings.TrimSpace(l.opts.SHA256)); want != "" && sum != want {
		return fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, sum, want)
	}

	if compressionOf(name) != "" {
		return Decompress(tmp, dest, compressionOf(name))
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("install database: %w", err)
	}
	return nil
}

// download streams url into dest and returns the hex SHA-256 of the body.
func download(ctx context.Context, client *http.Client, rawURL, dest string, progress func(done, total int64)) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed: %s", resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer out.Close()

	hasher := sha256.New()
	w := io.MultiWriter(out, hasher)

	var done int64
	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return "", werr
			}
			done += int64(n)
			if progress != nil {
				progress(done, resp.ContentLength)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("download: %w", err)
		}
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Decompress expands a gzip or zstd file into dest. The format comes from
// the optional format argument ("gzip" or "zstd") or else from src's
// extension. dest is replaced atomically.
func Decompress(src, dest string, format ...string) error {
	kind := compressionOf(src)
	if len(format) > 0 && format[0] != "" {
		kind = format[0]
	}
	if kind == "" {
		return fmt.Errorf("decompress %s: unknown compression", src)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	var r io.Reader
	switch kind {
	case "gzip":
		gzr, err := gzip.NewReader(in)
		if err != nil {
			return fmt.Errorf("open gzip: %w", err)
		}
		defer gzr.Close()
		r = gzr
	case "zstd":
		zr, err := zstd.NewReader(in)
		if err != nil {
			return fmt.Errorf("open zstd: %w", err)
		}
		defer zr.Close()
		r = zr
	default:
		return fmt.Errorf("decompress %s: unsupported format %q", src, kind)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".expand-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("decompress %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("install database: %w", err)
	}
	return nil
}

func compressionOf(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".gzip":
		return "gzip"
	case ".zst", ".zstd":
		return "zstd"
	}
	return ""
}

func remoteName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			return base
		}
	}
	return expandedName
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// upToDate reports whether dest exists and is not older than src.
func upToDate(dest, src string) bool {
	d, err := os.Stat(dest)
	if err != nil {
		return false
	}
	s, err := os.Stat(src)
	if err != nil {
		return false
	}
	return !d.ModTime().Before(s.ModTime())
}
