package testutil

import (
	"compress/gzip"
	"os"
	"testing"

	"github.com/klauspost/compress/zstd"
)

// WriteGzip writes content gzip-compressed to path.
func WriteGzip(t *testing.T, path string, content []byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gzw := gzip.NewWriter(f)
	if _, err := gzw.Write(content); err != nil {
		t.Fatalf("write gzip: %v", err)
	}
	if err := gzw.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
}

// WriteZstd writes content zstd-compressed to path.
func WriteZstd(t *testing.T, path string, content []byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	if _, err := enc.Write(content); err != nil {
		t.Fatalf("write zstd: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close zstd: %v", err)
	}
}
