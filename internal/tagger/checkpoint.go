package tagger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint records how far a tagging run got. Mode identifies the kind of
// run (untagged, all, or a tag subset); a checkpoint for a different mode is
// ignored so switching modes starts from the beginning.
type Checkpoint struct {
	Mode      string    `json:"mode"`
	LastID    int64     `json:"last_id"`
	Processed int64     `json:"processed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LoadCheckpoint reads the checkpoint at path. A missing file returns a
// zero checkpoint and no error.
func LoadCheckpoint(path string) (Checkpoint, error) {
	var cp Checkpoint
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cp, nil
	}
	if err != nil {
		return cp, fmt.Errorf("read checkpoint: %w", err)
	}
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("parse checkpoint %s: %w", path, err)
	}
	return cp, nil
}

// SaveCheckpoint writes cp atomically via a temp file and rename.
func SaveCheckpoint(path string, cp Checkpoint) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}
