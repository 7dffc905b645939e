package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileSource serves a snapshot exported to a JSON or YAML file. It is the
// offline tracker used for replaying a planning run.
type FileSource struct {
	snap *Snapshot
}

// LoadSnapshot reads a snapshot file. The format is chosen by extension:
// .yaml/.yml is YAML, anything else is JSON.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}

	var snap Snapshot
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("parsing snapshot YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("parsing snapshot JSON: %w", err)
		}
	}
	return &snap, nil
}

// NewFileSource loads path into a FileSource.
func NewFileSource(path string) (*FileSource, error) {
	snap, err := LoadSnapshot(path)
	if err != nil {
		return nil, err
	}
	return &FileSource{snap: snap}, nil
}

// NewStaticSource wraps an in-memory snapshot.
func NewStaticSource(snap *Snapshot) *FileSource {
	return &FileSource{snap: snap}
}

func (f *FileSource) AsOf() time.Time {
	return f.snap.AsOf
}

func (f *FileSource) ActiveCycle(_ context.Context) (*Cycle, error) {
	return f.snap.ActiveCycle, nil
}

func (f *FileSource) ClosedCycles(_ context.Context, n int) ([]Cycle, error) {
	return f.snap.RecentClosed(n), nil
}

func (f *FileSource) Backlog(_ context.Context) ([]WorkItem, error) {
	return f.snap.Backlog, nil
}

func (f *FileSource) Roster(_ context.Context) (Roster, error) {
	return f.snap.Roster, nil
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}
