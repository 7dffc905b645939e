package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

const artifactFile = "artifact.json"

// ErrRunNotFound is returned when no stored run matches the requested ID.
var ErrRunNotFound = errors.New("run not found")

var stageNameRe = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Store persists planning runs on disk for audit and debugging. Every run
// lives under runs/<run-id>/ with one JSON file per stage plus the final
// artifact.
type Store struct {
	baseDir string // defaults to ~/.cycleplan/runs
}

// NewStore creates a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// DefaultStore returns a Store at ~/.cycleplan/runs, creating the directory if needed.
func DefaultStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".cycleplan", "runs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &Store{baseDir: dir}, nil
}

// BaseDir returns the store's root directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// RunDir returns the directory holding a run's files.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

func (s *Store) stagePath(runID, stage string) string {
	return filepath.Join(s.RunDir(runID), stage+".json")
}

func validRunID(runID string) error {
	if runID == "" || runID != filepath.Base(runID) || runID == "." || runID == ".." {
		return fmt.Errorf("invalid run id %q", runID)
	}
	return nil
}

// SaveStage writes one stage's output for a run, replacing any previous copy.
func (s *Store) SaveStage(runID, stage string, v any) error {
	if err := validRunID(runID); err != nil {
		return err
	}
	if !stageNameRe.MatchString(stage) {
		return fmt.Errorf("invalid stage name %q", stage)
	}
	if err := WriteJSON(s.stagePath(runID, stage), v); err != nil {
		return fmt.Errorf("save stage %s for run %s: %w", stage, runID, err)
	}
	return nil
}

// GetStage reads one stage's stored output into v.
func (s *Store) GetStage(runID, stage string, v any) error {
	if err := validRunID(runID); err != nil {
		return err
	}
	if err := ReadJSON(s.stagePath(runID, stage), v); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("stage %s of run %s: %w", stage, runID, ErrRunNotFound)
		}
		return err
	}
	return nil
}

// Stages lists the stage files stored for a run, sorted by name. The
// artifact itself is not included.
func (s *Store) Stages(runID string) ([]string, error) {
	if err := validRunID(runID); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.RunDir(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
		}
		return nil, fmt.Errorf("read run dir: %w", err)
	}
	var stages []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == artifactFile || filepath.Ext(name) != ".json" {
			continue
		}
		stages = append(stages, name[:len(name)-len(".json")])
	}
	sort.Strings(stages)
	return stages, nil
}

// SaveArtifact writes the final artifact of a run.
func (s *Store) SaveArtifact(a *Artifact) error {
	if err := validRunID(a.RunID); err != nil {
		return err
	}
	if err := WriteJSON(filepath.Join(s.RunDir(a.RunID), artifactFile), a); err != nil {
		return fmt.Errorf("save artifact for run %s: %w", a.RunID, err)
	}
	return nil
}

// Get reads the artifact of a run.
func (s *Store) Get(runID string) (*Artifact, error) {
	if err := validRunID(runID); err != nil {
		return nil, err
	}
	var a Artifact
	if err := ReadJSON(filepath.Join(s.RunDir(runID), artifactFile), &a); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
		}
		return nil, err
	}
	return &a, nil
}

// List returns the summaries of every stored run, newest first. Runs without
// a readable artifact are skipped.
func (s *Store) List() ([]RunSummary, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read store dir: %w", err)
	}

	var runs []RunSummary
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		a, err := s.Get(e.Name())
		if err != nil {
			continue
		}
		runs = append(runs, a.Summary())
	}

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].Timestamp.Equal(runs[j].Timestamp) {
			return runs[i].Timestamp.After(runs[j].Timestamp)
		}
		return runs[i].RunID < runs[j].RunID
	})
	return runs, nil
}

// Latest returns the artifact of the most recent run.
func (s *Store) Latest() (*Artifact, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no stored runs: %w", ErrRunNotFound)
	}
	return s.Get(runs[0].RunID)
}

// Delete removes a run and all of its stage files.
func (s *Store) Delete(runID string) error {
	if err := validRunID(runID); err != nil {
		return err
	}
	dir := s.RunDir(runID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	return os.RemoveAll(dir)
}
