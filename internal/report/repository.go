// Package report defines the run artifact and its atomic persistence.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"cohortmatch/internal/quality"
)

// SubScores carries the per-dimension breakdown of a matched pair.
type SubScores struct {
	Age   float64 `json:"age"`
	Socio float64 `json:"socio"`
}

// MatchedPair is one committed profile/record match. Never mutated after the
// run that produced it; superseded only by a later run's artifact.
type MatchedPair struct {
	ProfileID   string       `json:"profile_id"`
	RecordID    string       `json:"record_id"`
	Score       float64      `json:"score"`
	SubScores   SubScores    `json:"sub_scores"`
	QualityTier quality.Tier `json:"quality_tier"`
}

// Artifact is the single output of a matching run and the sole interface
// consumed by the downstream interview pipeline.
type Artifact struct {
	RunID             string              `json:"run_id"`
	RunTimestamp      time.Time           `json:"run_timestamp"`
	Method            string              `json:"method"`
	Pairs             []MatchedPair       `json:"pairs"`
	UnmatchedProfiles []string            `json:"unmatched_profiles"`
	UnmatchedRecords  []string            `json:"unmatched_records"`
	Diagnostics       quality.Diagnostics `json:"diagnostics"`
}

// Repository persists one artifact per run. Single-writer semantics: one run
// owns the output path at a time.
type Repository struct {
	path string
}

func NewRepository(path string) *Repository {
	return &Repository{path: path}
}

func (r *Repository) Path() string {
	return r.path
}

// Exists reports whether a prior run's artifact is present at the path.
func (r *Repository) Exists() bool {
	_, err := os.Stat(r.path)
	return err == nil
}

// Save writes the artifact atomically: the content goes to a temp file in the
// target directory, is synced, then renamed over the destination. A failed or
// interrupted write leaves the previous artifact untouched. Pairs and
// unmatched ids are sorted so identical inputs produce byte-identical content
// modulo run id and timestamp.
func (r *Repository) Save(a *Artifact) error {
	sort.Slice(a.Pairs, func(x, y int) bool {
		return a.Pairs[x].ProfileID < a.Pairs[y].ProfileID
	})
	sort.Strings(a.UnmatchedProfiles)
	sort.Strings(a.UnmatchedRecords)

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding artifact: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".artifact-*.json")
	if err != nil {
		return fmt.Errorf("creating temp artifact in %q: %w", dir, err)
	}

	// Clean the temp file up on any failure before the rename.
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp artifact: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting artifact permissions: %w", err)
	}

	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("publishing artifact to %q: %w", r.path, err)
	}

	return nil
}

// Load reads a persisted artifact back.
func (r *Repository) Load() (*Artifact, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact from %q: %w", r.path, err)
	}

	artifact := &Artifact{}
	if err := json.Unmarshal(data, artifact); err != nil {
		return nil, fmt.Errorf("parsing artifact from %q: %w", r.path, err)
	}

	return artifact, nil
}
