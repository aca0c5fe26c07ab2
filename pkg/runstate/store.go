// Package runstate persists resumable pipeline progress. Each run owns a
// uniquely named directory holding a run.json document, rewritten
// wholesale on every phase transition, and an append-only JSONL event
// log. The spec content hash stored in the document detects staleness:
// a run whose spec changed underneath it is invalidated, never resumed.
package runstate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StepStatus is the lifecycle state of one pipeline step.
type StepStatus string

const (
	StatusPending   StepStatus = "pending"
	StatusRunning   StepStatus = "running"
	StatusCompleted StepStatus = "completed"
	StatusFailed    StepStatus = "failed"
	StatusSkipped   StepStatus = "skipped"
)

// Terminal reports whether the status is final for this run.
func (s StepStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// StepState tracks one step's progress within a run.
type StepState struct {
	Status     StepStatus `json:"status"`
	StartedAt  string     `json:"startedAt,omitempty"`
	FinishedAt string     `json:"finishedAt,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// RunState is the whole-run document. It is always replaced wholesale,
// never field-patched, so a resuming reader observes a consistent state.
type RunState struct {
	RunID     string               `json:"run_id"`
	SpecPath  string               `json:"spec_path"`
	SpecHash  string               `json:"spec_hash"`
	Steps     map[string]StepState `json:"steps"`
	CreatedAt string               `json:"createdAt"`
	UpdatedAt string               `json:"updatedAt"`
}

const runStateFile = "run.json"

// HashSpec returns the deterministic content hash of a spec document,
// used both for staleness detection and as a cache key.
func HashSpec(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// NewRunID generates a run identifier that is collision-resistant across
// concurrent invocations.
func NewRunID() string {
	return fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102_150405"), uuid.NewString()[:8])
}

// CreateRunDir creates a fresh run directory under baseDir and returns
// its id and path.
func CreateRunDir(baseDir string) (runID, path string, err error) {
	runID = NewRunID()
	path = filepath.Join(baseDir, runID)
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create run directory: %w", err)
	}
	return runID, path, nil
}

// InitRunState builds a new run document for the given spec. specPath
// must be absolute so resumed runs resolve the same file.
func InitRunState(runID, specPath, specHash string) *RunState {
	now := time.Now().UTC().Format(time.RFC3339)
	return &RunState{
		RunID:     runID,
		SpecPath:  specPath,
		SpecHash:  specHash,
		Steps:     map[string]StepState{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SaveRunState persists the full document. It writes to a temporary file
// and renames over the original so a crash mid-write never leaves a
// partial document.
func SaveRunState(runDir string, state *RunState) error {
	state.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize run state: %w", err)
	}

	statePath := filepath.Join(runDir, runStateFile)
	tempPath := statePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}
	if err := os.Rename(tempPath, statePath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save state file: %w", err)
	}
	return nil
}

// LoadRunState reads the run document from a run directory.
func LoadRunState(runDir string) (*RunState, error) {
	data, err := os.ReadFile(filepath.Join(runDir, runStateFile))
	if err != nil {
		return nil, err
	}
	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if state.Steps == nil {
		state.Steps = map[string]StepState{}
	}
	return &state, nil
}

// ListRunStates loads every run document under baseDir, newest first.
// The base directory is always an explicit parameter; there is no hidden
// default location.
func ListRunStates(baseDir string) ([]*RunState, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read run base directory: %w", err)
	}

	var states []*RunState
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		state, err := LoadRunState(filepath.Join(baseDir, entry.Name()))
		if err != nil {
			// Directories without a readable run.json are skipped, not fatal.
			continue
		}
		states = append(states, state)
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].CreatedAt > states[j].CreatedAt
	})
	return states, nil
}

// FindLatestRunDir returns the most recent run directory whose document
// references specPath, or "" when none exists.
func FindLatestRunDir(baseDir, specPath string) (string, *RunState, error) {
	states, err := ListRunStates(baseDir)
	if err != nil {
		return "", nil, err
	}
	for _, state := range states {
		if state.SpecPath == specPath {
			return filepath.Join(baseDir, state.RunID), state, nil
		}
	}
	return "", nil, nil
}

// SetStep replaces one step's state in the document. Callers persist the
// whole document afterwards via SaveRunState.
func (r *RunState) SetStep(name string, st StepState) {
	if r.Steps == nil {
		r.Steps = map[string]StepState{}
	}
	r.Steps[name] = st
}

// StepNames returns the tracked step names in stable order.
func (r *RunState) StepNames() []string {
	names := make([]string, 0, len(r.Steps))
	for name := range r.Steps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summary returns a human-readable progress summary.
func (r *RunState) Summary() string {
	counts := map[StepStatus]int{}
	for _, st := range r.Steps {
		counts[st.Status]++
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", r.RunID)
	fmt.Fprintf(&b, "Progress: %d/%d steps completed\n", counts[StatusCompleted], len(r.Steps))
	if counts[StatusRunning] > 0 {
		fmt.Fprintf(&b, "Running: %d steps\n", counts[StatusRunning])
	}
	if counts[StatusPending] > 0 {
		fmt.Fprintf(&b, "Pending: %d steps\n", counts[StatusPending])
	}
	if counts[StatusFailed] > 0 {
		fmt.Fprintf(&b, "Failed: %d steps\n", counts[StatusFailed])
	}
	if counts[StatusSkipped] > 0 {
		fmt.Fprintf(&b, "Skipped: %d steps\n", counts[StatusSkipped])
	}
	return strings.TrimSpace(b.String())
}
