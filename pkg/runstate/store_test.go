package runstate

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashSpec(t *testing.T) {
	content := []byte("## Overview\nA spec with enough bytes to mutate.\n")

	// Same bytes, same hash.
	assert.Equal(t, HashSpec(content), HashSpec(append([]byte{}, content...)))
	assert.Len(t, HashSpec(content), 64)

	// Any single-byte mutation changes the hash.
	rng := rand.New(rand.NewSource(1))
	base := HashSpec(content)
	for i := 0; i < 100; i++ {
		mutated := append([]byte{}, content...)
		pos := rng.Intn(len(mutated))
		mutated[pos] ^= byte(1 + rng.Intn(255))
		assert.NotEqual(t, base, HashSpec(mutated), "mutation at byte %d not detected", pos)
	}
}

func TestNewRunIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := NewRunID()
		assert.False(t, seen[id], "duplicate run id %s", id)
		seen[id] = true
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	state := InitRunState("run-1", "/abs/spec.md", "deadbeef")
	state.SetStep("validate", StepState{Status: StatusCompleted, StartedAt: "2026-01-01T00:00:00Z"})
	state.SetStep("patch", StepState{Status: StatusPending})

	require.NoError(t, SaveRunState(dir, state))

	loaded, err := LoadRunState(dir)
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, "/abs/spec.md", loaded.SpecPath)
	assert.Equal(t, "deadbeef", loaded.SpecHash)
	assert.Equal(t, StatusCompleted, loaded.Steps["validate"].Status)
	assert.Equal(t, StatusPending, loaded.Steps["patch"].Status)
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveRunState(dir, InitRunState("run-1", "/s.md", "h")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temp file left behind: %s", e.Name())
	}
}

func TestListRunStatesNewestFirst(t *testing.T) {
	base := t.TempDir()

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		dir := filepath.Join(base, id)
		require.NoError(t, os.MkdirAll(dir, 0755))
		st := InitRunState(id, "/s.md", "h")
		// Force distinct creation times without sleeping.
		st.CreatedAt = "2026-01-0" + string(rune('1'+i)) + "T00:00:00Z"
		require.NoError(t, SaveRunState(dir, st))
	}

	states, err := ListRunStates(base)
	require.NoError(t, err)
	require.Len(t, states, 3)
	assert.Equal(t, "run-c", states[0].RunID)
	assert.Equal(t, "run-a", states[2].RunID)
}

func TestListRunStatesSkipsBrokenDirs(t *testing.T) {
	base := t.TempDir()

	good := filepath.Join(base, "run-good")
	require.NoError(t, os.MkdirAll(good, 0755))
	require.NoError(t, SaveRunState(good, InitRunState("run-good", "/s.md", "h")))

	// A directory without run.json and one with garbage inside.
	require.NoError(t, os.MkdirAll(filepath.Join(base, "empty"), 0755))
	broken := filepath.Join(base, "broken")
	require.NoError(t, os.MkdirAll(broken, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(broken, "run.json"), []byte("{not json"), 0644))

	states, err := ListRunStates(base)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, "run-good", states[0].RunID)
}

func TestListRunStatesMissingBaseDir(t *testing.T) {
	states, err := ListRunStates(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestFindLatestRunDirFiltersBySpecPath(t *testing.T) {
	base := t.TempDir()

	for _, tc := range []struct{ id, spec, created string }{
		{"run-old", "/a.md", "2026-01-01T00:00:00Z"},
		{"run-new", "/a.md", "2026-01-02T00:00:00Z"},
		{"run-other", "/b.md", "2026-01-03T00:00:00Z"},
	} {
		dir := filepath.Join(base, tc.id)
		require.NoError(t, os.MkdirAll(dir, 0755))
		st := InitRunState(tc.id, tc.spec, "h")
		st.CreatedAt = tc.created
		require.NoError(t, SaveRunState(dir, st))
	}

	dir, state, err := FindLatestRunDir(base, "/a.md")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "run-new", state.RunID)
	assert.Equal(t, filepath.Join(base, "run-new"), dir)

	_, state, err = FindLatestRunDir(base, "/missing.md")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestSummary(t *testing.T) {
	state := InitRunState("run-1", "/s.md", "h")
	state.SetStep("a", StepState{Status: StatusCompleted})
	state.SetStep("b", StepState{Status: StatusFailed})
	state.SetStep("c", StepState{Status: StatusPending})

	s := state.Summary()
	assert.Contains(t, s, "Run: run-1")
	assert.Contains(t, s, "1/3 steps completed")
	assert.Contains(t, s, "Failed: 1")
	assert.Contains(t, s, "Pending: 1")
}
