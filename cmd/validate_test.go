package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempSpec(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spec.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateSpecWithoutFrontMatter(t *testing.T) {
	path := writeTempSpec(t, "## Overview\nBody only, no front matter block.\n")

	// Must not panic: the header prints a placeholder and G1 reports
	// the missing metadata as a gate failure.
	err := validateCmd.RunE(validateCmd, []string{path})
	require.Error(t, err)
	assert.EqualError(t, err, "gate validation failed")
}

func TestValidateMissingFile(t *testing.T) {
	err := validateCmd.RunE(validateCmd, []string{filepath.Join(t.TempDir(), "absent.md")})
	require.Error(t, err)
}
