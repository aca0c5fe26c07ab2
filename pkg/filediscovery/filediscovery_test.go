package filediscovery

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestContextFiles(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "main.go", "package main\n")
	touch(t, root, "pkg/lib.go", "package pkg\n")
	touch(t, root, "README.md", "# readme\n")
	touch(t, root, "binary.exe", "\x00\x01")
	touch(t, root, "node_modules/dep/index.js", "x")
	touch(t, root, ".hidden/secret.go", "package secret\n")

	files, err := ContextFiles(root, 0)
	require.NoError(t, err)

	assert.Contains(t, files, "main.go")
	assert.Contains(t, files, filepath.Join("pkg", "lib.go"))
	assert.Contains(t, files, "README.md")
	assert.NotContains(t, files, "binary.exe")

	for _, f := range files {
		assert.False(t, strings.HasPrefix(f, "node_modules"), "ignored dir leaked: %s", f)
		assert.False(t, strings.HasPrefix(f, ".hidden"), "dot dir leaked: %s", f)
	}

	// Sorted for deterministic prompt content.
	assert.IsNonDecreasing(t, files)
}

func TestContextFilesHonorsGitignore(t *testing.T) {
	root := t.TempDir()
	touch(t, root, ".gitignore", "generated/\n*.gen.go\n")
	touch(t, root, "keep.go", "package keep\n")
	touch(t, root, "skip.gen.go", "package gen\n")
	touch(t, root, "generated/out.go", "package out\n")

	files, err := ContextFiles(root, 0)
	require.NoError(t, err)
	assert.Contains(t, files, "keep.go")
	assert.NotContains(t, files, "skip.gen.go")
	for _, f := range files {
		assert.False(t, strings.HasPrefix(f, "generated"))
	}
}

func TestContextFilesHonorsLocalIgnore(t *testing.T) {
	root := t.TempDir()
	touch(t, root, ".specdrive/.ignore", "private.md\n")
	touch(t, root, "public.md", "x\n")
	touch(t, root, "private.md", "x\n")

	files, err := ContextFiles(root, 0)
	require.NoError(t, err)
	assert.Contains(t, files, "public.md")
	assert.NotContains(t, files, "private.md")
}

func TestContextFilesCap(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.go", "b.go", "c.go", "d.go"} {
		touch(t, root, name, "package x\n")
	}

	files, err := ContextFiles(root, 2)
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Equal(t, []string{"a.go", "b.go"}, files)
}

func TestContextFilesSkipsOversized(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "small.go", "package x\n")
	touch(t, root, "huge.go", strings.Repeat("x", 300*1024))

	files, err := ContextFiles(root, 0)
	require.NoError(t, err)
	assert.Contains(t, files, "small.go")
	assert.NotContains(t, files, "huge.go")
}
