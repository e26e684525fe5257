package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAndEnsureDBPath_CreatesDirectory(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "dir", "keep.db")

	resolved, err := ResolveAndEnsureDBPath(target)
	require.NoError(t, err)
	assert.Equal(t, target, resolved)

	info, err := os.Stat(filepath.Dir(target))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestResolveAndEnsureDBPath_Memory(t *testing.T) {
	resolved, err := ResolveAndEnsureDBPath(":memory:")
	require.NoError(t, err)
	assert.Equal(t, ":memory:", resolved)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	expanded, err := ExpandHome("~/keep/keep.db")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "keep", "keep.db"), expanded)

	unchanged, err := ExpandHome("/tmp/keep.db")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/keep.db", unchanged)
}

func TestDefaultPaths(t *testing.T) {
	assert.Equal(t, "keep.db", filepath.Base(GetDefaultDBPathOnly()))
	assert.Equal(t, "config.yaml", filepath.Base(GetDefaultConfigPath()))
}
