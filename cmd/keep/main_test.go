package main

import (
	"bytes"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var initOnce sync.Once

// run executes the root command against a fresh output buffer.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	initOnce.Do(initCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParseID(t *testing.T) {
	id, err := parseID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-3", "abc", "1.5"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestCLIItemLifecycle(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dbFile := filepath.Join(t.TempDir(), "keep.db")

	out, err := run(t, "projects", "create", "Home", "--db", dbFile)
	require.NoError(t, err, out)

	out, err = run(t, "items", "create", "--db", dbFile,
		"--title", "Buy milk", "--body", "2 liters", "--tags", "groceries, errands", "--project", "Home")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Buy milk")

	out, err = run(t, "items", "get", "1", "--db", dbFile)
	require.NoError(t, err, out)
	assert.Contains(t, out, "errands, groceries")
	assert.Contains(t, out, "Project:     Home")
	assert.Contains(t, out, "2 liters")

	out, err = run(t, "tagged", "--db", dbFile, "--tag", "groceries")
	require.NoError(t, err, out)
	assert.Contains(t, out, "1 | Buy milk | false | errands, groceries")

	out, err = run(t, "items", "archive", "1", "--db", dbFile)
	require.NoError(t, err, out)
	assert.Contains(t, out, "archived: true")

	out, err = run(t, "items", "list", "--db", dbFile)
	require.NoError(t, err, out)
	assert.Contains(t, out, "No items found.")

	out, err = run(t, "items", "delete", "1", "--db", dbFile)
	require.NoError(t, err, out)

	out, err = run(t, "db", "check", "--db", dbFile)
	require.NoError(t, err, out)
	assert.Contains(t, out, "No foreign key violations found.")

	_, err = run(t, "items", "get", "1", "--db", dbFile)
	assert.Error(t, err)
}

func TestCLIUpgradeListsComponents(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dbFile := filepath.Join(t.TempDir(), "keep.db")

	out, err := run(t, "db", "upgrade", "--db", dbFile)
	require.NoError(t, err, out)
	assert.Contains(t, out, "items | 1")
	assert.Contains(t, out, "tags | 1")
	assert.Contains(t, out, "projects | 1")
}
