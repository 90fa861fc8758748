package janitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkNodeDir(t *testing.T, root, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.Mkdir(path, 0o755))
	old := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, old, old))
	return path
}

func TestSweepRemovesOldOrphans(t *testing.T) {
	root := t.TempDir()
	old := mkNodeDir(t, root, "node_1_ab12cd", time.Hour)

	j := New(root)
	result, err := j.Sweep(time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{old}, result.Removed)

	_, statErr := os.Stat(old)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSweepKeepsRecentDirectories(t *testing.T) {
	root := t.TempDir()
	fresh := mkNodeDir(t, root, "node_2_ef34gh", time.Second)

	j := New(root)
	result, err := j.Sweep(time.Hour)
	require.NoError(t, err)
	assert.Empty(t, result.Removed)
	assert.Equal(t, []string{fresh}, result.Kept)

	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestSweepIgnoresUnrelatedDirectories(t *testing.T) {
	root := t.TempDir()
	other := filepath.Join(root, "not_a_node_dir")
	require.NoError(t, os.Mkdir(other, 0o755))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(other, old, old))

	j := New(root)
	result, err := j.Sweep(time.Minute)
	require.NoError(t, err)
	assert.Empty(t, result.Removed)
	assert.Empty(t, result.Kept)

	_, err = os.Stat(other)
	assert.NoError(t, err)
}

func TestSweepIgnoresBareNodeIDWithoutSuffix(t *testing.T) {
	root := t.TempDir()
	bare := mkNodeDir(t, root, "node_3", time.Hour)

	j := New(root)
	result, err := j.Sweep(time.Minute)
	require.NoError(t, err)
	assert.Empty(t, result.Removed)

	_, err = os.Stat(bare)
	assert.NoError(t, err)
}

func TestSweepOnMissingTempRoot(t *testing.T) {
	j := New(filepath.Join(t.TempDir(), "does-not-exist"))
	result, err := j.Sweep(time.Minute)
	require.NoError(t, err)
	assert.Empty(t, result.Removed)
}
