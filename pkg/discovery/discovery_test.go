package discovery

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanClaimsAndUnlinksAdvertisement(t *testing.T) {
	dir := t.TempDir()
	secret := base64.StdEncoding.EncodeToString([]byte("a-shared-secret-value-32-bytes!"))
	_, err := Advertise(dir, WorkerAd{ID: "w1", Host: "127.0.0.1", Port: 9001, Secret: secret})
	require.NoError(t, err)

	s, err := NewScanner(dir)
	require.NoError(t, err)

	found, err := s.Scan()
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "w1", found[0].Ad.ID)

	_, statErr := os.Stat(filepath.Join(dir, "w1.json"))
	assert.True(t, os.IsNotExist(statErr), "advertisement file should be unlinked after claim")
}

func TestScanBlacklistsUnparseableFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("not json"), 0o644))

	s, err := NewScanner(dir)
	require.NoError(t, err)

	found, err := s.Scan()
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = s.Scan()
	require.NoError(t, err)
	assert.Empty(t, found, "blacklisted file should not be retried")
}

func TestShouldScanRespectsMinInterval(t *testing.T) {
	dir := t.TempDir()
	s, err := NewScanner(dir)
	require.NoError(t, err)

	_, err = s.Scan()
	require.NoError(t, err)

	assert.False(t, s.ShouldScan(time.Now()))
	assert.True(t, s.ShouldScan(time.Now().Add(MinInterval+time.Second)))
}

func TestLoadWorkersFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workers:
  - id: w1
    host: 10.0.0.1
    port: 9001
    secret: c2VjcmV0
`), 0o644))

	workers, err := LoadWorkersFile(path)
	require.NoError(t, err)
	require.Len(t, workers, 1)
	assert.Equal(t, "w1", workers[0].ID)
	assert.Equal(t, 9001, workers[0].Port)
}
