package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStatePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), ".casecraft_state.json")
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	s := Open(tempStatePath(t), nil)
	_, ok := s.Get("GET /health")
	assert.False(t, ok)
}

func TestOpenCorruptFileStartsEmpty(t *testing.T) {
	path := tempStatePath(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := Open(path, nil)
	_, ok := s.Get("GET /health")
	assert.False(t, ok)
}

func TestOpenUnknownVersionRebuilds(t *testing.T) {
	path := tempStatePath(t)
	content := `{"version": "99.0", "endpoints": {"GET /x": {"fingerprint": "abc"}}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s := Open(path, nil)
	_, ok := s.Get("GET /x")
	assert.False(t, ok, "entries from unknown versions are discarded")
}

func TestPutPersistsAndReloads(t *testing.T) {
	path := tempStatePath(t)
	s := Open(path, nil)

	es := EndpointState{
		Fingerprint:   "deadbeef",
		LastGenerated: time.Now().UTC(),
		Provider:      "glm",
		Model:         "glm-4",
		TestCaseCount: 6,
		TotalTokens:   1234,
		ArtifactPath:  filepath.Join(t.TempDir(), "get_users.json"),
	}
	require.NoError(t, s.Put("GET /users", es))

	reloaded := Open(path, nil)
	got, ok := reloaded.Get("GET /users")
	require.True(t, ok)
	assert.Equal(t, "deadbeef", got.Fingerprint)
	assert.Equal(t, "glm", got.Provider)
	assert.Equal(t, 6, got.TestCaseCount)

	// The on-disk document is valid version-tagged JSON.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var file File
	require.NoError(t, json.Unmarshal(data, &file))
	assert.Equal(t, FormatVersion, file.Version)
}

func TestIsUnchangedRequiresArtifactOnDisk(t *testing.T) {
	path := tempStatePath(t)
	s := Open(path, nil)

	artifactPath := filepath.Join(t.TempDir(), "get_users.json")

	require.NoError(t, s.Put("GET /users", EndpointState{
		Fingerprint:  "abc",
		ArtifactPath: artifactPath,
	}))

	assert.False(t, s.IsUnchanged("GET /users", "abc"), "artifact missing on disk")

	require.NoError(t, os.WriteFile(artifactPath, []byte("[]"), 0o644))
	assert.True(t, s.IsUnchanged("GET /users", "abc"))
	assert.False(t, s.IsUnchanged("GET /users", "other"), "fingerprint moved")
	assert.False(t, s.IsUnchanged("GET /orders", "abc"), "unknown endpoint")
}

func TestConcurrentPuts(t *testing.T) {
	path := tempStatePath(t)
	s := Open(path, nil)

	var wg sync.WaitGroup
	keys := []string{"GET /a", "GET /b", "GET /c", "POST /a", "POST /b"}
	for _, key := range keys {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			_ = s.Put(k, EndpointState{Fingerprint: k})
		}(key)
	}
	wg.Wait()

	reloaded := Open(path, nil)
	for _, key := range keys {
		got, ok := reloaded.Get(key)
		require.True(t, ok, key)
		assert.Equal(t, key, got.Fingerprint)
	}
}

func TestProjectAndStatistics(t *testing.T) {
	path := tempStatePath(t)
	s := Open(path, nil)

	require.NoError(t, s.SetProject("https://example.com/openapi.json", "cafe"))
	require.NoError(t, s.UpdateStatistics(func(stats *Statistics) {
		stats.TotalEndpoints = 10
		stats.GeneratedCount = 7
		stats.SkippedCount = 2
		stats.FailedCount = 1
	}))

	reloaded := Open(path, nil)
	p := reloaded.Project()
	require.NotNil(t, p)
	assert.Equal(t, "cafe", p.SourceHash)

	snapshot := reloaded.Snapshot()
	assert.Equal(t, 10, snapshot.Statistics.TotalEndpoints)
	assert.Equal(t, 7, snapshot.Statistics.GeneratedCount)
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	s := Open(path, nil)

	require.NoError(t, s.Put("GET /x", EndpointState{Fingerprint: "x"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}
