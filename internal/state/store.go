package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Devliang24/casecraft/internal/errors"
	"github.com/Devliang24/casecraft/internal/log"
)

// DefaultPath is where the state file lives unless overridden.
const DefaultPath = ".casecraft_state.json"

// Store holds the state file in memory and rewrites it atomically after each
// successful endpoint. All access is serialized by a single mutex; no
// blocking I/O happens under the lock beyond the temp write and rename.
type Store struct {
	mu     sync.Mutex
	path   string
	file   File
	logger *log.Logger
}

// Open loads the state file at path. A missing or corrupt file, or an
// unknown format version, yields an empty state with a warning; Open never
// fails for those cases.
func Open(path string, logger *log.Logger) *Store {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = log.Global()
	}

	s := &Store{path: path, file: newFile(), logger: logger}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("cannot read state file, starting fresh", "path", path, "error", err)
		}
		return s
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		logger.Warn("corrupt state file, starting fresh", "path", path, "error", err)
		return s
	}
	if file.Version != FormatVersion {
		logger.Warn("unknown state file version, rebuilding state",
			"path", path, "version", file.Version)
		return s
	}
	if file.Endpoints == nil {
		file.Endpoints = make(map[string]EndpointState)
	}

	s.file = file
	return s
}

// Path returns the on-disk location of the state file.
func (s *Store) Path() string {
	return s.path
}

// Get returns the recorded state for an endpoint key.
func (s *Store) Get(key string) (EndpointState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	es, ok := s.file.Endpoints[key]
	return es, ok
}

// IsUnchanged reports whether the endpoint's recorded fingerprint matches
// and its artifact still exists on disk.
func (s *Store) IsUnchanged(key, fingerprint string) bool {
	es, ok := s.Get(key)
	if !ok || es.Fingerprint != fingerprint || es.ArtifactPath == "" {
		return false
	}
	_, err := os.Stat(es.ArtifactPath)
	return err == nil
}

// Put records a generation result for an endpoint and rewrites the file.
func (s *Store) Put(key string, es EndpointState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.file.Endpoints[key] = es
	return s.flushLocked()
}

// SetProject records the API source identity and rewrites the file.
func (s *Store) SetProject(source, sourceHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.file.Project = &ProjectInfo{
		Source:       source,
		SourceHash:   sourceHash,
		LastModified: time.Now().UTC(),
	}
	return s.flushLocked()
}

// Project returns the recorded API source identity, if any.
func (s *Store) Project() *ProjectInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file.Project == nil {
		return nil
	}
	p := *s.file.Project
	return &p
}

// UpdateStatistics applies fn to the aggregate counters block and rewrites
// the file.
func (s *Store) UpdateStatistics(fn func(*Statistics)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.file.Statistics)
	return s.flushLocked()
}

// Snapshot returns a deep copy of the in-memory state document.
func (s *Store) Snapshot() File {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.file
	out.Endpoints = make(map[string]EndpointState, len(s.file.Endpoints))
	for k, v := range s.file.Endpoints {
		out.Endpoints[k] = v
	}
	if s.file.Project != nil {
		p := *s.file.Project
		out.Project = &p
	}
	return out
}

// flushLocked rewrites the state file atomically: write to a temp file in
// the same directory, then rename over the target.
func (s *Store) flushLocked() error {
	data, err := json.MarshalIndent(s.file, "", "  ")
	if err != nil {
		return errors.NewStateIOError(s.path, err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.NewStateIOError(s.path, err)
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errors.NewStateIOError(s.path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.NewStateIOError(s.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.NewStateIOError(s.path, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.NewStateIOError(s.path, fmt.Errorf("rename: %w", err))
	}
	return nil
}
