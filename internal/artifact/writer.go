package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/Devliang24/casecraft/internal/errors"
	"github.com/Devliang24/casecraft/internal/spec"
)

// Writer persists validated artifacts. One endpoint maps to one file; the
// filename is deterministic in (method, path).
type Writer struct {
	// OutputDir is the root directory for artifact files.
	OutputDir string
	// ByTag nests each artifact under its endpoint's first tag.
	ByTag bool
}

// NewWriter creates a writer rooted at outputDir.
func NewWriter(outputDir string, byTag bool) *Writer {
	if outputDir == "" {
		outputDir = "test_cases"
	}
	return &Writer{OutputDir: outputDir, ByTag: byTag}
}

// PathFor computes the artifact path for an endpoint:
// {method}_{path_slug}.json with separators replaced by underscores and
// braces removed, optionally nested under the first tag.
func (w *Writer) PathFor(endpoint spec.Endpoint) string {
	name := strings.ToLower(endpoint.Method) + "_" + PathSlug(endpoint.Path) + ".json"
	if w.ByTag && len(endpoint.Tags) > 0 {
		return filepath.Join(w.OutputDir, sanitize(endpoint.Tags[0]), name)
	}
	return filepath.Join(w.OutputDir, name)
}

// Write persists the test cases for an endpoint. When the existing file was
// produced from the same fingerprint it short-circuits to skipped; a file
// from a different fingerprint is overwritten. The write is atomic so
// cancellation never leaves a half-written artifact.
func (w *Writer) Write(endpoint spec.Endpoint, fingerprint, previousFingerprint string, cases []TestCase) (path string, skipped bool, err error) {
	path = w.PathFor(endpoint)

	if previousFingerprint == fingerprint {
		if _, statErr := os.Stat(path); statErr == nil {
			return path, true, nil
		}
	}

	data, err := json.MarshalIndent(cases, "", "  ")
	if err != nil {
		return "", false, errors.Wrap(errors.ErrCodeValidation, "marshal test cases", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, errors.Wrap(errors.ErrCodeStateIO, "create output directory", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", false, errors.Wrap(errors.ErrCodeStateIO, "create artifact temp file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", false, errors.Wrap(errors.ErrCodeStateIO, "write artifact", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", false, errors.Wrap(errors.ErrCodeStateIO, "close artifact temp file", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", false, errors.Wrap(errors.ErrCodeStateIO, "rename artifact into place", err)
	}

	return path, false, nil
}

// PathSlug turns a path template into a filename fragment: braces removed,
// separators replaced by underscores.
func PathSlug(path string) string {
	s := strings.Trim(path, "/")
	s = strings.ReplaceAll(s, "{", "")
	s = strings.ReplaceAll(s, "}", "")
	s = strings.ReplaceAll(s, "/", "_")
	if s == "" {
		s = "root"
	}
	return sanitize(s)
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
