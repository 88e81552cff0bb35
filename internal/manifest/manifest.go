// Package manifest provides file manifests that scope plugin writes beneath a
// base directory and record every file produced.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/leapstack-labs/leapbuild/pkg/core"
)

// FileManifest is a core.Manifest backed by an afero filesystem.
type FileManifest struct {
	fs      afero.Fs
	baseDir string

	mu    sync.Mutex
	files map[string]struct{}
}

var _ core.Manifest = (*FileManifest)(nil)

// New creates a manifest rooted at baseDir. Nothing is created on disk until
// the first write.
func New(fs afero.Fs, baseDir string) *FileManifest {
	return &FileManifest{
		fs:      fs,
		baseDir: filepath.Clean(baseDir),
		files:   make(map[string]struct{}),
	}
}

// NewFactory returns a core.ManifestFactory creating manifests on fs.
func NewFactory(fs afero.Fs) core.ManifestFactory {
	return func(baseDir string) core.Manifest {
		return New(fs, baseDir)
	}
}

// BaseDir returns the manifest root.
func (m *FileManifest) BaseDir() string {
	return m.baseDir
}

// Fs returns the filesystem the manifest writes to.
func (m *FileManifest) Fs() afero.Fs {
	return m.fs
}

// WriteFile writes data to path, relative to the base directory, creating
// parent directories as needed. Paths escaping the base directory are
// rejected.
func (m *FileManifest) WriteFile(path string, data []byte) (string, error) {
	full, err := m.resolve(path)
	if err != nil {
		return "", err
	}
	if err := m.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := afero.WriteFile(m.fs, full, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	m.record(full)
	return full, nil
}

// AddFile records a file created outside the manifest.
func (m *FileManifest) AddFile(path string) string {
	full := path
	if !filepath.IsAbs(path) {
		full = filepath.Join(m.baseDir, path)
	}
	full = filepath.Clean(full)
	m.record(full)
	return full
}

// Files returns all recorded paths, sorted.
func (m *FileManifest) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	files := make([]string, 0, len(m.files))
	for f := range m.files {
		files = append(files, f)
	}
	slices.Sort(files)
	return files
}

// ReadFile reads a recorded file. It is used by tests and tooling that
// inspect plugin output.
func (m *FileManifest) ReadFile(path string) ([]byte, error) {
	full, err := m.resolve(path)
	if err != nil {
		return nil, err
	}
	return afero.ReadFile(m.fs, full)
}

func (m *FileManifest) resolve(path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("manifest paths must be relative: %s", path)
	}
	full := filepath.Join(m.baseDir, path)
	rel, err := filepath.Rel(m.baseDir, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %s escapes manifest directory %s", path, m.baseDir)
	}
	return full, nil
}

func (m *FileManifest) record(path string) {
	m.mu.Lock()
	m.files[path] = struct{}{}
	m.mu.Unlock()
}
