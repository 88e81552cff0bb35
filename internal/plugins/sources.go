package plugins

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/leapstack-labs/leapbuild/pkg/core"
)

// modelExtensions are the file types copied by the sources plugin.
var modelExtensions = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// SourcesPlugin copies the model source files into the build output and
// writes a "manifest" file listing them, one relative path per line.
type SourcesPlugin struct {
	fs afero.Fs
}

func (*SourcesPlugin) Name() string             { return "sources" }
func (*SourcesPlugin) Serial() bool             { return false }
func (*SourcesPlugin) RequiresValidModel() bool { return true }

func (p *SourcesPlugin) Execute(_ context.Context, pc *core.PluginContext) error {
	if err := decode(p.Name(), pc.Settings, &struct{}{}); err != nil {
		return err
	}

	var copied []string
	for _, source := range pc.Sources {
		files, err := p.collect(source)
		if err != nil {
			return err
		}
		for _, f := range files {
			data, err := afero.ReadFile(p.fs, f.path)
			if err != nil {
				return fmt.Errorf("failed to read source %s: %w", f.path, err)
			}
			if _, err := pc.Manifest.WriteFile(f.rel, data); err != nil {
				return err
			}
			copied = append(copied, filepath.ToSlash(f.rel))
		}
	}

	if len(copied) == 0 {
		pc.Logger.Debug("no source files to copy")
	}
	_, err := pc.Manifest.WriteFile("manifest", []byte(strings.Join(copied, "\n")))
	return err
}

type sourceFile struct {
	path string
	rel  string
}

// collect lists model files under source. Files inside a directory keep
// their path relative to it; a single file keeps its base name.
func (p *SourcesPlugin) collect(source string) ([]sourceFile, error) {
	info, err := p.fs.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source %s: %w", source, err)
	}
	if !info.IsDir() {
		return []sourceFile{{path: source, rel: filepath.Base(source)}}, nil
	}

	var files []sourceFile
	err = afero.Walk(p.fs, source, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !modelExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		files = append(files, sourceFile{path: path, rel: rel})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk source %s: %w", source, err)
	}
	return files, nil
}
