// Package catalog loads the voice and refusal catalog and keeps it fresh
// while the file changes on disk.
//
// A catalog file looks like:
//
//	voices:
//	  warm: sohee
//	  calm: ono_anna
//	refusal_phrases:
//	  - "unable to read"
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Catalog is the tunable part of the reading pipeline.
type Catalog struct {
	// Voices maps voice style names to model speakers.
	Voices map[string]string `yaml:"voices"`
	// RefusalPhrases are added to the built-in refusal phrases.
	RefusalPhrases []string `yaml:"refusal_phrases"`
}

// Validate rejects blank style names and speakers.
func (c *Catalog) Validate() error {
	for style, speaker := range c.Voices {
		if strings.TrimSpace(style) == "" {
			return fmt.Errorf("voices: empty style name")
		}
		if strings.TrimSpace(speaker) == "" {
			return fmt.Errorf("voices: style %q has no speaker", style)
		}
	}
	return nil
}

// Loader reads a catalog file and hot-reloads it.
type Loader struct {
	path     string
	onChange func(*Catalog)
}

// NewLoader creates a loader for path. onChange, if set, runs after every
// successful load.
func NewLoader(path string, onChange func(*Catalog)) *Loader {
	return &Loader{
		path:     filepath.Clean(path),
		onChange: onChange,
	}
}

// Load reads and applies the catalog. A failed load does not call onChange,
// so the running services keep the previous catalog.
func (l *Loader) Load() (*Catalog, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %q: %w", l.path, err)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog %q: %w", l.path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("catalog %q: %w", l.path, err)
	}

	if l.onChange != nil {
		l.onChange(&c)
	}
	return &c, nil
}

// WatchAndReload watches the catalog file and reloads it on change.
// The parent directory is watched so atomic renames by editors are seen.
// This blocks until the done channel is closed.
func (l *Loader) WatchAndReload(done <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch dir %q: %w", dir, err)
	}

	for {
		select {
		case <-done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != l.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if _, err := l.Load(); err != nil {
					slog.Warn("catalog: reload failed, keeping previous",
						slog.String("path", l.path), slog.String("error", err.Error()))
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
