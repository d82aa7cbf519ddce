// Package workspace manages the taskmind working directory: the sqlite
// database location and the prompt template overrides live under it.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aatumaykin/taskmind/internal/config"
)

// SubdirPrompts holds per-template prompt overrides.
const SubdirPrompts = "prompts"

// Workspace represents the taskmind working directory.
type Workspace struct {
	path string
}

// New creates a Workspace from the configuration. The configured path has
// already been expanded by the config loader.
func New(cfg config.WorkspaceConfig) *Workspace {
	return &Workspace{path: cfg.Path}
}

// Path returns the workspace path.
func (w *Workspace) Path() string {
	return w.path
}

// Subpath returns the path of a workspace subdirectory.
func (w *Workspace) Subpath(name string) string {
	return filepath.Join(w.path, name)
}

// EnsureDir creates the workspace directory if it doesn't exist.
func (w *Workspace) EnsureDir() error {
	if w.path == "" {
		return fmt.Errorf("workspace path is empty")
	}

	info, err := os.Stat(w.path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("workspace path exists but is not a directory: %s", w.path)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to access workspace path %s: %w", w.path, err)
	}

	if err := os.MkdirAll(w.path, 0755); err != nil {
		return fmt.Errorf("failed to create workspace directory %s: %w", w.path, err)
	}
	return nil
}

// EnsureSubpath creates a subdirectory within the workspace if needed.
func (w *Workspace) EnsureSubpath(name string) error {
	if err := w.EnsureDir(); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("subdirectory name is empty")
	}

	subpath := w.Subpath(name)
	info, err := os.Stat(subpath)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("subdirectory path exists but is not a directory: %s", subpath)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to access subdirectory %s: %w", subpath, err)
	}

	return os.MkdirAll(subpath, 0755)
}
