package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Workspace handles artifact writes within the output directory.
type Workspace struct {
	dir string
}

// NewWorkspace creates dir if needed. An empty dir means the working directory.
func NewWorkspace(dir string) (*Workspace, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Workspace{dir: abs}, nil
}

// WriteFile writes content to a file in the workspace and returns its
// absolute path. Only .md and .json files are allowed.
func (w *Workspace) WriteFile(filename string, content []byte) (string, error) {
	if !strings.HasSuffix(filename, ".md") && !strings.HasSuffix(filename, ".json") {
		return "", fmt.Errorf("only .md and .json files are allowed: %s", filename)
	}
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("invalid filename: %s", filename)
	}

	path := filepath.Join(w.dir, filename)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (w *Workspace) Dir() string {
	return w.dir
}
