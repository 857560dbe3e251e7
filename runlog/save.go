package runlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"maestro-go-agents/agent"
)

var ErrNotRefined = errors.New("runlog: run has no refined output")

// Save writes the artifact for a refined run and returns its absolute path.
func (w *Workspace) Save(result *agent.RunResult, now time.Time) (string, error) {
	if !result.HasRefined {
		return "", ErrNotRefined
	}
	path, err := w.WriteFile(Filename(result.Objective, now), []byte(Render(result)))
	if err != nil {
		return "", fmt.Errorf("failed to save run log: %w", err)
	}
	return path, nil
}

// SaveUsage writes the run's token usage next to its artifact as
// <artifact>.usage.json.
func (w *Workspace) SaveUsage(artifactPath string, report agent.UsageReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal token data: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(artifactPath), ".md") + ".usage.json"
	path, err := w.WriteFile(name, data)
	if err != nil {
		return "", fmt.Errorf("failed to save usage: %w", err)
	}
	return path, nil
}
