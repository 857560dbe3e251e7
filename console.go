package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"maestro-go-agents/agent"
	"maestro-go-agents/attachment"
	"maestro-go-agents/config"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

var (
	roleStyles = map[string]lipgloss.Style{
		agent.ControllerRole: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		agent.WorkerRole:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575")),
		agent.RefinerRole:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00B8D4")),
	}
	failureStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// consoleRun holds what one non-interactive run needs.
type consoleRun struct {
	cfg       *config.Config
	logger    *log.Logger
	tier      agent.Tier
	objective string
	bundle    attachment.Bundle
	out       io.Writer
	// markdown renders the refined output with glamour instead of raw text.
	markdown bool
}

// runConsole executes one objective and prints progress as it happens. ctx
// cancellation stops the loop at the next iteration boundary.
func runConsole(ctx context.Context, run consoleRun) error {
	gw, closeGateway, err := connect(ctx, run.cfg, run.logger)
	if err != nil {
		return err
	}
	defer closeGateway()

	loop, err := newLoop(run.cfg, gw, run.tier, run.logger)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		printProgress(run.out, loop.Progress(), done)
	}()

	result, runErr := loop.Run(ctx, run.objective, run.bundle)
	close(done)
	wg.Wait()

	if errors.Is(runErr, agent.ErrEmptyObjective) {
		return runErr
	}

	fmt.Fprintln(run.out)
	fmt.Fprintln(run.out, faintStyle.Render(result.Describe()))

	if result.HasRefined {
		fmt.Fprintln(run.out)
		fmt.Fprintln(run.out, lipgloss.NewStyle().Bold(true).Render("Final Output:"))
		body := result.Refined
		if run.markdown {
			if rendered, err := renderMarkdown(result.Refined, 100); err == nil {
				body = rendered
			} else {
				run.logger.Warn("Falling back to raw output", "error", err)
			}
		}
		fmt.Fprintln(run.out, body)
	}

	path, saveErr := saveArtifacts(run.cfg, result, run.logger)
	if path != "" {
		fmt.Fprintf(run.out, "\nFull exchange log saved to %s\n", path)
	}
	if saveErr != nil {
		return saveErr
	}

	if runErr != nil {
		return fmt.Errorf("failed to generate the refined final output: %w", runErr)
	}
	return nil
}

// printProgress writes updates until done is closed, then flushes whatever is
// still buffered.
func printProgress(out io.Writer, updates <-chan agent.ProgressUpdate, done <-chan struct{}) {
	for {
		select {
		case u := <-updates:
			if line := formatProgress(u); line != "" {
				fmt.Fprintln(out, line)
			}
		case <-done:
			for {
				select {
				case u := <-updates:
					if line := formatProgress(u); line != "" {
						fmt.Fprintln(out, line)
					}
				default:
					return
				}
			}
		}
	}
}

func formatProgress(u agent.ProgressUpdate) string {
	style, ok := roleStyles[u.Role]
	if !ok {
		if u.State == agent.StateCancelled || u.State == agent.StateMaxIterationsExceeded {
			return faintStyle.Render(u.Message)
		}
		return ""
	}
	label := style.Render(fmt.Sprintf("[%s #%d]", u.Role, u.Iteration))

	switch u.Status {
	case agent.StatusStarted:
		return label + " " + faintStyle.Render(u.Message)
	case agent.StatusError:
		return label + " " + failureStyle.Render("failed: "+u.Message)
	}

	if u.Role == agent.RefinerRole {
		return label + " " + u.Message + faintStyle.Render(fmt.Sprintf(" (%d tokens, $%.4f)", u.Usage.TotalTokens, u.Usage.Cost))
	}
	return label + "\n" + indent(u.Message)
}

func indent(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}
