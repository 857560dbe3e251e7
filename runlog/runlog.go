// Package runlog renders a finished run as a markdown artifact and reads the
// task breakdown back out of one.
package runlog

import (
	"errors"
	"fmt"
	"strings"

	"maestro-go-agents/agent"
)

var (
	breakdownBanner = banner("Task Breakdown")
	refinedBanner   = banner("Refined Final Output")
)

func banner(title string) string {
	return strings.Repeat("=", 40) + " " + title + " " + strings.Repeat("=", 40)
}

const (
	promptLabel = "\nPrompt: "
	resultLabel = "\nResult: "
)

var ErrNoBreakdown = errors.New("runlog: no task breakdown section")

// Render formats a run: objective, attachment names, every exchange in order
// and the refined output.
func Render(result *agent.RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\n\n", result.Objective)
	fmt.Fprintf(&b, "Text File: %s\n\n", result.Attachments.TextFileName())
	fmt.Fprintf(&b, "Image: %s\n\n", result.Attachments.ImageName())

	b.WriteString(breakdownBanner + "\n\n")
	for i, exchange := range result.Exchanges {
		fmt.Fprintf(&b, "Task %d:", i+1)
		b.WriteString(promptLabel + exchange.Prompt)
		b.WriteString(resultLabel + exchange.Result + "\n\n")
	}

	b.WriteString(refinedBanner + "\n\n")
	b.WriteString(result.Refined)
	return b.String()
}

// ParseBreakdown recovers the exchanges from a rendered artifact. A prompt
// containing "\nResult: " cannot be told apart from its result.
func ParseBreakdown(text string) ([]agent.SubTaskExchange, error) {
	start := strings.Index(text, breakdownBanner+"\n\n")
	if start < 0 {
		return nil, ErrNoBreakdown
	}
	section := text[start+len(breakdownBanner)+2:]
	end := strings.Index(section, refinedBanner)
	if end < 0 {
		return nil, fmt.Errorf("runlog: breakdown section is not terminated")
	}
	section = strings.TrimSuffix(section[:end], "\n\n")

	var exchanges []agent.SubTaskExchange
	for i := 1; section != ""; i++ {
		head := fmt.Sprintf("Task %d:%s", i, promptLabel)
		if !strings.HasPrefix(section, head) {
			return nil, fmt.Errorf("runlog: expected task %d header", i)
		}
		section = section[len(head):]

		split := strings.Index(section, resultLabel)
		if split < 0 {
			return nil, fmt.Errorf("runlog: task %d has no result", i)
		}
		prompt := section[:split]
		section = section[split+len(resultLabel):]

		next := strings.Index(section, fmt.Sprintf("\n\nTask %d:%s", i+1, promptLabel))
		if next < 0 {
			exchanges = append(exchanges, agent.SubTaskExchange{Prompt: prompt, Result: section})
			break
		}
		exchanges = append(exchanges, agent.SubTaskExchange{Prompt: prompt, Result: section[:next]})
		section = section[next+2:]
	}
	return exchanges, nil
}
