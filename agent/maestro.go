package agent

import (
	"fmt"

	"maestro-go-agents/client"

	"github.com/charmbracelet/log"
)

// Options configure the agents of one run.
type Options struct {
	Models          Models
	WorkerTier      Tier
	MaxOutputTokens int
	MaxIterations   int
	CompletionMode  string
	Logger          *log.Logger
}

// New wires controller, worker and refiner over gateway into a Loop with a
// fresh UsageTracker. Controller and refiner always run on the high tier.
func New(gateway client.Gateway, opts Options) (*Loop, error) {
	parser, err := ParserFor(opts.CompletionMode)
	if err != nil {
		return nil, err
	}
	tier := opts.WorkerTier
	if tier == "" {
		tier = TierFast
	}
	if _, err := ParseTier(string(tier)); err != nil {
		return nil, fmt.Errorf("worker tier: %w", err)
	}

	tracker := NewUsageTracker()
	high := opts.Models.Model(TierHigh)

	return NewLoop(LoopConfig{
		Controller:    NewControllerAgent(gateway, high, opts.MaxOutputTokens, parser, tracker),
		Worker:        NewWorkerAgent(gateway, opts.Models.Model(tier), opts.MaxOutputTokens, tracker),
		Refiner:       NewRefinerAgent(gateway, high, opts.MaxOutputTokens, tracker),
		MaxIterations: opts.MaxIterations,
		Tracker:       tracker,
		Logger:        opts.Logger,
	}), nil
}
