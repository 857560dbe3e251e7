package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"maestro-go-agents/attachment"
	"maestro-go-agents/client"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// State is a Loop Controller state.
type State string

const (
	StateStart                 State = "START"
	StateIterating             State = "ITERATING"
	StateDone                  State = "DONE"
	StateCancelled             State = "CANCELLED"
	StateFailed                State = "FAILED"
	StateMaxIterationsExceeded State = "MAX_ITERATIONS_EXCEEDED"
	StateRefining              State = "REFINING"
	StateFinished              State = "FINISHED"
	StateRefineFailed          State = "REFINE_FAILED"
)

var ErrEmptyObjective = errors.New("objective must not be empty")

// Decider is the controller role.
type Decider interface {
	Decide(ctx context.Context, objective string, bundle attachment.Bundle, priorResults []string) (Decision, error)
}

// Executor is the worker role.
type Executor interface {
	Execute(ctx context.Context, prompt string, workerHistory []string) (string, error)
}

// Synthesizer is the refiner role.
type Synthesizer interface {
	Refine(ctx context.Context, objective string, bundle attachment.Bundle, results []string) (string, error)
}

type LoopConfig struct {
	Controller Decider
	Worker     Executor
	Refiner    Synthesizer
	// MaxIterations caps delegated sub-tasks; zero leaves the loop unbounded.
	MaxIterations int
	Tracker       *UsageTracker
	Logger        *log.Logger
}

// RunResult is everything one run produced.
type RunResult struct {
	ID            string
	Objective     string
	Attachments   attachment.Bundle
	Exchanges     []SubTaskExchange
	WorkerHistory []string
	// ExitState is how iteration ended: DONE, CANCELLED, FAILED or
	// MAX_ITERATIONS_EXCEEDED.
	ExitState  State
	FinalState State
	Refined    string
	HasRefined bool
	// LoopErr is the controller or worker failure that ended iteration.
	LoopErr error
	// Err is the refiner failure, if any.
	Err        error
	Iterations int
	Usage      UsageReport
	StartedAt  time.Time
	FinishedAt time.Time
}

// Results returns the sub-task results in execution order.
func (r *RunResult) Results() []string {
	out := make([]string, len(r.Exchanges))
	for i, e := range r.Exchanges {
		out[i] = e.Result
	}
	return out
}

// Loop drives controller, worker and refiner through one run at a time.
type Loop struct {
	config   LoopConfig
	logger   *log.Logger
	counter  *client.TokenCounter
	progress chan ProgressUpdate
}

func NewLoop(config LoopConfig) *Loop {
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}
	if config.Tracker == nil {
		config.Tracker = NewUsageTracker()
	}
	return &Loop{
		config:   config,
		logger:   logger,
		counter:  client.DefaultTokenCounter(),
		progress: make(chan ProgressUpdate, 100),
	}
}

// Progress returns the progress channel for UI updates. Updates are dropped
// when nobody drains it.
func (l *Loop) Progress() <-chan ProgressUpdate {
	return l.progress
}

func (l *Loop) sendProgress(update ProgressUpdate) {
	update.Usage = l.config.Tracker.Total()
	select {
	case l.progress <- update:
	default:
	}
}

// Run executes one objective to completion. ctx is the cancellation signal:
// it is checked only between iterations, and calls already in flight finish.
// The returned error is ErrEmptyObjective (with a nil result) or the refiner
// failure also stored in the result.
func (l *Loop) Run(ctx context.Context, objective string, bundle attachment.Bundle) (*RunResult, error) {
	if strings.TrimSpace(objective) == "" {
		return nil, ErrEmptyObjective
	}

	result := &RunResult{
		ID:          uuid.NewString(),
		Objective:   objective,
		Attachments: bundle,
		StartedAt:   time.Now(),
	}
	logger := l.logger.With("run_id", result.ID)
	logger.Info("Run started", "state", StateStart, "text_file", bundle.TextFileName(), "image", bundle.ImageName())

	callCtx := context.WithoutCancel(ctx)
	history := &History{}

	result.ExitState, result.LoopErr = l.iterate(ctx, callCtx, logger, result, history)
	result.Exchanges = history.Exchanges()
	result.WorkerHistory = history.WorkerHistory()

	logger.Info("Iteration ended", "state", result.ExitState, "exchanges", len(result.Exchanges))
	if result.LoopErr != nil {
		logger.Error("Iteration failed", "error", result.LoopErr, "role", failedRole(result.LoopErr))
	}

	l.refine(callCtx, logger, result)

	result.Usage = l.config.Tracker.Report()
	result.FinishedAt = time.Now()
	logger.Info("Run ended",
		"state", result.FinalState,
		"total_tokens", result.Usage.TotalUsage.TotalTokens,
		"expected_cost_usd", result.Usage.TotalUsage.Cost,
		"duration", result.FinishedAt.Sub(result.StartedAt),
	)
	return result, result.Err
}

func (l *Loop) iterate(ctx, callCtx context.Context, logger *log.Logger, result *RunResult, history *History) (State, error) {
	for {
		if ctx.Err() != nil {
			l.sendProgress(ProgressUpdate{Status: StatusCompleted, State: StateCancelled, Message: "Run cancelled", Iteration: result.Iterations})
			return StateCancelled, nil
		}
		if l.config.MaxIterations > 0 && history.Len() >= l.config.MaxIterations {
			l.sendProgress(ProgressUpdate{Status: StatusCompleted, State: StateMaxIterationsExceeded, Message: "Iteration limit reached", Iteration: result.Iterations})
			return StateMaxIterationsExceeded, nil
		}

		result.Iterations++
		iteration := result.Iterations
		logger.Debug("Iteration started", "state", StateIterating, "iteration", iteration)

		l.sendProgress(ProgressUpdate{Role: ControllerRole, Status: StatusStarted, State: StateIterating, Iteration: iteration, Message: "Deciding the next sub-task..."})
		decision, err := l.config.Controller.Decide(callCtx, result.Objective, result.Attachments, history.Results())
		if err != nil {
			l.sendProgress(ProgressUpdate{Role: ControllerRole, Status: StatusError, State: StateFailed, Iteration: iteration, Err: err, Message: err.Error()})
			return StateFailed, err
		}
		if decision.Complete {
			l.sendProgress(ProgressUpdate{Role: ControllerRole, Status: StatusCompleted, State: StateDone, Iteration: iteration, Message: decision.Raw})
			return StateDone, nil
		}
		l.sendProgress(ProgressUpdate{Role: ControllerRole, Status: StatusCompleted, State: StateIterating, Iteration: iteration, Message: decision.NextTask})

		l.sendProgress(ProgressUpdate{Role: WorkerRole, Status: StatusStarted, State: StateIterating, Iteration: iteration, Message: "Executing sub-task..."})
		output, err := l.config.Worker.Execute(callCtx, decision.NextTask, history.WorkerHistory())
		if err != nil {
			l.sendProgress(ProgressUpdate{Role: WorkerRole, Status: StatusError, State: StateFailed, Iteration: iteration, Err: err, Message: err.Error()})
			return StateFailed, err
		}
		history.Append(decision.NextTask, output)
		l.sendProgress(ProgressUpdate{Role: WorkerRole, Status: StatusCompleted, State: StateIterating, Iteration: iteration, Message: output})

		if history.NearContextLimit(l.counter) {
			logger.Warn("Worker history is close to the context window", "iteration", iteration, "exchanges", history.Len())
		}
	}
}

func (l *Loop) refine(ctx context.Context, logger *log.Logger, result *RunResult) {
	logger.Info("Refining", "state", StateRefining, "results", len(result.Exchanges))
	l.sendProgress(ProgressUpdate{Role: RefinerRole, Status: StatusStarted, State: StateRefining, Iteration: result.Iterations, Message: "Refining the final output..."})

	refined, err := l.config.Refiner.Refine(ctx, result.Objective, result.Attachments, result.Results())
	if err != nil {
		result.FinalState = StateRefineFailed
		result.Err = err
		logger.Error("Refinement failed", "error", err, "role", failedRole(err))
		l.sendProgress(ProgressUpdate{Role: RefinerRole, Status: StatusError, State: StateRefineFailed, Iteration: result.Iterations, Err: err, Message: err.Error()})
		return
	}

	result.FinalState = StateFinished
	result.Refined = refined
	result.HasRefined = true
	l.sendProgress(ProgressUpdate{Role: RefinerRole, Status: StatusCompleted, State: StateFinished, Iteration: result.Iterations, Message: "Final output ready"})
}

// failedRole names the agent role behind err, or "unknown".
func failedRole(err error) string {
	var gwErr *client.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Role
	}
	return "unknown"
}

// Describe is the user-facing account of how a run ended.
func (r *RunResult) Describe() string {
	var b strings.Builder
	switch r.ExitState {
	case StateDone:
		b.WriteString("Objective achieved")
	case StateCancelled:
		b.WriteString("Run cancelled")
	case StateMaxIterationsExceeded:
		b.WriteString("Iteration limit reached")
	case StateFailed:
		fmt.Fprintf(&b, "Stopped after a %s failure: %v", failedRole(r.LoopErr), r.LoopErr)
	}
	fmt.Fprintf(&b, " after %d sub-task(s). ", len(r.Exchanges))
	if r.FinalState == StateRefineFailed {
		fmt.Fprintf(&b, "Failed to generate the refined final output: %v", r.Err)
	} else {
		b.WriteString("Refined output ready.")
	}
	return b.String()
}
