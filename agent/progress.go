package agent

// Progress statuses.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// ProgressUpdate represents a status update from the loop.
type ProgressUpdate struct {
	Role      string
	Status    string
	Message   string
	Iteration int
	State     State
	Err       error
	// Usage is the run total at the time of the update.
	Usage TokenUsage
}
