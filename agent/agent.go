package agent

// Role names identify an agent in logs, errors and usage accounting.
const (
	ControllerRole = "controller"
	WorkerRole     = "worker"
	RefinerRole    = "refiner"
)

// DefaultMaxOutputTokens bounds every model response unless configured otherwise.
const DefaultMaxOutputTokens = 4000

// Config holds the configuration parameters for an agent.
type Config struct {
	Name            string
	Model           string
	MaxOutputTokens int
}
