package agent

import (
	"strings"

	"maestro-go-agents/client"
)

// SubTaskExchange is one delegated prompt and the worker's answer.
type SubTaskExchange struct {
	Prompt string
	Result string
}

// WorkerEntry formats the exchange the way the worker sees it in its history.
func (e SubTaskExchange) WorkerEntry() string {
	return "Task: " + e.Prompt + "\nResult: " + e.Result
}

// History accumulates exchanges in execution order alongside the derived
// worker history. Both sequences always have the same length.
type History struct {
	exchanges     []SubTaskExchange
	workerHistory []string
}

// Append records one finished iteration.
func (h *History) Append(prompt, result string) SubTaskExchange {
	exchange := SubTaskExchange{Prompt: prompt, Result: result}
	h.exchanges = append(h.exchanges, exchange)
	h.workerHistory = append(h.workerHistory, exchange.WorkerEntry())
	return exchange
}

func (h *History) Len() int {
	return len(h.exchanges)
}

// Exchanges returns a copy of the exchange sequence.
func (h *History) Exchanges() []SubTaskExchange {
	out := make([]SubTaskExchange, len(h.exchanges))
	copy(out, h.exchanges)
	return out
}

// WorkerHistory returns a copy of the worker history.
func (h *History) WorkerHistory() []string {
	out := make([]string, len(h.workerHistory))
	copy(out, h.workerHistory)
	return out
}

// Results returns the result texts in execution order.
func (h *History) Results() []string {
	out := make([]string, len(h.exchanges))
	for i, e := range h.exchanges {
		out[i] = e.Result
	}
	return out
}

// NearContextLimit reports whether the worker history fills 70% of the
// model context window.
func (h *History) NearContextLimit(tc *client.TokenCounter) bool {
	return tc.IsAtThreshold(strings.Join(h.workerHistory, "\n"))
}
