package agent

import (
	"sync"
	"time"

	"maestro-go-agents/client"
)

// TokenUsage represents token consumption and cost for one or more calls.
type TokenUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost_usd"`
}

func (t *TokenUsage) add(inputTokens, outputTokens int, cost float64) {
	t.InputTokens += inputTokens
	t.OutputTokens += outputTokens
	t.TotalTokens += inputTokens + outputTokens
	t.Cost += cost
}

// RoleUsage tracks usage for one agent role.
type RoleUsage struct {
	Role        string     `json:"role"`
	Model       string     `json:"model"`
	Usage       TokenUsage `json:"usage"`
	CallCount   int        `json:"call_count"`
	LastUpdated time.Time  `json:"last_updated"`
}

// UsageReport is a point-in-time copy of a UsageTracker.
type UsageReport struct {
	TotalUsage   TokenUsage            `json:"total_usage"`
	RoleUsage    map[string]*RoleUsage `json:"role_usage"`
	SessionStart time.Time             `json:"session_start"`
}

// UsageTracker tracks token usage across the roles of a run.
type UsageTracker struct {
	total        TokenUsage
	roles        map[string]*RoleUsage
	sessionStart time.Time
	mu           sync.RWMutex
}

func NewUsageTracker() *UsageTracker {
	return &UsageTracker{
		roles:        make(map[string]*RoleUsage),
		sessionStart: time.Now(),
	}
}

// RecordUsage records one call in a thread-safe manner. Cost is estimated
// from the model's price table.
func (ut *UsageTracker) RecordUsage(role, model string, inputTokens, outputTokens int) {
	cost := client.EstimateCost(model, inputTokens, outputTokens)

	ut.mu.Lock()
	defer ut.mu.Unlock()

	usage := ut.roles[role]
	if usage == nil {
		usage = &RoleUsage{Role: role}
		ut.roles[role] = usage
	}
	usage.Model = model
	usage.Usage.add(inputTokens, outputTokens, cost)
	usage.CallCount++
	usage.LastUpdated = time.Now()

	ut.total.add(inputTokens, outputTokens, cost)
}

func (ut *UsageTracker) Total() TokenUsage {
	ut.mu.RLock()
	defer ut.mu.RUnlock()
	return ut.total
}

// RoleUsage returns the usage of one role, zero if it made no calls.
func (ut *UsageTracker) RoleUsage(role string) TokenUsage {
	ut.mu.RLock()
	defer ut.mu.RUnlock()
	if usage, ok := ut.roles[role]; ok {
		return usage.Usage
	}
	return TokenUsage{}
}

// Report returns a copy safe to read while calls continue.
func (ut *UsageTracker) Report() UsageReport {
	ut.mu.RLock()
	defer ut.mu.RUnlock()

	roles := make(map[string]*RoleUsage, len(ut.roles))
	for name, usage := range ut.roles {
		copied := *usage
		roles[name] = &copied
	}
	return UsageReport{
		TotalUsage:   ut.total,
		RoleUsage:    roles,
		SessionStart: ut.sessionStart,
	}
}
