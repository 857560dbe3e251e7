package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"maestro-go-agents/client"

	"github.com/invopop/jsonschema"
)

// CompletionMarker is the phrase a controller response carries once the
// objective is satisfied.
const CompletionMarker = "The task is complete:"

// CompletionSignal reports whether a controller response ends the loop.
type CompletionSignal func(response string) bool

// ContainsMarker is the default CompletionSignal.
func ContainsMarker(response string) bool {
	return strings.Contains(response, CompletionMarker)
}

// Decision is what the controller concluded for one iteration.
type Decision struct {
	Complete bool
	// NextTask is the prompt handed to the worker when Complete is false.
	NextTask string
	Summary  string
	Raw      string
}

// DecisionParser turns raw controller output into a Decision and tells the
// controller how to phrase that output.
type DecisionParser interface {
	// CompletionClause is the prompt sentence describing how to signal completion.
	CompletionClause() string
	// ResponseSchema is nil for free-text responses.
	ResponseSchema() *client.ResponseSchema
	Parse(raw string) (Decision, error)
}

// Completion modes select a DecisionParser.
const (
	CompletionModeMarker     = "marker"
	CompletionModeStructured = "structured"
)

// ParserFor returns the parser for a completion mode. Empty means marker.
func ParserFor(mode string) (DecisionParser, error) {
	switch mode {
	case "", CompletionModeMarker:
		return MarkerParser{}, nil
	case CompletionModeStructured:
		return NewStructuredParser(), nil
	}
	return nil, fmt.Errorf("unknown completion mode %q", mode)
}

// MarkerParser treats the whole response as the next sub-task prompt unless
// Signal reports completion.
type MarkerParser struct {
	Signal CompletionSignal
}

func (p MarkerParser) CompletionClause() string {
	return "If the previous sub-task results comprehensively address all aspects of the objective, include the phrase '" +
		CompletionMarker + "' at the beginning of your response."
}

func (MarkerParser) ResponseSchema() *client.ResponseSchema { return nil }

func (p MarkerParser) Parse(raw string) (Decision, error) {
	signal := p.Signal
	if signal == nil {
		signal = ContainsMarker
	}
	if strings.TrimSpace(raw) == "" {
		return Decision{}, ErrEmptyDecision
	}
	d := Decision{Raw: raw}
	if signal(raw) {
		d.Complete = true
		d.Summary = raw
		return d, nil
	}
	d.NextTask = raw
	return d, nil
}

// ControllerDecision is the JSON document requested in structured mode.
type ControllerDecision struct {
	Complete bool   `json:"complete" jsonschema_description:"True when the previous sub-task results fully achieve the objective"`
	NextTask string `json:"next_task" jsonschema_description:"Concise and detailed prompt for the next sub-task; empty when complete"`
	Summary  string `json:"summary" jsonschema_description:"Short statement of what was achieved; empty when not complete"`
}

// ErrEmptyDecision means the controller answered with no text at all.
var ErrEmptyDecision = errors.New("controller response is empty")

// ErrNoNextTask means a structured decision was neither complete nor carried
// a next sub-task.
var ErrNoNextTask = errors.New("controller decision has no next task")

// StructuredParser asks for a ControllerDecision via the JSON-schema response
// format instead of scanning for the marker phrase.
type StructuredParser struct {
	schema *client.ResponseSchema
}

func NewStructuredParser() *StructuredParser {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return &StructuredParser{
		schema: &client.ResponseSchema{
			Name:        "controller_decision",
			Description: "Whether the objective is achieved and, if not, the next sub-task prompt",
			Schema:      reflector.Reflect(ControllerDecision{}),
		},
	}
}

func (p *StructuredParser) CompletionClause() string {
	return "Answer with a JSON object. If the previous sub-task results comprehensively address all aspects of the objective, " +
		"set complete to true and put a short statement of the outcome in summary. Otherwise set complete to false and put the subagent prompt in next_task."
}

func (p *StructuredParser) ResponseSchema() *client.ResponseSchema { return p.schema }

func (p *StructuredParser) Parse(raw string) (Decision, error) {
	var out ControllerDecision
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Decision{}, fmt.Errorf("malformed controller decision: %w", err)
	}
	if !out.Complete && strings.TrimSpace(out.NextTask) == "" {
		return Decision{}, ErrNoNextTask
	}
	return Decision{
		Complete: out.Complete,
		NextTask: out.NextTask,
		Summary:  out.Summary,
		Raw:      raw,
	}, nil
}
