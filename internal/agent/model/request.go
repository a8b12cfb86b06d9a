package model

import "time"

// Request is the single inbound shape. It is never mutated after receipt.
type Request struct {
	UserID    string         `json:"user_id"`
	ChannelID string         `json:"channel_id"`
	Message   string         `json:"message"`
	Tier      Tier           `json:"tier"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Intent is the coarse classification of a message.
type Intent string

const (
	IntentAnalytics    Intent = "analytics"
	IntentInsight      Intent = "insight"
	IntentReport       Intent = "report"
	IntentMemoryRecall Intent = "memory-recall"
	IntentAction       Intent = "action"
	IntentSearch       Intent = "search"
	IntentTopVideo     Intent = "top-video"
	IntentGrowth       Intent = "growth"
	IntentAccount      Intent = "account"
	IntentStrategy     Intent = "strategy"
	IntentFallback     Intent = "fallback"
)

// Intents is the closed set of intents.
var Intents = []Intent{
	IntentAnalytics, IntentInsight, IntentReport, IntentMemoryRecall, IntentAction, IntentSearch,
	IntentTopVideo, IntentGrowth, IntentAccount, IntentStrategy, IntentFallback,
}

// Valid reports whether i belongs to the closed set.
func (i Intent) Valid() bool {
	for _, known := range Intents {
		if i == known {
			return true
		}
	}
	return false
}

// Period is an analytics lookback window.
type Period string

const (
	Period7d  Period = "7d"
	Period28d Period = "28d"
)

// Days returns the window length.
func (p Period) Days() int {
	if p == Period28d {
		return 28
	}
	return 7
}

// PlanStep is one tool call with its bound input.
type PlanStep struct {
	Tool      string         `json:"tool"`
	Input     map[string]any `json:"input"`
	DependsOn []string       `json:"depends_on,omitempty"`
	Critical  bool           `json:"critical,omitempty"`
	Optional  bool           `json:"optional,omitempty"`
}

// ExecutionPlan is immutable once the planner returns it. It may be empty.
type ExecutionPlan struct {
	Steps []PlanStep `json:"steps"`
}

// Tools returns the tool identifiers in plan order.
func (p ExecutionPlan) Tools() []string {
	out := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		out = append(out, s.Tool)
	}
	return out
}

// PlanResult is what the planner hands to the executor.
type PlanResult struct {
	Intent        Intent        `json:"intent"`
	Subtype       string        `json:"subtype"`
	Rule          string        `json:"rule"`
	Plan          ExecutionPlan `json:"plan"`
	Justification string        `json:"justification"`
	Confidence    float64       `json:"confidence"`
	Period        Period        `json:"period"`
	Prompt        string        `json:"prompt"`
	PlannedAt     time.Time     `json:"planned_at"`
}
