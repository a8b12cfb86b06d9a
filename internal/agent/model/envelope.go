package model

import (
	"encoding/json"
	"time"
)

// QuotaUsage is reported for tier-limited callers.
type QuotaUsage struct {
	Used      int64 `json:"used"`
	Limit     int64 `json:"limit"`
	Exhausted bool  `json:"exhausted"`
	Degraded  bool  `json:"degraded,omitempty"`
}

// Metadata accompanies every successful or degraded envelope.
type Metadata struct {
	RequestID     string      `json:"request_id"`
	Timestamp     time.Time   `json:"timestamp"`
	Intent        Intent      `json:"intent"`
	Subtype       string      `json:"subtype,omitempty"`
	Confidence    float64     `json:"confidence"`
	Justification string      `json:"justification"`
	Usage         *QuotaUsage `json:"usage,omitempty"`
	Degraded      []string    `json:"degraded,omitempty"`
}

// ErrorBody carries the stable code and a human message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope is the single response shape.
type Envelope struct {
	Success        bool           `json:"success"`
	Content        string         `json:"content"`
	ContentType    string         `json:"content_type"`
	ToolsUsed      []string       `json:"tools_used"`
	ToolOutputs    map[string]any `json:"tool_outputs"`
	StructuredData map[string]any `json:"structured_data"`
	Metadata       *Metadata      `json:"metadata,omitempty"`
	Error          *ErrorBody     `json:"error,omitempty"`
}

// PolicyDenial reports whether the envelope is a bare policy refusal.
func (e Envelope) PolicyDenial() bool {
	return !e.Success && e.Error != nil && e.Error.Code == "PLAN_LIMIT_REACHED"
}

// MarshalJSON emits only {success, error} for policy refusals.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.PolicyDenial() {
		return json.Marshal(struct {
			Success bool       `json:"success"`
			Error   *ErrorBody `json:"error"`
		}{Success: false, Error: e.Error})
	}
	type plain Envelope
	p := plain(e)
	if p.ToolsUsed == nil {
		p.ToolsUsed = []string{}
	}
	return json.Marshal(p)
}
