// Package planner classifies a message into an intent with deterministic,
// ordered rules and expands the intent's template into an execution plan.
package planner

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Chative-creator-core/server/internal/agent/model"
)

const (
	matchedConfidence  = 1.0
	fallbackConfidence = 0.5
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	quoted     = regexp.MustCompile(`["“”]([^"“”]+)["“”]`)
)

// Hints let a caller pin parts of the classification, typically from request metadata.
type Hints struct {
	Intent model.Intent
	Period model.Period
}

// HintsFromMetadata reads "intent" and "period" keys.
func HintsFromMetadata(md map[string]any) Hints {
	var h Hints
	if v, ok := md["intent"].(string); ok && model.Intent(v).Valid() {
		h.Intent = model.Intent(v)
	}
	if v, ok := md["period"].(string); ok && (model.Period(v) == model.Period7d || model.Period(v) == model.Period28d) {
		h.Period = model.Period(v)
	}
	return h
}

type Planner struct {
	rules *RuleSet
	now   func() time.Time
}

type Option func(*Planner)

func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

func New(rules *RuleSet, opts ...Option) *Planner {
	p := &Planner{rules: rules, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Normalize lowercases, trims and collapses whitespace.
func Normalize(message string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(message)), " ")
}

// Plan classifies req.Message and binds the selected template to the request.
// It performs no I/O.
func (p *Planner) Plan(req model.Request, hints Hints) model.PlanResult {
	text := Normalize(req.Message)
	var trace []string

	res := model.PlanResult{Intent: model.IntentFallback, Rule: "fallback", Confidence: fallbackConfidence}
	var rule *Rule
	switch {
	case hints.Intent != "":
		res.Intent, res.Rule, res.Confidence = hints.Intent, "hint", matchedConfidence
		trace = append(trace, fmt.Sprintf("intent %q from hint", hints.Intent))
	default:
		for i := range p.rules.Rules {
			r := &p.rules.Rules[i]
			if m, ok := firstMatch(r.compiled, text); ok {
				rule = r
				res.Intent, res.Rule, res.Confidence = r.Intent, r.Name, matchedConfidence
				trace = append(trace, fmt.Sprintf("rule %q (priority %d) matched %q", r.Name, r.Priority, m))
				break
			}
		}
		if rule == nil {
			trace = append(trace, "no rule matched; fallback")
		}
	}

	tpl := p.rules.byIntent[res.Intent]
	sub := p.selectSubtype(tpl, rule, text, &trace)
	res.Subtype = sub.Name
	res.Prompt = sub.Prompt

	res.Period = p.period(rule, hints, text)
	trace = append(trace, "period "+string(res.Period))

	res.Plan = bind(sub.Steps, req, res.Period, extractTitle(req.Message))
	res.Justification = strings.Join(trace, "; ")
	res.PlannedAt = p.now().UTC()
	return res
}

func (p *Planner) selectSubtype(tpl *Template, rule *Rule, text string, trace *[]string) *Subtype {
	if rule != nil && rule.Subtype != "" {
		*trace = append(*trace, fmt.Sprintf("subtype %q pinned by rule", rule.Subtype))
		return tpl.subtype(rule.Subtype)
	}
	for i := range tpl.Subtypes {
		s := &tpl.Subtypes[i]
		if len(s.compiled) == 0 {
			continue
		}
		if m, ok := firstMatch(s.compiled, text); ok {
			*trace = append(*trace, fmt.Sprintf("subtype %q matched %q", s.Name, m))
			return s
		}
	}
	*trace = append(*trace, fmt.Sprintf("subtype %q", defaultSubtype))
	return tpl.subtype(defaultSubtype)
}

func (p *Planner) period(rule *Rule, hints Hints, text string) model.Period {
	if hints.Period != "" {
		return hints.Period
	}
	if rule != nil && rule.Period != "" {
		return rule.Period
	}
	for _, pr := range p.rules.Periods {
		if _, ok := firstMatch(pr.compiled, text); ok {
			return pr.Period
		}
	}
	return model.Period7d
}

// Rules returns the rule table in evaluation order.
func (p *Planner) Rules() []Rule {
	out := make([]Rule, len(p.rules.Rules))
	copy(out, p.rules.Rules)
	return out
}

func (p *Planner) Version() string { return p.rules.Version }

// extractTitle returns the longest quoted segment of the message.
func extractTitle(message string) string {
	var title string
	for _, m := range quoted.FindAllStringSubmatch(message, -1) {
		if t := strings.TrimSpace(m[1]); len([]rune(t)) > len([]rune(title)) {
			title = t
		}
	}
	return title
}

// bind copies the template steps and resolves input bindings. Bindings that
// resolve to an empty value are dropped.
func bind(steps []StepTemplate, req model.Request, period model.Period, title string) model.ExecutionPlan {
	values := map[string]string{
		BindChannel: req.ChannelID,
		BindUser:    req.UserID,
		BindPeriod:  string(period),
		BindMessage: req.Message,
		BindTitle:   title,
		BindQuery:   req.Message,
	}

	plan := model.ExecutionPlan{Steps: make([]model.PlanStep, 0, len(steps))}
	for _, st := range steps {
		input := make(map[string]any, len(st.Input))
		for k, v := range st.Input {
			s, ok := v.(string)
			if !ok || !strings.HasPrefix(s, "$") {
				input[k] = v
				continue
			}
			if resolved := values[s]; resolved != "" {
				input[k] = resolved
			}
		}
		var deps []string
		if len(st.DependsOn) > 0 {
			deps = append([]string(nil), st.DependsOn...)
		}
		plan.Steps = append(plan.Steps, model.PlanStep{
			Tool:      st.Tool,
			Input:     input,
			DependsOn: deps,
			Critical:  st.Critical,
			Optional:  st.Optional,
		})
	}
	return plan
}
