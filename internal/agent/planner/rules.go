package planner

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Chative-creator-core/server/internal/agent/model"
)

//go:embed rules.yaml
var defaultRules []byte

const defaultSubtype = "default"

// Input bindings resolved per request.
const (
	BindChannel = "$channel"
	BindUser    = "$user"
	BindPeriod  = "$period"
	BindMessage = "$message"
	BindTitle   = "$title"
	BindQuery   = "$query"
)

var bindings = map[string]struct{}{
	BindChannel: {}, BindUser: {}, BindPeriod: {}, BindMessage: {}, BindTitle: {}, BindQuery: {},
}

type Rule struct {
	Name     string       `yaml:"name"`
	Priority int          `yaml:"priority"`
	Intent   model.Intent `yaml:"intent"`
	Subtype  string       `yaml:"subtype,omitempty"`
	Period   model.Period `yaml:"period,omitempty"`
	Patterns []string     `yaml:"patterns"`

	compiled []*regexp.Regexp
}

// StepTemplate is one planned tool call. Optional steps are dropped, not
// denied, when the caller's tier does not cover them.
type StepTemplate struct {
	Tool      string         `yaml:"tool"`
	Input     map[string]any `yaml:"input,omitempty"`
	DependsOn []string       `yaml:"depends_on,omitempty"`
	Critical  bool           `yaml:"critical,omitempty"`
	Optional  bool           `yaml:"optional,omitempty"`
}

type Subtype struct {
	Name     string         `yaml:"name"`
	Prompt   string         `yaml:"prompt"`
	Patterns []string       `yaml:"patterns,omitempty"`
	Steps    []StepTemplate `yaml:"steps"`

	compiled []*regexp.Regexp
}

// Template holds the plan variants of one intent. Subtypes are tried in order;
// the last one is the default and has no patterns.
type Template struct {
	Intent   model.Intent `yaml:"intent"`
	Subtypes []Subtype    `yaml:"subtypes"`
}

type PeriodRule struct {
	Period   model.Period `yaml:"period"`
	Patterns []string     `yaml:"patterns"`

	compiled []*regexp.Regexp
}

// RuleSet is the validated planner configuration.
type RuleSet struct {
	Version   string       `yaml:"version"`
	Periods   []PeriodRule `yaml:"periods"`
	Rules     []Rule       `yaml:"rules"`
	Templates []Template   `yaml:"templates"`

	byIntent map[model.Intent]*Template
}

// LoadRules reads the rule file at path, or the embedded default when path is empty.
func LoadRules(path string) (*RuleSet, error) {
	data := defaultRules
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read planner rules: %w", err)
		}
		data = b
	}
	return ParseRules(data)
}

// DefaultRules returns the embedded rule set. It panics on a defective build.
func DefaultRules() *RuleSet {
	rs, err := ParseRules(defaultRules)
	if err != nil {
		panic(err)
	}
	return rs
}

func ParseRules(data []byte) (*RuleSet, error) {
	var rs RuleSet
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rs); err != nil {
		return nil, fmt.Errorf("parse planner rules: %w", err)
	}
	if err := rs.validate(); err != nil {
		return nil, fmt.Errorf("invalid planner rules: %w", err)
	}
	return &rs, nil
}

func (rs *RuleSet) validate() error {
	if rs.Version == "" {
		return errors.New("version is required")
	}

	for i := range rs.Periods {
		p := &rs.Periods[i]
		if p.Period != model.Period7d && p.Period != model.Period28d {
			return fmt.Errorf("unknown period %q", p.Period)
		}
		c, err := compileAll(p.Patterns)
		if err != nil {
			return fmt.Errorf("period %s: %w", p.Period, err)
		}
		p.compiled = c
	}

	rs.byIntent = make(map[model.Intent]*Template, len(rs.Templates))
	for i := range rs.Templates {
		t := &rs.Templates[i]
		if !t.Intent.Valid() {
			return fmt.Errorf("template for unknown intent %q", t.Intent)
		}
		if _, dup := rs.byIntent[t.Intent]; dup {
			return fmt.Errorf("duplicate template for intent %q", t.Intent)
		}
		if err := t.validate(); err != nil {
			return fmt.Errorf("intent %s: %w", t.Intent, err)
		}
		rs.byIntent[t.Intent] = t
	}
	for _, in := range model.Intents {
		if _, ok := rs.byIntent[in]; !ok {
			return fmt.Errorf("no template for intent %q", in)
		}
	}

	names := map[string]struct{}{}
	priorities := map[int]string{}
	for i := range rs.Rules {
		r := &rs.Rules[i]
		if r.Name == "" {
			return fmt.Errorf("rule %d has no name", i)
		}
		if _, dup := names[r.Name]; dup {
			return fmt.Errorf("duplicate rule name %q", r.Name)
		}
		names[r.Name] = struct{}{}
		if other, dup := priorities[r.Priority]; dup {
			return fmt.Errorf("rules %q and %q share priority %d", other, r.Name, r.Priority)
		}
		priorities[r.Priority] = r.Name
		if !r.Intent.Valid() || r.Intent == model.IntentFallback {
			return fmt.Errorf("rule %q: invalid intent %q", r.Name, r.Intent)
		}
		if r.Period != "" && r.Period != model.Period7d && r.Period != model.Period28d {
			return fmt.Errorf("rule %q: unknown period %q", r.Name, r.Period)
		}
		if r.Subtype != "" && rs.byIntent[r.Intent].subtype(r.Subtype) == nil {
			return fmt.Errorf("rule %q: intent %s has no subtype %q", r.Name, r.Intent, r.Subtype)
		}
		if len(r.Patterns) == 0 {
			return fmt.Errorf("rule %q has no patterns", r.Name)
		}
		c, err := compileAll(r.Patterns)
		if err != nil {
			return fmt.Errorf("rule %q: %w", r.Name, err)
		}
		r.compiled = c
	}
	sort.SliceStable(rs.Rules, func(i, j int) bool { return rs.Rules[i].Priority < rs.Rules[j].Priority })
	return nil
}

func (t *Template) validate() error {
	if len(t.Subtypes) == 0 {
		return errors.New("no subtypes")
	}
	seen := map[string]struct{}{}
	for i := range t.Subtypes {
		s := &t.Subtypes[i]
		if s.Name == "" {
			return fmt.Errorf("subtype %d has no name", i)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("duplicate subtype %q", s.Name)
		}
		seen[s.Name] = struct{}{}
		if s.Prompt == "" {
			return fmt.Errorf("subtype %q has no prompt", s.Name)
		}
		c, err := compileAll(s.Patterns)
		if err != nil {
			return fmt.Errorf("subtype %q: %w", s.Name, err)
		}
		s.compiled = c
		if err := validateSteps(s.Steps); err != nil {
			return fmt.Errorf("subtype %q: %w", s.Name, err)
		}
	}
	last := t.Subtypes[len(t.Subtypes)-1]
	if last.Name != defaultSubtype || len(last.Patterns) > 0 {
		return fmt.Errorf("last subtype must be %q without patterns", defaultSubtype)
	}
	return nil
}

// validateSteps enforces that dependencies only point backwards and that a
// required step never depends on an optional one.
func validateSteps(steps []StepTemplate) error {
	earlier := map[string]bool{}
	for _, st := range steps {
		if st.Tool == "" {
			return errors.New("step without tool")
		}
		if _, dup := earlier[st.Tool]; dup {
			return fmt.Errorf("tool %s appears twice", st.Tool)
		}
		if st.Optional && st.Critical {
			return fmt.Errorf("step %s cannot be both critical and optional", st.Tool)
		}
		for _, dep := range st.DependsOn {
			optional, ok := earlier[dep]
			if !ok {
				return fmt.Errorf("step %s depends on %s, which is not an earlier step", st.Tool, dep)
			}
			if optional && !st.Optional {
				return fmt.Errorf("required step %s depends on optional step %s", st.Tool, dep)
			}
		}
		for k, v := range st.Input {
			s, ok := v.(string)
			if !ok || !strings.HasPrefix(s, "$") {
				continue
			}
			if _, known := bindings[s]; !known {
				return fmt.Errorf("step %s: input %s uses unknown binding %s", st.Tool, k, s)
			}
		}
		earlier[st.Tool] = st.Optional
	}
	return nil
}

func (t *Template) subtype(name string) *Subtype {
	for i := range t.Subtypes {
		if t.Subtypes[i].Name == name {
			return &t.Subtypes[i]
		}
	}
	return nil
}

// ToolRegistry is the part of the registry the planner checks against.
type ToolRegistry interface {
	Has(name string) bool
}

// CheckTools verifies every tool named by a template exists in the catalog.
func (rs *RuleSet) CheckTools(reg ToolRegistry) error {
	var missing []string
	for _, t := range rs.Templates {
		for _, s := range t.Subtypes {
			for _, st := range s.Steps {
				if !reg.Has(st.Tool) {
					missing = append(missing, fmt.Sprintf("%s/%s: %s", t.Intent, s.Name, st.Tool))
				}
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("planner references unknown tools: %s", strings.Join(missing, ", "))
	}
	return nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// firstMatch returns the text matched by the first matching pattern.
func firstMatch(res []*regexp.Regexp, text string) (string, bool) {
	for _, re := range res {
		if m := re.FindString(text); m != "" {
			return m, true
		}
	}
	return "", false
}

// Prompts lists the distinct prompt templates the rule set selects.
func (rs *RuleSet) Prompts() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, t := range rs.Templates {
		for _, s := range t.Subtypes {
			if _, ok := seen[s.Prompt]; ok {
				continue
			}
			seen[s.Prompt] = struct{}{}
			out = append(out, s.Prompt)
		}
	}
	return out
}
