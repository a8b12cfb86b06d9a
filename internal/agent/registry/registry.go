// Package registry holds the fixed, versioned tool catalog. It is built once at
// startup and never mutated afterwards.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Chative-creator-core/server/internal/agent/model"
)

// CatalogVersion changes whenever a tool is added, removed or re-tiered.
const CatalogVersion = "2024.10"

var (
	ErrNotFound  = errors.New("tool not found")
	ErrDuplicate = errors.New("duplicate tool identifier")
)

type Category string

const (
	CategoryAnalytics Category = "analytics"
	CategoryInsight   Category = "insight"
	CategoryReport    Category = "report"
	CategoryMemory    Category = "memory"
	CategorySearch    Category = "search"
	CategoryAction    Category = "action"
)

// Handler executes one tool call. The returned value must encode to a JSON object.
type Handler func(ctx context.Context, in model.ToolInput) (any, error)

type ToolDefinition struct {
	Name         string
	Category     Category
	Description  string
	MinTier      model.Tier
	InputSchema  string
	OutputSchema string
	Handler      Handler
}

type entry struct {
	def    ToolDefinition
	input  *jsonschema.Schema
	output *jsonschema.Schema
}

type Registry struct {
	tools map[string]*entry
	names []string
}

// New validates and compiles every definition. Any defect is a configuration error.
func New(defs ...ToolDefinition) (*Registry, error) {
	r := &Registry{tools: make(map[string]*entry, len(defs))}
	for _, d := range defs {
		if d.Name == "" {
			return nil, errors.New("tool definition without identifier")
		}
		if _, exists := r.tools[d.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, d.Name)
		}
		if !d.MinTier.Valid() {
			return nil, fmt.Errorf("tool %s: invalid minimum tier %q", d.Name, d.MinTier)
		}
		if d.Handler == nil {
			return nil, fmt.Errorf("tool %s: missing handler", d.Name)
		}
		in, err := compile(d.Name+".input.json", d.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s: input schema: %w", d.Name, err)
		}
		out, err := compile(d.Name+".output.json", d.OutputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s: output schema: %w", d.Name, err)
		}
		r.tools[d.Name] = &entry{def: d, input: in, output: out}
		r.names = append(r.names, d.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

// MustNew panics on a defective catalog; startup cannot continue without one.
func MustNew(defs ...ToolDefinition) *Registry {
	r, err := New(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

func compile(url, schema string) (*jsonschema.Schema, error) {
	if schema == "" {
		schema = `{"type":"object"}`
	}
	return jsonschema.CompileString(url, schema)
}

func (r *Registry) Get(name string) (ToolDefinition, error) {
	e, ok := r.tools[name]
	if !ok {
		return ToolDefinition{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e.def, nil
}

// Has reports whether name is in the catalog.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// MinTier returns the tier required by a tool.
func (r *Registry) MinTier(name string) (model.Tier, bool) {
	e, ok := r.tools[name]
	if !ok {
		return "", false
	}
	return e.def.MinTier, true
}

// Names returns the identifiers in lexical order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Definitions returns every definition ordered by tier, then name.
func (r *Registry) Definitions() []ToolDefinition {
	out := make([]ToolDefinition, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.tools[n].def)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MinTier != out[j].MinTier {
			return out[j].MinTier.Covers(out[i].MinTier)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (r *Registry) ValidateInput(name string, payload map[string]any) error {
	e, ok := r.tools[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return validate(e.input, payload)
}

func (r *Registry) ValidateOutput(name string, out any) error {
	e, ok := r.tools[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return validate(e.output, out)
}

// validate normalises v through JSON so the validator only sees decoded JSON values.
func validate(s *jsonschema.Schema, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return s.Validate(decoded)
}
