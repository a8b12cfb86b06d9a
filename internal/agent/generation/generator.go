// Package generation renders the context bundle into a prompt and calls the
// language model exactly once per request.
package generation

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-creator-core/server/internal/agent/model"
	errx "github.com/Chative-creator-core/server/internal/core/error"
	"github.com/Chative-creator-core/server/internal/metrics"
	logx "github.com/Chative-creator-core/server/pkg/logger"
)

//go:embed templates/system.tmpl
var systemTemplate string

//go:embed templates/prompts/*.txt
var promptFS embed.FS

// DefaultPrompt is used when a bundle names a prompt that has no template.
const DefaultPrompt = "general"

const historyKey = "history"

// ContextBundle is everything the model sees for one request.
type ContextBundle struct {
	RequestID string
	Prompt    string
	Intent    model.Intent
	Subtype   string
	// Memory is ordered long-term matches, short-term window, then the new user turn.
	Memory      []*schema.Message
	ToolOutputs map[string]any
	Snapshot    *model.AnalyticsSnapshot
	// PreviousSnapshot is the stored window immediately before Snapshot.
	PreviousSnapshot *model.AnalyticsSnapshot
	Insights         []string
	Degraded         []string
}

// Generator is the provider-agnostic generation capability.
type Generator interface {
	Generate(ctx context.Context, b ContextBundle) (string, error)
}

type ChatGenerator struct {
	chat      einomodel.BaseChatModel
	modelName string
	persona   model.ResponsePromptConfig
	prompts   map[string]string
	handler   einocb.Handler
	metrics   *metrics.Collector
}

type Option func(*ChatGenerator)

// WithCallbacks replaces the default logging callbacks.
func WithCallbacks(h einocb.Handler) Option {
	return func(g *ChatGenerator) { g.handler = h }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(g *ChatGenerator) { g.metrics = m }
}

func NewChatGenerator(chat einomodel.BaseChatModel, modelName string, persona model.ResponsePromptConfig, opts ...Option) (*ChatGenerator, error) {
	if chat == nil {
		return nil, errors.New("generation: nil chat model")
	}
	prompts, err := loadPrompts()
	if err != nil {
		return nil, err
	}
	g := &ChatGenerator{
		chat:      chat,
		modelName: modelName,
		persona:   persona,
		prompts:   prompts,
		handler:   NewCallbacks(modelName),
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

func loadPrompts() (map[string]string, error) {
	entries, err := fs.ReadDir(promptFS, "templates/prompts")
	if err != nil {
		return nil, fmt.Errorf("read prompt templates: %w", err)
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		b, err := promptFS.ReadFile(path.Join("templates/prompts", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read prompt %s: %w", e.Name(), err)
		}
		out[strings.TrimSuffix(e.Name(), ".txt")] = strings.TrimSpace(string(b))
	}
	if _, ok := out[DefaultPrompt]; !ok {
		return nil, fmt.Errorf("prompt templates: missing %q", DefaultPrompt)
	}
	return out, nil
}

// HasPrompt reports whether name has its own template.
func (g *ChatGenerator) HasPrompt(name string) bool {
	_, ok := g.prompts[name]
	return ok
}

// CheckPrompts fails when any of names lacks a template.
func (g *ChatGenerator) CheckPrompts(names []string) error {
	var missing []string
	for _, n := range names {
		if !g.HasPrompt(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("no prompt template for: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Render builds the message list sent to the model: one system message followed by memory.
func (g *ChatGenerator) Render(ctx context.Context, b ContextBundle) ([]*schema.Message, error) {
	instructions, ok := g.prompts[b.Prompt]
	if !ok {
		logx.Warn().Str("prompt", b.Prompt).Msg("unknown prompt template, using default")
		instructions = g.prompts[DefaultPrompt]
	}

	vars := map[string]any{
		"AssistantName":    g.persona.AssistantName,
		"Platform":         g.persona.Platform,
		"Instructions":     instructions,
		"Intent":           string(b.Intent),
		"Subtype":          b.Subtype,
		"Data":             "",
		"Snapshot":         "",
		"PreviousSnapshot": "",
		"Insights":         strings.Join(b.Insights, "\n"),
		"Degraded":         strings.Join(b.Degraded, ", "),
		historyKey:         b.Memory,
	}
	if len(b.ToolOutputs) > 0 {
		data, err := json.MarshalIndent(b.ToolOutputs, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode tool outputs: %w", err)
		}
		vars["Data"] = string(data)
	}
	if b.Snapshot != nil {
		snap, err := json.Marshal(b.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("encode snapshot: %w", err)
		}
		vars["Snapshot"] = string(snap)
	}
	if b.PreviousSnapshot != nil {
		snap, err := json.Marshal(b.PreviousSnapshot)
		if err != nil {
			return nil, fmt.Errorf("encode previous snapshot: %w", err)
		}
		vars["PreviousSnapshot"] = string(snap)
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(systemTemplate),
		schema.MessagesPlaceholder(historyKey, true),
	)
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("render prompt %s: %w", b.Prompt, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return nil, errors.New("render prompt: empty result")
	}
	return msgs, nil
}

// Generate renders the bundle and makes the single model call. Every failure is a GenerationFailure.
func (g *ChatGenerator) Generate(ctx context.Context, b ContextBundle) (string, error) {
	start := time.Now()
	ctx = einocb.InitCallbacks(ctx, &einocb.RunInfo{
		Name:      "response",
		Type:      g.modelName,
		Component: components.ComponentOfChatModel,
	}, g.handler)

	msgs, err := g.Render(ctx, b)
	if err != nil {
		g.metrics.ObserveGeneration("error", time.Since(start))
		return "", errx.GenerationFailure(err)
	}

	out, err := g.chat.Generate(ctx, msgs)
	if err == nil && (out == nil || strings.TrimSpace(out.Content) == "") {
		err = errors.New("model returned an empty completion")
	}
	if err != nil {
		g.metrics.ObserveGeneration("error", time.Since(start))
		logx.Error().Err(err).Str("request_id", b.RequestID).Str("model", g.modelName).Msg("generation failed")
		return "", errx.GenerationFailure(err)
	}

	g.metrics.ObserveGeneration("ok", time.Since(start))
	g.logUsage(b.RequestID, out)
	return strings.TrimSpace(out.Content), nil
}

func (g *ChatGenerator) logUsage(requestID string, out *schema.Message) {
	if out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	usage := out.ResponseMeta.Usage
	inC, outC, totalC := model.ComputeCost(usage, model.ResolvePricing(g.modelName))
	logx.Debug().
		Str("request_id", requestID).
		Str("model", g.modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
}

var _ Generator = (*ChatGenerator)(nil)
