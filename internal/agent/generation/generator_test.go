package generation

import (
	"context"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-creator-core/server/internal/agent/model"
	"github.com/Chative-creator-core/server/internal/agent/planner"
	errx "github.com/Chative-creator-core/server/internal/core/error"
	logx "github.com/Chative-creator-core/server/pkg/logger"
)

type fakeChat struct {
	calls int
	got   []*schema.Message
	reply *schema.Message
	err   error
}

func (f *fakeChat) Generate(_ context.Context, in []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	f.calls++
	f.got = in
	return f.reply, f.err
}

func (f *fakeChat) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

var persona = model.ResponsePromptConfig{AssistantName: "Creator Copilot", Platform: "YouTube"}

func newGenerator(t *testing.T, chat *fakeChat) *ChatGenerator {
	t.Helper()
	logx.Disable()
	g, err := NewChatGenerator(chat, "gemini-2.5-flash", persona)
	require.NoError(t, err)
	return g
}

func TestGenerate_RendersSystemPromptAndMemory(t *testing.T) {
	chat := &fakeChat{reply: &schema.Message{
		Role:    schema.Assistant,
		Content: "  Views are up.  ",
		ResponseMeta: &schema.ResponseMeta{
			Usage: &schema.TokenUsage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
		},
	}}
	g := newGenerator(t, chat)

	memory := []*schema.Message{
		schema.UserMessage("how was last week?"),
		schema.AssistantMessage("Last week was steady.", nil),
		schema.UserMessage("Show me my channel's performance this week"),
	}
	text, err := g.Generate(context.Background(), ContextBundle{
		RequestID:   "req-1",
		Prompt:      "analytics",
		Intent:      model.IntentAnalytics,
		Subtype:     "default",
		Memory:      memory,
		ToolOutputs: map[string]any{"fetch_analytics": map[string]any{"views": 1200}},
		Degraded:    []string{"compute_metrics"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Views are up.", text)
	assert.Equal(t, 1, chat.calls)

	require.Len(t, chat.got, 4)
	system := chat.got[0]
	assert.Equal(t, schema.System, system.Role)
	assert.Contains(t, system.Content, "You are Creator Copilot")
	assert.Contains(t, system.Content, "Summarize the channel's performance")
	assert.Contains(t, system.Content, `"fetch_analytics"`)
	assert.Contains(t, system.Content, "These sources failed for this request: compute_metrics")
	assert.NotContains(t, system.Content, "Latest stored snapshot")
	assert.NotContains(t, system.Content, "Previous stored snapshot")

	for i, m := range memory {
		assert.Equal(t, m.Role, chat.got[i+1].Role)
		assert.Equal(t, m.Content, chat.got[i+1].Content)
	}
}

func TestGenerate_IncludesSnapshotAndInsights(t *testing.T) {
	chat := &fakeChat{reply: schema.AssistantMessage("ok", nil)}
	g := newGenerator(t, chat)

	snap := model.AnalyticsSnapshot{ChannelID: "UC1", Period: model.Period7d, Views: model.Known(10)}
	prev := model.AnalyticsSnapshot{ChannelID: "UC1", Period: model.Period7d, Views: model.Known(4321)}
	_, err := g.Generate(context.Background(), ContextBundle{
		Prompt:           "insight",
		Intent:           model.IntentInsight,
		Memory:           []*schema.Message{schema.UserMessage("why did views drop?")},
		Snapshot:         &snap,
		PreviousSnapshot: &prev,
		Insights:         []string{"Week of 2024-09-30: CTR fell"},
	})
	require.NoError(t, err)

	system := chat.got[0].Content
	assert.Contains(t, system, "Latest stored snapshot")
	assert.Contains(t, system, "Previous stored snapshot")
	assert.Contains(t, system, "4321")
	assert.Contains(t, system, `"ctr":null`)
	assert.Contains(t, system, "Week of 2024-09-30: CTR fell")
	assert.NotContains(t, system, "Missing sources")
}

func TestGenerate_UnknownPromptFallsBack(t *testing.T) {
	chat := &fakeChat{reply: schema.AssistantMessage("ok", nil)}
	g := newGenerator(t, chat)

	_, err := g.Generate(context.Background(), ContextBundle{Prompt: "nope", Intent: model.IntentFallback})
	require.NoError(t, err)
	require.Len(t, chat.got, 1)
	assert.Contains(t, chat.got[0].Content, "Answer the creator helpfully")
}

func TestGenerate_ModelErrorIsGenerationFailure(t *testing.T) {
	chat := &fakeChat{err: errors.New("503 from provider")}
	g := newGenerator(t, chat)

	_, err := g.Generate(context.Background(), ContextBundle{Prompt: "analytics"})
	require.Error(t, err)
	assert.True(t, errx.IsCode(err, errx.CodeGenerationFailed))
	assert.Equal(t, errx.GenerationErrorMessage, errx.MessageOf(err))
}

func TestGenerate_EmptyCompletionIsGenerationFailure(t *testing.T) {
	chat := &fakeChat{reply: schema.AssistantMessage("   ", nil)}
	g := newGenerator(t, chat)

	_, err := g.Generate(context.Background(), ContextBundle{Prompt: "analytics"})
	assert.True(t, errx.IsCode(err, errx.CodeGenerationFailed))
}

func TestCheckPrompts_CoversPlannerRules(t *testing.T) {
	g := newGenerator(t, &fakeChat{})

	assert.NoError(t, g.CheckPrompts(planner.DefaultRules().Prompts()))
	assert.Error(t, g.CheckPrompts([]string{"analytics", "missing_one"}))
}

func TestNewChatGenerator_RejectsNilModel(t *testing.T) {
	_, err := NewChatGenerator(nil, "m", persona)
	assert.Error(t, err)
}
