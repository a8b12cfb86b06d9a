package executor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-creator-core/server/internal/agent/generation"
	"github.com/Chative-creator-core/server/internal/agent/memory"
	"github.com/Chative-creator-core/server/internal/agent/model"
	"github.com/Chative-creator-core/server/internal/agent/planner"
	"github.com/Chative-creator-core/server/internal/agent/policy"
	"github.com/Chative-creator-core/server/internal/agent/registry"
	"github.com/Chative-creator-core/server/internal/agent/repo"
	"github.com/Chative-creator-core/server/internal/agent/tools"
	errx "github.com/Chative-creator-core/server/internal/core/error"
	logx "github.com/Chative-creator-core/server/pkg/logger"
)

var fixedNow = time.Date(2024, 10, 7, 9, 0, 0, 0, time.UTC)

// ================ Fakes ================

type handlerFunc func(ctx context.Context, in model.ToolInput) (any, error)

// fakeRegistry keeps the real catalog tiers but swaps every handler.
type fakeRegistry struct {
	catalog *registry.Registry

	mu       sync.Mutex
	handlers map[string]handlerFunc
	calls    map[string]int
	inputs   map[string]model.ToolInput
}

func newFakeRegistry(t *testing.T) *fakeRegistry {
	t.Helper()
	catalog, err := tools.NewRegistry(tools.Deps{})
	require.NoError(t, err)
	return &fakeRegistry{
		catalog:  catalog,
		handlers: map[string]handlerFunc{},
		calls:    map[string]int{},
		inputs:   map[string]model.ToolInput{},
	}
}

func (r *fakeRegistry) on(tool string, h handlerFunc) { r.handlers[tool] = h }

func (r *fakeRegistry) called(tool string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[tool]
}

func (r *fakeRegistry) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}

func (r *fakeRegistry) input(tool string) model.ToolInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inputs[tool]
}

func (r *fakeRegistry) Get(name string) (registry.ToolDefinition, error) {
	def, err := r.catalog.Get(name)
	if err != nil {
		return def, err
	}
	h, ok := r.handlers[name]
	if !ok {
		h = func(context.Context, model.ToolInput) (any, error) {
			return map[string]any{"tool": name}, nil
		}
	}
	def.Handler = func(ctx context.Context, in model.ToolInput) (any, error) {
		r.mu.Lock()
		r.calls[name]++
		r.inputs[name] = in
		r.mu.Unlock()
		return h(ctx, in)
	}
	return def, nil
}

func (r *fakeRegistry) MinTier(name string) (model.Tier, bool) { return r.catalog.MinTier(name) }

func (r *fakeRegistry) ValidateInput(string, map[string]any) error { return nil }

func (r *fakeRegistry) ValidateOutput(string, any) error { return nil }

type fakeMemory struct {
	mu      sync.Mutex
	commits []model.Turn
}

func (m *fakeMemory) Compose(_ context.Context, _, _ string, newTurn *schema.Message) memory.Fragment {
	return memory.Fragment{Messages: []*schema.Message{
		schema.UserMessage("earlier question"),
		schema.AssistantMessage("earlier answer", nil),
		newTurn,
	}}
}

func (m *fakeMemory) Commit(_ context.Context, turn model.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits = append(m.commits, turn)
	return nil
}

func (m *fakeMemory) committed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.commits)
}

type fakeChannels struct {
	owners    map[string]string
	insights  []repo.WeeklyInsight
	snapshots []model.AnalyticsSnapshot
	from, to  time.Time
}

func (c *fakeChannels) GetChannel(_ context.Context, id string) (*repo.Channel, error) {
	owner, ok := c.owners[id]
	if !ok {
		return nil, errx.ErrNotFound
	}
	return &repo.Channel{ID: id, OwnerID: owner}, nil
}

func (c *fakeChannels) SnapshotsBetween(_ context.Context, _ string, from, to time.Time) ([]model.AnalyticsSnapshot, error) {
	c.from, c.to = from, to
	return c.snapshots, nil
}

func (c *fakeChannels) RecentInsights(context.Context, string, int) ([]repo.WeeklyInsight, error) {
	return c.insights, nil
}

type fakeCredentials struct{}

func (fakeCredentials) Load(context.Context, string) (model.Credential, error) {
	return model.Credential{AccessToken: "access-1", RefreshToken: "refresh-1"}, nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	bundles []generation.ContextBundle
	text    string
	err     error
	hook    func()
}

func (g *fakeGenerator) Generate(_ context.Context, b generation.ContextBundle) (string, error) {
	g.mu.Lock()
	g.bundles = append(g.bundles, b)
	g.mu.Unlock()
	if g.hook != nil {
		g.hook()
	}
	return g.text, g.err
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.bundles)
}

// ================ Setup ================

type fixture struct {
	mr       *miniredis.Miniredis
	exec     *Executor
	reg      *fakeRegistry
	mem      *fakeMemory
	gen      *fakeGenerator
	channels *fakeChannels
}

func setup(t *testing.T) *fixture {
	t.Helper()
	logx.Disable()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	reg := newFakeRegistry(t)
	clock := func() time.Time { return fixedNow }
	f := &fixture{
		mr:       mr,
		reg:      reg,
		mem:      &fakeMemory{},
		gen:      &fakeGenerator{text: "Here is your summary."},
		channels: &fakeChannels{owners: map[string]string{"UC1": "u1"}},
	}
	f.exec, err = New(Deps{
		Policy:      policy.NewEngine(rdb, model.QuotaConfig{FreeDaily: 3}, reg.catalog, policy.WithClock(clock)),
		Planner:     planner.New(planner.DefaultRules(), planner.WithClock(clock)),
		Registry:    reg,
		Memory:      f.mem,
		Channels:    f.channels,
		Credentials: fakeCredentials{},
		Generator:   f.gen,
	}, WithClock(clock))
	require.NoError(t, err)
	return f
}

func request(tier model.Tier, message string) model.Request {
	return model.Request{UserID: "u1", ChannelID: "UC1", Tier: tier, Message: message}
}

// ================ Scenarios ================

func TestHandle_ProAnalyticsScenario(t *testing.T) {
	f := setup(t)
	snapshot := model.AnalyticsSnapshot{ChannelID: "UC1", Period: model.Period7d, Views: model.Known(1200)}
	f.reg.on("fetch_analytics", func(_ context.Context, in model.ToolInput) (any, error) {
		return snapshot, nil
	})

	env := f.exec.Handle(context.Background(), request(model.TierPro, "Show me my channel's performance this week"))

	require.True(t, env.Success, "%+v", env.Error)
	assert.Equal(t, []string{"fetch_analytics", "compute_metrics"}, env.ToolsUsed)
	assert.Equal(t, "Here is your summary.", env.Content)
	assert.Equal(t, "analytics_summary", env.ContentType)
	require.NotNil(t, env.Metadata)
	assert.Equal(t, model.IntentAnalytics, env.Metadata.Intent)
	assert.Equal(t, 1.0, env.Metadata.Confidence)
	assert.NotEmpty(t, env.Metadata.RequestID)
	assert.NotEmpty(t, env.Metadata.Justification)
	assert.Nil(t, env.Metadata.Usage)
	assert.Empty(t, env.Metadata.Degraded)

	fetchIn := f.reg.input("fetch_analytics")
	assert.Equal(t, "access-1", fetchIn.Channel.Credential().AccessToken)
	assert.Equal(t, "UC1", fetchIn.Payload["channel_id"])
	assert.Equal(t, snapshot, f.reg.input("compute_metrics").Upstream["fetch_analytics"])

	require.Equal(t, 1, f.gen.calls())
	b := f.gen.bundles[0]
	assert.Equal(t, "analytics", b.Prompt)
	assert.Contains(t, b.ToolOutputs, "fetch_analytics")
	assert.Contains(t, b.ToolOutputs, "compute_metrics")
	require.Len(t, b.Memory, 3)
	assert.Equal(t, "Show me my channel's performance this week", b.Memory[2].Content)

	require.Equal(t, 1, f.mem.committed())
	turn := f.mem.commits[0]
	assert.Equal(t, model.IntentAnalytics, turn.Intent)
	assert.Equal(t, "Here is your summary.", turn.Assistant.Content)
	assert.Equal(t, fixedNow, turn.At)
}

func TestHandle_FreeTierDeniedRecommendations(t *testing.T) {
	f := setup(t)

	env := f.exec.Handle(context.Background(), request(model.TierFree, "What should I do to improve my engagement?"))

	assert.True(t, env.PolicyDenial())
	assert.Equal(t, "PLAN_LIMIT_REACHED", env.Error.Code)
	assert.Contains(t, env.Error.Message, "get_recommendations")
	assert.Contains(t, env.Error.Message, "AGENCY")
	assert.Empty(t, env.ToolsUsed)
	assert.Zero(t, f.reg.total())
	assert.Zero(t, f.gen.calls())
	assert.Zero(t, f.mem.committed())

	b, err := json.Marshal(env)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Len(t, out, 2)
}

func TestHandle_FreeTierAnalyticsDropsOptionalSteps(t *testing.T) {
	f := setup(t)

	env := f.exec.Handle(context.Background(), request(model.TierFree, "Show me my channel's performance this week"))

	require.True(t, env.Success, "%+v", env.Error)
	assert.Equal(t, []string{"fetch_analytics"}, env.ToolsUsed)
	assert.Equal(t, 1, f.reg.called("fetch_analytics"))
	assert.Zero(t, f.reg.called("compute_metrics"))
	assert.Contains(t, env.Metadata.Justification, "skipped compute_metrics (requires PRO)")
	assert.Empty(t, env.Metadata.Degraded)
	require.Equal(t, 1, f.gen.calls())
	assert.NotContains(t, f.gen.bundles[0].ToolOutputs, "compute_metrics")
}

func TestHandle_FreeTierChartDropsDependentOptionalSteps(t *testing.T) {
	f := setup(t)

	env := f.exec.Handle(context.Background(), request(model.TierFree, "Chart my views this month"))

	require.True(t, env.Success, "%+v", env.Error)
	assert.Equal(t, []string{"fetch_analytics"}, env.ToolsUsed)
	assert.Zero(t, f.reg.called("generate_chart"))
	assert.Contains(t, env.Metadata.Justification, "generate_chart (requires PRO)")
}

func TestHandle_StoredHistoryReachesGeneration(t *testing.T) {
	f := setup(t)
	day := func(d int) time.Time { return time.Date(2024, 9, d, 0, 0, 0, 0, time.UTC) }
	f.channels.snapshots = []model.AnalyticsSnapshot{
		{ChannelID: "UC1", Period: model.Period7d, StartDate: day(17), EndDate: day(23), Views: model.Known(800)},
		{ChannelID: "UC1", Period: model.Period28d, StartDate: day(2), EndDate: day(29), Views: model.Known(4000)},
		{ChannelID: "UC1", Period: model.Period7d, StartDate: day(24), EndDate: day(30), Views: model.Known(950)},
	}

	env := f.exec.Handle(context.Background(), request(model.TierPro, "Show me my channel's performance this week"))

	require.True(t, env.Success, "%+v", env.Error)
	require.Equal(t, 1, f.gen.calls())
	b := f.gen.bundles[0]
	require.NotNil(t, b.Snapshot)
	require.NotNil(t, b.PreviousSnapshot)
	assert.Equal(t, model.Known(950), b.Snapshot.Views)
	assert.Equal(t, model.Known(800), b.PreviousSnapshot.Views)
	assert.Equal(t, fixedNow, f.channels.to)
	assert.Equal(t, fixedNow.AddDate(0, 0, -21), f.channels.from)
}

func TestHandle_QuotaExhaustedHasNoSideEffects(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		env := f.exec.Handle(ctx, request(model.TierFree, "Show me my top videos"))
		require.True(t, env.Success, "request %d", i+1)
		require.NotNil(t, env.Metadata.Usage)
		assert.Equal(t, int64(i+1), env.Metadata.Usage.Used)
	}

	calls := f.reg.total()
	env := f.exec.Handle(ctx, request(model.TierFree, "Show me my top videos"))
	assert.True(t, env.PolicyDenial())
	assert.Equal(t, calls, f.reg.total())
	assert.Equal(t, 3, f.gen.calls())
}

func TestHandle_QuotaStoreDownFailsOpen(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, f.exec.Handle(ctx, request(model.TierFree, "Show me my top videos")).Success)
	}
	f.mr.Close()

	env := f.exec.Handle(ctx, request(model.TierFree, "Show me my top videos"))
	require.True(t, env.Success)
	require.NotNil(t, env.Metadata.Usage)
	assert.True(t, env.Metadata.Usage.Degraded)
	assert.Contains(t, env.Metadata.Degraded, "quota_counter")
}

func TestHandle_CriticalFailureSkipsGeneration(t *testing.T) {
	f := setup(t)
	f.reg.on("fetch_analytics", func(context.Context, model.ToolInput) (any, error) {
		return nil, errors.New("provider returned 503")
	})

	env := f.exec.Handle(context.Background(), request(model.TierPro, "Show me my channel's performance this week"))

	assert.False(t, env.Success)
	assert.Equal(t, "PLAN_CRITICAL_FAILURE", env.Error.Code)
	assert.Empty(t, env.Content)
	assert.Equal(t, []string{"fetch_analytics"}, env.ToolsUsed)
	assert.Zero(t, f.reg.called("compute_metrics"))
	assert.Equal(t, true, env.StructuredData["degraded"])
	assert.NotContains(t, env.StructuredData, "metrics")
	assert.Zero(t, f.gen.calls())
	assert.Zero(t, f.mem.committed())
}

func TestHandle_CredentialExpiredSurfacesReconnect(t *testing.T) {
	f := setup(t)
	f.reg.on("get_top_videos", func(context.Context, model.ToolInput) (any, error) {
		return nil, errx.CredentialExpired(errors.New("invalid_grant"))
	})

	env := f.exec.Handle(context.Background(), request(model.TierFree, "Show me my top videos"))

	assert.False(t, env.Success)
	assert.Equal(t, "CREDENTIAL_EXPIRED", env.Error.Code)
	assert.Equal(t, errx.ReconnectMessage, env.Error.Message)
	assert.Zero(t, f.gen.calls())
}

func TestHandle_NonCriticalFailureIsReported(t *testing.T) {
	f := setup(t)
	f.reg.on("compute_metrics", func(context.Context, model.ToolInput) (any, error) {
		return nil, errors.New("previous window unavailable")
	})

	env := f.exec.Handle(context.Background(), request(model.TierPro, "Show me my channel's performance this week"))

	require.True(t, env.Success)
	assert.Equal(t, []string{"fetch_analytics", "compute_metrics"}, env.ToolsUsed)
	assert.Equal(t, []string{"compute_metrics"}, env.Metadata.Degraded)
	assert.Equal(t, true, env.StructuredData["degraded"])
	assert.Equal(t, []string{"compute_metrics"}, env.StructuredData["failed_tools"])

	require.Equal(t, 1, f.gen.calls())
	b := f.gen.bundles[0]
	assert.NotContains(t, b.ToolOutputs, "compute_metrics")
	assert.Equal(t, []string{"compute_metrics"}, b.Degraded)
}

func TestHandle_CancelledDuringToolsWritesNoMemory(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.reg.on("fetch_analytics", func(context.Context, model.ToolInput) (any, error) {
		cancel()
		return model.AnalyticsSnapshot{}, nil
	})

	env := f.exec.Handle(ctx, request(model.TierPro, "Show me my channel's performance this week"))

	assert.False(t, env.Success)
	assert.Equal(t, "REQUEST_CANCELLED", env.Error.Code)
	assert.Zero(t, f.gen.calls())
	assert.Zero(t, f.mem.committed())
}

func TestHandle_CancelledDuringGenerationWritesNoMemory(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.gen.hook = cancel

	env := f.exec.Handle(ctx, request(model.TierPro, "Show me my channel's performance this week"))

	assert.False(t, env.Success)
	assert.Equal(t, "REQUEST_CANCELLED", env.Error.Code)
	assert.Equal(t, 1, f.gen.calls())
	assert.Zero(t, f.mem.committed())
}

func TestHandle_GenerationFailure(t *testing.T) {
	f := setup(t)
	f.gen.err = errx.GenerationFailure(errors.New("quota exceeded at provider"))

	env := f.exec.Handle(context.Background(), request(model.TierPro, "Show me my channel's performance this week"))

	assert.False(t, env.Success)
	assert.Equal(t, "GENERATION_FAILED", env.Error.Code)
	assert.Equal(t, errx.GenerationErrorMessage, env.Error.Message)
	assert.Equal(t, []string{"fetch_analytics", "compute_metrics"}, env.ToolsUsed)
	assert.Zero(t, f.mem.committed())
}

func TestHandle_PlainGeneratorErrorIsWrapped(t *testing.T) {
	f := setup(t)
	f.gen.err = errors.New("boom")

	env := f.exec.Handle(context.Background(), request(model.TierPro, "Show me my channel's performance this week"))
	assert.Equal(t, "GENERATION_FAILED", env.Error.Code)
}

func TestHandle_ChannelOwnedByAnotherUser(t *testing.T) {
	f := setup(t)
	f.channels.owners["UC1"] = "someone-else"

	env := f.exec.Handle(context.Background(), request(model.TierPro, "Show me my channel's performance this week"))

	assert.False(t, env.Success)
	assert.Equal(t, "CHANNEL_ACCESS_DENIED", env.Error.Code)
	assert.Zero(t, f.reg.total())
}

func TestHandle_InvalidRequestDoesNotCountQuota(t *testing.T) {
	f := setup(t)

	env := f.exec.Handle(context.Background(), model.Request{UserID: "u1", ChannelID: "UC1", Tier: model.TierFree, Message: "  "})
	assert.Equal(t, "INVALID_REQUEST", env.Error.Code)

	env = f.exec.Handle(context.Background(), model.Request{UserID: "u1", ChannelID: "UC1", Tier: "GOLD", Message: "hi"})
	assert.Equal(t, "INVALID_REQUEST", env.Error.Code)
	assert.Empty(t, f.mr.Keys())
}

func TestHandle_AccountQuestionRunsNoTools(t *testing.T) {
	f := setup(t)
	f.channels.insights = []repo.WeeklyInsight{{WeekStart: time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC), Summary: "CTR fell"}}

	env := f.exec.Handle(context.Background(), request(model.TierFree, "What is my plan?"))

	require.True(t, env.Success)
	assert.Equal(t, model.IntentAccount, env.Metadata.Intent)
	assert.Empty(t, env.ToolsUsed)
	assert.Empty(t, env.StructuredData)
	require.Equal(t, 1, f.gen.calls())
	assert.Equal(t, []string{"Week of 2024-09-30: CTR fell"}, f.gen.bundles[0].Insights)
}

// ================ Run ================

func TestRun_ReauthorizesEveryStep(t *testing.T) {
	f := setup(t)
	plan := model.ExecutionPlan{Steps: []model.PlanStep{
		{Tool: "get_recommendations"},
		{Tool: "fetch_analytics"},
	}}
	ch := model.NewChannelContext("u1", "UC1", model.TierFree, model.Credential{})

	out, err := f.exec.Run(context.Background(), plan, ch, "hi")
	require.NoError(t, err)

	assert.False(t, out.Results[0].Success)
	assert.False(t, out.Results[0].Ran)
	assert.True(t, errx.IsCode(out.Results[0].Err, errx.CodePlanLimitReached))
	assert.Zero(t, f.reg.called("get_recommendations"))
	assert.True(t, out.Results[1].Success)
	assert.Equal(t, []string{"get_recommendations"}, out.Failed)
}

func TestRun_FailedDependencySkipsDependent(t *testing.T) {
	f := setup(t)
	f.reg.on("analyze_data", func(context.Context, model.ToolInput) (any, error) {
		return nil, errors.New("not enough data")
	})
	plan := model.ExecutionPlan{Steps: []model.PlanStep{
		{Tool: "fetch_analytics"},
		{Tool: "analyze_data", DependsOn: []string{"fetch_analytics"}},
		{Tool: "generate_insight", DependsOn: []string{"analyze_data"}},
		{Tool: "recall_context"},
	}}
	ch := model.NewChannelContext("u1", "UC1", model.TierPro, model.Credential{})

	out, err := f.exec.Run(context.Background(), plan, ch, "why")
	require.NoError(t, err)

	assert.True(t, out.Results[0].Success)
	assert.True(t, out.Results[1].Ran)
	assert.False(t, out.Results[1].Success)
	assert.False(t, out.Results[2].Ran)
	assert.Contains(t, out.Results[2].Error, "dependency analyze_data failed")
	assert.True(t, out.Results[3].Success)
	assert.Zero(t, f.reg.called("generate_insight"))
	assert.ElementsMatch(t, []string{"analyze_data", "generate_insight"}, out.Failed)
	assert.Contains(t, out.Outputs, "recall_context")
}

func TestRun_IndependentStepsRunConcurrently(t *testing.T) {
	f := setup(t)
	aStarted, bStarted := make(chan struct{}), make(chan struct{})
	rendezvous := func(mine, other chan struct{}) handlerFunc {
		return func(ctx context.Context, _ model.ToolInput) (any, error) {
			close(mine)
			select {
			case <-other:
				return map[string]any{"ok": true}, nil
			case <-time.After(2 * time.Second):
				return nil, errors.New("steps ran sequentially")
			}
		}
	}
	f.reg.on("fetch_analytics", rendezvous(aStarted, bStarted))
	f.reg.on("recall_context", rendezvous(bStarted, aStarted))

	plan := model.ExecutionPlan{Steps: []model.PlanStep{{Tool: "fetch_analytics"}, {Tool: "recall_context"}}}
	ch := model.NewChannelContext("u1", "UC1", model.TierPro, model.Credential{})

	out, err := f.exec.Run(context.Background(), plan, ch, "")
	require.NoError(t, err)
	assert.Empty(t, out.Failed)
}

func TestRun_DependentStepsRunInOrder(t *testing.T) {
	f := setup(t)
	var mu sync.Mutex
	var order []string
	record := func(name string) handlerFunc {
		return func(context.Context, model.ToolInput) (any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return map[string]any{"step": name}, nil
		}
	}
	f.reg.on("fetch_analytics", func(ctx context.Context, in model.ToolInput) (any, error) {
		time.Sleep(20 * time.Millisecond)
		return record("fetch_analytics")(ctx, in)
	})
	f.reg.on("summarize_data", record("summarize_data"))

	plan := model.ExecutionPlan{Steps: []model.PlanStep{
		{Tool: "fetch_analytics"},
		{Tool: "summarize_data", DependsOn: []string{"fetch_analytics"}},
	}}
	ch := model.NewChannelContext("u1", "UC1", model.TierPro, model.Credential{})

	_, err := f.exec.Run(context.Background(), plan, ch, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"fetch_analytics", "summarize_data"}, order)
	assert.Equal(t, map[string]any{"step": "fetch_analytics"}, f.reg.input("summarize_data").Upstream["fetch_analytics"])
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}
