package planner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-creator-core/server/internal/agent/model"
)

var planNow = time.Date(2024, 10, 7, 12, 0, 0, 0, time.UTC)

func newPlanner(t *testing.T) *Planner {
	t.Helper()
	rs, err := LoadRules("")
	require.NoError(t, err)
	return New(rs, WithClock(func() time.Time { return planNow }))
}

func request(msg string) model.Request {
	return model.Request{UserID: "u1", ChannelID: "ch1", Message: msg, Tier: model.TierPro}
}

func TestPlan_ChannelPerformance(t *testing.T) {
	p := newPlanner(t)

	res := p.Plan(request("Show me my channel's performance this week"), Hints{})

	assert.Equal(t, model.IntentAnalytics, res.Intent)
	assert.Equal(t, "default", res.Subtype)
	assert.Equal(t, []string{"fetch_analytics", "compute_metrics"}, res.Plan.Tools())
	assert.Equal(t, `rule "analytics" (priority 110) matched "performance"; subtype "default"; period 7d`, res.Justification)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, model.Period7d, res.Period)
	assert.Equal(t, planNow, res.PlannedAt)

	fetch := res.Plan.Steps[0]
	assert.True(t, fetch.Critical)
	assert.False(t, fetch.Optional)
	assert.Equal(t, map[string]any{"channel_id": "ch1", "period": "7d"}, fetch.Input)
	assert.Equal(t, []string{"fetch_analytics"}, res.Plan.Steps[1].DependsOn)
	assert.True(t, res.Plan.Steps[1].Optional)
}

func TestPlan_ImproveEngagementNeedsRecommendations(t *testing.T) {
	p := newPlanner(t)

	res := p.Plan(request("What should I do to improve my engagement?"), Hints{})

	assert.Equal(t, model.IntentInsight, res.Intent)
	assert.Equal(t, "recommendation", res.Subtype)
	assert.Contains(t, res.Plan.Tools(), "get_recommendations")
	assert.Contains(t, res.Justification, `rule "insight_diagnostic"`)
}

func TestPlan_Routing(t *testing.T) {
	tests := []struct {
		msg     string
		intent  model.Intent
		subtype string
		period  model.Period
	}{
		{"Why did my views drop?", model.IntentInsight, "default", model.Period7d},
		{"How did my last video do?", model.IntentAnalytics, "video-post-mortem", model.Period7d},
		{`Post-mortem for "My Studio Tour"`, model.IntentAnalytics, "video-post-mortem", model.Period7d},
		{"What are my top videos this month?", model.IntentTopVideo, "default", model.Period28d},
		{"Give me a content strategy", model.IntentStrategy, "default", model.Period28d},
		{"Why is my channel not growing?", model.IntentGrowth, "default", model.Period28d},
		{"How did my growth look this week?", model.IntentGrowth, "weekly", model.Period28d},
		{"What plan am I on? Is my quota used up?", model.IntentAccount, "default", model.Period7d},
		{"Send me a weekly report", model.IntentReport, "weekly", model.Period7d},
		{"Summarize the last 30 days", model.IntentReport, "default", model.Period28d},
		{"What did you say earlier about thumbnails?", model.IntentMemoryRecall, "default", model.Period7d},
		{"Remember our chat history on shorts? search it", model.IntentMemoryRecall, "history-search", model.Period7d},
		{"Schedule a check every monday", model.IntentAction, "schedule", model.Period7d},
		{"Reply to new comments", model.IntentAction, "default", model.Period7d},
		{"Find anything about shorts traffic", model.IntentSearch, "default", model.Period7d},
		{"Show my CTR as a chart", model.IntentAnalytics, "chart", model.Period7d},
		{"hello there", model.IntentFallback, "default", model.Period7d},
		{"what's the weather tomorrow", model.IntentFallback, "off-topic", model.Period7d},
	}
	p := newPlanner(t)
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			res := p.Plan(request(tt.msg), Hints{})
			assert.Equal(t, tt.intent, res.Intent, res.Justification)
			assert.Equal(t, tt.subtype, res.Subtype, res.Justification)
			assert.Equal(t, tt.period, res.Period, res.Justification)
		})
	}
}

func TestPlan_FallbackConfidenceAndOffTopic(t *testing.T) {
	p := newPlanner(t)

	res := p.Plan(request("hello there"), Hints{})
	assert.Equal(t, 0.5, res.Confidence)
	assert.Equal(t, "fallback", res.Rule)
	assert.Equal(t, []string{"recall_context"}, res.Plan.Tools())
	assert.Equal(t, "general", res.Prompt)

	off := p.Plan(request("tell me a joke"), Hints{})
	assert.Equal(t, "off-topic", off.Subtype)
	assert.Empty(t, off.Plan.Steps)
	assert.Equal(t, "off_topic", off.Prompt)
}

func TestPlan_TitleBinding(t *testing.T) {
	p := newPlanner(t)

	res := p.Plan(request(`Why did "Studio Tour 2024" flop?`), Hints{})
	require.Equal(t, "video-post-mortem", res.Subtype)
	assert.Equal(t, map[string]any{"title": "Studio Tour 2024"}, res.Plan.Steps[0].Input)

	res = p.Plan(request("How did my latest upload do?"), Hints{})
	assert.Empty(t, res.Plan.Steps[0].Input)
}

func TestPlan_TitleBindingCurlyQuotesAndLongest(t *testing.T) {
	p := newPlanner(t)

	res := p.Plan(request("How did “Ramen at Home” do?"), Hints{})
	assert.Equal(t, model.IntentAnalytics, res.Intent)
	require.Equal(t, "video-post-mortem", res.Subtype)
	assert.Equal(t, map[string]any{"title": "Ramen at Home"}, res.Plan.Steps[0].Input)

	res = p.Plan(request(`Compare "it" with "Studio Tour 2024: the full walkthrough"`), Hints{})
	require.Equal(t, "video-post-mortem", res.Subtype)
	assert.Equal(t, "Studio Tour 2024: the full walkthrough", res.Plan.Steps[0].Input["title"])
}

func TestPlan_OptionalSteps(t *testing.T) {
	p := newPlanner(t)

	chart := p.Plan(request("chart my views"), Hints{})
	require.Equal(t, "chart", chart.Subtype)
	for _, s := range chart.Plan.Steps {
		assert.Equal(t, s.Tool != "fetch_analytics", s.Optional, s.Tool)
	}

	insight := p.Plan(request("What should I do to improve my engagement?"), Hints{})
	for _, s := range insight.Plan.Steps {
		assert.False(t, s.Optional, s.Tool)
	}
}

func TestPlan_AccountRunsNoTools(t *testing.T) {
	p := newPlanner(t)

	res := p.Plan(request("Should I upgrade my plan?"), Hints{})

	assert.Equal(t, model.IntentAccount, res.Intent)
	assert.Empty(t, res.Plan.Steps)
}

func TestPlan_Hints(t *testing.T) {
	p := newPlanner(t)

	res := p.Plan(request("anything"), HintsFromMetadata(map[string]any{"intent": "report", "period": "28d"}))

	assert.Equal(t, model.IntentReport, res.Intent)
	assert.Equal(t, "hint", res.Rule)
	assert.Equal(t, model.Period28d, res.Period)
	assert.Equal(t, "28d", res.Plan.Steps[0].Input["period"])

	assert.Equal(t, Hints{}, HintsFromMetadata(map[string]any{"intent": "dance", "period": 7}))
}

func TestPlan_IsDeterministicAndDoesNotShareInputs(t *testing.T) {
	p := newPlanner(t)
	msg := "Show me my channel's performance this week"

	a := p.Plan(request(msg), Hints{})
	a.Plan.Steps[0].Input["period"] = "28d"
	b := p.Plan(request(msg), Hints{})

	assert.Equal(t, "7d", b.Plan.Steps[0].Input["period"])
	assert.Equal(t, a.Justification, b.Justification)
}

func TestRules_OrderedByPriority(t *testing.T) {
	p := newPlanner(t)

	rules := p.Rules()
	require.NotEmpty(t, rules)
	for i := 1; i < len(rules); i++ {
		assert.Less(t, rules[i-1].Priority, rules[i].Priority)
	}
	assert.Equal(t, "account_info", rules[0].Name)
	assert.Equal(t, "analytics", rules[len(rules)-1].Name)
}

type toolSet map[string]bool

func (s toolSet) Has(name string) bool { return s[name] }

func TestCheckTools(t *testing.T) {
	rs := DefaultRules()

	err := rs.CheckTools(toolSet{"fetch_analytics": true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compute_metrics")
}

func TestParseRules_Validation(t *testing.T) {
	base := string(defaultRules)
	tests := []struct {
		name   string
		mutate func(string) string
		want   string
	}{
		{
			name:   "duplicate priority",
			mutate: func(s string) string { return strings.Replace(s, "priority: 20", "priority: 10", 1) },
			want:   "share priority 10",
		},
		{
			name:   "bad regex",
			mutate: func(s string) string { return strings.Replace(s, `'\b(upgrade|downgrade)\b'`, `'(upgrade'`, 1) },
			want:   "pattern",
		},
		{
			name:   "forward dependency",
			mutate: func(s string) string { return strings.Replace(s, "depends_on: [fetch_last_video_analytics]", "depends_on: [generate_chart]", 1) },
			want:   "not an earlier step",
		},
		{
			name: "required step after optional",
			mutate: func(s string) string {
				return strings.Replace(s, "depends_on: [fetch_analytics, compute_metrics]\n            optional: true", "depends_on: [fetch_analytics, compute_metrics]", 1)
			},
			want: "depends on optional step compute_metrics",
		},
		{
			name:   "critical and optional",
			mutate: func(s string) string { return strings.Replace(s, "optional: true", "optional: true\n            critical: true", 1) },
			want:   "both critical and optional",
		},
		{
			name:   "unknown field",
			mutate: func(s string) string { return strings.Replace(s, "priority: 10", "priority: 10\n    weight: 3", 1) },
			want:   "weight",
		},
		{
			name:   "unknown binding",
			mutate: func(s string) string { return strings.Replace(s, "{title: $title}", "{title: $video}", 1) },
			want:   "unknown binding",
		},
		{
			name:   "unknown pinned subtype",
			mutate: func(s string) string { return strings.Replace(s, "subtype: video-post-mortem", "subtype: autopsy", 1) },
			want:   "no subtype",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.mutate(base)))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadRules_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, defaultRules, 0o600))

	rs, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, "2024.10", rs.Version)

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
