package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Chative-creator-core/server/internal/agent/model"
	errx "github.com/Chative-creator-core/server/internal/core/error"
)

type Summary struct {
	Summary    string   `json:"summary"`
	Highlights []string `json:"highlights"`
	WordCount  int      `json:"word_count"`
}

type Section struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type PerformanceReport struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Sections    []Section `json:"sections"`
	GeneratedAt string    `json:"generated_at"`
}

type WeeklyGrowth struct {
	WeekStart       string   `json:"week_start"`
	WeekEnd         string   `json:"week_end"`
	Deltas          []Delta  `json:"deltas"`
	Wins            []string `json:"wins"`
	Losses          []string `json:"losses"`
	Recommendations []string `json:"recommendations"`
}

const noDataSummary = "No analytics data available for this period."

func periodLabel(p model.Period) string {
	return fmt.Sprintf("%d-day", p.Days())
}

func highlights(snap model.AnalyticsSnapshot) []string {
	out := []string{}
	if snap.Views.Available {
		out = append(out, thousands(snap.Views.Value)+" total views")
	}
	if snap.SubscribersGained.Available {
		out = append(out, thousands(snap.SubscribersGained.Value)+" new subscribers")
	}
	if snap.HasRetention {
		out = append(out, fmt.Sprintf("%.1f%% average view percentage", snap.Retention.Value))
	}
	if snap.AvgViewDuration.Available {
		out = append(out, fmt.Sprintf("%.1f min average view duration", snap.AvgViewDuration.Value/60))
	}
	if snap.HasCTR {
		out = append(out, fmt.Sprintf("%.2f%% click-through rate", snap.CTR.Value))
	}
	return out
}

func (t *toolset) summarizeData(_ context.Context, in model.ToolInput) (any, error) {
	snap, err := requireUpstream[model.AnalyticsSnapshot](in, "fetch_analytics")
	if err != nil {
		return nil, err
	}
	h := highlights(snap)
	s := Summary{Summary: noDataSummary, Highlights: h}
	if len(h) > 0 {
		s.Summary = fmt.Sprintf("Over the last %s period: %s.", periodLabel(snap.Period), strings.Join(h, ", "))
	}
	s.WordCount = len(strings.Fields(s.Summary))
	return s, nil
}

func (t *toolset) generateReport(_ context.Context, in model.ToolInput) (any, error) {
	snap, err := requireUpstream[model.AnalyticsSnapshot](in, "fetch_analytics")
	if err != nil {
		return nil, err
	}
	label := periodLabel(snap.Period)

	var parts []string
	if snap.Views.Available {
		parts = append(parts, thousands(snap.Views.Value)+" views")
	}
	if snap.SubscribersGained.Available {
		parts = append(parts, thousands(snap.SubscribersGained.Value)+" new subscribers")
	}
	summary := noDataSummary
	if len(parts) > 0 {
		summary = fmt.Sprintf("%s period: %s", label, strings.Join(parts, ", "))
	}

	r := PerformanceReport{
		Title:       fmt.Sprintf("%s Performance Report", strings.ToUpper(label[:1])+label[1:]),
		Summary:     summary,
		Sections:    []Section{{Name: "Overview", Content: summary}},
		GeneratedAt: t.now().UTC().Format(time.RFC3339),
	}
	if snap.HasRetention || snap.HasCTR {
		var eng []string
		if snap.HasRetention {
			eng = append(eng, fmt.Sprintf("Average view percentage: %.1f%%", snap.Retention.Value))
		}
		if snap.HasCTR {
			eng = append(eng, fmt.Sprintf("Click-through rate: %.2f%%", snap.CTR.Value))
		}
		r.Sections = append(r.Sections, Section{Name: "Engagement", Content: strings.Join(eng, "; ")})
	}
	if snap.HasTrafficSources {
		srcs := topSources(snap.TrafficSources)
		if len(srcs) > 3 {
			srcs = srcs[:3]
		}
		names := make([]string, 0, len(srcs))
		for _, s := range srcs {
			names = append(names, fmt.Sprintf("%s: %s", s.Source, thousands(float64(s.Views))))
		}
		r.Sections = append(r.Sections, Section{Name: "Traffic Sources", Content: "Top sources: " + strings.Join(names, ", ")})
	}
	if snap.WatchMinutes.Available {
		r.Sections = append(r.Sections, Section{Name: "Watch Time", Content: thousands(snap.WatchMinutes.Value) + " minutes watched"})
	}
	return r, nil
}

var lossAdvice = map[string]string{
	"views":                     "Publish at your usual cadence and revisit titles of this week's uploads",
	"watch_minutes":             "Favour formats that held attention in previous weeks",
	"subscribers_gained":        "Add a clear subscribe prompt after the first payoff",
	"impressions":               "Improve search and browse discoverability with clearer topics",
	"ctr":                       "Test alternative thumbnails on this week's uploads",
	"retention_pct":             "Shorten intros and move the payoff earlier",
	"avg_view_duration_seconds": "Cut slow sections that cause mid-video drop-off",
}

func (t *toolset) weeklyGrowth(ctx context.Context, in model.ToolInput) (any, error) {
	cur, err := t.analytics.Fetch(ctx, in.Channel, model.Period7d)
	if err != nil {
		return nil, err
	}
	prev, err := t.analytics.FetchPrevious(ctx, in.Channel, model.Period7d)
	if err != nil {
		if errx.IsCode(err, errx.CodeCredentialExpired) {
			return nil, err
		}
		prev = model.AnalyticsSnapshot{}
	}

	out := WeeklyGrowth{
		WeekStart:       cur.StartDate.Format(time.DateOnly),
		WeekEnd:         cur.EndDate.Format(time.DateOnly),
		Deltas:          compareSnapshots(cur, prev),
		Wins:            []string{},
		Losses:          []string{},
		Recommendations: []string{},
	}
	for _, d := range out.Deltas {
		if !d.ChangePct.Available {
			continue
		}
		line := fmt.Sprintf("%s %+.1f%% week over week", strings.ReplaceAll(d.Metric, "_", " "), d.ChangePct.Value)
		switch {
		case d.ChangePct.Value > trendThresholdPc:
			out.Wins = append(out.Wins, line)
		case d.ChangePct.Value < -trendThresholdPc:
			out.Losses = append(out.Losses, line)
			if advice, ok := lossAdvice[d.Metric]; ok {
				out.Recommendations = append(out.Recommendations, advice)
			}
		}
	}
	return out, nil
}
