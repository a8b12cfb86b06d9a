package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Chative-creator-core/server/internal/agent/analytics"
	"github.com/Chative-creator-core/server/internal/agent/model"
	logx "github.com/Chative-creator-core/server/pkg/logger"
)

type Severity string

const (
	SeverityPositive Severity = "positive"
	SeverityNeutral  Severity = "neutral"
	SeverityConcern  Severity = "concern"
)

// Finding is one observation backed by a measured metric.
type Finding struct {
	Area        string   `json:"area"`
	Observation string   `json:"observation"`
	Severity    Severity `json:"severity"`
}

type Analysis struct {
	Period         model.Period         `json:"period"`
	RetentionClass string               `json:"retention_class"`
	TopSource      *model.TrafficSource `json:"top_source,omitempty"`
	Findings       []Finding            `json:"findings"`
	Unavailable    []string             `json:"unavailable_metrics"`
	Confidence     float64              `json:"confidence"`
}

type InsightOutput struct {
	Insights    []string `json:"insights"`
	ActionItems []string `json:"action_items"`
	Priority    string   `json:"priority"`
	WeekStart   string   `json:"week_start"`
}

type Recommendations struct {
	Recommendations []string `json:"recommendations"`
	Rationale       string   `json:"rationale"`
	BasedOn         []string `json:"based_on"`
}

func (t *toolset) analyzeData(_ context.Context, in model.ToolInput) (any, error) {
	snap, err := requireUpstream[model.AnalyticsSnapshot](in, "fetch_analytics")
	if err != nil {
		return nil, err
	}
	return analyze(snap), nil
}

func analyze(snap model.AnalyticsSnapshot) Analysis {
	a := Analysis{
		Period:         snap.Period,
		RetentionClass: analytics.ClassifyRetention(snap.Retention),
		Findings:       []Finding{},
		Unavailable:    []string{},
	}

	core := []struct {
		name string
		m    model.Metric
	}{
		{"views", snap.Views},
		{"impressions", snap.Impressions},
		{"ctr", snap.CTR},
		{"retention_pct", snap.Retention},
		{"subscribers_gained", snap.SubscribersGained},
		{"watch_minutes", snap.WatchMinutes},
	}
	for _, c := range core {
		if !c.m.Available {
			a.Unavailable = append(a.Unavailable, c.name)
		}
	}
	a.Confidence = round(float64(len(core)-len(a.Unavailable))/float64(len(core)), 2)

	if snap.HasRetention {
		sev := SeverityNeutral
		switch a.RetentionClass {
		case "Strong Hook", "Healthy Retention":
			sev = SeverityPositive
		case "Weak Retention":
			sev = SeverityConcern
		}
		a.Findings = append(a.Findings, Finding{
			Area:        "retention",
			Observation: fmt.Sprintf("Viewers watch %.1f%% of each video on average (%s)", snap.Retention.Value, a.RetentionClass),
			Severity:    sev,
		})
	}

	if snap.HasCTR {
		sev := SeverityNeutral
		switch {
		case snap.CTR.Value < 2:
			sev = SeverityConcern
		case snap.CTR.Value >= 5:
			sev = SeverityPositive
		}
		a.Findings = append(a.Findings, Finding{
			Area:        "ctr",
			Observation: fmt.Sprintf("Thumbnail click-through rate is %.2f%% across %s impressions", snap.CTR.Value, thousands(snap.Impressions.Value)),
			Severity:    sev,
		})
	}

	if snap.Views.Available && snap.SubscribersGained.Available && snap.Views.Value > 0 {
		rate := snap.SubscribersGained.Value * 1000 / snap.Views.Value
		sev := SeverityNeutral
		switch {
		case rate < 1:
			sev = SeverityConcern
		case rate >= 5:
			sev = SeverityPositive
		}
		a.Findings = append(a.Findings, Finding{
			Area:        "conversion",
			Observation: fmt.Sprintf("%.1f subscribers gained per 1,000 views", rate),
			Severity:    sev,
		})
	}

	if snap.HasTrafficSources {
		top := snap.TrafficSources[0]
		a.TopSource = &top
		sev := SeverityNeutral
		if top.Share >= 60 {
			sev = SeverityConcern
		}
		a.Findings = append(a.Findings, Finding{
			Area:        "traffic",
			Observation: fmt.Sprintf("%s is the largest traffic source at %.1f%% of views", top.Source, top.Share),
			Severity:    sev,
		})
	}
	return a
}

var actionFor = map[string]map[Severity]string{
	"retention": {
		SeverityPositive: "Keep the current hook and pacing; reuse the structure in upcoming videos",
		SeverityNeutral:  "Review the retention graph for the largest drop and trim that section in future edits",
		SeverityConcern:  "Rework the first 30 seconds so the video delivers on the title immediately",
	},
	"ctr": {
		SeverityPositive: "Document the thumbnail and title style that is working and keep it consistent",
		SeverityNeutral:  "A/B test thumbnails on new uploads to push click-through higher",
		SeverityConcern:  "Redesign thumbnails with a single clear subject and fewer words",
	},
	"conversion": {
		SeverityPositive: "Keep the subscribe call to action where it is",
		SeverityNeutral:  "Add a verbal subscribe prompt right after the first payoff in each video",
		SeverityConcern:  "Give viewers a reason to subscribe by teasing the next video in the series",
	},
	"traffic": {
		SeverityNeutral: "Cross-link related videos to grow suggested traffic alongside the top source",
		SeverityConcern: "Diversify discovery; one source drives most views and a change there would hit the channel hard",
	},
}

func (t *toolset) generateInsight(ctx context.Context, in model.ToolInput) (any, error) {
	a, err := requireUpstream[Analysis](in, "analyze_data")
	if err != nil {
		return nil, err
	}

	out := InsightOutput{Insights: []string{}, ActionItems: []string{}, Priority: "low"}
	for _, f := range a.Findings {
		out.Insights = append(out.Insights, f.Observation)
		if action, ok := actionFor[f.Area][f.Severity]; ok {
			out.ActionItems = append(out.ActionItems, action)
		}
		switch {
		case f.Severity == SeverityConcern:
			out.Priority = "high"
		case out.Priority == "low" && f.Severity == SeverityNeutral:
			out.Priority = "medium"
		}
	}
	if len(a.Unavailable) > 0 {
		out.Insights = append(out.Insights, "Not reported for this period: "+strings.Join(a.Unavailable, ", "))
	}

	week := weekStart(t.now())
	out.WeekStart = week.Format(time.DateOnly)
	if len(out.Insights) > 0 {
		if err := t.library.SaveInsight(ctx, in.Channel.ChannelID, week, strings.Join(out.Insights, "\n")); err != nil {
			logx.Warn().Err(err).Str("channel_id", in.Channel.ChannelID).Msg("failed to persist weekly insight")
		}
	}
	return out, nil
}

func (t *toolset) recommendations(_ context.Context, in model.ToolInput) (any, error) {
	a, err := requireUpstream[Analysis](in, "analyze_data")
	if err != nil {
		return nil, err
	}

	out := Recommendations{Recommendations: []string{}, BasedOn: []string{}}
	for _, f := range a.Findings {
		if f.Severity != SeverityConcern {
			continue
		}
		out.Recommendations = append(out.Recommendations, actionFor[f.Area][f.Severity])
		out.BasedOn = append(out.BasedOn, f.Observation)
	}
	if len(out.Recommendations) > 0 {
		out.Rationale = "Addresses the weakest measured areas first"
		return out, nil
	}

	for _, f := range a.Findings {
		if f.Severity != SeverityPositive {
			continue
		}
		out.Recommendations = append(out.Recommendations, actionFor[f.Area][f.Severity])
		out.BasedOn = append(out.BasedOn, f.Observation)
	}
	if a.TopSource != nil {
		out.Recommendations = append(out.Recommendations,
			fmt.Sprintf("Build a series around the topics that perform best in %s", a.TopSource.Source))
		out.BasedOn = append(out.BasedOn, fmt.Sprintf("%s share %.1f%%", a.TopSource.Source, a.TopSource.Share))
	}
	out.Rationale = "No measured weaknesses; doubles down on what is already working"
	if len(out.Recommendations) == 0 {
		out.Rationale = "Not enough measured data for this period to recommend changes"
	}
	return out, nil
}

// weekStart is the Monday of t's ISO week, in UTC.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
