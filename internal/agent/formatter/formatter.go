// Package formatter shapes generated text and tool results into the response envelope.
package formatter

import (
	"time"

	"github.com/Chative-creator-core/server/internal/agent/model"
	"github.com/Chative-creator-core/server/internal/agent/tools"
	errx "github.com/Chative-creator-core/server/internal/core/error"
)

const maxTrafficSources = 5

var contentTypes = map[model.Intent]string{
	model.IntentAnalytics:    "analytics_summary",
	model.IntentInsight:      "insight",
	model.IntentReport:       "report",
	model.IntentMemoryRecall: "memory",
	model.IntentAction:       "action",
	model.IntentSearch:       "search_results",
	model.IntentTopVideo:     "top_videos",
	model.IntentGrowth:       "growth_report",
	model.IntentAccount:      "account",
	model.IntentStrategy:     "strategy",
	model.IntentFallback:     "text",
}

var subtypeContentTypes = map[string]string{
	"chart":             "chart",
	"video-post-mortem": "video_post_mortem",
	"weekly":            "weekly_report",
	"schedule":          "schedule",
	"recommendation":    "recommendations",
}

// ContentType derives the coarse content tag from the intent and its subtype.
func ContentType(intent model.Intent, subtype string) string {
	if ct, ok := subtypeContentTypes[subtype]; ok && intent != model.IntentFallback {
		return ct
	}
	if ct, ok := contentTypes[intent]; ok {
		return ct
	}
	return "text"
}

type Formatter struct {
	now func() time.Time
}

func New(now func() time.Time) *Formatter {
	if now == nil {
		now = time.Now
	}
	return &Formatter{now: now}
}

// Format builds a successful envelope.
func (f *Formatter) Format(text string, results []model.ToolResult, plan model.PlanResult) model.Envelope {
	return model.Envelope{
		Success:        true,
		Content:        text,
		ContentType:    ContentType(plan.Intent, plan.Subtype),
		ToolsUsed:      ToolsUsed(results),
		ToolOutputs:    toolOutputs(results),
		StructuredData: StructuredData(results),
		Metadata:       f.metadata(plan),
	}
}

// Failure builds an unsuccessful envelope that still reports what ran.
func (f *Formatter) Failure(err error, results []model.ToolResult, plan *model.PlanResult) model.Envelope {
	env := model.Envelope{
		Success:        false,
		ContentType:    "text",
		ToolsUsed:      ToolsUsed(results),
		ToolOutputs:    toolOutputs(results),
		StructuredData: StructuredData(results),
		Error:          &model.ErrorBody{Code: string(errx.CodeOf(err)), Message: errx.MessageOf(err)},
	}
	if plan != nil {
		env.ContentType = ContentType(plan.Intent, plan.Subtype)
		env.Metadata = f.metadata(*plan)
	} else {
		env.Metadata = &model.Metadata{Timestamp: f.now().UTC()}
	}
	return env
}

// Denial is the bare policy refusal: no other field is populated.
func Denial(message string) model.Envelope {
	return model.Envelope{
		Success: false,
		Error:   &model.ErrorBody{Code: string(errx.CodePlanLimitReached), Message: message},
	}
}

func (f *Formatter) metadata(plan model.PlanResult) *model.Metadata {
	return &model.Metadata{
		Timestamp:     f.now().UTC(),
		Intent:        plan.Intent,
		Subtype:       plan.Subtype,
		Confidence:    plan.Confidence,
		Justification: plan.Justification,
	}
}

// ToolsUsed lists the tools whose handlers actually ran, in plan order.
func ToolsUsed(results []model.ToolResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		if r.Ran {
			out = append(out, r.Tool)
		}
	}
	return out
}

// FailedTools lists every tool without a successful result.
func FailedTools(results []model.ToolResult) []string {
	var out []string
	for _, r := range results {
		if !r.Success {
			out = append(out, r.Tool)
		}
	}
	return out
}

func toolOutputs(results []model.ToolResult) map[string]any {
	out := make(map[string]any, len(results))
	for _, r := range results {
		out[r.Tool] = r
	}
	return out
}

// StructuredData extracts display-ready figures from successful results. Failed
// tools are listed under an explicit degraded flag; nothing is filled in for them.
func StructuredData(results []model.ToolResult) map[string]any {
	data := map[string]any{}
	if len(results) == 0 {
		return data
	}

	failed := FailedTools(results)
	data["degraded"] = len(failed) > 0
	if len(failed) > 0 {
		data["failed_tools"] = failed
	}

	var snap *model.AnalyticsSnapshot
	for _, r := range results {
		if !r.Success {
			continue
		}
		switch p := r.Payload.(type) {
		case model.AnalyticsSnapshot:
			if snap == nil {
				snap = &p
			}
		case tools.ChannelSnapshot:
			if snap == nil {
				s := p.AnalyticsSnapshot
				snap = &s
			}
		case tools.MetricsOutput:
			data["comparison"] = map[string]any{
				"period":             p.Period,
				"previous_available": p.PreviousAvailable,
				"deltas":             p.Deltas,
				"trends":             p.Trends,
			}
		case tools.TopVideos:
			data["top_videos"] = p.Videos
		case tools.ChartOutput:
			data["charts"] = p.Charts
		case tools.PostMortem:
			data["video"] = map[string]any{
				"video_id":         p.VideoID,
				"title":            p.Title,
				"views":            p.Views,
				"retention_pct":    p.Retention,
				"retention_class":  p.RetentionClass,
				"percentile":       p.Percentile,
				"performance_tier": p.PerformanceTier,
				"momentum":         p.Momentum,
			}
		}
	}
	if snap != nil {
		data["period"] = map[string]any{
			"period":     snap.Period,
			"start_date": snap.StartDate.Format(time.DateOnly),
			"end_date":   snap.EndDate.Format(time.DateOnly),
		}
		data["metrics"] = snapshotMetrics(*snap)
		data["availability"] = map[string]bool{
			"has_ctr":             snap.HasCTR,
			"has_retention":       snap.HasRetention,
			"has_traffic_sources": snap.HasTrafficSources,
		}
		data["traffic_sources"] = topTraffic(snap.TrafficSources)
	}
	return data
}

// snapshotMetrics keeps model.Metric values so unavailable figures encode as null.
func snapshotMetrics(s model.AnalyticsSnapshot) map[string]model.Metric {
	return map[string]model.Metric{
		"views":                     s.Views,
		"impressions":               s.Impressions,
		"ctr":                       s.CTR,
		"retention_pct":             s.Retention,
		"subscribers_gained":        s.SubscribersGained,
		"watch_minutes":             s.WatchMinutes,
		"avg_view_duration_seconds": s.AvgViewDuration,
	}
}

func topTraffic(sources []model.TrafficSource) []model.TrafficSource {
	if len(sources) > maxTrafficSources {
		sources = sources[:maxTrafficSources]
	}
	out := make([]model.TrafficSource, len(sources))
	copy(out, sources)
	return out
}
