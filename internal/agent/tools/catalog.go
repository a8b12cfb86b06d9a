package tools

import (
	"github.com/Chative-creator-core/server/internal/agent/model"
	"github.com/Chative-creator-core/server/internal/agent/registry"
)

const (
	periodInput = `{
		"type": "object",
		"properties": {
			"channel_id": {"type": "string"},
			"period": {"enum": ["7d", "28d"]}
		}
	}`

	topVideosInput = `{
		"type": "object",
		"properties": {
			"period": {"enum": ["7d", "28d"]},
			"limit": {"type": "integer", "minimum": 1, "maximum": 50}
		}
	}`

	queryInput = `{
		"type": "object",
		"properties": {
			"query": {"type": "string"},
			"limit": {"type": "integer", "minimum": 1, "maximum": 50},
			"days": {"type": "integer", "minimum": 1, "maximum": 365}
		}
	}`

	videoInput = `{
		"type": "object",
		"properties": {
			"title": {"type": "string"}
		}
	}`

	actionInput = `{
		"type": "object",
		"properties": {
			"action_type": {"type": "string"}
		}
	}`

	scheduleInput = `{
		"type": "object",
		"properties": {
			"schedule": {"type": "string", "minLength": 9},
			"task_type": {"type": "string"}
		}
	}`

	nullableNumber = `{"type": ["number", "null"]}`

	snapshotOutput = `{
		"type": "object",
		"required": ["channel_id", "period", "views", "ctr", "has_ctr", "has_retention", "has_traffic_sources"],
		"properties": {
			"period": {"enum": ["7d", "28d"]},
			"views": ` + nullableNumber + `,
			"impressions": ` + nullableNumber + `,
			"ctr": ` + nullableNumber + `,
			"retention_pct": ` + nullableNumber + `,
			"has_ctr": {"type": "boolean"},
			"has_retention": {"type": "boolean"},
			"has_traffic_sources": {"type": "boolean"},
			"traffic_sources": {"type": ["array", "null"]}
		}
	}`

	metricsOutput = `{
		"type": "object",
		"required": ["period", "deltas", "trends"],
		"properties": {
			"deltas": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["metric", "current", "previous", "change"],
					"properties": {
						"current": ` + nullableNumber + `,
						"previous": ` + nullableNumber + `,
						"change": ` + nullableNumber + `,
						"change_pct": ` + nullableNumber + `
					}
				}
			},
			"trends": {"type": "array", "items": {"type": "string"}}
		}
	}`

	videosOutput = `{
		"type": "object",
		"required": ["videos"],
		"properties": {"videos": {"type": "array"}}
	}`

	videoOutput = `{
		"type": "object",
		"required": ["video_id", "views"],
		"properties": {"video_id": {"type": "string", "minLength": 1}}
	}`

	postMortemOutput = `{
		"type": "object",
		"required": ["video_id", "verdict", "reasons", "action_items"],
		"properties": {
			"verdict": {"enum": ["overperformed", "underperformed", "average", "unknown"]},
			"reasons": {"type": "array", "items": {"type": "string"}},
			"action_items": {"type": "array", "items": {"type": "string"}}
		}
	}`

	chartOutput = `{
		"type": "object",
		"required": ["charts"],
		"properties": {"charts": {"type": "array"}}
	}`

	analysisOutput = `{
		"type": "object",
		"required": ["findings", "confidence"],
		"properties": {
			"findings": {"type": "array"},
			"confidence": {"type": "number", "minimum": 0, "maximum": 1}
		}
	}`

	insightOutput = `{
		"type": "object",
		"required": ["insights", "action_items", "priority"],
		"properties": {"priority": {"enum": ["low", "medium", "high"]}}
	}`

	recommendationsOutput = `{
		"type": "object",
		"required": ["recommendations", "rationale"],
		"properties": {"recommendations": {"type": "array", "items": {"type": "string"}}}
	}`

	summaryOutput = `{
		"type": "object",
		"required": ["summary", "highlights"],
		"properties": {"summary": {"type": "string"}}
	}`

	reportOutput = `{
		"type": "object",
		"required": ["title", "summary", "sections"],
		"properties": {"sections": {"type": "array"}}
	}`

	weeklyOutput = `{
		"type": "object",
		"required": ["week_start", "week_end", "deltas", "wins", "losses"]
	}`

	recallOutput = `{
		"type": "object",
		"required": ["matches", "unavailable"],
		"properties": {"matches": {"type": "array"}}
	}`

	historyOutput = `{
		"type": "object",
		"required": ["results", "total_count"]
	}`

	searchOutput = `{
		"type": "object",
		"required": ["results", "sources_searched", "total_matches"]
	}`

	actionOutput = `{
		"type": "object",
		"required": ["action_id", "action_type", "executed", "status"]
	}`

	scheduleOutput = `{
		"type": "object",
		"required": ["task_id", "schedule", "next_runs"],
		"properties": {"next_runs": {"type": "array", "minItems": 1}}
	}`
)

// Catalog returns every tool definition bound to d.
func Catalog(d Deps) []registry.ToolDefinition {
	t := newToolset(d)
	return []registry.ToolDefinition{
		// FREE
		{
			Name: "fetch_analytics", Category: registry.CategoryAnalytics, MinTier: model.TierFree,
			Description: "Fetch the channel's normalized analytics snapshot for a period",
			InputSchema: periodInput, OutputSchema: snapshotOutput, Handler: t.fetchAnalytics,
		},
		{
			Name: "get_channel_snapshot", Category: registry.CategoryAnalytics, MinTier: model.TierFree,
			Description: "Latest stored channel snapshot, fetched live when none is stored",
			InputSchema: periodInput, OutputSchema: snapshotOutput, Handler: t.channelSnapshot,
		},
		{
			Name: "get_top_videos", Category: registry.CategoryAnalytics, MinTier: model.TierFree,
			Description: "Most viewed videos of the period",
			InputSchema: topVideosInput, OutputSchema: videosOutput, Handler: t.topVideos,
		},
		{
			Name: "summarize_data", Category: registry.CategoryReport, MinTier: model.TierFree,
			Description: "Short summary of the fetched analytics",
			OutputSchema: summaryOutput, Handler: t.summarizeData,
		},
		{
			Name: "recall_context", Category: registry.CategoryMemory, MinTier: model.TierFree,
			Description: "Relevant earlier conversation from long-term memory",
			InputSchema: queryInput, OutputSchema: recallOutput, Handler: t.recallContext,
		},
		{
			Name: "search_data", Category: registry.CategorySearch, MinTier: model.TierFree,
			Description: "Search analytics, weekly insights and conversation history",
			InputSchema: queryInput, OutputSchema: searchOutput, Handler: t.searchData,
		},
		// PRO
		{
			Name: "compute_metrics", Category: registry.CategoryAnalytics, MinTier: model.TierPro,
			Description: "Derived rates and period-over-period deltas",
			InputSchema: periodInput, OutputSchema: metricsOutput, Handler: t.computeMetrics,
		},
		{
			Name: "generate_chart", Category: registry.CategoryAnalytics, MinTier: model.TierPro,
			Description: "Chart series for period comparison and traffic sources",
			OutputSchema: chartOutput, Handler: t.generateChart,
		},
		{
			Name: "analyze_data", Category: registry.CategoryInsight, MinTier: model.TierPro,
			Description: "Findings backed by measured metrics",
			OutputSchema: analysisOutput, Handler: t.analyzeData,
		},
		{
			Name: "generate_insight", Category: registry.CategoryInsight, MinTier: model.TierPro,
			Description: "Actionable insights derived from the analysis",
			OutputSchema: insightOutput, Handler: t.generateInsight,
		},
		{
			Name: "generate_report", Category: registry.CategoryReport, MinTier: model.TierPro,
			Description: "Sectioned performance report",
			OutputSchema: reportOutput, Handler: t.generateReport,
		},
		{
			Name: "search_history", Category: registry.CategoryMemory, MinTier: model.TierPro,
			Description: "Search past conversations and weekly insights",
			InputSchema: queryInput, OutputSchema: historyOutput, Handler: t.searchHistory,
		},
		{
			Name: "fetch_last_video_analytics", Category: registry.CategoryAnalytics, MinTier: model.TierPro,
			Description: "Figures for the latest upload or the video matching a quoted title",
			InputSchema: videoInput, OutputSchema: videoOutput, Handler: t.lastVideo,
		},
		{
			Name: "video_post_mortem", Category: registry.CategoryInsight, MinTier: model.TierPro,
			Description: "Diagnose one video against the channel baseline",
			OutputSchema: postMortemOutput, Handler: t.videoPostMortem,
		},
		{
			Name: "weekly_growth_report", Category: registry.CategoryReport, MinTier: model.TierPro,
			Description: "Week-over-week wins, losses and recommendations",
			OutputSchema: weeklyOutput, Handler: t.weeklyGrowth,
		},
		// AGENCY
		{
			Name: "get_recommendations", Category: registry.CategoryInsight, MinTier: model.TierAgency,
			Description: "Prioritised recommendations from the analysis",
			OutputSchema: recommendationsOutput, Handler: t.recommendations,
		},
		{
			Name: "execute_action", Category: registry.CategoryAction, MinTier: model.TierAgency,
			Description: "Prepare a channel action for owner confirmation",
			InputSchema: actionInput, OutputSchema: actionOutput, Handler: t.executeAction,
		},
		{
			Name: "schedule_task", Category: registry.CategoryAction, MinTier: model.TierAgency,
			Description: "Schedule a recurring task from a cron expression",
			InputSchema: scheduleInput, OutputSchema: scheduleOutput, Handler: t.scheduleTask,
		},
	}
}
