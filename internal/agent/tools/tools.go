// Package tools implements the handlers of the fixed tool catalog.
package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Chative-creator-core/server/internal/agent/analytics"
	"github.com/Chative-creator-core/server/internal/agent/memory"
	"github.com/Chative-creator-core/server/internal/agent/model"
	"github.com/Chative-creator-core/server/internal/agent/registry"
	"github.com/Chative-creator-core/server/internal/agent/repo"
)

// AnalyticsSource is the live provider side of the analytics pipeline.
type AnalyticsSource interface {
	Fetch(ctx context.Context, ch model.ChannelContext, p model.Period) (model.AnalyticsSnapshot, error)
	FetchPrevious(ctx context.Context, ch model.ChannelContext, p model.Period) (model.AnalyticsSnapshot, error)
	TopVideos(ctx context.Context, ch model.ChannelContext, p model.Period, limit int) ([]model.VideoStats, error)
	Video(ctx context.Context, ch model.ChannelContext, videoID string) (model.VideoStats, error)
	Uploads(ctx context.Context, ch model.ChannelContext, limit int) ([]analytics.Upload, error)
}

// Library is the durable store the tools read from.
type Library interface {
	LatestSnapshot(ctx context.Context, channelID string, period model.Period) (model.AnalyticsSnapshot, error)
	SaveVideos(ctx context.Context, videos []repo.Video) error
	RecentVideos(ctx context.Context, channelID string, limit int) ([]repo.Video, error)
	VideoTitles(ctx context.Context, channelID string, ids []string) (map[string]string, error)
	ChannelVideoViews(ctx context.Context, channelID string, limit int) ([]int64, error)
	RecentInsights(ctx context.Context, channelID string, limit int) ([]repo.WeeklyInsight, error)
	SaveInsight(ctx context.Context, channelID string, weekStart time.Time, summary string) error
	ChatBetween(ctx context.Context, userID, channelID string, from, to time.Time) ([]repo.ChatMessage, error)
}

// Recaller searches long-term conversation memory.
type Recaller interface {
	Recall(ctx context.Context, userID, channelID, query string, limit int) memory.RecallResult
}

type Deps struct {
	Analytics AnalyticsSource
	Library   Library
	Memory    Recaller
	Now       func() time.Time
}

type toolset struct {
	analytics AnalyticsSource
	library   Library
	memory    Recaller
	now       func() time.Time
}

// NewRegistry builds the registry over the full catalog.
func NewRegistry(d Deps) (*registry.Registry, error) {
	return registry.New(Catalog(d)...)
}

func newToolset(d Deps) *toolset {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &toolset{analytics: d.Analytics, library: d.Library, memory: d.Memory, now: now}
}

// ================ Input helpers ================

func stringArg(in model.ToolInput, key, def string) string {
	if v, ok := in.Payload[key].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func intArg(in model.ToolInput, key string, def int) int {
	switch v := in.Payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

func periodArg(in model.ToolInput) model.Period {
	if model.Period(stringArg(in, "period", "")) == model.Period28d {
		return model.Period28d
	}
	return model.Period7d
}

// upstream returns the output of a completed dependency.
func upstream[T any](in model.ToolInput, tool string) (T, bool) {
	v, ok := in.Upstream[tool].(T)
	return v, ok
}

func requireUpstream[T any](in model.ToolInput, tool string) (T, error) {
	v, ok := upstream[T](in, tool)
	if !ok {
		return v, fmt.Errorf("%s output is required", tool)
	}
	return v, nil
}
