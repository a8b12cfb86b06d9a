package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/Chative-creator-core/server/internal/agent/analytics"
	"github.com/Chative-creator-core/server/internal/agent/model"
	"github.com/Chative-creator-core/server/internal/agent/repo"
	errx "github.com/Chative-creator-core/server/internal/core/error"
	logx "github.com/Chative-creator-core/server/pkg/logger"
)

// Delta compares one metric across two windows. Change is unavailable unless both sides are.
type Delta struct {
	Metric    string       `json:"metric"`
	Current   model.Metric `json:"current"`
	Previous  model.Metric `json:"previous"`
	Change    model.Metric `json:"change"`
	ChangePct model.Metric `json:"change_pct"`
}

type MetricsOutput struct {
	Period                      model.Period `json:"period"`
	ViewsPerDay                 model.Metric `json:"views_per_day"`
	SubscribersPerThousandViews model.Metric `json:"subscribers_per_1k_views"`
	PreviousAvailable           bool         `json:"previous_available"`
	Deltas                      []Delta      `json:"deltas"`
	Trends                      []string     `json:"trends"`
}

type ChannelSnapshot struct {
	model.AnalyticsSnapshot
	Source string `json:"source"`
}

type TopVideos struct {
	Period model.Period       `json:"period"`
	Videos []model.VideoStats `json:"videos"`
}

type Series struct {
	Label string         `json:"label"`
	Data  []model.Metric `json:"data"`
}

type Chart struct {
	Type   string   `json:"chart_type"`
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
	Series []Series `json:"series"`
}

type ChartOutput struct {
	Charts []Chart `json:"charts"`
}

// PostMortem explains a single video using only measured figures.
type PostMortem struct {
	VideoID            string                `json:"video_id"`
	Title              string                `json:"title"`
	Views              model.Metric          `json:"views"`
	Retention          model.Metric          `json:"retention_pct"`
	RetentionClass     string                `json:"retention_class"`
	Percentile         model.Metric          `json:"percentile"`
	PerformanceTier    string                `json:"performance_tier"`
	Momentum           string                `json:"momentum"`
	Format             string                `json:"format"`
	ChannelMedianViews model.Metric          `json:"channel_median_views"`
	TrafficSources     []model.TrafficSource `json:"traffic_sources"`
	Verdict            string                `json:"verdict"`
	Reasons            []string              `json:"reasons"`
	ActionItems        []string              `json:"action_items"`
}

const (
	topSourceLimit   = 5
	baselineVideos   = 50
	trendThresholdPc = 5.0
)

func (t *toolset) fetchAnalytics(ctx context.Context, in model.ToolInput) (any, error) {
	return t.analytics.Fetch(ctx, in.Channel, periodArg(in))
}

// channelSnapshot prefers the stored snapshot and falls back to a live fetch.
func (t *toolset) channelSnapshot(ctx context.Context, in model.ToolInput) (any, error) {
	p := periodArg(in)
	snap, err := t.library.LatestSnapshot(ctx, in.Channel.ChannelID, p)
	if err == nil {
		return ChannelSnapshot{AnalyticsSnapshot: snap, Source: "stored"}, nil
	}
	if !errors.Is(err, errx.ErrNotFound) {
		logx.Warn().Err(err).Str("channel_id", in.Channel.ChannelID).Msg("stored snapshot unavailable, fetching live")
	}
	snap, err = t.analytics.Fetch(ctx, in.Channel, p)
	if err != nil {
		return nil, err
	}
	return ChannelSnapshot{AnalyticsSnapshot: snap, Source: "live"}, nil
}

func (t *toolset) topVideos(ctx context.Context, in model.ToolInput) (any, error) {
	p := periodArg(in)
	videos, err := t.analytics.TopVideos(ctx, in.Channel, p, intArg(in, "limit", 5))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(videos))
	for _, v := range videos {
		ids = append(ids, v.VideoID)
	}
	titles, err := t.library.VideoTitles(ctx, in.Channel.ChannelID, ids)
	if err != nil {
		logx.Warn().Err(err).Str("channel_id", in.Channel.ChannelID).Msg("video titles unavailable")
	}
	for i := range videos {
		videos[i].Title = titles[videos[i].VideoID]
	}
	if videos == nil {
		videos = []model.VideoStats{}
	}
	return TopVideos{Period: p, Videos: videos}, nil
}

func (t *toolset) computeMetrics(ctx context.Context, in model.ToolInput) (any, error) {
	cur, err := requireUpstream[model.AnalyticsSnapshot](in, "fetch_analytics")
	if err != nil {
		return nil, err
	}
	prev, err := t.analytics.FetchPrevious(ctx, in.Channel, cur.Period)
	if err != nil {
		if errx.IsCode(err, errx.CodeCredentialExpired) {
			return nil, err
		}
		logx.Warn().Err(err).Str("channel_id", in.Channel.ChannelID).Msg("previous period unavailable")
		prev = model.AnalyticsSnapshot{}
	}

	out := MetricsOutput{
		Period:                      cur.Period,
		ViewsPerDay:                 model.Unavailable(),
		SubscribersPerThousandViews: model.Unavailable(),
		PreviousAvailable:           prev.Views.Available,
		Deltas:                      compareSnapshots(cur, prev),
	}
	if cur.Views.Available {
		out.ViewsPerDay = model.Known(round(cur.Views.Value/float64(cur.Period.Days()), 1))
		if cur.SubscribersGained.Available && cur.Views.Value > 0 {
			out.SubscribersPerThousandViews = model.Known(round(cur.SubscribersGained.Value*1000/cur.Views.Value, 2))
		}
	}
	out.Trends = trends(out.Deltas)
	return out, nil
}

func (t *toolset) generateChart(_ context.Context, in model.ToolInput) (any, error) {
	snap, err := requireUpstream[model.AnalyticsSnapshot](in, "fetch_analytics")
	if err != nil {
		return nil, err
	}
	out := ChartOutput{Charts: []Chart{}}

	if m, ok := upstream[MetricsOutput](in, "compute_metrics"); ok {
		c := Chart{Type: "bar", Title: "Current vs previous period", Series: []Series{{Label: "current"}, {Label: "previous"}}}
		for _, d := range m.Deltas {
			switch d.Metric {
			case "views", "watch_minutes", "subscribers_gained":
				c.Labels = append(c.Labels, d.Metric)
				c.Series[0].Data = append(c.Series[0].Data, d.Current)
				c.Series[1].Data = append(c.Series[1].Data, d.Previous)
			}
		}
		out.Charts = append(out.Charts, c)
	}

	if snap.HasTrafficSources {
		c := Chart{Type: "pie", Title: "Traffic sources", Series: []Series{{Label: "share_pct"}}}
		for _, s := range topSources(snap.TrafficSources) {
			c.Labels = append(c.Labels, s.Source)
			c.Series[0].Data = append(c.Series[0].Data, model.Known(s.Share))
		}
		out.Charts = append(out.Charts, c)
	}
	return out, nil
}

// lastVideo syncs the uploads catalog, then resolves the quoted title, or the
// latest upload, against it.
func (t *toolset) lastVideo(ctx context.Context, in model.ToolInput) (any, error) {
	channelID := in.Channel.ChannelID
	if err := t.syncUploads(ctx, in.Channel); err != nil {
		if errx.IsCode(err, errx.CodeCredentialExpired) || ctx.Err() != nil {
			return nil, err
		}
		logx.Warn().Err(err).Str("channel_id", channelID).Msg("uploads sync failed, using stored catalog")
	}

	title := stringArg(in, "title", "")
	v, err := t.pickVideo(ctx, channelID, title)
	if err != nil {
		return nil, err
	}

	stats, err := t.analytics.Video(ctx, in.Channel, v.ID)
	if err != nil {
		return nil, err
	}
	stats.Title = v.Title
	if !v.PublishedAt.IsZero() {
		stats.PublishedAt = v.PublishedAt.UTC().Format(time.RFC3339)
	}
	stats.DurationSeconds = v.DurationSeconds
	return stats, nil
}

func (t *toolset) syncUploads(ctx context.Context, ch model.ChannelContext) error {
	uploads, err := t.analytics.Uploads(ctx, ch, analytics.ResolveScanLimit)
	if err != nil {
		return err
	}
	videos := make([]repo.Video, 0, len(uploads))
	for _, u := range uploads {
		videos = append(videos, repo.Video{
			ID:              u.VideoID,
			ChannelID:       ch.ChannelID,
			Title:           u.Title,
			PublishedAt:     u.PublishedAt.UTC(),
			DurationSeconds: u.DurationSeconds,
			ViewCount:       u.ViewCount,
		})
	}
	return t.library.SaveVideos(ctx, videos)
}

func (t *toolset) pickVideo(ctx context.Context, channelID, title string) (repo.Video, error) {
	if title == "" {
		latest, err := t.library.RecentVideos(ctx, channelID, 1)
		if err != nil {
			return repo.Video{}, err
		}
		if len(latest) == 0 {
			return repo.Video{}, errors.New("no synced videos found on this channel")
		}
		return latest[0], nil
	}

	recent, err := t.library.RecentVideos(ctx, channelID, analytics.ResolveScanLimit)
	if err != nil {
		return repo.Video{}, err
	}
	byID := make(map[string]repo.Video, len(recent))
	titles := make([]analytics.VideoTitle, 0, len(recent))
	for _, v := range recent {
		byID[v.ID] = v
		titles = append(titles, analytics.VideoTitle{VideoID: v.ID, Title: v.Title})
	}

	res, ok := analytics.ResolveTitle(title, titles)
	if !ok {
		return repo.Video{}, fmt.Errorf("no video titled %q found on this channel", title)
	}
	logx.Debug().Str("channel_id", channelID).Str("decision", string(res.Decision)).
		Float64("top_score", res.TopScore).Float64("second_score", res.SecondScore).Msg("title resolved")
	if res.Decision != analytics.DecisionAccepted {
		return repo.Video{}, errx.ClarificationNeeded(res.Clarification())
	}
	return byID[res.Match.VideoID], nil
}

func (t *toolset) videoPostMortem(ctx context.Context, in model.ToolInput) (any, error) {
	v, err := requireUpstream[model.VideoStats](in, "fetch_last_video_analytics")
	if err != nil {
		return nil, err
	}

	channelViews, err := t.library.ChannelVideoViews(ctx, in.Channel.ChannelID, baselineVideos)
	if err != nil {
		logx.Warn().Err(err).Str("channel_id", in.Channel.ChannelID).Msg("channel baseline unavailable")
		channelViews = nil
	}

	pm := PostMortem{
		VideoID:            v.VideoID,
		Title:              v.Title,
		Views:              v.Views,
		Retention:          v.Retention,
		RetentionClass:     analytics.ClassifyRetention(v.Retention),
		Percentile:         model.Unavailable(),
		ChannelMedianViews: model.Unavailable(),
		Momentum:           analytics.Momentum(v.Last7DaysViews, v.Previous28Days),
		Format:             analytics.ClassifyFormat(v.DurationSeconds, v.TrafficSources),
		TrafficSources:     topSources(v.TrafficSources),
		Verdict:            "unknown",
		Reasons:            []string{},
		ActionItems:        []string{},
	}

	pct, ok := 0.0, false
	if v.Views.Available {
		pct, ok = analytics.PercentileRank(v.Views.Value, channelViews)
	}
	if ok {
		pm.Percentile = model.Known(pct)
	}
	pm.PerformanceTier = analytics.PerformanceTier(pct, ok)
	if median, ok := analytics.MedianViews(channelViews); ok {
		pm.ChannelMedianViews = model.Known(median)
	}

	switch {
	case !ok:
	case pct >= 75:
		pm.Verdict = "overperformed"
	case pct < 25:
		pm.Verdict = "underperformed"
	default:
		pm.Verdict = "average"
	}

	pm.explain()
	return pm, nil
}

// explain pairs each measured finding with one action item.
func (pm *PostMortem) explain() {
	add := func(reason, action string) {
		pm.Reasons = append(pm.Reasons, reason)
		pm.ActionItems = append(pm.ActionItems, action)
	}

	if pm.Percentile.Available && pm.ChannelMedianViews.Available {
		action := "Test a new thumbnail and title to lift click-through"
		if pm.Percentile.Value >= 50 {
			action = "Reuse this video's title and thumbnail pattern on upcoming uploads"
		}
		add(fmt.Sprintf("%s views rank at the %.0fth percentile of recent uploads (channel median %s)",
			thousands(pm.Views.Value), pm.Percentile.Value, thousands(pm.ChannelMedianViews.Value)), action)
	}
	if pm.Retention.Available {
		action := "Keep the current opening structure"
		if pm.Retention.Value < 45 {
			action = "Tighten the first 30 seconds to reduce early drop-off"
		}
		add(fmt.Sprintf("Average view percentage was %.1f%% (%s)", pm.Retention.Value, pm.RetentionClass), action)
	}
	switch pm.Momentum {
	case "Rising":
		add("Views over the last 7 days are above the 28-day weekly baseline", "Promote the video while it is gaining momentum")
	case "Declining":
		add("Views over the last 7 days are below the 28-day weekly baseline", "Link to this video from newer uploads and end screens")
	}
	if len(pm.TrafficSources) > 0 {
		top := pm.TrafficSources[0]
		add(fmt.Sprintf("%s drove %.1f%% of views", top.Source, top.Share),
			fmt.Sprintf("Optimise packaging for %s discovery", top.Source))
	}
}

// ================ Shared computations ================

func compare(name string, cur, prev model.Metric) Delta {
	d := Delta{Metric: name, Current: cur, Previous: prev, Change: model.Unavailable(), ChangePct: model.Unavailable()}
	if cur.Available && prev.Available {
		d.Change = model.Known(round(cur.Value-prev.Value, 2))
		if prev.Value != 0 {
			d.ChangePct = model.Known(round((cur.Value-prev.Value)/prev.Value*100, 2))
		}
	}
	return d
}

func compareSnapshots(cur, prev model.AnalyticsSnapshot) []Delta {
	return []Delta{
		compare("views", cur.Views, prev.Views),
		compare("watch_minutes", cur.WatchMinutes, prev.WatchMinutes),
		compare("subscribers_gained", cur.SubscribersGained, prev.SubscribersGained),
		compare("impressions", cur.Impressions, prev.Impressions),
		compare("ctr", cur.CTR, prev.CTR),
		compare("retention_pct", cur.Retention, prev.Retention),
		compare("avg_view_duration_seconds", cur.AvgViewDuration, prev.AvgViewDuration),
	}
}

func trends(deltas []Delta) []string {
	out := []string{}
	for _, d := range deltas {
		if !d.ChangePct.Available {
			continue
		}
		switch {
		case d.ChangePct.Value > trendThresholdPc:
			out = append(out, d.Metric+"_up")
		case d.ChangePct.Value < -trendThresholdPc:
			out = append(out, d.Metric+"_down")
		default:
			out = append(out, d.Metric+"_stable")
		}
	}
	return out
}

func topSources(sources []model.TrafficSource) []model.TrafficSource {
	if len(sources) > topSourceLimit {
		return sources[:topSourceLimit]
	}
	return sources
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// thousands renders a count with comma separators.
func thousands(v float64) string {
	s := strconv.FormatInt(int64(math.Round(v)), 10)
	neg := false
	if s[0] == '-' {
		neg, s = true, s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		return "-" + s
	}
	return s
}
