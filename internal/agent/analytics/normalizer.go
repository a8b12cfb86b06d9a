package analytics

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Chative-creator-core/server/internal/agent/model"
)

// Provider-native column names.
const (
	ColDay               = "day"
	ColVideo             = "video"
	ColTrafficSource     = "insightTrafficSourceType"
	ColViews             = "views"
	ColImpressions       = "videoThumbnailImpressions"
	ColCTR               = "videoThumbnailImpressionsClickRate"
	ColWatchMinutes      = "estimatedMinutesWatched"
	ColAvgViewDuration   = "averageViewDuration"
	ColAvgViewPercentage = "averageViewPercentage"
	ColSubscribersGained = "subscribersGained"
)

// CoreMetrics is the metric set requested for a channel period.
var CoreMetrics = []string{
	ColViews, ColWatchMinutes, ColAvgViewDuration, ColAvgViewPercentage,
	ColSubscribersGained, ColImpressions, ColCTR,
}

// ColumnHeader describes one column of a provider report.
type ColumnHeader struct {
	Name       string `json:"name"`
	ColumnType string `json:"columnType"`
	DataType   string `json:"dataType"`
}

// Report is the provider's tabular response.
type Report struct {
	ColumnHeaders []ColumnHeader `json:"columnHeaders"`
	Rows          [][]any        `json:"rows"`
}

func (r *Report) columns() map[string]int {
	idx := make(map[string]int, len(r.ColumnHeaders))
	for i, h := range r.ColumnHeaders {
		idx[h.Name] = i
	}
	return idx
}

var trafficSourceNames = map[string]string{
	"EXT_URL":       "EXTERNAL",
	"NO_LINK_OTHER": "OTHER",
}

// Window is the inclusive date range of a snapshot.
type Window struct {
	Period model.Period
	Start  time.Time
	End    time.Time
}

// accumulator sums one column; it stays unavailable until a non-null cell is seen.
type accumulator struct {
	sum  float64
	seen bool
}

func (a *accumulator) add(v float64) {
	a.sum += v
	a.seen = true
}

func (a accumulator) metric() model.Metric {
	if !a.seen {
		return model.Unavailable()
	}
	return model.Known(a.sum)
}

// weighted averages value by weight over rows where both are present.
type weighted struct {
	num, den float64
}

func (w *weighted) add(v, weight float64) {
	w.num += v * weight
	w.den += weight
}

func (w weighted) metric(decimals int) model.Metric {
	if w.den <= 0 {
		return model.Unavailable()
	}
	return model.Known(round(w.num/w.den, decimals))
}

// Normalize maps a provider core report and an optional traffic report onto the
// canonical snapshot. It is a pure function of its inputs. Absent columns and
// null cells leave the metric unavailable; nothing defaults to zero.
func Normalize(channelID string, w Window, core, traffic *Report) model.AnalyticsSnapshot {
	snap := model.AnalyticsSnapshot{
		ChannelID:         channelID,
		Period:            w.Period,
		StartDate:         w.Start,
		EndDate:           w.End,
		Views:             model.Unavailable(),
		Impressions:       model.Unavailable(),
		CTR:               model.Unavailable(),
		Retention:         model.Unavailable(),
		SubscribersGained: model.Unavailable(),
		WatchMinutes:      model.Unavailable(),
		AvgViewDuration:   model.Unavailable(),
	}

	if core != nil && len(core.Rows) > 0 {
		cols := core.columns()
		var views, impressions, minutes, subs accumulator
		var ctr, retention, duration weighted

		for _, row := range core.Rows {
			v, hasViews := cell(row, cols, ColViews)
			if hasViews {
				views.add(v)
			}
			imp, hasImp := cell(row, cols, ColImpressions)
			if hasImp {
				impressions.add(imp)
				if c, ok := cell(row, cols, ColCTR); ok {
					ctr.add(c, imp)
				}
			}
			if m, ok := cell(row, cols, ColWatchMinutes); ok {
				minutes.add(m)
			}
			if s, ok := cell(row, cols, ColSubscribersGained); ok {
				subs.add(s)
			}
			if hasViews {
				if p, ok := cell(row, cols, ColAvgViewPercentage); ok {
					retention.add(p, v)
				}
				if d, ok := cell(row, cols, ColAvgViewDuration); ok {
					duration.add(d, v)
				}
			}
		}

		snap.Views = views.metric()
		snap.Impressions = impressions.metric()
		snap.WatchMinutes = minutes.metric()
		snap.SubscribersGained = subs.metric()
		snap.CTR = ctr.metric(4)
		snap.Retention = retention.metric(2)
		snap.AvgViewDuration = duration.metric(1)
	}

	snap.TrafficSources = NormalizeTrafficSources(traffic)
	snap.HasCTR = snap.CTR.Available
	snap.HasRetention = snap.Retention.Available
	snap.HasTrafficSources = len(snap.TrafficSources) > 0
	return snap
}

// NormalizeTrafficSources aggregates views per source, largest first, with each
// source's share of the total in percent.
func NormalizeTrafficSources(r *Report) []model.TrafficSource {
	if r == nil || len(r.Rows) == 0 {
		return nil
	}
	cols := r.columns()
	srcIdx, ok := cols[ColTrafficSource]
	if !ok {
		return nil
	}
	if _, ok := cols[ColViews]; !ok {
		return nil
	}

	totals := map[string]int64{}
	var sum int64
	for _, row := range r.Rows {
		if srcIdx >= len(row) {
			continue
		}
		name, ok := row[srcIdx].(string)
		if !ok || name == "" {
			continue
		}
		v, ok := cell(row, cols, ColViews)
		if !ok {
			continue
		}
		name = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
		if mapped, ok := trafficSourceNames[name]; ok {
			name = mapped
		}
		totals[name] += int64(v)
		sum += int64(v)
	}
	if len(totals) == 0 {
		return nil
	}

	out := make([]model.TrafficSource, 0, len(totals))
	for name, views := range totals {
		ts := model.TrafficSource{Source: name, Views: views}
		if sum > 0 {
			ts.Share = round(float64(views)*100/float64(sum), 2)
		}
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Views != out[j].Views {
			return out[i].Views > out[j].Views
		}
		return out[i].Source < out[j].Source
	})
	return out
}

// NormalizeVideos maps a report with a video dimension onto per-video stats.
func NormalizeVideos(r *Report) []model.VideoStats {
	if r == nil {
		return nil
	}
	cols := r.columns()
	idx, ok := cols[ColVideo]
	if !ok {
		return nil
	}
	out := make([]model.VideoStats, 0, len(r.Rows))
	for _, row := range r.Rows {
		if idx >= len(row) {
			continue
		}
		id, _ := row[idx].(string)
		if id == "" {
			continue
		}
		out = append(out, model.VideoStats{
			VideoID:           id,
			Views:             metricCell(row, cols, ColViews),
			WatchMinutes:      metricCell(row, cols, ColWatchMinutes),
			Retention:         metricCell(row, cols, ColAvgViewPercentage),
			SubscribersGained: metricCell(row, cols, ColSubscribersGained),
		})
	}
	return out
}

// SumViews totals the views column; ok is false when the column is absent or all null.
func SumViews(r *Report) (int64, bool) {
	if r == nil {
		return 0, false
	}
	cols := r.columns()
	var acc accumulator
	for _, row := range r.Rows {
		if v, ok := cell(row, cols, ColViews); ok {
			acc.add(v)
		}
	}
	return int64(acc.sum), acc.seen
}

func metricCell(row []any, cols map[string]int, name string) model.Metric {
	if v, ok := cell(row, cols, name); ok {
		return model.Known(v)
	}
	return model.Unavailable()
}

func cell(row []any, cols map[string]int, name string) (float64, bool) {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return 0, false
	}
	return toFloat(row[i])
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
