package analytics

import (
	"sort"

	"github.com/Chative-creator-core/server/internal/agent/model"
)

const Unknown = "Unknown"

// ClassifyRetention buckets average view percentage.
func ClassifyRetention(m model.Metric) string {
	if !m.Available {
		return Unknown
	}
	switch {
	case m.Value >= 60:
		return "Strong Hook"
	case m.Value >= 45:
		return "Healthy Retention"
	case m.Value >= 30:
		return "Moderate Drop-off"
	default:
		return "Weak Retention"
	}
}

// PercentileRank is the share of channel videos with fewer views, 0..100.
func PercentileRank(views float64, channel []int64) (float64, bool) {
	if len(channel) == 0 {
		return 0, false
	}
	below := 0
	for _, v := range channel {
		if float64(v) < views {
			below++
		}
	}
	return round(float64(below)*100/float64(len(channel)), 1), true
}

// Momentum compares the last 7 days against a weekly baseline from the prior 28 days.
func Momentum(last7, previous28 *int64) string {
	if last7 == nil || previous28 == nil {
		return Unknown
	}
	baseline := float64(*previous28) / 4
	if baseline <= 0 {
		return Unknown
	}
	ratio := float64(*last7) / baseline
	switch {
	case ratio > 1.2:
		return "Rising"
	case ratio >= 0.8:
		return "Stable"
	default:
		return "Declining"
	}
}

// ClassifyFormat prefers Shorts traffic dominance over duration.
func ClassifyFormat(durationSeconds *int64, sources []model.TrafficSource) string {
	var total, shorts int64
	for _, s := range sources {
		total += s.Views
		if s.Source == "SHORTS" {
			shorts += s.Views
		}
	}
	if total > 0 && float64(shorts)/float64(total) >= 0.5 {
		return "Shorts"
	}
	if durationSeconds == nil {
		return Unknown
	}
	switch d := *durationSeconds; {
	case d < 65:
		return "Short"
	case d <= 480:
		return "Standard"
	default:
		return "Long-form"
	}
}

// PerformanceTier is driven by percentile alone.
func PerformanceTier(percentile float64, ok bool) string {
	if !ok {
		return Unknown
	}
	switch {
	case percentile >= 75:
		return "Top Performer"
	case percentile >= 50:
		return "Above Average"
	case percentile >= 25:
		return "Average"
	default:
		return "Underperformer"
	}
}

// MedianViews returns the median of the given counts.
func MedianViews(views []int64) (float64, bool) {
	if len(views) == 0 {
		return 0, false
	}
	s := make([]int64, len(views))
	copy(s, views)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return float64(s[mid]), true
	}
	return float64(s[mid-1]+s[mid]) / 2, true
}
