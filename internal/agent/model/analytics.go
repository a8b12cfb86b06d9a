package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Metric is a measurement that may be missing upstream. An unavailable metric
// serialises as null, never as 0.
type Metric struct {
	Value     float64
	Available bool
}

// Known returns an available metric.
func Known(v float64) Metric { return Metric{Value: v, Available: true} }

// Unavailable returns the explicit missing marker.
func Unavailable() Metric { return Metric{} }

// MetricFromPtr maps a nullable column onto a Metric.
func MetricFromPtr(p *float64) Metric {
	if p == nil {
		return Unavailable()
	}
	return Known(*p)
}

// Ptr returns nil for an unavailable metric.
func (m Metric) Ptr() *float64 {
	if !m.Available {
		return nil
	}
	v := m.Value
	return &v
}

func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Available {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

func (m *Metric) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*m = Unavailable()
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*m = Known(v)
	return nil
}

// TrafficSource is the view count attributed to one source type.
type TrafficSource struct {
	Source string  `json:"source"`
	Views  int64   `json:"views"`
	Share  float64 `json:"share_pct"`
}

// AnalyticsSnapshot is the canonical, provider-independent view of a channel period.
// Consumers branch on the Has* flags before reading the corresponding metric.
type AnalyticsSnapshot struct {
	ChannelID         string          `json:"channel_id"`
	Period            Period          `json:"period"`
	StartDate         time.Time       `json:"start_date"`
	EndDate           time.Time       `json:"end_date"`
	Views             Metric          `json:"views"`
	Impressions       Metric          `json:"impressions"`
	CTR               Metric          `json:"ctr"`
	Retention         Metric          `json:"retention_pct"`
	SubscribersGained Metric          `json:"subscribers_gained"`
	WatchMinutes      Metric          `json:"watch_minutes"`
	AvgViewDuration   Metric          `json:"avg_view_duration_seconds"`
	TrafficSources    []TrafficSource `json:"traffic_sources"`
	HasCTR            bool            `json:"has_ctr"`
	HasRetention      bool            `json:"has_retention"`
	HasTrafficSources bool            `json:"has_traffic_sources"`
}

// VideoStats are per-video figures used by top-video and post-mortem tools.
type VideoStats struct {
	VideoID           string          `json:"video_id"`
	Title             string          `json:"title,omitempty"`
	PublishedAt       string          `json:"published_at,omitempty"`
	Views             Metric          `json:"views"`
	WatchMinutes      Metric          `json:"watch_minutes"`
	Retention         Metric          `json:"retention_pct"`
	SubscribersGained Metric          `json:"subscribers_gained"`
	Last7DaysViews    *int64          `json:"last_7_days_views,omitempty"`
	Previous28Days    *int64          `json:"previous_28_days_views,omitempty"`
	DurationSeconds   *int64          `json:"duration_seconds,omitempty"`
	TrafficSources    []TrafficSource `json:"traffic_sources,omitempty"`
}
