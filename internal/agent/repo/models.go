package repo

import "time"

// Channel is a connected YouTube channel and its OAuth pair.
type Channel struct {
	ID           string `gorm:"primaryKey;size:64"`
	OwnerID      string `gorm:"index;size:64;not null"`
	Title        string
	AccessToken  string
	RefreshToken string
	TokenExpiry  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AnalyticsSnapshot is one normalized channel period. Nil columns mean the
// metric was not supplied upstream.
type AnalyticsSnapshot struct {
	ID                uint      `gorm:"primaryKey"`
	ChannelID         string    `gorm:"size:64;not null;uniqueIndex:idx_snapshot_period"`
	Period            string    `gorm:"size:8;not null;uniqueIndex:idx_snapshot_period"`
	StartDate         time.Time `gorm:"not null;uniqueIndex:idx_snapshot_period"`
	EndDate           time.Time `gorm:"not null;uniqueIndex:idx_snapshot_period"`
	Views             *float64
	Impressions       *float64
	CTR               *float64 `gorm:"column:avg_ctr"`
	Retention         *float64 `gorm:"column:avg_view_percentage"`
	SubscribersGained *float64
	WatchMinutes      *float64
	AvgViewDuration   *float64
	TrafficSources    string `gorm:"type:text"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Video is the synced upload catalog used to resolve "my last video" or a quoted title.
type Video struct {
	ID              string `gorm:"primaryKey;size:32"`
	ChannelID       string `gorm:"index;size:64;not null"`
	Title           string
	PublishedAt     time.Time `gorm:"index"`
	DurationSeconds *int64
	ViewCount       *int64
}

// VideoSnapshot is one capture of a video's figures.
type VideoSnapshot struct {
	ID                uint      `gorm:"primaryKey"`
	ChannelID         string    `gorm:"size:64;not null;index"`
	VideoID           string    `gorm:"size:32;not null;uniqueIndex:idx_video_capture"`
	CapturedOn        time.Time `gorm:"not null;uniqueIndex:idx_video_capture"`
	Views             *float64
	WatchMinutes      *float64
	Retention         *float64
	SubscribersGained *float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type WeeklyInsight struct {
	ID        uint      `gorm:"primaryKey"`
	ChannelID string    `gorm:"size:64;not null;uniqueIndex:idx_insight_week"`
	WeekStart time.Time `gorm:"not null;uniqueIndex:idx_insight_week"`
	Summary   string    `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChatMessage is one durable conversation line.
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    string    `gorm:"size:64;not null;index:idx_chat_scope"`
	ChannelID string    `gorm:"size:64;not null;index:idx_chat_scope"`
	Role      string    `gorm:"size:16;not null"`
	Content   string    `gorm:"type:text"`
	Intent    string    `gorm:"size:32"`
	CreatedAt time.Time `gorm:"index"`
}

// AllModels is the AutoMigrate set.
var AllModels = []any{
	&Channel{}, &AnalyticsSnapshot{}, &Video{}, &VideoSnapshot{}, &WeeklyInsight{}, &ChatMessage{},
}
