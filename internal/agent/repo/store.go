package repo

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Chative-creator-core/server/internal/agent/model"
	errx "github.com/Chative-creator-core/server/internal/core/error"
	logx "github.com/Chative-creator-core/server/pkg/logger"
)

// Store is the durable long-term store.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(AllModels...)
}

// ================ Channels ================

func (s *Store) GetChannel(ctx context.Context, id string) (*Channel, error) {
	var ch Channel
	if err := s.db.WithContext(ctx).First(&ch, "id = ?", id).Error; err != nil {
		return nil, errx.WrapDB(err)
	}
	return &ch, nil
}

func (s *Store) SaveChannel(ctx context.Context, ch *Channel) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner_id", "title", "access_token", "refresh_token", "token_expiry", "updated_at"}),
	}).Create(ch).Error
	return errx.WrapDB(err)
}

func (s *Store) LoadCredential(ctx context.Context, channelID string) (model.Credential, error) {
	ch, err := s.GetChannel(ctx, channelID)
	if err != nil {
		return model.Credential{}, err
	}
	cred := model.Credential{AccessToken: ch.AccessToken, RefreshToken: ch.RefreshToken}
	if ch.TokenExpiry != nil {
		cred.Expiry = *ch.TokenExpiry
	}
	return cred, nil
}

// SaveCredential writes the refreshed pair. Nothing else on the row changes.
func (s *Store) SaveCredential(ctx context.Context, channelID string, cred model.Credential) error {
	updates := map[string]any{
		"access_token":  cred.AccessToken,
		"refresh_token": cred.RefreshToken,
		"token_expiry":  nil,
	}
	if !cred.Expiry.IsZero() {
		updates["token_expiry"] = cred.Expiry.UTC()
	}
	res := s.db.WithContext(ctx).Model(&Channel{}).Where("id = ?", channelID).Updates(updates)
	if res.Error != nil {
		return errx.WrapDB(res.Error)
	}
	if res.RowsAffected == 0 {
		return errx.ErrNotFound
	}
	return nil
}

// ================ Analytics snapshots ================

// UpsertSnapshot is idempotent on (channel, period, start, end): re-ingesting a
// period overwrites the stored row.
func (s *Store) UpsertSnapshot(ctx context.Context, snap model.AnalyticsSnapshot) error {
	row := snapshotRow(snap)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "channel_id"}, {Name: "period"}, {Name: "start_date"}, {Name: "end_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"views", "impressions", "avg_ctr", "avg_view_percentage", "subscribers_gained",
			"watch_minutes", "avg_view_duration", "traffic_sources", "updated_at",
		}),
	}).Create(&row).Error
	return errx.WrapDB(err)
}

func (s *Store) LatestSnapshot(ctx context.Context, channelID string, period model.Period) (model.AnalyticsSnapshot, error) {
	var row AnalyticsSnapshot
	err := s.db.WithContext(ctx).
		Where("channel_id = ? AND period = ?", channelID, string(period)).
		Order("end_date DESC").
		First(&row).Error
	if err != nil {
		return model.AnalyticsSnapshot{}, errx.WrapDB(err)
	}
	return row.toModel(), nil
}

// SnapshotsBetween returns snapshots whose window ends within [from, to], oldest first.
func (s *Store) SnapshotsBetween(ctx context.Context, channelID string, from, to time.Time) ([]model.AnalyticsSnapshot, error) {
	var rows []AnalyticsSnapshot
	err := s.db.WithContext(ctx).
		Where("channel_id = ? AND end_date >= ? AND end_date <= ?", channelID, day(from), day(to)).
		Order("end_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errx.WrapDB(err)
	}
	out := make([]model.AnalyticsSnapshot, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func snapshotRow(snap model.AnalyticsSnapshot) AnalyticsSnapshot {
	row := AnalyticsSnapshot{
		ChannelID:         snap.ChannelID,
		Period:            string(snap.Period),
		StartDate:         day(snap.StartDate),
		EndDate:           day(snap.EndDate),
		Views:             snap.Views.Ptr(),
		Impressions:       snap.Impressions.Ptr(),
		CTR:               snap.CTR.Ptr(),
		Retention:         snap.Retention.Ptr(),
		SubscribersGained: snap.SubscribersGained.Ptr(),
		WatchMinutes:      snap.WatchMinutes.Ptr(),
		AvgViewDuration:   snap.AvgViewDuration.Ptr(),
	}
	if snap.HasTrafficSources {
		if b, err := json.Marshal(snap.TrafficSources); err == nil {
			row.TrafficSources = string(b)
		}
	}
	return row
}

func (r AnalyticsSnapshot) toModel() model.AnalyticsSnapshot {
	snap := model.AnalyticsSnapshot{
		ChannelID:         r.ChannelID,
		Period:            model.Period(r.Period),
		StartDate:         r.StartDate.UTC(),
		EndDate:           r.EndDate.UTC(),
		Views:             model.MetricFromPtr(r.Views),
		Impressions:       model.MetricFromPtr(r.Impressions),
		CTR:               model.MetricFromPtr(r.CTR),
		Retention:         model.MetricFromPtr(r.Retention),
		SubscribersGained: model.MetricFromPtr(r.SubscribersGained),
		WatchMinutes:      model.MetricFromPtr(r.WatchMinutes),
		AvgViewDuration:   model.MetricFromPtr(r.AvgViewDuration),
	}
	if r.TrafficSources != "" {
		if err := json.Unmarshal([]byte(r.TrafficSources), &snap.TrafficSources); err != nil {
			logx.Warn().Err(err).Uint("snapshot_id", r.ID).Msg("stored traffic sources are not decodable")
			snap.TrafficSources = nil
		}
	}
	snap.HasCTR = snap.CTR.Available
	snap.HasRetention = snap.Retention.Available
	snap.HasTrafficSources = len(snap.TrafficSources) > 0
	return snap
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ================ Videos ================

// SaveVideos upserts a batch of synced uploads in one statement.
func (s *Store) SaveVideos(ctx context.Context, videos []Video) error {
	if len(videos) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "published_at", "duration_seconds", "view_count"}),
	}).Create(&videos).Error
	return errx.WrapDB(err)
}

// RecentVideos returns up to limit uploads of the channel, newest first.
func (s *Store) RecentVideos(ctx context.Context, channelID string, limit int) ([]Video, error) {
	var rows []Video
	err := s.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("published_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, errx.WrapDB(err)
	}
	return rows, nil
}

// VideoTitles maps the given video IDs to their synced titles. Unknown IDs are absent.
func (s *Store) VideoTitles(ctx context.Context, channelID string, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []Video
	err := s.db.WithContext(ctx).
		Select("id", "title").
		Where("channel_id = ? AND id IN ?", channelID, ids).
		Find(&rows).Error
	if err != nil {
		return nil, errx.WrapDB(err)
	}
	for _, v := range rows {
		out[v.ID] = v.Title
	}
	return out, nil
}

// ChannelVideoViews returns lifetime view counts of the most recent uploads.
func (s *Store) ChannelVideoViews(ctx context.Context, channelID string, limit int) ([]int64, error) {
	var views []int64
	err := s.db.WithContext(ctx).Model(&Video{}).
		Where("channel_id = ? AND view_count IS NOT NULL", channelID).
		Order("published_at DESC").
		Limit(limit).
		Pluck("view_count", &views).Error
	if err != nil {
		return nil, errx.WrapDB(err)
	}
	return views, nil
}

func (s *Store) UpsertVideoSnapshot(ctx context.Context, channelID string, v model.VideoStats, capturedOn time.Time) error {
	row := VideoSnapshot{
		ChannelID:         channelID,
		VideoID:           v.VideoID,
		CapturedOn:        day(capturedOn),
		Views:             v.Views.Ptr(),
		WatchMinutes:      v.WatchMinutes.Ptr(),
		Retention:         v.Retention.Ptr(),
		SubscribersGained: v.SubscribersGained.Ptr(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "video_id"}, {Name: "captured_on"}},
		DoUpdates: clause.AssignmentColumns([]string{"views", "watch_minutes", "retention", "subscribers_gained", "updated_at"}),
	}).Create(&row).Error
	return errx.WrapDB(err)
}

// ================ Weekly insights ================

func (s *Store) SaveInsight(ctx context.Context, channelID string, weekStart time.Time, summary string) error {
	row := WeeklyInsight{ChannelID: channelID, WeekStart: day(weekStart), Summary: summary}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}, {Name: "week_start"}},
		DoUpdates: clause.AssignmentColumns([]string{"summary", "updated_at"}),
	}).Create(&row).Error
	return errx.WrapDB(err)
}

func (s *Store) RecentInsights(ctx context.Context, channelID string, limit int) ([]WeeklyInsight, error) {
	var rows []WeeklyInsight
	err := s.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("week_start DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, errx.WrapDB(err)
	}
	return rows, nil
}

// ================ Chat history ================

// AppendChatTurn writes every message of a turn in one transaction.
func (s *Store) AppendChatTurn(ctx context.Context, turn model.Turn) error {
	msgs := turn.Messages()
	if len(msgs) == 0 {
		return nil
	}
	at := turn.At
	if at.IsZero() {
		at = time.Now()
	}
	rows := make([]ChatMessage, 0, len(msgs))
	for i, m := range msgs {
		rows = append(rows, ChatMessage{
			UserID:    turn.UserID,
			ChannelID: turn.ChannelID,
			Role:      string(m.Role),
			Content:   m.Content,
			Intent:    string(turn.Intent),
			// keep user before assistant when both share a timestamp
			CreatedAt: at.UTC().Add(time.Duration(i) * time.Microsecond),
		})
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	return errx.WrapDB(err)
}

// RecentChat returns the latest limit messages, oldest first.
func (s *Store) RecentChat(ctx context.Context, userID, channelID string, limit int) ([]ChatMessage, error) {
	var rows []ChatMessage
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND channel_id = ?", userID, channelID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, errx.WrapDB(err)
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// ChatBetween returns messages created within [from, to], oldest first.
func (s *Store) ChatBetween(ctx context.Context, userID, channelID string, from, to time.Time) ([]ChatMessage, error) {
	var rows []ChatMessage
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND channel_id = ? AND created_at BETWEEN ? AND ?", userID, channelID, from.UTC(), to.UTC()).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errx.WrapDB(err)
	}
	return rows, nil
}
