package repo

import (
	"context"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Chative-creator-core/server/internal/agent/model"
	errx "github.com/Chative-creator-core/server/internal/core/error"
)

func setupTestStore(t *testing.T) (*gorm.DB, *Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps every query on the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := NewStore(db)
	require.NoError(t, s.Migrate(context.Background()))
	return db, s
}

func testSnapshot(views float64) model.AnalyticsSnapshot {
	return model.AnalyticsSnapshot{
		ChannelID:         "c1",
		Period:            model.Period7d,
		StartDate:         time.Date(2024, 9, 28, 0, 0, 0, 0, time.UTC),
		EndDate:           time.Date(2024, 10, 4, 0, 0, 0, 0, time.UTC),
		Views:             model.Known(views),
		Impressions:       model.Unavailable(),
		CTR:               model.Unavailable(),
		Retention:         model.Known(41.5),
		SubscribersGained: model.Known(0),
		WatchMinutes:      model.Known(900),
		AvgViewDuration:   model.Unavailable(),
		TrafficSources:    []model.TrafficSource{{Source: "YT_SEARCH", Views: 10, Share: 100}},
		HasRetention:      true,
		HasTrafficSources: true,
	}
}

func TestUpsertSnapshot_IsIdempotentPerPeriod(t *testing.T) {
	db, s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertSnapshot(ctx, testSnapshot(100)))
	require.NoError(t, s.UpsertSnapshot(ctx, testSnapshot(100)))
	require.NoError(t, s.UpsertSnapshot(ctx, testSnapshot(120)))

	var count int64
	require.NoError(t, db.Model(&AnalyticsSnapshot{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	got, err := s.LatestSnapshot(ctx, "c1", model.Period7d)
	require.NoError(t, err)
	assert.Equal(t, model.Known(120), got.Views)
}

func TestLatestSnapshot_PreservesUnavailableMarkers(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertSnapshot(ctx, testSnapshot(100)))

	got, err := s.LatestSnapshot(ctx, "c1", model.Period7d)
	require.NoError(t, err)
	assert.False(t, got.CTR.Available)
	assert.False(t, got.HasCTR)
	assert.False(t, got.Impressions.Available)
	assert.True(t, got.SubscribersGained.Available, "a measured zero stays a measurement")
	assert.Equal(t, 0.0, got.SubscribersGained.Value)
	assert.True(t, got.HasTrafficSources)
	assert.Equal(t, "YT_SEARCH", got.TrafficSources[0].Source)
}

func TestLatestSnapshot_NotFound(t *testing.T) {
	_, s := setupTestStore(t)
	_, err := s.LatestSnapshot(context.Background(), "nope", model.Period7d)
	assert.ErrorIs(t, err, errx.ErrNotFound)
}

func TestSaveCredential_OnlyTouchesTokens(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveChannel(ctx, &Channel{ID: "c1", OwnerID: "u1", Title: "Cooking", AccessToken: "old", RefreshToken: "r1"}))

	exp := time.Date(2024, 10, 8, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveCredential(ctx, "c1", model.Credential{AccessToken: "new", RefreshToken: "r1", Expiry: exp}))

	ch, err := s.GetChannel(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "new", ch.AccessToken)
	assert.Equal(t, "Cooking", ch.Title)
	assert.Equal(t, "u1", ch.OwnerID)

	assert.ErrorIs(t, s.SaveCredential(ctx, "missing", model.Credential{AccessToken: "x"}), errx.ErrNotFound)
}

func TestRecentVideos_NewestFirst(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveVideos(ctx, []Video{
		{ID: "v1", ChannelID: "c1", Title: "Ramen at Home", PublishedAt: base},
		{ID: "v2", ChannelID: "c1", Title: "Knife Skills", PublishedAt: base.Add(48 * time.Hour)},
		{ID: "v3", ChannelID: "c2", Title: "Other channel", PublishedAt: base.Add(72 * time.Hour)},
	}))

	rows, err := s.RecentVideos(ctx, "c1", 100)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "v2", rows[0].ID)
	assert.Equal(t, "v1", rows[1].ID)

	rows, err = s.RecentVideos(ctx, "c1", 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "v2", rows[0].ID)

	rows, err = s.RecentVideos(ctx, "nope", 100)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSaveVideos_UpsertsTitleAndStats(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	views := int64(900)

	require.NoError(t, s.SaveVideos(ctx, []Video{{ID: "v1", ChannelID: "c1", Title: "Ramen", PublishedAt: base}}))
	require.NoError(t, s.SaveVideos(ctx, []Video{{ID: "v1", ChannelID: "c1", Title: "Ramen at Home", PublishedAt: base, ViewCount: &views}}))
	require.NoError(t, s.SaveVideos(ctx, nil))

	rows, err := s.RecentVideos(ctx, "c1", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ramen at Home", rows[0].Title)
	require.NotNil(t, rows[0].ViewCount)
	assert.Equal(t, int64(900), *rows[0].ViewCount)
}

func TestAppendChatTurn_ChronologicalReadback(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)

	for i, q := range []string{"first", "second"} {
		require.NoError(t, s.AppendChatTurn(ctx, model.Turn{
			UserID: "u1", ChannelID: "c1", Intent: model.IntentAnalytics,
			User:      schema.UserMessage(q),
			Assistant: schema.AssistantMessage("re: "+q, nil),
			At:        at.Add(time.Duration(i) * time.Minute),
		}))
	}

	rows, err := s.RecentChat(ctx, "u1", "c1", 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "re: first", rows[0].Content)
	assert.Equal(t, "second", rows[1].Content)
	assert.Equal(t, "re: second", rows[2].Content)
}

func TestInsights_UpsertByWeek(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()
	week := time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveInsight(ctx, "c1", week, "draft"))
	require.NoError(t, s.SaveInsight(ctx, "c1", week, "final"))
	require.NoError(t, s.SaveInsight(ctx, "c1", week.AddDate(0, 0, -7), "older"))

	rows, err := s.RecentInsights(ctx, "c1", 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "final", rows[0].Summary)
}
