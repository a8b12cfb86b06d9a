package policy

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Chative-creator-core/server/internal/agent/model"
	logx "github.com/Chative-creator-core/server/pkg/logger"
)

type tierTable map[string]model.Tier

func (t tierTable) MinTier(tool string) (model.Tier, bool) {
	v, ok := t[tool]
	return v, ok
}

var catalog = tierTable{
	"fetch_analytics":     model.TierFree,
	"compute_metrics":     model.TierPro,
	"get_recommendations": model.TierAgency,
}

var fixedNow = time.Date(2024, 10, 7, 23, 30, 0, 0, time.UTC)

func setupEngine(t *testing.T) (*miniredis.Miniredis, *Engine) {
	t.Helper()
	logx.Disable()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	limits := model.QuotaConfig{FreeDaily: 3}
	return mr, NewEngine(rdb, limits, catalog, WithClock(func() time.Time { return fixedNow }))
}

func TestQuotaKey_UsesUTCDay(t *testing.T) {
	bangkok := time.FixedZone("ICT", 7*3600)
	at := time.Date(2024, 10, 8, 5, 0, 0, 0, bangkok)
	assert.Equal(t, "usage:u1:2024-10-07", QuotaKey("u1", at))
}

func TestCheckQuota_FreeTierDeniedAfterLimit(t *testing.T) {
	mr, e := setupEngine(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d := e.CheckQuota(ctx, "u1", model.TierFree)
		assert.True(t, d.Allowed, "request %d", i)
		assert.False(t, d.Degraded)
		assert.Equal(t, int64(3-i), d.Remaining)
	}

	d := e.CheckQuota(ctx, "u1", model.TierFree)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(4), d.Used)
	assert.True(t, d.Usage().Exhausted)

	ttl := mr.TTL(QuotaKey("u1", fixedNow))
	assert.Equal(t, counterTTL, ttl)
}

func TestCheckQuota_CounterAlwaysCarriesExpiry(t *testing.T) {
	mr, e := setupEngine(t)
	ctx := context.Background()
	key := QuotaKey("u1", fixedNow)

	// a counter left without a TTL is repaired by the next check
	require.NoError(t, mr.Set(key, "1"))
	require.Zero(t, mr.TTL(key))

	d := e.CheckQuota(ctx, "u1", model.TierFree)
	assert.Equal(t, int64(2), d.Used)
	assert.Equal(t, counterTTL, mr.TTL(key))

	// later checks keep the original expiry
	mr.FastForward(time.Hour)
	e.CheckQuota(ctx, "u1", model.TierFree)
	assert.Equal(t, counterTTL-time.Hour, mr.TTL(key))
}

func TestCheckQuota_UnlimitedTierNeverTouchesStore(t *testing.T) {
	mr, e := setupEngine(t)

	for i := 0; i < 10; i++ {
		d := e.CheckQuota(context.Background(), "u1", model.TierPro)
		assert.True(t, d.Allowed)
		assert.True(t, d.Unlimited)
		assert.Nil(t, d.Usage())
	}
	assert.Empty(t, mr.Keys())
}

func TestCheckQuota_FailsOpenWhenStoreDown(t *testing.T) {
	mr, e := setupEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, e.CheckQuota(ctx, "u1", model.TierFree).Allowed)
	}
	mr.Close()

	d := e.CheckQuota(ctx, "u1", model.TierFree)
	assert.True(t, d.Allowed)
	assert.True(t, d.Degraded)
}

func TestUsage_MissingCounterIsZero(t *testing.T) {
	_, e := setupEngine(t)

	d, err := e.Usage(context.Background(), "nobody", model.TierFree)
	require.NoError(t, err)
	assert.Equal(t, int64(0), d.Used)
	assert.Equal(t, int64(3), d.Remaining)
	assert.True(t, d.Allowed)
}

func TestUsage_DoesNotIncrement(t *testing.T) {
	_, e := setupEngine(t)
	ctx := context.Background()

	e.CheckQuota(ctx, "u1", model.TierFree)
	for i := 0; i < 3; i++ {
		d, err := e.Usage(ctx, "u1", model.TierFree)
		require.NoError(t, err)
		assert.Equal(t, int64(1), d.Used)
	}
}

func TestAuthorize(t *testing.T) {
	_, e := setupEngine(t)

	assert.True(t, e.Authorize("fetch_analytics", model.TierFree))
	assert.False(t, e.Authorize("compute_metrics", model.TierFree))
	assert.True(t, e.Authorize("compute_metrics", model.TierPro))
	assert.False(t, e.Authorize("get_recommendations", model.TierPro))
	assert.True(t, e.Authorize("get_recommendations", model.TierAgency))
	assert.False(t, e.Authorize("unknown_tool", model.TierAgency))
	assert.False(t, e.Authorize("fetch_analytics", model.Tier("GOLD")))
}

func TestAuthorize_MonotonicInTier(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tool := rapid.SampledFrom([]string{"fetch_analytics", "compute_metrics", "get_recommendations", "nope"}).Draw(t, "tool")
		lo := rapid.IntRange(0, len(model.Tiers)-1).Draw(t, "lo")
		hi := rapid.IntRange(lo, len(model.Tiers)-1).Draw(t, "hi")

		if Authorize(catalog, tool, model.Tiers[lo]) && !Authorize(catalog, tool, model.Tiers[hi]) {
			t.Fatalf("%s granted on %s but revoked on %s", tool, model.Tiers[lo], model.Tiers[hi])
		}
	})
}
