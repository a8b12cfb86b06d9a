package policy

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Chative-creator-core/server/internal/agent/model"
	errx "github.com/Chative-creator-core/server/internal/core/error"
	"github.com/Chative-creator-core/server/internal/metrics"
	logx "github.com/Chative-creator-core/server/pkg/logger"
)

// counterTTL bounds the lifetime of a day counter.
const counterTTL = 24 * time.Hour

// TierLookup resolves the minimum tier of a tool.
type TierLookup interface {
	MinTier(tool string) (model.Tier, bool)
}

// QuotaDecision is the availability-aware result of the quota gate. Degraded is
// true when the counter store could not be reached and the request was let through.
type QuotaDecision struct {
	Allowed   bool
	Unlimited bool
	Degraded  bool
	Used      int64
	Limit     int64
	Remaining int64
}

// Usage renders the decision for envelope metadata; nil for unlimited tiers.
func (d QuotaDecision) Usage() *model.QuotaUsage {
	if d.Unlimited {
		return nil
	}
	return &model.QuotaUsage{
		Used:      d.Used,
		Limit:     d.Limit,
		Exhausted: !d.Allowed || d.Remaining == 0,
		Degraded:  d.Degraded,
	}
}

type Engine struct {
	rdb     redis.Cmdable
	limits  model.QuotaConfig
	tiers   TierLookup
	metrics *metrics.Collector
	now     func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

func NewEngine(rdb redis.Cmdable, limits model.QuotaConfig, tiers TierLookup, opts ...Option) *Engine {
	e := &Engine{rdb: rdb, limits: limits, tiers: tiers, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// QuotaKey is usage:{user}:{YYYY-MM-DD} with the day taken in UTC.
func QuotaKey(userID string, at time.Time) string {
	return fmt.Sprintf("usage:%s:%s", userID, at.UTC().Format("2006-01-02"))
}

// CheckQuota counts this request against the caller's day and decides whether it may proceed.
// Every attempt is counted, including denied ones. The increment and the counter
// expiry are sent in one transaction so a counter never outlives its day.
func (e *Engine) CheckQuota(ctx context.Context, userID string, tier model.Tier) QuotaDecision {
	limit := e.limits.Limit(tier)
	if limit <= 0 {
		e.metrics.ObserveQuota(tier.String(), "unlimited")
		return QuotaDecision{Allowed: true, Unlimited: true, Remaining: -1}
	}

	key := QuotaKey(userID, e.now())
	var incr *redis.IntCmd
	_, err := e.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, counterTTL)
		return nil
	})
	if err != nil {
		logx.Warn().Err(errx.WrapRedis(err)).Str("user_id", userID).Str("tier", tier.String()).
			Msg("quota store unavailable, failing open")
		e.metrics.ObserveQuota(tier.String(), "degraded")
		return QuotaDecision{Allowed: true, Degraded: true, Limit: limit, Remaining: -1}
	}
	used := incr.Val()

	d := QuotaDecision{Allowed: used <= limit, Used: used, Limit: limit, Remaining: max(limit-used, 0)}
	if d.Allowed {
		e.metrics.ObserveQuota(tier.String(), "allowed")
	} else {
		e.metrics.ObserveQuota(tier.String(), "denied")
		logx.Info().Str("user_id", userID).Int64("used", used).Int64("limit", limit).Msg("daily quota exhausted")
	}
	return d
}

// Usage reads today's counter without incrementing it. A missing counter is zero.
func (e *Engine) Usage(ctx context.Context, userID string, tier model.Tier) (QuotaDecision, error) {
	limit := e.limits.Limit(tier)
	if limit <= 0 {
		return QuotaDecision{Allowed: true, Unlimited: true, Remaining: -1}, nil
	}
	raw, err := e.rdb.Get(ctx, QuotaKey(userID, e.now())).Result()
	var used int64
	switch {
	case err == redis.Nil:
	case err != nil:
		return QuotaDecision{}, errx.WrapRedis(err)
	default:
		if used, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return QuotaDecision{}, fmt.Errorf("parse quota counter: %w", err)
		}
	}
	return QuotaDecision{Allowed: used < limit, Used: used, Limit: limit, Remaining: max(limit-used, 0)}, nil
}

// Authorize is a pure lookup against the catalog. Unknown tools are denied.
func (e *Engine) Authorize(tool string, tier model.Tier) bool {
	return Authorize(e.tiers, tool, tier)
}

func Authorize(tiers TierLookup, tool string, tier model.Tier) bool {
	required, ok := tiers.MinTier(tool)
	if !ok {
		return false
	}
	return tier.Covers(required)
}

// DenialMessage is the human message for a quota refusal.
func DenialMessage(d QuotaDecision) string {
	return fmt.Sprintf("You've reached your daily limit of %d requests. Upgrade your plan or try again tomorrow.", d.Limit)
}

// TierDenialMessage is the human message for a plan step above the caller's tier.
func TierDenialMessage(tool string, required model.Tier) string {
	return fmt.Sprintf("This request needs %s, which requires the %s plan. Upgrade to unlock it.", tool, required)
}
