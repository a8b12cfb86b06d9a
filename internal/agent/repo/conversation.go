package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"github.com/Chative-creator-core/server/internal/agent/model"
	errx "github.com/Chative-creator-core/server/internal/core/error"
	logx "github.com/Chative-creator-core/server/pkg/logger"
)

// RedisConversationRepository keeps the short-term buffer as a Redis list per
// (user, channel). The list is a sliding window of at most maxMessages entries.
type RedisConversationRepository struct {
	rdb         redis.Cmdable
	ttl         time.Duration
	maxMessages int
}

func NewRedisConversationRepository(rdb redis.Cmdable, ttl time.Duration, maxMessages int) *RedisConversationRepository {
	return &RedisConversationRepository{rdb: rdb, ttl: ttl, maxMessages: maxMessages}
}

func (r *RedisConversationRepository) conversationKey(userID, channelID string) string {
	return fmt.Sprintf("conv:%s:%s", userID, channelID)
}

func (r *RedisConversationRepository) AppendTurn(ctx context.Context, userID, channelID string, msgs ...*schema.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]any, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			logx.Error().Err(err).Str("user_id", userID).Str("channel_id", channelID).Msg("failed to marshal message")
			return fmt.Errorf("marshal message: %w", err)
		}
		values = append(values, b)
	}
	key := r.conversationKey(userID, channelID)

	// push, trim and TTL refresh in one MULTI: a turn lands whole or not at all
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if r.maxMessages > 0 {
			pipe.LTrim(ctx, key, int64(-r.maxMessages), -1)
		}
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to append turn to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisConversationRepository) LoadHistory(ctx context.Context, userID, channelID string) (*model.ConversationHistory, error) {
	key := r.conversationKey(userID, channelID)
	history := &model.ConversationHistory{UserID: userID, ChannelID: channelID, Messages: []*schema.Message{}}

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return history, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation history from redis")
		return nil, errx.WrapRedis(err)
	}

	for i, s := range rows {
		var m schema.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			// one corrupt entry should not hide the rest of the window
			logx.Warn().Err(err).Str("key", key).Int("index", i).Msg("skipping undecodable message")
			continue
		}
		history.Messages = append(history.Messages, &m)
	}
	return history, nil
}

func (r *RedisConversationRepository) GetMessageCount(ctx context.Context, userID, channelID string) (int, error) {
	key := r.conversationKey(userID, channelID)
	n, err := r.rdb.LLen(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to get message count from redis")
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

var _ model.ConversationRepository = (*RedisConversationRepository)(nil)
