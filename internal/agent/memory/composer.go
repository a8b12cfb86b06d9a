// Package memory merges the short-term conversation buffer with durable history
// into one ordered context fragment.
package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/Chative-creator-core/server/internal/agent/model"
	"github.com/Chative-creator-core/server/internal/agent/repo"
	"github.com/Chative-creator-core/server/internal/metrics"
	logx "github.com/Chative-creator-core/server/pkg/logger"
)

// UnavailableMarker is attached to recall results when the durable store could not be read.
const UnavailableMarker = "memory unavailable"

// LongTermStore is the durable half of conversation memory.
type LongTermStore interface {
	RecentChat(ctx context.Context, userID, channelID string, limit int) ([]repo.ChatMessage, error)
	AppendChatTurn(ctx context.Context, turn model.Turn) error
}

// Match is one long-term hit.
type Match struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Intent    string    `json:"intent,omitempty"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

type RecallResult struct {
	Matches     []Match `json:"matches"`
	Unavailable bool    `json:"unavailable"`
	Marker      string  `json:"marker,omitempty"`
}

// Fragment is the composed memory context. Messages are ordered long-term
// matches first, then the short-term window, then the new turn.
type Fragment struct {
	Messages             []*schema.Message
	LongTerm             []Match
	ShortTermUnavailable bool
	LongTermUnavailable  bool
}

// Degraded lists the memory layers that could not be read.
func (f Fragment) Degraded() []string {
	var out []string
	if f.ShortTermUnavailable {
		out = append(out, "short_term_memory")
	}
	if f.LongTermUnavailable {
		out = append(out, "long_term_memory")
	}
	return out
}

type Composer struct {
	short   model.ConversationRepository
	long    LongTermStore
	cfg     model.MemoryConfig
	metrics *metrics.Collector
}

func NewComposer(short model.ConversationRepository, long LongTermStore, cfg model.MemoryConfig, m *metrics.Collector) *Composer {
	return &Composer{short: short, long: long, cfg: cfg, metrics: m}
}

// Compose never fails: a layer that cannot be read is reported in the fragment and skipped.
func (c *Composer) Compose(ctx context.Context, userID, channelID string, newTurn *schema.Message) Fragment {
	var f Fragment

	var window []*schema.Message
	history, err := c.short.LoadHistory(ctx, userID, channelID)
	if err != nil {
		logx.Warn().Err(err).Str("user_id", userID).Str("channel_id", channelID).Msg("short-term memory unavailable")
		c.metrics.ObserveMemoryDegraded("short_term")
		f.ShortTermUnavailable = true
	} else {
		window = trimTail(history.Messages, c.cfg.ContextTurns*2)
	}

	query := ""
	if newTurn != nil {
		query = newTurn.Content
	}
	recall := c.Recall(ctx, userID, channelID, query, c.cfg.LongTermMatches)
	f.LongTermUnavailable = recall.Unavailable

	seen := make(map[string]struct{}, len(window))
	for _, m := range window {
		seen[string(m.Role)+"\x00"+m.Content] = struct{}{}
	}
	for _, m := range recall.Matches {
		if _, dup := seen[m.Role+"\x00"+m.Content]; dup {
			continue
		}
		f.LongTerm = append(f.LongTerm, m)
		f.Messages = append(f.Messages, &schema.Message{
			Role:    schema.RoleType(m.Role),
			Content: m.Content,
		})
	}

	f.Messages = append(f.Messages, window...)
	if newTurn != nil {
		f.Messages = append(f.Messages, newTurn)
	}
	return f
}

// Recall ranks durable history by term overlap with query. Store failures yield
// an empty result with the unavailable marker.
func (c *Composer) Recall(ctx context.Context, userID, channelID, query string, limit int) RecallResult {
	if limit <= 0 {
		return RecallResult{Matches: []Match{}}
	}
	rows, err := c.long.RecentChat(ctx, userID, channelID, c.cfg.LongTermScan)
	if err != nil {
		logx.Warn().Err(err).Str("user_id", userID).Str("channel_id", channelID).Msg("long-term memory unavailable")
		c.metrics.ObserveMemoryDegraded("long_term")
		return RecallResult{Matches: []Match{}, Unavailable: true, Marker: UnavailableMarker}
	}

	terms := Terms(query)
	matches := make([]Match, 0, limit)
	for _, r := range rows {
		score := overlap(terms, r.Content)
		if score == 0 {
			continue
		}
		matches = append(matches, Match{Role: r.Role, Content: r.Content, Intent: r.Intent, Score: score, CreatedAt: r.CreatedAt})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return RecallResult{Matches: matches}
}

// Commit persists a completed turn. The durable row is written first; when it
// fails the short-term buffer is left untouched so the two layers never disagree
// about which turns happened. It refuses to write once ctx is done.
func (c *Composer) Commit(ctx context.Context, turn model.Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.long.AppendChatTurn(ctx, turn); err != nil {
		c.metrics.ObserveMemoryDegraded("long_term")
		logx.Warn().Err(err).Str("user_id", turn.UserID).Str("channel_id", turn.ChannelID).
			Msg("turn not persisted, skipping short-term buffer")
		return err
	}
	if err := c.short.AppendTurn(ctx, turn.UserID, turn.ChannelID, turn.Messages()...); err != nil {
		c.metrics.ObserveMemoryDegraded("short_term")
		logx.Warn().Err(err).Str("user_id", turn.UserID).Str("channel_id", turn.ChannelID).
			Msg("turn persisted but missing from short-term buffer")
		return err
	}
	return nil
}

func trimTail(msgs []*schema.Message, n int) []*schema.Message {
	if n <= 0 || len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "you": {}, "what": {}, "how": {}, "did": {}, "does": {},
	"was": {}, "are": {}, "with": {}, "this": {}, "that": {}, "about": {}, "my": {}, "me": {},
	"our": {}, "can": {}, "show": {}, "tell": {}, "from": {}, "have": {}, "has": {}, "any": {},
}

// Terms splits text into lowercase search terms, dropping short words and stopwords.
func Terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 3 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func overlap(terms []string, content string) int {
	lc := strings.ToLower(content)
	n := 0
	for _, t := range terms {
		if strings.Contains(lc, t) {
			n++
		}
	}
	return n
}
