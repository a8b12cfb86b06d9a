package model

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"
)

// Turn is one completed request/response exchange.
type Turn struct {
	UserID    string
	ChannelID string
	Intent    Intent
	User      *schema.Message
	Assistant *schema.Message
	At        time.Time
}

// Messages returns the turn as an ordered pair.
func (t Turn) Messages() []*schema.Message {
	out := make([]*schema.Message, 0, 2)
	if t.User != nil {
		out = append(out, t.User)
	}
	if t.Assistant != nil {
		out = append(out, t.Assistant)
	}
	return out
}

// ConversationRepository is the short-term, TTL-bound buffer keyed by (user, channel).
type ConversationRepository interface {
	// AppendTurn appends both messages of a turn in one atomic write and trims the buffer.
	AppendTurn(ctx context.Context, userID, channelID string, msgs ...*schema.Message) error

	// LoadHistory returns buffered messages, oldest first.
	LoadHistory(ctx context.Context, userID, channelID string) (*ConversationHistory, error)

	// GetMessageCount returns the number of buffered messages.
	GetMessageCount(ctx context.Context, userID, channelID string) (int, error)
}

// ConversationHistory represents loaded conversation data with metadata.
type ConversationHistory struct {
	UserID    string
	ChannelID string
	Messages  []*schema.Message
}
