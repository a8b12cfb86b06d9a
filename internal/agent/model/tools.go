package model

import "time"

// Credential is the OAuth pair of a connected channel.
type Credential struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Empty reports whether no credential is connected.
func (c Credential) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// ChannelContext is injected into every tool input. The credential is only reachable
// through Credential(), which returns a copy.
type ChannelContext struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	Tier      Tier   `json:"tier"`
	cred      Credential
}

func NewChannelContext(userID, channelID string, tier Tier, cred Credential) ChannelContext {
	return ChannelContext{UserID: userID, ChannelID: channelID, Tier: tier, cred: cred}
}

// Credential returns the request's credential snapshot.
func (c ChannelContext) Credential() Credential { return c.cred }

// ToolInput is the uniform envelope every handler receives.
type ToolInput struct {
	Tool     string         `json:"tool"`
	Payload  map[string]any `json:"payload"`
	Channel  ChannelContext `json:"channel"`
	Upstream map[string]any `json:"-"`
	Message  string         `json:"-"`
}

// ToolResult is the uniform envelope every handler invocation yields.
type ToolResult struct {
	Tool     string        `json:"tool"`
	Success  bool          `json:"success"`
	Payload  any           `json:"payload,omitempty"`
	Error    string        `json:"error,omitempty"`
	Err      error         `json:"-"`
	Ran      bool          `json:"-"`
	Critical bool          `json:"-"`
	Duration time.Duration `json:"-"`
}
