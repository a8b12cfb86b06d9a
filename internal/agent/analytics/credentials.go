package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/Chative-creator-core/server/internal/agent/model"
	errx "github.com/Chative-creator-core/server/internal/core/error"
	"github.com/Chative-creator-core/server/internal/metrics"
	logx "github.com/Chative-creator-core/server/pkg/logger"
)

// CredentialState is the lifecycle of a credential during one provider call.
type CredentialState int

const (
	CredentialActive CredentialState = iota
	CredentialRefreshing
	CredentialExpired
)

func (s CredentialState) String() string {
	switch s {
	case CredentialActive:
		return "active"
	case CredentialRefreshing:
		return "refreshing"
	case CredentialExpired:
		return "expired"
	default:
		return "unknown"
	}
}

var ErrNotConnected = errors.New("channel has no connected credential")

const refreshTimeout = 15 * time.Second

// CredentialStore persists channel credentials.
type CredentialStore interface {
	LoadCredential(ctx context.Context, channelID string) (model.Credential, error)
	SaveCredential(ctx context.Context, channelID string, cred model.Credential) error
}

// Refresher exchanges a refresh token for a new credential.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (model.Credential, error)
}

// OAuthRefresher refreshes against an OAuth2 token endpoint.
type OAuthRefresher struct {
	config oauth2.Config
}

func NewOAuthRefresher(cfg model.OAuthConfig) *OAuthRefresher {
	return &OAuthRefresher{config: oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
	}}
}

func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (model.Credential, error) {
	tok, err := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return model.Credential{}, fmt.Errorf("oauth refresh: %w", err)
	}
	cred := model.Credential{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken, Expiry: tok.Expiry}
	if cred.RefreshToken == "" {
		cred.RefreshToken = refreshToken
	}
	return cred, nil
}

// CredentialManager is the only writer of channel credentials. Refreshes are
// serialized per channel: concurrent callers share one in-flight refresh.
type CredentialManager struct {
	store     CredentialStore
	refresher Refresher
	group     singleflight.Group
	metrics   *metrics.Collector
}

func NewCredentialManager(store CredentialStore, refresher Refresher, m *metrics.Collector) *CredentialManager {
	return &CredentialManager{store: store, refresher: refresher, metrics: m}
}

// Load returns the stored credential. A channel without one yields ErrNotConnected.
func (m *CredentialManager) Load(ctx context.Context, channelID string) (model.Credential, error) {
	cred, err := m.store.LoadCredential(ctx, channelID)
	if err != nil {
		if errors.Is(err, errx.ErrNotFound) {
			return model.Credential{}, ErrNotConnected
		}
		return model.Credential{}, err
	}
	if cred.Empty() {
		return model.Credential{}, ErrNotConnected
	}
	return cred, nil
}

// Refresh replaces stale with a fresh credential. When the store already holds a
// different access token, another caller refreshed first and that token is reused.
func (m *CredentialManager) Refresh(ctx context.Context, channelID string, stale model.Credential) (model.Credential, error) {
	ch := m.group.DoChan(channelID, func() (any, error) {
		// detached from the first caller so its cancellation does not fail the waiters
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return m.refresh(rctx, channelID, stale)
	})

	select {
	case <-ctx.Done():
		return model.Credential{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return model.Credential{}, res.Err
		}
		return res.Val.(model.Credential), nil
	}
}

func (m *CredentialManager) refresh(ctx context.Context, channelID string, stale model.Credential) (model.Credential, error) {
	current, err := m.store.LoadCredential(ctx, channelID)
	if err != nil {
		m.metrics.ObserveRefresh("store_error")
		return model.Credential{}, errx.CredentialExpired(err)
	}
	if current.AccessToken != "" && current.AccessToken != stale.AccessToken {
		m.metrics.ObserveRefresh("reused")
		return current, nil
	}
	if current.RefreshToken == "" {
		m.metrics.ObserveRefresh("no_refresh_token")
		return model.Credential{}, errx.CredentialExpired(ErrNotConnected)
	}

	logx.Info().Str("channel_id", channelID).Msg("refreshing channel credential")
	fresh, err := m.refresher.Refresh(ctx, current.RefreshToken)
	if err != nil {
		m.metrics.ObserveRefresh("failure")
		logx.Warn().Err(err).Str("channel_id", channelID).Msg("credential refresh failed")
		return model.Credential{}, errx.CredentialExpired(err)
	}
	if err := m.store.SaveCredential(ctx, channelID, fresh); err != nil {
		logx.Warn().Err(err).Str("channel_id", channelID).Msg("refreshed credential could not be persisted")
	}
	m.metrics.ObserveRefresh("success")
	return fresh, nil
}
