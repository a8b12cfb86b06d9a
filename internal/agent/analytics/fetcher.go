package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Chative-creator-core/server/internal/agent/model"
	errx "github.com/Chative-creator-core/server/internal/core/error"
	logx "github.com/Chative-creator-core/server/pkg/logger"
)

// SnapshotStore persists normalized results.
type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, snap model.AnalyticsSnapshot) error
	UpsertVideoSnapshot(ctx context.Context, channelID string, v model.VideoStats, capturedOn time.Time) error
}

type Fetcher struct {
	provider Provider
	creds    *CredentialManager
	store    SnapshotStore
	lagDays  int
	now      func() time.Time
}

type FetcherOption func(*Fetcher)

func WithFetcherClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) { f.now = now }
}

// NewFetcher builds a fetcher. store may be nil, in which case nothing is persisted.
func NewFetcher(provider Provider, creds *CredentialManager, store SnapshotStore, lagDays int, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{provider: provider, creds: creds, store: store, lagDays: lagDays, now: time.Now}
	for _, o := range opts {
		o(f)
	}
	return f
}

// WindowFor ends lagDays before today (UTC); the provider finalizes data with a delay.
func (f *Fetcher) WindowFor(p model.Period) Window {
	y, m, d := f.now().UTC().Date()
	end := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -f.lagDays)
	return Window{Period: p, Start: end.AddDate(0, 0, -(p.Days() - 1)), End: end}
}

// PreviousWindow is the window of the same length immediately before w.
func PreviousWindow(w Window) Window {
	end := w.Start.AddDate(0, 0, -1)
	return Window{Period: w.Period, Start: end.AddDate(0, 0, -(w.Period.Days() - 1)), End: end}
}

// Fetch returns the normalized snapshot of the current window and persists it.
func (f *Fetcher) Fetch(ctx context.Context, ch model.ChannelContext, p model.Period) (model.AnalyticsSnapshot, error) {
	return f.fetchWindow(ctx, ch, f.WindowFor(p))
}

// FetchPrevious returns the snapshot of the window before the current one.
func (f *Fetcher) FetchPrevious(ctx context.Context, ch model.ChannelContext, p model.Period) (model.AnalyticsSnapshot, error) {
	return f.fetchWindow(ctx, ch, PreviousWindow(f.WindowFor(p)))
}

func (f *Fetcher) fetchWindow(ctx context.Context, ch model.ChannelContext, w Window) (model.AnalyticsSnapshot, error) {
	s, err := f.session(ch)
	if err != nil {
		return model.AnalyticsSnapshot{}, err
	}

	core, err := s.query(ctx, Query{Start: w.Start, End: w.End, Metrics: CoreMetrics, Dimensions: ColDay, Sort: ColDay})
	if err != nil {
		return model.AnalyticsSnapshot{}, err
	}

	traffic, err := s.query(ctx, Query{
		Start: w.Start, End: w.End,
		Metrics:    []string{ColViews},
		Dimensions: ColTrafficSource,
		Sort:       "-" + ColViews,
	})
	if err != nil {
		if errx.IsCode(err, errx.CodeCredentialExpired) || ctx.Err() != nil {
			return model.AnalyticsSnapshot{}, err
		}
		logx.Warn().Err(err).Str("channel_id", ch.ChannelID).Msg("traffic source report unavailable")
		traffic = nil
	}

	snap := Normalize(ch.ChannelID, w, core, traffic)
	logx.Debug().
		Str("channel_id", ch.ChannelID).
		Str("period", string(w.Period)).
		Bool("has_ctr", snap.HasCTR).
		Bool("has_retention", snap.HasRetention).
		Bool("has_traffic_sources", snap.HasTrafficSources).
		Msg("analytics snapshot normalized")

	if f.store != nil {
		if err := f.store.UpsertSnapshot(ctx, snap); err != nil {
			logx.Warn().Err(err).Str("channel_id", ch.ChannelID).Msg("failed to persist analytics snapshot")
		}
	}
	return snap, nil
}

// TopVideos returns the most viewed videos of the period.
func (f *Fetcher) TopVideos(ctx context.Context, ch model.ChannelContext, p model.Period, limit int) ([]model.VideoStats, error) {
	s, err := f.session(ch)
	if err != nil {
		return nil, err
	}
	w := f.WindowFor(p)
	r, err := s.query(ctx, Query{
		Start: w.Start, End: w.End,
		Metrics:    []string{ColViews, ColWatchMinutes, ColAvgViewPercentage, ColSubscribersGained},
		Dimensions: ColVideo,
		Sort:       "-" + ColViews,
		MaxResults: limit,
	})
	if err != nil {
		return nil, err
	}
	return NormalizeVideos(r), nil
}

// Video returns one video's figures for the current 7-day window, with the
// 28-day baseline before it for momentum.
func (f *Fetcher) Video(ctx context.Context, ch model.ChannelContext, videoID string) (model.VideoStats, error) {
	s, err := f.session(ch)
	if err != nil {
		return model.VideoStats{}, err
	}
	filter := "video==" + videoID
	w := f.WindowFor(model.Period7d)

	core, err := s.query(ctx, Query{Start: w.Start, End: w.End, Metrics: CoreMetrics, Dimensions: ColDay, Filters: filter})
	if err != nil {
		return model.VideoStats{}, err
	}
	snap := Normalize(ch.ChannelID, w, core, nil)
	stats := model.VideoStats{
		VideoID:           videoID,
		Views:             snap.Views,
		WatchMinutes:      snap.WatchMinutes,
		Retention:         snap.Retention,
		SubscribersGained: snap.SubscribersGained,
	}
	if v, ok := SumViews(core); ok {
		stats.Last7DaysViews = &v
	}

	prevEnd := w.Start.AddDate(0, 0, -1)
	prev, err := s.query(ctx, Query{Start: prevEnd.AddDate(0, 0, -27), End: prevEnd, Metrics: []string{ColViews}, Filters: filter})
	switch {
	case err == nil:
		if v, ok := SumViews(prev); ok {
			stats.Previous28Days = &v
		}
	case errx.IsCode(err, errx.CodeCredentialExpired):
		return model.VideoStats{}, err
	default:
		logx.Warn().Err(err).Str("video_id", videoID).Msg("baseline views unavailable")
	}

	traffic, err := s.query(ctx, Query{Start: w.Start, End: w.End, Metrics: []string{ColViews}, Dimensions: ColTrafficSource, Filters: filter})
	switch {
	case err == nil:
		stats.TrafficSources = NormalizeTrafficSources(traffic)
	case errx.IsCode(err, errx.CodeCredentialExpired):
		return model.VideoStats{}, err
	default:
		logx.Warn().Err(err).Str("video_id", videoID).Msg("video traffic sources unavailable")
	}

	if f.store != nil {
		if err := f.store.UpsertVideoSnapshot(ctx, ch.ChannelID, stats, w.End); err != nil {
			logx.Warn().Err(err).Str("video_id", videoID).Msg("failed to persist video snapshot")
		}
	}
	return stats, nil
}

// Uploads lists the channel's most recent uploads, newest first.
func (f *Fetcher) Uploads(ctx context.Context, ch model.ChannelContext, limit int) ([]Upload, error) {
	s, err := f.session(ch)
	if err != nil {
		return nil, err
	}
	var uploads []Upload
	err = s.do(ctx, func(token string) error {
		var err error
		uploads, err = f.provider.Uploads(ctx, token, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return uploads, nil
}

// session carries one credential across the provider calls of a single fetch.
type session struct {
	f         *Fetcher
	channelID string
	cred      model.Credential
}

func (f *Fetcher) session(ch model.ChannelContext) (*session, error) {
	cred := ch.Credential()
	if cred.Empty() {
		return nil, ErrNotConnected
	}
	return &session{f: f, channelID: ch.ChannelID, cred: cred}, nil
}

func (s *session) query(ctx context.Context, q Query) (*Report, error) {
	var report *Report
	err := s.do(ctx, func(token string) error {
		var err error
		report, err = s.f.provider.Query(ctx, token, q)
		return err
	})
	return report, err
}

// do runs call under the credential state machine:
// Active -> auth failure -> Refreshing -> success -> Active (one retry)
// Refreshing -> failure -> Expired. A second auth failure after a refresh is terminal.
func (s *session) do(ctx context.Context, call func(token string) error) error {
	err := call(s.cred.AccessToken)
	if !errors.Is(err, ErrUnauthorized) {
		return err
	}

	s.transition(CredentialActive, CredentialRefreshing)
	fresh, err := s.f.creds.Refresh(ctx, s.channelID, s.cred)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		s.transition(CredentialRefreshing, CredentialExpired)
		if errx.IsCode(err, errx.CodeCredentialExpired) {
			return err
		}
		return errx.CredentialExpired(err)
	}
	s.cred = fresh
	s.transition(CredentialRefreshing, CredentialActive)

	err = call(s.cred.AccessToken)
	if errors.Is(err, ErrUnauthorized) {
		s.transition(CredentialActive, CredentialExpired)
		return errx.CredentialExpired(fmt.Errorf("rejected after refresh: %w", err))
	}
	return err
}

func (s *session) transition(from, to CredentialState) {
	logx.Debug().Str("channel_id", s.channelID).Str("from", from.String()).Str("to", to.String()).Msg("credential state")
}
