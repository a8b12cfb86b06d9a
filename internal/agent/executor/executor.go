// Package executor runs one request end to end: quota gate, planning, policy
// gated tool dispatch, memory composition, a single generation call and formatting.
package executor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Chative-creator-core/server/internal/agent/formatter"
	"github.com/Chative-creator-core/server/internal/agent/generation"
	"github.com/Chative-creator-core/server/internal/agent/memory"
	"github.com/Chative-creator-core/server/internal/agent/model"
	"github.com/Chative-creator-core/server/internal/agent/planner"
	"github.com/Chative-creator-core/server/internal/agent/policy"
	"github.com/Chative-creator-core/server/internal/agent/registry"
	"github.com/Chative-creator-core/server/internal/agent/repo"
	errx "github.com/Chative-creator-core/server/internal/core/error"
	"github.com/Chative-creator-core/server/internal/metrics"
	logx "github.com/Chative-creator-core/server/pkg/logger"
)

const (
	tracerName      = "github.com/Chative-creator-core/server/internal/agent/executor"
	historyInsights = 3
	// historySlackDays covers the provider's reporting lag when looking back for stored windows.
	historySlackDays = 7
)

// ================ Collaborators ================

type Policy interface {
	CheckQuota(ctx context.Context, userID string, tier model.Tier) policy.QuotaDecision
	Authorize(tool string, tier model.Tier) bool
}

type Planner interface {
	Plan(req model.Request, hints planner.Hints) model.PlanResult
}

type Registry interface {
	Get(name string) (registry.ToolDefinition, error)
	MinTier(name string) (model.Tier, bool)
	ValidateInput(name string, payload map[string]any) error
	ValidateOutput(name string, out any) error
}

type Memory interface {
	Compose(ctx context.Context, userID, channelID string, newTurn *schema.Message) memory.Fragment
	Commit(ctx context.Context, turn model.Turn) error
}

// Channels is the durable store read for ownership and historical context.
type Channels interface {
	GetChannel(ctx context.Context, id string) (*repo.Channel, error)
	SnapshotsBetween(ctx context.Context, channelID string, from, to time.Time) ([]model.AnalyticsSnapshot, error)
	RecentInsights(ctx context.Context, channelID string, limit int) ([]repo.WeeklyInsight, error)
}

type Credentials interface {
	Load(ctx context.Context, channelID string) (model.Credential, error)
}

type Deps struct {
	Policy      Policy
	Planner     Planner
	Registry    Registry
	Memory      Memory
	Channels    Channels
	Credentials Credentials
	Generator   generation.Generator
}

type Executor struct {
	Deps
	formatter *formatter.Formatter
	metrics   *metrics.Collector
	tracer    trace.Tracer
	timeout   time.Duration
	now       func() time.Time
}

type Option func(*Executor)

func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(e *Executor) { e.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// WithTimeout bounds a whole request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

func New(d Deps, opts ...Option) (*Executor, error) {
	switch {
	case d.Policy == nil, d.Planner == nil, d.Registry == nil, d.Memory == nil, d.Generator == nil:
		return nil, errors.New("executor: policy, planner, registry, memory and generator are required")
	}
	e := &Executor{Deps: d, now: time.Now, tracer: otel.Tracer(tracerName)}
	for _, o := range opts {
		o(e)
	}
	e.formatter = formatter.New(e.now)
	return e, nil
}

// requestLog carries the identifying fields every log line of a request repeats.
type requestLog struct {
	requestID string
	userID    string
	channelID string
	intent    model.Intent
}

func (l *requestLog) with(ev *zerolog.Event) *zerolog.Event {
	ev = ev.Str("request_id", l.requestID).Str("user_id", l.userID).Str("channel_id", l.channelID)
	if l.intent != "" {
		ev = ev.Str("intent", string(l.intent))
	}
	return ev
}

// Handle runs the full pipeline. It never returns a Go error: every failure becomes an envelope.
func (e *Executor) Handle(ctx context.Context, req model.Request) (env model.Envelope) {
	start := e.now()
	rl := &requestLog{requestID: uuid.NewString(), userID: req.UserID, channelID: req.ChannelID}

	ctx, span := e.tracer.Start(ctx, "executor.Handle", trace.WithAttributes(
		attribute.String("request_id", rl.requestID),
		attribute.String("user_id", req.UserID),
		attribute.String("channel_id", req.ChannelID),
		attribute.String("tier", req.Tier.String()),
	))
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	defer func() {
		outcome := "ok"
		if !env.Success {
			outcome = strings.ToLower(env.Error.Code)
			span.SetStatus(codes.Error, env.Error.Code)
		}
		span.SetAttributes(attribute.String("intent", string(rl.intent)), attribute.String("outcome", outcome))
		span.End()
		e.metrics.ObserveRequest(string(rl.intent), outcome, e.now().Sub(start))
		rl.with(logx.Info()).Bool("success", env.Success).Str("outcome", outcome).
			Dur("elapsed", e.now().Sub(start)).Msg("request finished")
	}()

	if err := validate(req); err != nil {
		return e.formatter.Failure(err, nil, nil)
	}

	quota := e.Policy.CheckQuota(ctx, req.UserID, req.Tier)
	if !quota.Allowed {
		rl.with(logx.Info()).Int64("used", quota.Used).Int64("limit", quota.Limit).Msg("request denied by quota")
		return formatter.Denial(policy.DenialMessage(quota))
	}

	plan := e.Planner.Plan(req, planner.HintsFromMetadata(req.Metadata))
	rl.intent = plan.Intent
	rl.with(logx.Debug()).Str("subtype", plan.Subtype).Strs("tools", plan.Plan.Tools()).
		Str("justification", plan.Justification).Msg("plan selected")

	var skipped []string
	plan.Plan, skipped = e.dropUnauthorizedOptional(plan.Plan, req.Tier)
	if len(skipped) > 0 {
		rl.with(logx.Info()).Strs("skipped", skipped).Msg("optional steps above tier dropped")
		plan.Justification += "; skipped " + strings.Join(skipped, ", ")
	}

	if tool, required, ok := e.tierViolation(plan.Plan, req.Tier); !ok {
		rl.with(logx.Info()).Str("tool", tool).Str("required_tier", required.String()).Msg("request denied by tier")
		return formatter.Denial(policy.TierDenialMessage(tool, required))
	}

	if err := e.checkOwnership(ctx, req); err != nil {
		rl.with(logx.Warn()).Err(err).Msg("channel check failed")
		return e.formatter.Failure(err, nil, &plan)
	}

	cred := e.loadCredential(ctx, rl, plan.Plan)
	chCtx := model.NewChannelContext(req.UserID, req.ChannelID, req.Tier, cred)

	out, err := e.Run(ctx, plan.Plan, chCtx, req.Message)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		return e.fail(ctx, rl, span, err, out.Results, &plan)
	}

	fragment := e.Memory.Compose(ctx, req.UserID, req.ChannelID, schema.UserMessage(req.Message))
	bundle := generation.ContextBundle{
		RequestID:   rl.requestID,
		Prompt:      plan.Prompt,
		Intent:      plan.Intent,
		Subtype:     plan.Subtype,
		Memory:      fragment.Messages,
		ToolOutputs: out.Outputs,
	}
	degraded := append(slices.Clone(out.Failed), fragment.Degraded()...)
	var hist storedHistory
	hist, degraded = e.history(ctx, rl, req.ChannelID, plan.Period, degraded)
	bundle.Snapshot, bundle.PreviousSnapshot, bundle.Insights = hist.current, hist.previous, hist.insights
	if quota.Degraded {
		degraded = append(degraded, "quota_counter")
	}
	bundle.Degraded = degraded

	text, err := e.Generator.Generate(ctx, bundle)
	if err != nil {
		if errx.CodeOf(err) == errx.CodeInternal {
			err = errx.GenerationFailure(err)
		}
		return e.fail(ctx, rl, span, err, out.Results, &plan)
	}
	if ctx.Err() != nil {
		return e.fail(ctx, rl, span, ctx.Err(), out.Results, &plan)
	}

	env = e.formatter.Format(text, out.Results, plan)
	env.Metadata.RequestID = rl.requestID
	env.Metadata.Usage = quota.Usage()
	env.Metadata.Degraded = degraded

	e.commit(ctx, rl, req, plan.Intent, text)
	return env
}

func validate(req model.Request) error {
	switch {
	case strings.TrimSpace(req.UserID) == "":
		return errx.InvalidRequest("user_id is required")
	case strings.TrimSpace(req.ChannelID) == "":
		return errx.InvalidRequest("channel_id is required")
	case strings.TrimSpace(req.Message) == "":
		return errx.InvalidRequest("message is required")
	case !req.Tier.Valid():
		return errx.InvalidRequest(fmt.Sprintf("unknown tier %q", req.Tier))
	}
	return nil
}

// dropUnauthorizedOptional removes optional steps the tier does not cover,
// along with optional steps that depend on a removed one.
func (e *Executor) dropUnauthorizedOptional(plan model.ExecutionPlan, tier model.Tier) (model.ExecutionPlan, []string) {
	dropped := map[string]bool{}
	var skipped []string
	kept := make([]model.PlanStep, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		if s.Optional {
			reason := ""
			if !e.Policy.Authorize(s.Tool, tier) {
				required, _ := e.Registry.MinTier(s.Tool)
				reason = "requires " + required.String()
			}
			for _, dep := range s.DependsOn {
				if reason == "" && dropped[dep] {
					reason = "needs " + dep
				}
			}
			if reason != "" {
				dropped[s.Tool] = true
				skipped = append(skipped, fmt.Sprintf("%s (%s)", s.Tool, reason))
				continue
			}
		}
		kept = append(kept, s)
	}
	if len(skipped) == 0 {
		return plan, nil
	}
	return model.ExecutionPlan{Steps: kept}, skipped
}

// tierViolation reports the plan step needing the highest tier the caller lacks.
func (e *Executor) tierViolation(plan model.ExecutionPlan, tier model.Tier) (string, model.Tier, bool) {
	var tool string
	var worst model.Tier
	for _, s := range plan.Steps {
		if e.Policy.Authorize(s.Tool, tier) {
			continue
		}
		required, _ := e.Registry.MinTier(s.Tool)
		if tool == "" || required.Covers(worst) && required != worst {
			tool, worst = s.Tool, required
		}
	}
	return tool, worst, tool == ""
}

// checkOwnership denies access to a channel registered to another caller. An
// unregistered channel passes; a store outage fails closed.
func (e *Executor) checkOwnership(ctx context.Context, req model.Request) error {
	if e.Channels == nil {
		return nil
	}
	ch, err := e.Channels.GetChannel(ctx, req.ChannelID)
	switch {
	case errors.Is(err, errx.ErrNotFound):
		return nil
	case err != nil:
		return err
	case ch.OwnerID != "" && ch.OwnerID != req.UserID:
		return errx.ChannelAccessDenied(req.ChannelID)
	}
	return nil
}

// loadCredential returns the channel's credential snapshot for this request.
// A missing credential is left empty; tools that need it fail on their own.
func (e *Executor) loadCredential(ctx context.Context, rl *requestLog, plan model.ExecutionPlan) model.Credential {
	if e.Credentials == nil || len(plan.Steps) == 0 {
		return model.Credential{}
	}
	cred, err := e.Credentials.Load(ctx, rl.channelID)
	if err != nil {
		rl.with(logx.Warn()).Err(err).Msg("no usable channel credential")
		return model.Credential{}
	}
	return cred
}

type storedHistory struct {
	current  *model.AnalyticsSnapshot
	previous *model.AnalyticsSnapshot
	insights []string
}

// history loads the stored snapshots of the current and previous windows and
// recent weekly insights. All of it is optional.
func (e *Executor) history(ctx context.Context, rl *requestLog, channelID string, period model.Period, degraded []string) (storedHistory, []string) {
	var h storedHistory
	if e.Channels == nil {
		return h, degraded
	}

	to := e.now().UTC()
	from := to.AddDate(0, 0, -(2*period.Days() + historySlackDays))
	snaps, err := e.Channels.SnapshotsBetween(ctx, channelID, from, to)
	if err != nil {
		rl.with(logx.Warn()).Err(err).Msg("stored snapshots unavailable")
		degraded = append(degraded, "snapshot_history")
	}
	h.current, h.previous = currentAndPrevious(snaps, period)

	rows, err := e.Channels.RecentInsights(ctx, channelID, historyInsights)
	if err != nil {
		rl.with(logx.Warn()).Err(err).Msg("weekly insights unavailable")
		return h, append(degraded, "insight_history")
	}
	h.insights = make([]string, 0, len(rows))
	for _, r := range rows {
		h.insights = append(h.insights, fmt.Sprintf("Week of %s: %s", r.WeekStart.Format(time.DateOnly), r.Summary))
	}
	return h, degraded
}

// currentAndPrevious picks the newest snapshot of the period and the newest one
// ending before it starts. snaps is ordered oldest first.
func currentAndPrevious(snaps []model.AnalyticsSnapshot, period model.Period) (*model.AnalyticsSnapshot, *model.AnalyticsSnapshot) {
	var cur, prev *model.AnalyticsSnapshot
	for i := len(snaps) - 1; i >= 0; i-- {
		s := snaps[i]
		if s.Period != period {
			continue
		}
		switch {
		case cur == nil:
			cur = &s
		case s.EndDate.Before(cur.StartDate):
			prev = &s
			return cur, prev
		}
	}
	return cur, prev
}

func (e *Executor) fail(ctx context.Context, rl *requestLog, span trace.Span, err error, results []model.ToolResult, plan *model.PlanResult) model.Envelope {
	if ctx.Err() != nil || errx.CodeOf(err) == errx.CodeInternal && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		err = errx.Cancelled(err)
	}
	span.RecordError(err)
	ev := logx.Warn()
	if errx.IsCode(err, errx.CodeGenerationFailed) {
		ev = logx.Error()
	}
	rl.with(ev).Err(err).Str("code", string(errx.CodeOf(err))).Msg("request failed")
	return e.formatter.Failure(err, results, plan)
}

// commit writes the completed turn to memory. A cancelled request writes nothing.
func (e *Executor) commit(ctx context.Context, rl *requestLog, req model.Request, intent model.Intent, text string) {
	if ctx.Err() != nil {
		return
	}
	turn := model.Turn{
		UserID:    req.UserID,
		ChannelID: req.ChannelID,
		Intent:    intent,
		User:      schema.UserMessage(req.Message),
		Assistant: schema.AssistantMessage(text, nil),
		At:        e.now().UTC(),
	}
	if err := e.Memory.Commit(ctx, turn); err != nil {
		rl.with(logx.Warn()).Err(err).Msg("failed to persist conversation turn")
	}
}
