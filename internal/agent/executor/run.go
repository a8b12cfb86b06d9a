package executor

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Chative-creator-core/server/internal/agent/model"
	errx "github.com/Chative-creator-core/server/internal/core/error"
	logx "github.com/Chative-creator-core/server/pkg/logger"
)

// RunResult is what a plan produced. Results are in plan order; Outputs holds
// the payload of every successful step keyed by tool.
type RunResult struct {
	Results []model.ToolResult
	Outputs map[string]any
	Failed  []string
}

// Run dispatches the plan. Steps without dependency edges between them run
// concurrently; a step waits for every step it depends on. A failed step is
// recorded and the plan continues, except when the step is critical or the
// channel credential expired: then the remaining steps are cancelled and the
// error is returned.
func (e *Executor) Run(ctx context.Context, plan model.ExecutionPlan, ch model.ChannelContext, message string) (RunResult, error) {
	n := len(plan.Steps)
	results := make([]model.ToolResult, n)
	done := make([]chan struct{}, n)
	index := make(map[string]int, n)
	for i, s := range plan.Steps {
		done[i] = make(chan struct{})
		index[s.Tool] = i
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, step := range plan.Steps {
		g.Go(func() error {
			defer close(done[i])

			upstream := make(map[string]any, len(step.DependsOn))
			for _, dep := range step.DependsOn {
				j, ok := index[dep]
				if !ok || j >= i {
					results[i] = failed(step, fmt.Errorf("unknown dependency %s", dep))
					return e.stepError(step, results[i])
				}
				select {
				case <-done[j]:
				case <-gctx.Done():
					results[i] = failed(step, gctx.Err())
					return gctx.Err()
				}
				if !results[j].Success {
					results[i] = failed(step, fmt.Errorf("dependency %s failed", dep))
					return e.stepError(step, results[i])
				}
				upstream[dep] = results[j].Payload
			}

			results[i] = e.invoke(gctx, step, ch, upstream, message)
			return e.stepError(step, results[i])
		})
	}
	err := g.Wait()

	out := RunResult{Results: results, Outputs: make(map[string]any, n)}
	for _, r := range results {
		if r.Success {
			out.Outputs[r.Tool] = r.Payload
		} else {
			out.Failed = append(out.Failed, r.Tool)
		}
	}
	return out, err
}

// stepError decides whether a finished step stops the plan.
func (e *Executor) stepError(step model.PlanStep, r model.ToolResult) error {
	if r.Success {
		return nil
	}
	switch errx.CodeOf(r.Err) {
	case errx.CodeCredentialExpired, errx.CodeClarification:
		return r.Err
	}
	if step.Critical {
		return errx.PlanCriticalFailure(step.Tool, r.Err)
	}
	return nil
}

// failed records a step error. Errors without a code of their own become TOOL_FAILURE.
func failed(step model.PlanStep, err error) model.ToolResult {
	res := model.ToolResult{
		Tool:     step.Tool,
		Success:  false,
		Error:    fmt.Sprintf("tool %s failed: %v", step.Tool, err),
		Err:      err,
		Critical: step.Critical,
	}
	if errx.CodeOf(err) == errx.CodeInternal {
		res.Err = errx.ToolFailure(step.Tool, err)
	}
	return res
}

// invoke runs one handler behind the authorization re-check and both schemas.
func (e *Executor) invoke(ctx context.Context, step model.PlanStep, ch model.ChannelContext, upstream map[string]any, message string) model.ToolResult {
	ctx, span := e.tracer.Start(ctx, "tool."+step.Tool, trace.WithAttributes(attribute.String("tool", step.Tool)))
	defer span.End()

	res := e.call(ctx, step, ch, upstream, message)

	outcome := "ok"
	if !res.Success {
		outcome = "error"
		if res.Err != nil {
			span.RecordError(res.Err)
		}
		span.SetStatus(codes.Error, res.Error)
		logx.Warn().Err(res.Err).Str("tool", step.Tool).Str("channel_id", ch.ChannelID).
			Bool("critical", step.Critical).Bool("ran", res.Ran).Msg("tool failed")
	}
	e.metrics.ObserveTool(step.Tool, outcome, res.Duration)
	return res
}

func (e *Executor) call(ctx context.Context, step model.PlanStep, ch model.ChannelContext, upstream map[string]any, message string) model.ToolResult {
	if !e.Policy.Authorize(step.Tool, ch.Tier) {
		required, _ := e.Registry.MinTier(step.Tool)
		return failed(step, errx.PolicyDenied(fmt.Sprintf("%s requires the %s plan", step.Tool, required)))
	}
	def, err := e.Registry.Get(step.Tool)
	if err != nil {
		return failed(step, err)
	}
	payload := maps.Clone(step.Input)
	if payload == nil {
		payload = map[string]any{}
	}
	if err := e.Registry.ValidateInput(step.Tool, payload); err != nil {
		return failed(step, fmt.Errorf("invalid input: %w", err))
	}

	start := e.now()
	out, err := def.Handler(ctx, model.ToolInput{
		Tool:     step.Tool,
		Payload:  payload,
		Channel:  ch,
		Upstream: upstream,
		Message:  message,
	})
	elapsed := e.now().Sub(start)
	if err == nil && out == nil {
		err = errors.New("handler returned no output")
	}
	if err == nil {
		if verr := e.Registry.ValidateOutput(step.Tool, out); verr != nil {
			err = fmt.Errorf("invalid output: %w", verr)
		}
	}
	if err != nil {
		res := failed(step, err)
		res.Ran = true
		res.Duration = elapsed
		return res
	}
	return model.ToolResult{
		Tool:     step.Tool,
		Success:  true,
		Payload:  out,
		Ran:      true,
		Critical: step.Critical,
		Duration: elapsed,
	}
}
