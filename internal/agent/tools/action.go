package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/Chative-creator-core/server/internal/agent/model"
)

type ActionResult struct {
	ActionID   string `json:"action_id"`
	ActionType string `json:"action_type"`
	Executed   bool   `json:"executed"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

type ScheduledTask struct {
	TaskID   string   `json:"task_id"`
	TaskType string   `json:"task_type"`
	Schedule string   `json:"schedule"`
	NextRuns []string `json:"next_runs"`
	Status   string   `json:"status"`
}

const (
	defaultSchedule = "0 9 * * 1"
	defaultTaskType = "weekly_growth_report"
	previewRuns     = 3
)

var actionKeywords = []struct {
	keyword string
	action  string
}{
	{"upload", "upload_video"},
	{"publish", "upload_video"},
	{"title", "update_metadata"},
	{"description", "update_metadata"},
	{"thumbnail", "update_thumbnail"},
	{"reply", "reply_comments"},
	{"comment", "reply_comments"},
	{"playlist", "update_playlist"},
}

func detectAction(message string) string {
	lc := strings.ToLower(message)
	for _, k := range actionKeywords {
		if strings.Contains(lc, k.keyword) {
			return k.action
		}
	}
	return "unknown"
}

// executeAction never mutates the channel directly: channel writes need the owner's confirmation.
func (t *toolset) executeAction(_ context.Context, in model.ToolInput) (any, error) {
	action := stringArg(in, "action_type", detectAction(in.Message))
	return ActionResult{
		ActionID:   uuid.NewString(),
		ActionType: action,
		Executed:   false,
		Status:     "pending_confirmation",
		Message:    fmt.Sprintf("Action %q requires your confirmation before it runs.", action),
	}, nil
}

func (t *toolset) scheduleTask(_ context.Context, in model.ToolInput) (any, error) {
	spec := stringArg(in, "schedule", defaultSchedule)
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	runs := make([]string, 0, previewRuns)
	next := t.now().UTC()
	for i := 0; i < previewRuns; i++ {
		next = sched.Next(next)
		runs = append(runs, next.Format(time.RFC3339))
	}
	return ScheduledTask{
		TaskID:   uuid.NewString(),
		TaskType: stringArg(in, "task_type", defaultTaskType),
		Schedule: spec,
		NextRuns: runs,
		Status:   "scheduled",
	}, nil
}
