package errx

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestCodeOf(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, ""},
		{"plain", cause, CodeInternal},
		{"tool", ToolFailure("get_channel_snapshot", cause), CodeToolFailure},
		{"wrapped", fmt.Errorf("outer: %w", CredentialExpired(cause)), CodeCredentialExpired},
		{"outermost wins", PlanCriticalFailure("get_top_videos", ToolFailure("get_top_videos", cause)), CodePlanCriticalFailure},
		{"cancelled", Cancelled(context.Canceled), CodeCancelled},
		{"clarification", ClarificationNeeded("Did you mean"), CodeClarification},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestAppError_IsMatchesCodeAndCause(t *testing.T) {
	err := PlanCriticalFailure("get_top_videos", context.DeadlineExceeded)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, &AppError{Code: CodePlanCriticalFailure})
	assert.NotErrorIs(t, err, &AppError{Code: CodeToolFailure})
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, ReconnectMessage, MessageOf(CredentialExpired(errors.New("invalid_grant"))))
	assert.Equal(t, SystemErrorMessage, MessageOf(errors.New("raw")))
	assert.Contains(t, MessageOf(PlanCriticalFailure("get_top_videos", nil)), "get_top_videos failed")
	assert.Equal(t, "Did you mean:\n  1. Ramen (90.0%)\n", MessageOf(ClarificationNeeded("Did you mean:\n  1. Ramen (90.0%)\n")))
}

func TestWrapStores(t *testing.T) {
	assert.ErrorIs(t, WrapRedis(redis.Nil), ErrNotFound)
	assert.ErrorIs(t, WrapDB(gorm.ErrRecordNotFound), ErrNotFound)
	assert.True(t, IsCode(WrapRedis(errors.New("dial tcp: refused")), CodeStoreUnavailable))
	assert.True(t, IsCode(WrapDB(errors.New("conn reset")), CodeStoreUnavailable))
	assert.NoError(t, WrapRedis(nil))
	assert.NoError(t, WrapDB(nil))
}
