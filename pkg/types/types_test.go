package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartJobRequestBody(t *testing.T) {
	body, err := json.Marshal(StartJobRequest{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(body))

	days := 7
	body, err = json.Marshal(StartJobRequest{WindowDays: &days})
	require.NoError(t, err)
	assert.JSONEq(t, `{"window_days": 7}`, string(body))
}

func TestProgressEventTerminal(t *testing.T) {
	tests := []struct {
		name      string
		percent   int
		succeeded bool
		failed    bool
	}{
		{name: "start", percent: 0},
		{name: "midway", percent: 45},
		{name: "almost", percent: 99},
		{name: "done", percent: 100, succeeded: true},
		{name: "aborted", percent: -1, failed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := ProgressEvent{Percent: tt.percent}
			assert.Equal(t, tt.succeeded, ev.Succeeded())
			assert.Equal(t, tt.failed, ev.Failed())
			assert.Equal(t, tt.succeeded || tt.failed, ev.Terminal())
		})
	}
}

func TestJobStateActive(t *testing.T) {
	assert.False(t, JobStateIdle.Active())
	assert.True(t, JobStateSubmitting.Active())
	assert.True(t, JobStateAwaitingProgress.Active())
	assert.False(t, JobStateSucceeded.Active())
	assert.True(t, JobStateFailed.Terminal())
	assert.False(t, JobStateAwaitingProgress.Terminal())
}
