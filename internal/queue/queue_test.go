package queue

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/applelectricals/microjpeg/internal/progress"
)

func TestQueueForTier(t *testing.T) {
	tests := []struct {
		tier string
		want string
	}{
		{"enterprise", QueueCritical},
		{"premium", QueueCritical},
		{"Premium", QueueCritical},
		{"pro", QueueDefault},
		{"starter", QueueDefault},
		{"free", QueueLow},
		{"anonymous", QueueLow},
		{"", QueueLow},
		{"something-new", QueueLow},
	}
	for _, tt := range tests {
		t.Run(tt.tier, func(t *testing.T) {
			assert.Equal(t, tt.want, QueueForTier(tt.tier))
		})
	}
}

func TestPriorities(t *testing.T) {
	p := Priorities()
	assert.Len(t, p, 3)
	assert.Greater(t, p[QueueCritical], p[QueueDefault])
	assert.Greater(t, p[QueueDefault], p[QueueLow])
}

func TestJobHandleProgressFromTracker(t *testing.T) {
	ctx := context.Background()
	tracker := progress.NewMemoryTracker()
	require.NoError(t, tracker.Initialize(ctx, "job-1", 4))
	require.NoError(t, tracker.Update(ctx, "job-1", func(bp *progress.BatchProgress) {
		bp.ProcessedFiles = 2
		bp.ProgressPercentage = 50
	}))

	// While a batch runs, the handle reads the whole-batch percentage
	// straight from the tracker without touching the queue backend.
	h := &JobHandle{tracker: tracker, id: "job-1"}
	assert.Equal(t, 50, h.Progress(ctx))

	require.NoError(t, tracker.Update(ctx, "job-1", func(bp *progress.BatchProgress) {
		bp.ProcessedFiles = 4
		bp.ProgressPercentage = 100
	}))
	assert.Equal(t, 100, h.Progress(ctx))
}

func TestStateOf(t *testing.T) {
	tests := []struct {
		in   asynq.TaskState
		want State
	}{
		{asynq.TaskStatePending, StateWaiting},
		{asynq.TaskStateScheduled, StateWaiting},
		{asynq.TaskStateRetry, StateWaiting},
		{asynq.TaskStateAggregating, StateWaiting},
		{asynq.TaskStateActive, StateActive},
		{asynq.TaskStateCompleted, StateCompleted},
		{asynq.TaskStateArchived, StateFailed},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, stateOf(tt.in))
		})
	}
}
