package job

import (
	"context"
	"testing"
	"time"

	"meal-plan-generator/internal/core/plan"
	"meal-plan-generator/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFull(t *testing.T) {
	q := NewQueue(1, 1)
	block := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, q.Enqueue(&Task{JobID: "a", Run: func(ctx context.Context) {
		close(started)
		<-block
	}}))
	<-started

	require.NoError(t, q.Enqueue(&Task{JobID: "b", Run: func(ctx context.Context) {}}))
	assert.ErrorIs(t, q.Enqueue(&Task{JobID: "c", Run: func(ctx context.Context) {}}), common.ErrQueueFull)

	status := q.Status()
	assert.Equal(t, 1, status.QueueLength)
	assert.Equal(t, 1, status.MaxQueueSize)
	assert.Equal(t, 1, status.Workers)

	close(block)
	q.Close()
	assert.Error(t, q.Enqueue(&Task{JobID: "d", Run: func(ctx context.Context) {}}))
}

func TestQueueSurvivesPanic(t *testing.T) {
	q := NewQueue(1, 4)
	defer q.Close()
	ran := make(chan struct{})

	require.NoError(t, q.Enqueue(&Task{JobID: "boom", Run: func(ctx context.Context) { panic("boom") }}))
	require.NoError(t, q.Enqueue(&Task{JobID: "ok", Run: func(ctx context.Context) { close(ran) }}))

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("worker stopped after panic")
	}
}

func TestNextPollDelay(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		jobType plan.JobType
		want    time.Duration
	}{
		{0, plan.JobDay, 800 * time.Millisecond},
		{9 * time.Second, plan.JobWeek, 800 * time.Millisecond},
		{10 * time.Second, plan.JobDay, 1800 * time.Millisecond},
		{59 * time.Second, plan.JobWeek, 1800 * time.Millisecond},
		{2 * time.Minute, plan.JobDay, 3 * time.Second},
		{3 * time.Minute, plan.JobDay, 6 * time.Second},
		{3 * time.Minute, plan.JobWeek, 3 * time.Second},
		{6 * time.Minute, plan.JobWeek, 6 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NextPollDelay(tt.elapsed, tt.jobType), "%s %s", tt.jobType, tt.elapsed)
	}
}
