// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package queue

import (
	"context"
	"testing"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue() (*Queue, *database.MockJobFacade, *time.Time) {
	facade := database.NewMockJobFacade()
	q := New(DeploymentJobsTube, facade)
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }
	return q, facade, &now
}

func TestPayloadRoundTrip(t *testing.T) {
	payload := DeploymentJobPayload{DeployID: 42, RepositoryName: "org/app", EnvironmentName: "prod"}
	data, err := payload.Serialize()
	require.NoError(t, err)
	parsed, err := DeserializePayload(data)
	require.NoError(t, err)
	assert.Equal(t, payload, parsed)
}

func TestReserveIsFIFO(t *testing.T) {
	q, _, _ := newTestQueue()
	ctx := context.Background()
	require.NoError(t, q.Put(ctx, "first", DeploymentJobTTR))
	require.NoError(t, q.Put(ctx, "second", DeploymentJobTTR))

	job, err := q.Reserve(ctx, "w1", 0)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "first", job.Body())

	job2, err := q.Reserve(ctx, "w2", 0)
	require.NoError(t, err)
	require.NotNil(t, job2)
	assert.Equal(t, "second", job2.Body())
}

func TestReserveEmptyTubeTimesOut(t *testing.T) {
	facade := database.NewMockJobFacade()
	q := New(DeploymentJobsTube, facade)
	job, err := q.Reserve(context.Background(), "w1", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestDeleteRemovesTheJob(t *testing.T) {
	q, facade, _ := newTestQueue()
	ctx := context.Background()
	require.NoError(t, q.Put(ctx, "payload", DeploymentJobTTR))
	job, err := q.Reserve(ctx, "w1", 0)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.NoError(t, job.Delete(ctx))

	assert.Empty(t, facade.Jobs)
}

func TestReleaseMakesJobVisibleAgainAfterDelay(t *testing.T) {
	q, _, now := newTestQueue()
	ctx := context.Background()
	require.NoError(t, q.Put(ctx, "payload", DeploymentJobTTR))
	job, err := q.Reserve(ctx, "w1", 0)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.NoError(t, job.Release(ctx, 10*time.Second))

	// Not visible before the delay elapses.
	redelivered, err := q.Reserve(ctx, "w2", 0)
	require.NoError(t, err)
	assert.Nil(t, redelivered)

	*now = now.Add(11 * time.Second)
	redelivered, err = q.Reserve(ctx, "w2", 0)
	require.NoError(t, err)
	require.NotNil(t, redelivered)

	stats, err := redelivered.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats["releases"])
}

// A job held past its TTR is redelivered with its release counter bumped.
func TestTTRExpiryRedeliversTheJob(t *testing.T) {
	q, _, now := newTestQueue()
	ctx := context.Background()
	require.NoError(t, q.Put(ctx, "payload", time.Minute))

	job, err := q.Reserve(ctx, "w1", 0)
	require.NoError(t, err)
	require.NotNil(t, job)

	*now = now.Add(2 * time.Minute)
	redelivered, err := q.Reserve(ctx, "w2", 0)
	require.NoError(t, err)
	require.NotNil(t, redelivered)
	assert.Equal(t, job.ID(), redelivered.ID())

	stats, err := redelivered.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats["releases"])
}
