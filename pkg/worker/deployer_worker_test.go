// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/deploy"
	"github.com/AMD-AGI/Primus-Deploy/pkg/notification"
	"github.com/AMD-AGI/Primus-Deploy/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorkerWithQueue(t *testing.T) (*DeployerWorker, *queue.Queue, *database.MockJobFacade) {
	t.Helper()
	jobFacade := database.NewMockJobFacade()
	q := queue.New(queue.DeploymentJobsTube, jobFacade)
	w := NewDeployerWorker(q, deploy.GeneralConfig{}, &noopNotifier{}, nil, nil, "0")
	return w, q, jobFacade
}

type noopNotifier struct{}

func (n *noopNotifier) Dispatch(*notification.Event) {}

func putJob(t *testing.T, q *queue.Queue, deployID int64) {
	t.Helper()
	payload, err := queue.DeploymentJobPayload{
		DeployID:        deployID,
		RepositoryName:  "org/app",
		EnvironmentName: "prod",
	}.Serialize()
	require.NoError(t, err)
	require.NoError(t, q.Put(context.Background(), payload, queue.DeploymentJobTTR))
}

func TestDeployerWorkerDeletesCompletedJob(t *testing.T) {
	w, q, jobFacade := newWorkerWithQueue(t)
	putJob(t, q, 7)

	var executed []int64
	w.execute = func(_ context.Context, deployID int64) error {
		executed = append(executed, deployID)
		return nil
	}

	ctx := context.Background()
	job, err := q.Reserve(ctx, w.Name(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	w.handle(ctx, job)

	assert.Equal(t, []int64{7}, executed)
	assert.Empty(t, jobFacade.Jobs, "the completed job should have been deleted")
}

// With the default retry budget of zero, the first failure drops the job.
func TestDeployerWorkerDropsFailedJobOnFirstError(t *testing.T) {
	w, q, jobFacade := newWorkerWithQueue(t)
	putJob(t, q, 7)

	w.execute = func(context.Context, int64) error {
		return fmt.Errorf("deployment failed")
	}

	ctx := context.Background()
	job, err := q.Reserve(ctx, w.Name(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	w.handle(ctx, job)

	assert.Empty(t, jobFacade.Jobs, "the failed job should have been dropped")
}

// A malformed payload is deleted, never redelivered.
func TestDeployerWorkerDropsMalformedJob(t *testing.T) {
	w, q, jobFacade := newWorkerWithQueue(t)
	require.NoError(t, q.Put(context.Background(), "not json", queue.DeploymentJobTTR))

	w.execute = func(context.Context, int64) error {
		t.Fatal("the engine should not run for a malformed job")
		return nil
	}

	ctx := context.Background()
	job, err := q.Reserve(ctx, w.Name(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	w.handle(ctx, job)

	assert.Empty(t, jobFacade.Jobs)
}
