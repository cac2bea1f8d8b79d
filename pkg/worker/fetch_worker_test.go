// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package worker

import (
	"testing"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fetchEnv(id int64, repoName string) *model.Environment {
	return &model.Environment{
		ID:           id,
		Name:         "prod",
		DeployBranch: "main",
		Repository:   &model.Repository{ID: 1, Name: repoName, GitServer: "git.example.com"},
	}
}

func TestFetchQueueEnqueueBuildsJob(t *testing.T) {
	q := NewFetchQueue()
	env := fetchEnv(7, "org/app")
	q.Enqueue(env)

	require.Len(t, q.jobs, 1)
	job := <-q.jobs
	assert.Equal(t, int64(7), job.EnvironmentID)
	assert.Equal(t, "org/app", job.RepositoryName)
	assert.Equal(t, "git.example.com", job.GitServer)
	assert.Equal(t, "main", job.DeployBranch)
	assert.Equal(t, env.LocalRepoDirectoryName(), job.LocalRepoDirectory)
}

func TestFetchQueueDropsWhenSaturated(t *testing.T) {
	q := &FetchQueue{jobs: make(chan FetchJob, 1)}
	q.Enqueue(fetchEnv(1, "org/app"))
	// The second enqueue must not block the caller.
	q.Enqueue(fetchEnv(2, "org/other"))

	assert.Len(t, q.jobs, 1)
	job := <-q.jobs
	assert.Equal(t, int64(1), job.EnvironmentID)
}

func TestAsyncFetchWorkerStopReturnsFromStart(t *testing.T) {
	q := NewFetchQueue()
	w := NewAsyncFetchWorker(q, t.TempDir(), &capturingNotifier{}, "async-fetch-worker-1")

	done := make(chan struct{})
	go func() {
		w.Start()
		close(done)
	}()
	w.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestAsyncFetchWorkerDrainAbandonsQueuedJobs(t *testing.T) {
	q := NewFetchQueue()
	q.Enqueue(fetchEnv(1, "org/app"))
	q.Enqueue(fetchEnv(2, "org/other"))

	w := NewAsyncFetchWorker(q, t.TempDir(), &capturingNotifier{}, "async-fetch-worker-1")
	w.drain()

	assert.Empty(t, q.jobs, "pending jobs are abandoned on shutdown")
}
