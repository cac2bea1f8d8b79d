// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package worker

import (
	"os"
	"path/filepath"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/gitutil"
	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
	"github.com/AMD-AGI/Primus-Deploy/pkg/notification"
)

// FetchJob asks a fetcher to refresh one environment's mirror.
type FetchJob struct {
	EnvironmentID      int64
	LocalRepoDirectory string
	RepositoryName     string
	GitServer          string
	DeployBranch       string
}

// FetchQueue is the process-wide channel feeding the async fetchers.
type FetchQueue struct {
	jobs chan FetchJob
}

// NewFetchQueue creates the shared fetch channel.
func NewFetchQueue() *FetchQueue {
	return &FetchQueue{jobs: make(chan FetchJob, 256)}
}

// Enqueue queues a fetch for the environment. Drops the job when the queue
// is saturated rather than blocking an HTTP handler.
func (q *FetchQueue) Enqueue(env *model.Environment) {
	job := FetchJob{
		EnvironmentID:      env.ID,
		LocalRepoDirectory: env.LocalRepoDirectoryName(),
		RepositoryName:     env.Repository.Name,
		GitServer:          env.Repository.GitServer,
		DeployBranch:       env.DeployBranch,
	}
	select {
	case q.jobs <- job:
	default:
		log.Errorf("fetch queue full, dropping fetch for %s", env.Repository.Name)
	}
}

// AsyncFetchWorker consumes the fetch channel and keeps mirrors current.
type AsyncFetchWorker struct {
	queue         *FetchQueue
	baseReposPath string
	notifier      notification.Notifier
	name          string
	stop          chan struct{}
}

// NewAsyncFetchWorker creates one fetcher.
func NewAsyncFetchWorker(queue *FetchQueue, baseReposPath string, notifier notification.Notifier, name string) *AsyncFetchWorker {
	return &AsyncFetchWorker{
		queue:         queue,
		baseReposPath: baseReposPath,
		notifier:      notifier,
		name:          name,
		stop:          make(chan struct{}),
	}
}

// Name identifies the worker for the supervisor.
func (w *AsyncFetchWorker) Name() string {
	return w.name
}

// Start consumes fetch jobs until Stop is called, then drains the channel,
// logging abandoned jobs.
func (w *AsyncFetchWorker) Start() {
	for {
		select {
		case <-w.stop:
			w.drain()
			return
		case job := <-w.queue.jobs:
			w.fetch(job)
		}
	}
}

// Stop makes Start return.
func (w *AsyncFetchWorker) Stop() {
	close(w.stop)
}

func (w *AsyncFetchWorker) drain() {
	for {
		select {
		case job := <-w.queue.jobs:
			log.Warnf("Because of shutdown, will not perform git fetch for %s/%s", job.RepositoryName, job.DeployBranch)
		default:
			return
		}
	}
}

func (w *AsyncFetchWorker) fetch(job FetchJob) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("AsyncFetchWorker: unhandled panic when fetching from git: %v", r)
		}
	}()

	path := filepath.Join(w.baseReposPath, job.LocalRepoDirectory)
	// There is a race condition between two workers here. If both attempt to
	// clone, one of them fails without consequences: the clone scope holds
	// both locks and is idempotent.
	if _, err := os.Stat(path); err != nil {
		log.Infof("AsyncFetchWorker: cloning %s", path)
		remoteURL := gitutil.BuildRepoURL(job.RepositoryName, job.GitServer)
		if _, err := gitutil.LockRepositoryClone(remoteURL, path); err != nil {
			log.Errorf("AsyncFetchWorker: could not clone %s: %v", path, err)
			return
		}
	} else {
		log.Infof("AsyncFetchWorker: fetching %s", path)
		err := gitutil.LockRepositoryFetch(path, true, func(repo *gitutil.FetchRepository) error {
			return repo.Fetch()
		})
		if err != nil {
			log.Errorf("AsyncFetchWorker: could not fetch %s: %v", path, err)
			return
		}
	}
	log.Infof("AsyncFetchWorker: fetching %s: done", path)

	w.notifier.Dispatch(notification.CommitsFetched(
		job.EnvironmentID, path, job.GitServer, job.RepositoryName, job.DeployBranch, 0))
}
