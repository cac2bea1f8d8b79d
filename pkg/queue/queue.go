// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package queue implements the durable FIFO job tube between the HTTP layer
// and the deployment executors. Jobs are reserved with a visibility timeout
// (TTR): a reserved job not deleted before its deadline is redelivered.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
)

// DeploymentJobsTube is the tube consumed by the deployment executors.
const DeploymentJobsTube = "deployer-deployments"

// DeploymentJobTTR bounds how long a worker may hold a deployment job.
// Some deployments include a lengthy build step, so the value is high.
const DeploymentJobTTR = 30 * time.Minute

// reservePollInterval bounds how often a blocking reserve hits the database.
const reservePollInterval = 500 * time.Millisecond

// DeploymentJobPayload is the serialized job body. Only DeployID is
// authoritative; the other fields are for ease of troubleshooting.
type DeploymentJobPayload struct {
	DeployID        int64  `json:"deploy_id"`
	RepositoryName  string `json:"repository_name"`
	EnvironmentName string `json:"environment_name"`
}

// Serialize renders the payload as the tube body.
func (p DeploymentJobPayload) Serialize() (string, error) {
	b, err := json.Marshal(p)
	return string(b), err
}

// DeserializePayload parses a tube body.
func DeserializePayload(data string) (DeploymentJobPayload, error) {
	var p DeploymentJobPayload
	err := json.Unmarshal([]byte(data), &p)
	return p, err
}

// Queue is a handle on one tube.
type Queue struct {
	tube   string
	facade database.JobFacadeInterface
	now    func() time.Time
}

// New creates a queue handle on the given tube.
func New(tube string, facade database.JobFacadeInterface) *Queue {
	return &Queue{tube: tube, facade: facade, now: time.Now}
}

// NewDeploymentQueue creates the handle on the deployment tube.
func NewDeploymentQueue() *Queue {
	return New(DeploymentJobsTube, database.GetFacade().GetJob())
}

// Put appends a job to the tube.
func (q *Queue) Put(ctx context.Context, payload string, ttr time.Duration) error {
	now := q.now().UTC()
	err := q.facade.PutJob(ctx, &model.DeploymentJob{
		Tube:       q.tube,
		Payload:    payload,
		State:      model.JobStateReady,
		TTRSeconds: int(ttr.Seconds()),
		ReadyAt:    now,
		CreatedAt:  now,
	})
	if err == nil {
		jobsEnqueued.WithLabelValues(q.tube).Inc()
	}
	return err
}

// Reserve blocks up to blockTimeout for a job. Returns nil when the timeout
// elapses with an empty tube or when ctx is canceled.
func (q *Queue) Reserve(ctx context.Context, workerID string, blockTimeout time.Duration) (*Job, error) {
	deadline := q.now().Add(blockTimeout)
	for {
		now := q.now().UTC()
		if released, err := q.facade.ReleaseExpiredReservations(ctx, q.tube, now); err != nil {
			log.Errorf("queue %s: failed to release expired reservations: %v", q.tube, err)
		} else if released > 0 {
			log.Warnf("queue %s: redelivered %d jobs whose TTR expired", q.tube, released)
		}

		row, err := q.facade.TryReserveJob(ctx, q.tube, workerID, now)
		if err != nil {
			return nil, err
		}
		if row != nil {
			jobsReserved.WithLabelValues(q.tube).Inc()
			return &Job{queue: q, row: row}, nil
		}
		if !q.now().Before(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(reservePollInterval):
		}
	}
}

// Job is a reserved tube entry. Exactly one of Delete or Release must be
// called before the worker moves on.
type Job struct {
	queue *Queue
	row   *model.DeploymentJob
}

// ID returns the tube entry id.
func (j *Job) ID() int64 {
	return j.row.ID
}

// Body returns the serialized payload.
func (j *Job) Body() string {
	return j.row.Payload
}

// Delete removes the job permanently.
func (j *Job) Delete(ctx context.Context) error {
	err := j.queue.facade.DeleteJob(ctx, j.row.ID)
	if err == nil {
		jobsDeleted.WithLabelValues(j.queue.tube).Inc()
	}
	return err
}

// Release puts the job back in the ready state after the given delay.
func (j *Job) Release(ctx context.Context, delay time.Duration) error {
	err := j.queue.facade.ReleaseJob(ctx, j.row.ID, delay, j.queue.now().UTC())
	if err == nil {
		jobsReleased.WithLabelValues(j.queue.tube).Inc()
	}
	return err
}

// Stats returns the current counters of the job, release count included.
func (j *Job) Stats(ctx context.Context) (map[string]int, error) {
	row, err := j.queue.facade.GetJob(ctx, j.row.ID)
	if err != nil {
		return nil, err
	}
	releases := j.row.Releases
	if row != nil {
		releases = row.Releases
	}
	return map[string]int{"releases": releases}, nil
}
