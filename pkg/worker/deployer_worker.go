// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package worker hosts the long-lived workers supervised by the deployer:
// deployment executors, async git fetchers, the release auditor and the
// mirror cleaner.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/deploy"
	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
	"github.com/AMD-AGI/Primus-Deploy/pkg/mail"
	"github.com/AMD-AGI/Primus-Deploy/pkg/notification"
	"github.com/AMD-AGI/Primus-Deploy/pkg/queue"
)

// maxReleaseCount drops a job after this many redeliveries. Zero means drop
// on the first failure, until a proper retry strategy exists.
const maxReleaseCount = 0

// releaseDelay delays a redelivered job.
const releaseDelay = 10 * time.Second

// reserveBlockTimeout bounds one blocking reserve so the stop signal is observed.
const reserveBlockTimeout = 2 * time.Second

// DeployerWorker performs deployment requests coming from the job tube.
type DeployerWorker struct {
	queue      *queue.Queue
	cfg        deploy.GeneralConfig
	notifier   notification.Notifier
	detector   deploy.ArtifactDetector
	mailer     *mail.Mailer
	nameSuffix string
	stop       chan struct{}

	// execute is the engine seam, replaced in tests.
	execute func(ctx context.Context, deployID int64) error
}

// NewDeployerWorker creates one executor. Several run concurrently, sharing
// the same tube.
func NewDeployerWorker(q *queue.Queue, cfg deploy.GeneralConfig, notifier notification.Notifier, detector deploy.ArtifactDetector, mailer *mail.Mailer, nameSuffix string) *DeployerWorker {
	w := &DeployerWorker{
		queue:      q,
		cfg:        cfg,
		notifier:   notifier,
		detector:   detector,
		mailer:     mailer,
		nameSuffix: nameSuffix,
		stop:       make(chan struct{}),
	}
	w.execute = func(ctx context.Context, deployID int64) error {
		engine := deploy.NewEngine(deployID, cfg, notifier, detector, mailer)
		return engine.Execute(ctx)
	}
	return w
}

// Name identifies the worker for the supervisor.
func (w *DeployerWorker) Name() string {
	return fmt.Sprintf("deployer-worker-%s", w.nameSuffix)
}

// Start consumes the tube until Stop is called.
func (w *DeployerWorker) Start() {
	ctx := context.Background()
	for {
		select {
		case <-w.stop:
			return
		default:
		}
		job, err := w.queue.Reserve(ctx, w.Name(), reserveBlockTimeout)
		if err != nil {
			log.Errorf("%s: could not reserve a job: %v", w.Name(), err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}
		w.handle(ctx, job)
	}
}

// Stop makes Start return after the in-flight job completes.
func (w *DeployerWorker) Stop() {
	close(w.stop)
}

func (w *DeployerWorker) handle(ctx context.Context, job *queue.Job) {
	payload, err := queue.DeserializePayload(job.Body())
	if err != nil {
		log.Errorf("%s: could not deserialize job %d, dropping it: %v", w.Name(), job.ID(), err)
		if err := job.Delete(ctx); err != nil {
			log.Errorf("%s: could not delete malformed job: %v", w.Name(), err)
		}
		return
	}

	stats, err := job.Stats(ctx)
	releaseCount := 0
	if err == nil {
		releaseCount = stats["releases"]
	}
	log.Infof("Received a deployment job (deployment ID is %d (%s/%s), release count is %d)",
		payload.DeployID, payload.RepositoryName, payload.EnvironmentName, releaseCount)

	if err := w.execute(ctx, payload.DeployID); err != nil {
		log.Errorf("Job failed. Error was: %v", err)
		// Exactly one of delete/release must happen before moving on.
		if releaseCount >= maxReleaseCount {
			log.Warnf("Job has already been released more than %d times, dropping it.", maxReleaseCount)
			if err := job.Delete(ctx); err != nil {
				log.Errorf("Error in the deployer worker error handler: %v", err)
			}
		} else {
			log.Infof("Job released.")
			if err := job.Release(ctx, releaseDelay); err != nil {
				log.Errorf("Error in the deployer worker error handler: %v", err)
			}
		}
		return
	}

	if err := job.Delete(ctx); err != nil {
		log.Errorf("%s: could not delete completed job %d: %v", w.Name(), job.ID(), err)
		return
	}
	log.Infof("Job complete, deleting it (deployment ID is %d)", payload.DeployID)
}
