// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/deploy"
	"github.com/AMD-AGI/Primus-Deploy/pkg/executil"
	"github.com/AMD-AGI/Primus-Deploy/pkg/health"
	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
)

// HealthKeyReleases is the health registry key fed by this worker.
const HealthKeyReleases = "releases"

// sshTransportErrorCode is ssh's own exit code for transport failures; those
// are skipped to keep flapping networks from flagging drift.
const sshTransportErrorCode = 255

// releaseMinAge: releases younger than this are still settling and are not
// compared across servers.
const releaseMinAge = 30 * time.Minute

// CheckReleasesWorker periodically reads the release manifest of every
// activated server and flags environments whose servers drifted apart.
type CheckReleasesWorker struct {
	frequency  time.Duration
	ignoreEnvs map[string]struct{}
	health     *health.Registry
	facade     database.FacadeInterface
	stop       chan struct{}

	now          func() time.Time
	sleep        func(time.Duration)
	probeTimeout time.Duration
	retrySleep   time.Duration
	probe        func(host executil.Host, targetPath string, timeout time.Duration) deploy.ReleaseStatus
}

// NewCheckReleasesWorker creates the release auditor.
func NewCheckReleasesWorker(frequency time.Duration, ignoreEnvs []string, registry *health.Registry) *CheckReleasesWorker {
	log.Infof("CheckReleases worker init. It will run every %s, ignoring environments: %v", frequency, ignoreEnvs)
	ignore := make(map[string]struct{}, len(ignoreEnvs))
	for _, env := range ignoreEnvs {
		ignore[env] = struct{}{}
	}
	return &CheckReleasesWorker{
		frequency:    frequency,
		ignoreEnvs:   ignore,
		health:       registry,
		facade:       database.GetFacade(),
		stop:         make(chan struct{}),
		now:          time.Now,
		sleep:        time.Sleep,
		probeTimeout: 10 * time.Second,
		retrySleep:   30 * time.Second,
		probe:        deploy.GetReleaseStatus,
	}
}

// Name identifies the worker for the supervisor.
func (w *CheckReleasesWorker) Name() string {
	return "checkreleases-worker"
}

// Start sweeps immediately, then on every period, until Stop is called.
func (w *CheckReleasesWorker) Start() {
	for {
		log.Infof("CheckReleases worker wakeup")
		w.Sweep(context.Background())
		log.Infof("CheckReleases worker done")
		select {
		case <-w.stop:
			return
		case <-time.After(w.frequency):
		}
	}
}

// Stop makes Start return at the next suspension point.
func (w *CheckReleasesWorker) Stop() {
	log.Infof("CheckReleases worker stop")
	close(w.stop)
}

// Sweep audits every environment once.
func (w *CheckReleasesWorker) Sweep(ctx context.Context) {
	w.health.SetOK(HealthKeyReleases)
	repositories, err := w.facade.GetRepository().ListRepositories(ctx, nil)
	if err != nil {
		log.Errorf("Unexpected error when trying to retrieve releases: %v", err)
		return
	}
	for _, repo := range repositories {
		environments, err := w.facade.GetEnvironment().ListByRepository(ctx, repo.ID)
		if err != nil {
			log.Errorf("Unexpected error when trying to retrieve releases for repo:[%s]: %v", repo.Name, err)
			continue
		}
		for _, env := range environments {
			if _, ignored := w.ignoreEnvs[env.Name]; ignored {
				log.Debugf("Ignore environment %s", env.Name)
				continue
			}
			w.checkEnvironment(env.Repository.Name, env)
		}
	}
}

func (w *CheckReleasesWorker) checkEnvironment(repoName string, env *model.Environment) {
	releases := map[string]struct{}{}
	for _, server := range env.Servers() {
		if !server.Activated {
			log.Warnf("Server:[%s] deactivated, do not check releases", server.Name)
			continue
		}
		host := executil.HostFromServer(server, env.RemoteUser)
		status := w.probe(host, env.TargetPath, w.probeTimeout)
		if status.Error() != "" {
			if status.ErrorCode() == sshTransportErrorCode {
				// ssh itself failed; flapping networks should not flag drift.
				log.Warnf("Server:[%s] error executing ssh command (error_code:%d), ignore releases check",
					server.Name, status.ErrorCode())
				continue
			}
			// Retry once before recording the degradation.
			w.sleep(w.retrySleep)
			status = w.probe(host, env.TargetPath, w.probeTimeout)
			if status.Error() != "" {
				message := fmt.Sprintf("No release found on server:[%s] repo:[%s] env:[%s]", server.Name, repoName, env.Name)
				log.Errorf(message)
				w.health.AddDegraded(HealthKeyReleases, message)
				continue
			}
		}
		age := w.now().UTC().Sub(status.Release().DeploymentDate)
		if age < releaseMinAge {
			log.Debugf("Ignore diff, commit was deployed less than %s ago:[%s]", releaseMinAge, age)
			continue
		}
		releases[status.Release().Commit] = struct{}{}
	}
	log.Infof("Repository:[%s] env:[%s] releases_count:[%d]", repoName, env.Name, len(releases))
	if len(releases) > 1 {
		w.health.AddDegraded(HealthKeyReleases,
			fmt.Sprintf("at least one server is out of sync for repo:[%s] env:[%s]", repoName, env.Name))
	}
}
