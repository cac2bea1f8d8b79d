// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package deploy implements the deployment engine: the stateful orchestration
// of a single deployment across its pipeline of steps.
package deploy

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/gitutil"
	"github.com/AMD-AGI/Primus-Deploy/pkg/haproxy"
	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
	"github.com/AMD-AGI/Primus-Deploy/pkg/mail"
	"github.com/AMD-AGI/Primus-Deploy/pkg/notification"
	"github.com/pkg/errors"
)

// MaxParallelSync bounds the rsync fan-out within one cluster.
const MaxParallelSync = 20

// GeneralConfig carries the process-wide settings the engine needs.
type GeneralConfig struct {
	// BaseReposPath is the folder containing the repository mirrors.
	BaseReposPath   string
	HAProxyUser     string
	HAProxyPassword string
	// NotifyMails are added to the recipients of every mail sent for a deployment.
	NotifyMails []string
	MailSender  string
}

// clusterActionFunc is the seam between the engine and the HAProxy client,
// replaced in tests.
type clusterActionFunc func(host string, keys []string, expectedStatus string, action haproxy.Action) error

// Engine executes one deployment identified by its deploy id.
type Engine struct {
	deployID int64
	cfg      GeneralConfig
	notifier notification.Notifier
	detector ArtifactDetector
	facade   database.FacadeInterface
	mailer   *mail.Mailer

	view        *model.Deployment
	artifact    Artifact
	screenshots []string
	logPrefix   string

	now            func() time.Time
	sleep          func(time.Duration)
	clusterAction  clusterActionFunc
	takeScreenshot func(ctx context.Context, url, outputPath string) error
}

// NewEngine creates the engine for one deployment.
func NewEngine(deployID int64, cfg GeneralConfig, notifier notification.Notifier, detector ArtifactDetector, mailer *mail.Mailer) *Engine {
	factory := haproxy.NewClientFactory(cfg.HAProxyUser, cfg.HAProxyPassword)
	return &Engine{
		deployID:  deployID,
		cfg:       cfg,
		notifier:  notifier,
		detector:  detector,
		facade:    database.GetFacade(),
		mailer:    mailer,
		logPrefix: fmt.Sprintf("[deploy %d]", deployID),
		now:       time.Now,
		sleep:     time.Sleep,
		clusterAction: func(host string, keys []string, expectedStatus string, action haproxy.Action) error {
			return haproxy.ClusterAction(factory(host), keys, expectedStatus, action)
		},
		takeScreenshot: TakeScreenshot,
	}
}

func (e *Engine) logInfof(format string, args ...interface{}) {
	log.Infof(e.logPrefix+" "+format, args...)
}

func (e *Engine) logErrorf(format string, args ...interface{}) {
	log.Errorf(e.logPrefix+" "+format, args...)
}

// writeEntry mirrors a deployment log entry into the process log.
func (e *Engine) writeEntry(entry *model.LogEntry) {
	switch entry.Severity {
	case model.SeverityWarn:
		log.Warnf(e.logPrefix + " " + entry.Message)
	case model.SeverityError:
		log.Errorf(e.logPrefix + " " + entry.Message)
	default:
		log.Infof(e.logPrefix + " " + entry.Message)
	}
}

func (e *Engine) updateStatus(ctx context.Context, status string) error {
	e.view.Status = status
	return e.facade.GetDeployment().UpdateStatus(ctx, e.view.ID, status)
}

// Execute runs the whole pipeline for the deployment. Any error leaves the
// deployment FAILED with its end date set.
func (e *Engine) Execute(ctx context.Context) (err error) {
	view, err := e.facade.GetDeployment().GetDeployment(ctx, e.deployID)
	if err != nil {
		return errors.Wrapf(err, "could not load deployment %d", e.deployID)
	}
	if view == nil {
		return errors.Errorf("no configuration found for deploy ID %d", e.deployID)
	}
	e.view = view

	defer func() {
		endDate := e.now().UTC()
		status := model.DeploymentStatusComplete
		if err != nil {
			status = model.DeploymentStatusFailed
			e.logErrorf("An error was encountered during deployment (%v). Deployment failed.", err)
		}
		e.view.End(status, endDate)
		if dbErr := e.facade.GetDeployment().EndDeployment(ctx, e.view.ID, status, endDate); dbErr != nil {
			e.logErrorf("could not persist terminal status: %v", dbErr)
		}
		if e.artifact != nil {
			if cleanupErr := e.artifact.Cleanup(); cleanupErr != nil {
				e.logErrorf("artifact cleanup failed: %v", cleanupErr)
			}
		}
		e.notifier.Dispatch(notification.DeploymentEnd(e.view, e.screenshots))
	}()

	if err = e.checkConfiguration(ctx); err != nil {
		return err
	}
	if err = e.updateStatus(ctx, model.DeploymentStatusPreDeploy); err != nil {
		return err
	}

	environment := e.view.Environment
	localRepoPath := filepath.Join(e.cfg.BaseReposPath, environment.LocalRepoDirectoryName())
	mailTestReportTo := e.testReportReceivers(environment)

	// Ensure the repo exists on disk.
	if err = e.runStep(ctx, e.stepCloneRepo(localRepoPath, environment)); err != nil {
		return err
	}

	err = gitutil.LockRepositoryWrite(localRepoPath, func(repo *gitutil.WriteRepository) error {
		if stepErr := e.getArtifact(ctx, localRepoPath, repo, mailTestReportTo); stepErr != nil {
			return stepErr
		}

		if stepErr := e.updateStatus(ctx, model.DeploymentStatusDeploy); stepErr != nil {
			return stepErr
		}
		return e.clusterOrchestration(ctx, e.view.TargetClusters(), func(cluster *model.Cluster) error {
			return e.copyToRemotes(ctx, cluster, mailTestReportTo)
		})
	})
	if err != nil {
		return err
	}

	if err = e.updateStatus(ctx, model.DeploymentStatusPostDeploy); err != nil {
		return err
	}
	e.screenshots, err = e.postDeployScreenshot(ctx, localRepoPath)
	if err != nil {
		return err
	}
	e.logInfof("END deploy")
	return nil
}

func (e *Engine) testReportReceivers(environment *model.Environment) []string {
	receivers := map[string]struct{}{}
	if environment.Repository != nil {
		for _, address := range environment.Repository.NotifyMailsList() {
			receivers[address] = struct{}{}
		}
	}
	for _, address := range e.cfg.NotifyMails {
		receivers[address] = struct{}{}
	}
	out := make([]string, 0, len(receivers))
	for address := range receivers {
		out = append(out, address)
	}
	return out
}

// checkConfiguration validates the deployment row and the caller's rights,
// and expires stale competing deployments.
func (e *Engine) checkConfiguration(ctx context.Context) error {
	e.logInfof("START deploy")
	e.notifier.Dispatch(notification.DeploymentStart(e.view))

	if err := e.runStep(ctx, e.stepCheckConfiguration()); err != nil {
		return err
	}

	if err := e.updateStatus(ctx, model.DeploymentStatusInit); err != nil {
		return err
	}
	e.notifier.Dispatch(notification.DeploymentConfigurationLoaded(e.view))
	environment := e.view.Environment
	e.logPrefix = fmt.Sprintf("[%d %s/%s]", e.view.ID, environment.Name, environment.Repository.Name)

	if err := e.runStep(ctx, e.stepCheckDeployAllowed(e.view.User, environment.ID, environment.Name)); err != nil {
		return err
	}
	return e.runStep(ctx, e.stepCheckServersAvailability(environment.Name))
}

// getArtifact refreshes the mirror, materializes the artifact, and runs the
// predeploy scripts and local tests.
func (e *Engine) getArtifact(ctx context.Context, localRepoPath string, repo *gitutil.WriteRepository, mailTestReportTo []string) error {
	environment := e.view.Environment

	if err := e.runStep(ctx, e.stepUpdateRepo(localRepoPath, repo)); err != nil {
		return err
	}
	e.notifier.Dispatch(notification.CommitsFetched(
		environment.ID,
		localRepoPath,
		environment.Repository.GitServer,
		environment.Repository.Name,
		environment.DeployBranch,
		e.deployID,
	))

	if err := e.runStep(ctx, e.stepDetectArtifact(localRepoPath)); err != nil {
		return err
	}
	if err := e.runStep(ctx, e.stepObtainArtifact()); err != nil {
		return err
	}

	if e.artifact.ShouldRunPredeployScripts() {
		if err := e.runStep(ctx, e.stepRunAndDeletePredeploy(localRepoPath)); err != nil {
			return err
		}
		// The local test script requires a server as a parameter; when
		// deploying on several servers any of them will do.
		targetServers := e.view.TargetServers()
		if len(targetServers) > 0 {
			step := e.stepRunLocalTests(localRepoPath, targetServers[0], mailTestReportTo)
			step.AllowErrors = !environment.FailDeployOnFailedTests
			if err := e.runStep(ctx, step); err != nil {
				return err
			}
		}
	}
	return nil
}

// clusterOrchestration deploys cluster by cluster while keeping at least one
// cluster in rotation once the first one completed.
func (e *Engine) clusterOrchestration(ctx context.Context, targetClusters []*model.Cluster, perCluster func(*model.Cluster) error) error {
	oldVersionClusters := append([]*model.Cluster(nil), targetClusters...)
	var newVersionClusters []*model.Cluster

	if err := e.runStep(ctx, e.stepEnsureClustersUp(oldVersionClusters)); err != nil {
		return err
	}
	for len(oldVersionClusters) > 0 {
		cluster := oldVersionClusters[0]
		oldVersionClusters = oldVersionClusters[1:]

		switch {
		case len(newVersionClusters) == 0:
			// Nothing to do.
		case len(newVersionClusters) == 1:
			// One cluster has already been updated: give it some time to
			// activate, verify it, then deactivate every old cluster at once.
			e.sleep(time.Second)
			if err := e.runStep(ctx, e.stepEnsureClustersUp(newVersionClusters)); err != nil {
				return err
			}
			if len(oldVersionClusters) != 0 {
				if err := e.runStep(ctx, e.stepDisableClusters(oldVersionClusters)); err != nil {
					return err
				}
			}
		default:
			if err := e.runStep(ctx, e.stepEnsureClustersUp(newVersionClusters)); err != nil {
				return err
			}
		}

		// In any case, deactivate the cluster we are updating.
		if err := e.runStep(ctx, e.stepDisableClusters([]*model.Cluster{cluster})); err != nil {
			return err
		}
		if err := perCluster(cluster); err != nil {
			return err
		}
		newVersionClusters = append(newVersionClusters, cluster)
		if err := e.runStep(ctx, e.stepEnableClusters([]*model.Cluster{cluster})); err != nil {
			return err
		}
	}
	return nil
}

// copyToRemotes pushes the artifact to every activated server of the cluster
// and runs the per-host release sequence.
func (e *Engine) copyToRemotes(ctx context.Context, cluster *model.Cluster, mailTestReportTo []string) error {
	environment := e.view.Environment
	servers := cluster.ActivatedServers()
	destinationPath := environment.ReleasePath(e.view.Branch, e.view.Commit, e.now())

	if err := e.runStep(ctx, e.stepParallelSync(destinationPath, servers)); err != nil {
		return err
	}

	for _, server := range servers {
		if err := e.runStep(ctx, e.stepRelease(server, destinationPath)); err != nil {
			return err
		}
		e.notifier.Dispatch(notification.ReleasedOnServer(e.view, server, e.now().UTC(), e.view.Branch, e.view.Commit))
		if err := e.runStep(ctx, e.stepRunAndDeleteDeploy(server)); err != nil {
			return err
		}
		step := e.stepRunRemoteTests(server, mailTestReportTo)
		step.AllowErrors = !environment.FailDeployOnFailedTests
		if err := e.runStep(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// postDeployScreenshot loads deploy.json from the mirror and captures the
// configured URL for this environment, if any.
func (e *Engine) postDeployScreenshot(ctx context.Context, localRepoPath string) ([]string, error) {
	deployConf, err := e.loadRepoConfigurationFile(ctx, localRepoPath)
	if err != nil {
		return nil, err
	}
	urls, ok := deployConf["url"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	rawURL, ok := urls[e.view.Environment.Name].(string)
	if !ok || rawURL == "" {
		return nil, nil
	}

	var files []string
	err = e.runStep(ctx, Step{
		Description: fmt.Sprintf("Take a screenshot of %s", rawURL),
		Run: func(sc *StepContext) error {
			filename := fmt.Sprintf("/tmp/%s_%s.png",
				gitutil.SanitizePathComponent(e.view.Environment.Repository.Name),
				gitutil.SanitizePathComponent(e.view.Environment.Name))
			if err := e.takeScreenshot(sc.Context(), rawURL, filename); err != nil {
				sc.Log(model.NewLogEntryWithSeverity(fmt.Sprintf("screenshot failed: %v", err), model.SeverityWarn))
				return nil
			}
			files = []string{filename}
			return nil
		},
	})
	return files, err
}
