// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
	"github.com/AMD-AGI/Primus-Deploy/pkg/notification"
	"github.com/AMD-AGI/Primus-Deploy/pkg/queue"
	"github.com/go-resty/resty/v2"
)

// CreateDeploymentJob persists the deployment row in the QUEUED state and
// places the matching job on the tube.
func CreateDeploymentJob(ctx context.Context, q *queue.Queue, notifier notification.Notifier,
	repositoryName, environmentName string, environmentID int64, clusterID, serverID *int64,
	branch, commit string, userID int64,
) (int64, error) {
	deployment := &model.Deployment{
		RepositoryName:  repositoryName,
		EnvironmentName: environmentName,
		EnvironmentID:   &environmentID,
		ClusterID:       clusterID,
		ServerID:        serverID,
		Branch:          branch,
		Commit:          commit,
		UserID:          &userID,
		Status:          model.DeploymentStatusQueued,
		QueuedDate:      time.Now().UTC(),
	}
	if err := database.GetFacade().GetDeployment().CreateDeployment(ctx, deployment); err != nil {
		return 0, err
	}
	payload, err := queue.DeploymentJobPayload{
		DeployID:        deployment.ID,
		RepositoryName:  repositoryName,
		EnvironmentName: environmentName,
	}.Serialize()
	if err != nil {
		return 0, err
	}
	if err := q.Put(ctx, payload, queue.DeploymentJobTTR); err != nil {
		return 0, err
	}
	notifier.Dispatch(notification.DeploymentQueued(
		deployment.ID, environmentID, repositoryName, environmentName, branch, commit, userID))
	return deployment.ID, nil
}

// fetchPingClient notifies peer deployers; shared across notifications.
var fetchPingClient = resty.New().SetTimeout(3 * time.Second)

// HandleAutodeployNotification reacts to a source push: it enqueues a
// deployment for every auto-deploy environment of the repository tracking the
// pushed branch (when a commit is known), then pings every configured
// deployer URL so each instance refreshes its mirror.
func HandleAutodeployNotification(ctx context.Context, repositoryName, branch, commit string,
	q *queue.Queue, notifier notification.Notifier, deployerURLs []string,
) error {
	log.Debugf("Autodeploy: got notification for repo %s, branch %s", repositoryName, branch)
	envs, err := database.GetFacade().GetEnvironment().ListByRepositoryName(ctx, repositoryName)
	if err != nil {
		return err
	}

	if commit != "" {
		autoDeployAccount, err := database.GetFacade().GetUser().GetUserByUsername(ctx, model.AutoDeployUsername)
		if err != nil {
			return err
		}
		if autoDeployAccount == nil {
			return fmt.Errorf("no '%s' user found, can not auto deploy", model.AutoDeployUsername)
		}
		for _, env := range envs {
			if !env.AutoDeploy || env.DeployBranch != branch {
				continue
			}
			deployID, err := CreateDeploymentJob(ctx, q, notifier,
				repositoryName, env.Name, env.ID, nil, nil, branch, commit, autoDeployAccount.ID)
			if err != nil {
				log.Errorf("Autodeploy: could not queue a job for %s/%s: %v", repositoryName, env.Name, err)
				continue
			}
			log.Infof("Autodeploy: queued job %d for %s/%s", deployID, repositoryName, env.Name)
		}
	}

	for _, env := range envs {
		for _, url := range deployerURLs {
			fetchURL := fmt.Sprintf("%s/api/environments/%d/fetch", strings.TrimRight(url, "/"), env.ID)
			resp, err := fetchPingClient.R().SetContext(ctx).Post(fetchURL)
			if err != nil {
				log.Errorf("Caught error when notifying %s: %v", url, err)
				continue
			}
			log.Infof("Autodeploy: notified %s to fetch objects for %s/%s. Response code: %d",
				fetchURL, repositoryName, env.Name, resp.StatusCode())
		}
	}
	return nil
}
