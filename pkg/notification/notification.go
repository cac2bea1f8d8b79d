// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package notification defines the deployer event bus: typed events emitted
// by the engine and workers, fanned out to a configurable set of sinks.
package notification

import (
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
)

// Event types.
const (
	EventDeploymentStart               = "deployment.start"
	EventDeploymentConfigurationLoaded = "deployment.configuration_loaded"
	EventDeploymentEnd                 = "deployment.end"
	EventDeploymentStepStart           = "deployment.step_start"
	EventDeploymentStepEnd             = "deployment.step_end"
	EventDeploymentStepRelease         = "deployment.step.release"
	EventDeploymentQueued              = "deployment.queued"
	EventCommitsFetched                = "commits.fetched"
	EventDeployerStarted               = "deployer.start"
	EventDeployerStopped               = "deployer.stop"
)

// Event carries a type and an untyped payload; sinks pick what they need.
type Event struct {
	Type    string
	Payload map[string]interface{}
}

// Notifier is a sink of events.
type Notifier interface {
	Dispatch(event *Event)
}

func newEvent(eventType string, payload map[string]interface{}) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{Type: eventType, Payload: payload}
}

// DeploymentStart announces the engine picked up a deployment.
func DeploymentStart(deployment *model.Deployment) *Event {
	return newEvent(EventDeploymentStart, map[string]interface{}{
		"deploy_id": deployment.ID,
	})
}

// DeploymentConfigurationLoaded announces a validated configuration.
func DeploymentConfigurationLoaded(deployment *model.Deployment) *Event {
	return newEvent(EventDeploymentConfigurationLoaded, map[string]interface{}{
		"environment_id": derefEnvironmentID(deployment),
		"deployment":     deployment,
	})
}

// DeploymentEnd announces a terminal state, with optional screenshot paths.
func DeploymentEnd(deployment *model.Deployment, screenshotFiles []string) *Event {
	if screenshotFiles == nil {
		screenshotFiles = []string{}
	}
	return newEvent(EventDeploymentEnd, map[string]interface{}{
		"environment_id":   derefEnvironmentID(deployment),
		"deployment":       deployment,
		"deploy_id":        deployment.ID,
		"screenshot_files": screenshotFiles,
	})
}

// DeploymentStepStart announces a step beginning.
func DeploymentStepStart(deployment *model.Deployment, stepName string) *Event {
	return newEvent(EventDeploymentStepStart, map[string]interface{}{
		"environment_id": derefEnvironmentID(deployment),
		"deployment":     deployment,
		"step_name":      stepName,
	})
}

// DeploymentStepEnd announces a step completion.
func DeploymentStepEnd(deployment *model.Deployment, stepName string, stepFailed bool) *Event {
	return newEvent(EventDeploymentStepEnd, map[string]interface{}{
		"environment_id": derefEnvironmentID(deployment),
		"deployment":     deployment,
		"step_name":      stepName,
		"step_failed":    stepFailed,
	})
}

// DeploymentQueued announces a freshly enqueued deployment.
func DeploymentQueued(deployID, environmentID int64, repositoryName, environmentName, branch, commit string, userID int64) *Event {
	return newEvent(EventDeploymentQueued, map[string]interface{}{
		"deploy_id":        deployID,
		"environment_id":   environmentID,
		"environment_name": environmentName,
		"repository_name":  repositoryName,
		"branch":           branch,
		"commit":           commit,
		"user_id":          userID,
	})
}

// ReleasedOnServer announces one server now carries the new release.
func ReleasedOnServer(deployment *model.Deployment, server *model.Server, releaseDate time.Time, branch, commit string) *Event {
	return newEvent(EventDeploymentStepRelease, map[string]interface{}{
		"environment_id": derefEnvironmentID(deployment),
		"deployment":     deployment,
		"server":         server,
		"release_info": map[string]interface{}{
			"commit":       commit,
			"release_date": releaseDate,
			"branch":       branch,
		},
	})
}

// CommitsFetched announces a mirror refresh. A non-zero deploymentID means the
// fetch happened during a deployment.
func CommitsFetched(environmentID int64, localRepoPath, gitServer, repository, deployBranch string, deploymentID int64) *Event {
	return newEvent(EventCommitsFetched, map[string]interface{}{
		"environment_id":  environmentID,
		"local_repo_path": localRepoPath,
		"deployment_id":   deploymentID,
		"repository":      repository,
		"git_server":      gitServer,
		"deploy_branch":   deployBranch,
	})
}

// DeployerStarted announces process startup.
func DeployerStarted() *Event {
	return newEvent(EventDeployerStarted, nil)
}

// DeployerStopped announces process shutdown.
func DeployerStopped() *Event {
	return newEvent(EventDeployerStopped, nil)
}

func derefEnvironmentID(deployment *model.Deployment) int64 {
	if deployment.EnvironmentID == nil {
		return 0
	}
	return *deployment.EnvironmentID
}

// DeploymentFromEvent extracts the deployment payload, or nil.
func DeploymentFromEvent(event *Event) *model.Deployment {
	if raw, ok := event.Payload["deployment"]; ok {
		if deployment, ok := raw.(*model.Deployment); ok {
			return deployment
		}
	}
	return nil
}
