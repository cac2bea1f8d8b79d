// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/notification"
	"github.com/AMD-AGI/Primus-Deploy/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingNotifier struct {
	mu     sync.Mutex
	events []*notification.Event
}

func (n *capturingNotifier) Dispatch(event *notification.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *capturingNotifier) byType(eventType string) []*notification.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []*notification.Event
	for _, event := range n.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

func withMockFacade(t *testing.T) *database.MockFacade {
	t.Helper()
	mock := database.NewMockFacade()
	previous := database.GetFacade()
	database.SetFacade(mock)
	t.Cleanup(func() { database.SetFacade(previous) })
	return mock
}

func TestCreateDeploymentJobPersistsRowAndJob(t *testing.T) {
	mock := withMockFacade(t)
	q := queue.New(queue.DeploymentJobsTube, mock.JobMock)
	notifier := &capturingNotifier{}

	deployID, err := CreateDeploymentJob(context.Background(), q, notifier,
		"org/app", "prod", 4, nil, nil, "master", "abc123", 2)
	require.NoError(t, err)

	deployment := mock.DeploymentMock.Deployments[deployID]
	require.NotNil(t, deployment)
	assert.Equal(t, model.DeploymentStatusQueued, deployment.Status)
	assert.Equal(t, "org/app", deployment.RepositoryName)

	require.Len(t, mock.JobMock.Jobs, 1)
	for _, job := range mock.JobMock.Jobs {
		payload, err := queue.DeserializePayload(job.Payload)
		require.NoError(t, err)
		assert.Equal(t, deployID, payload.DeployID)
	}
	assert.Len(t, notifier.byType(notification.EventDeploymentQueued), 1)
}

// Scenario: a push notification queues a job per auto-deploy environment
// tracking the branch and pings every peer deployer to fetch.
func TestHandleAutodeployNotification(t *testing.T) {
	mock := withMockFacade(t)
	ctx := context.Background()

	require.NoError(t, mock.UserMock.CreateUser(ctx, &model.User{Username: model.AutoDeployUsername}))

	repo := &model.Repository{ID: 1, Name: "org/app", GitServer: "git.example.com"}
	envs := []*model.Environment{
		{ID: 10, RepositoryID: 1, Name: "prod", AutoDeploy: true, DeployBranch: "main", Repository: repo},
		{ID: 11, RepositoryID: 1, Name: "beta", AutoDeploy: true, DeployBranch: "main", Repository: repo},
		{ID: 12, RepositoryID: 1, Name: "dev", AutoDeploy: false, DeployBranch: "main", Repository: repo},
		{ID: 13, RepositoryID: 1, Name: "legacy", AutoDeploy: true, DeployBranch: "old", Repository: repo},
	}
	for _, env := range envs {
		require.NoError(t, mock.EnvironmentMock.CreateEnvironment(ctx, env))
	}

	var mu sync.Mutex
	var fetched []string
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		fetched = append(fetched, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer peer.Close()

	q := queue.New(queue.DeploymentJobsTube, mock.JobMock)
	notifier := &capturingNotifier{}
	err := HandleAutodeployNotification(ctx, "org/app", "main", "def456", q, notifier, []string{peer.URL})
	require.NoError(t, err)

	// Two environments auto-deploy the pushed branch.
	assert.Len(t, mock.JobMock.Jobs, 2)
	assert.Len(t, notifier.byType(notification.EventDeploymentQueued), 2)

	// Every environment of the repo got a fetch ping on the peer.
	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{
		"/api/environments/10/fetch",
		"/api/environments/11/fetch",
		"/api/environments/12/fetch",
		"/api/environments/13/fetch",
	}, fetched)
}

// Without a commit, nothing is deployed but mirrors still refresh.
func TestHandleAutodeployNotificationFetchOnly(t *testing.T) {
	mock := withMockFacade(t)
	ctx := context.Background()
	repo := &model.Repository{ID: 1, Name: "org/app"}
	require.NoError(t, mock.EnvironmentMock.CreateEnvironment(ctx,
		&model.Environment{ID: 10, RepositoryID: 1, Name: "prod", AutoDeploy: true, DeployBranch: "main", Repository: repo}))

	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer peer.Close()

	q := queue.New(queue.DeploymentJobsTube, mock.JobMock)
	err := HandleAutodeployNotification(ctx, "org/app", "main", "", q, &capturingNotifier{}, []string{peer.URL})
	require.NoError(t, err)
	assert.Empty(t, mock.JobMock.Jobs)
}
