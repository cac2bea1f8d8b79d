// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package deploy

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/haproxy"
	"github.com/AMD-AGI/Primus-Deploy/pkg/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) Dispatch(event *notification.Event) {
	n.events = append(n.events, event.Type)
}

func strPtr(s string) *string { return &s }

func int64Ptr(i int64) *int64 { return &i }

// newTestEngine builds an engine over a mock facade with a deployment view
// already registered.
func newTestEngine(t *testing.T, view *model.Deployment) (*Engine, *database.MockFacade, *recordingNotifier) {
	t.Helper()
	facade := database.NewMockFacade()
	if view.ID == 0 {
		require.NoError(t, facade.DeploymentMock.CreateDeployment(context.Background(), view))
	} else {
		stored := *view
		facade.DeploymentMock.Deployments[view.ID] = &stored
	}
	notifier := &recordingNotifier{}
	engine := &Engine{
		deployID:  view.ID,
		notifier:  notifier,
		facade:    facade,
		view:      view,
		logPrefix: fmt.Sprintf("[deploy %d]", view.ID),
		now:       func() time.Time { return time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC) },
		sleep:     func(time.Duration) {},
	}
	return engine, facade, notifier
}

func testCluster(id int64, name string, serverNames ...string) *model.Cluster {
	cluster := &model.Cluster{
		ID:          id,
		Name:        name,
		HAProxyHost: strPtr("http://haproxy.internal/admin"),
	}
	for i, serverName := range serverNames {
		key := fmt.Sprintf("backend-%s,%s", name, serverName)
		cluster.Servers = append(cluster.Servers, &model.ClusterServerAssociation{
			ClusterID:  id,
			ServerID:   id*10 + int64(i),
			HAProxyKey: &key,
			Server: &model.Server{
				ID:        id*10 + int64(i),
				Name:      serverName,
				Port:      22,
				Activated: true,
			},
		})
	}
	return cluster
}

func TestRunStepSoftErrorFailsTheStep(t *testing.T) {
	view := &model.Deployment{ID: 1, Status: model.DeploymentStatusQueued}
	engine, _, notifier := newTestEngine(t, view)

	err := engine.runStep(context.Background(), Step{
		Description: "failing step",
		Run: func(sc *StepContext) error {
			sc.Log(model.NewLogEntryWithSeverity("something went wrong", model.SeverityError))
			return nil
		},
	})
	var deployErr *DeploymentError
	require.ErrorAs(t, err, &deployErr)
	assert.Contains(t, deployErr.Message, "failing step")
	assert.Contains(t, notifier.events, notification.EventDeploymentStepStart)
	assert.Contains(t, notifier.events, notification.EventDeploymentStepEnd)
}

func TestRunStepAllowErrorsKeepsGoing(t *testing.T) {
	view := &model.Deployment{ID: 1, Status: model.DeploymentStatusQueued}
	engine, _, _ := newTestEngine(t, view)

	err := engine.runStep(context.Background(), Step{
		Description: "tolerated failure",
		AllowErrors: true,
		Run: func(sc *StepContext) error {
			sc.Log(model.NewLogEntryWithSeverity("tests failed", model.SeverityError))
			return nil
		},
	})
	assert.NoError(t, err)
}

func TestRunStepHardErrorWrapsIntoDeploymentError(t *testing.T) {
	view := &model.Deployment{ID: 1, Status: model.DeploymentStatusQueued}
	engine, facade, _ := newTestEngine(t, view)

	err := engine.runStep(context.Background(), Step{
		Description: "exploding step",
		Run: func(*StepContext) error {
			return fmt.Errorf("boom")
		},
	})
	var deployErr *DeploymentError
	require.ErrorAs(t, err, &deployErr)

	// The failure is persisted in the deployment log.
	stored := facade.DeploymentMock.Deployments[1]
	found := false
	for _, entry := range stored.LogEntries {
		if entry.Severity == model.SeverityError {
			found = true
		}
	}
	assert.True(t, found, "an error log entry should have been persisted")
}

func TestRunStepPersistsEntriesAsTheyHappen(t *testing.T) {
	view := &model.Deployment{ID: 1, Status: model.DeploymentStatusQueued}
	engine, facade, _ := newTestEngine(t, view)

	require.NoError(t, engine.runStep(context.Background(), Step{
		Description: "chatty step",
		Run: func(sc *StepContext) error {
			sc.Logf("first")
			sc.Logf("second")
			return nil
		},
	}))
	stored := facade.DeploymentMock.Deployments[1]
	require.Len(t, stored.LogEntries, 3) // "Step: chatty step" + two entries
	assert.Equal(t, "Step: chatty step", stored.LogEntries[0].Message)
	assert.Equal(t, "first", stored.LogEntries[1].Message)
}

func TestBusinessHoursDenial(t *testing.T) {
	engine := &Engine{}
	cases := []struct {
		name    string
		at      time.Time
		allowed bool
	}{
		{"tuesday morning", time.Date(2026, 7, 7, 10, 0, 0, 0, time.UTC), true},
		{"tuesday early", time.Date(2026, 7, 7, 7, 59, 0, 0, time.UTC), false},
		{"tuesday 18:29", time.Date(2026, 7, 7, 18, 29, 0, 0, time.UTC), true},
		{"tuesday 18:30", time.Date(2026, 7, 7, 18, 30, 0, 0, time.UTC), false},
		{"tuesday evening", time.Date(2026, 7, 7, 19, 0, 0, 0, time.UTC), false},
		{"friday 13:59", time.Date(2026, 7, 10, 13, 59, 0, 0, time.UTC), true},
		{"friday 14:00", time.Date(2026, 7, 10, 14, 0, 0, 0, time.UTC), false},
		{"saturday", time.Date(2026, 7, 11, 10, 0, 0, 0, time.UTC), false},
		{"sunday", time.Date(2026, 7, 12, 10, 0, 0, 0, time.UTC), false},
		{"bastille day", time.Date(2026, 7, 14, 10, 0, 0, 0, time.UTC), false},
		{"christmas", time.Date(2026, 12, 25, 10, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine.now = func() time.Time { return tc.at }
			denial := engine.businessHoursDenial("prod")
			if tc.allowed {
				assert.Empty(t, denial)
			} else {
				assert.NotEmpty(t, denial)
			}
		})
	}
}

func queuedView(env *model.Environment) *model.Deployment {
	return &model.Deployment{
		ID:              1,
		RepositoryName:  env.Repository.Name,
		EnvironmentName: env.Name,
		EnvironmentID:   &env.ID,
		Branch:          "master",
		Commit:          "abc123",
		UserID:          int64Ptr(2),
		User:            &model.User{ID: 2, Username: "alice"},
		Status:          model.DeploymentStatusQueued,
		QueuedDate:      time.Date(2026, 7, 1, 11, 0, 0, 0, time.UTC),
		Environment:     env,
	}
}

func testEnvironment() *model.Environment {
	return &model.Environment{
		ID:           4,
		RepositoryID: 3,
		Name:         "prod",
		TargetPath:   "/var/www/app",
		RemoteUser:   "deploy",
		DeployBranch: "master",
		Repository: &model.Repository{
			ID:           3,
			Name:         "org/app",
			DeployMethod: model.DeployMethodInplace,
			GitServer:    "git.example.com",
		},
		Clusters: []*model.Cluster{
			testCluster(1, "c1", "s1", "s2"),
			testCluster(2, "c2", "s3", "s4"),
		},
	}
}

// A stale competing deployment is expired instead of blocking.
func TestCheckServersAvailabilityExpiresStaleDeployments(t *testing.T) {
	env := testEnvironment()
	view := queuedView(env)
	engine, facade, _ := newTestEngine(t, view)

	staleStart := engine.now().Add(-25 * time.Minute)
	stale := &model.Deployment{
		ID:              99,
		RepositoryName:  "org/app",
		EnvironmentName: "prod",
		Status:          model.DeploymentStatusDeploy,
		DateStartDeploy: &staleStart,
	}
	facade.DeploymentMock.Deployments[99] = stale
	facade.DeploymentMock.Conflicting = []*model.Deployment{stale}

	err := engine.runStep(context.Background(), engine.stepCheckServersAvailability("dev"))
	require.NoError(t, err)

	assert.Equal(t, model.DeploymentStatusFailed, stale.Status)
	require.NotEmpty(t, stale.LogEntries)
	assert.Equal(t, "Timeout", stale.LogEntries[len(stale.LogEntries)-1].Message)
}

// A fresh conflict blocks protected environments.
func TestCheckServersAvailabilityBlocksFreshConflictOnProd(t *testing.T) {
	env := testEnvironment()
	view := queuedView(env)
	engine, facade, _ := newTestEngine(t, view)

	freshStart := engine.now().Add(-5 * time.Minute)
	facade.DeploymentMock.Conflicting = []*model.Deployment{{
		ID:              99,
		RepositoryName:  "org/app",
		EnvironmentName: "prod",
		Branch:          "other",
		Commit:          "zzz999",
		Status:          model.DeploymentStatusDeploy,
		DateStartDeploy: &freshStart,
	}}

	err := engine.runStep(context.Background(), engine.stepCheckServersAvailability("prod"))
	var deployErr *DeploymentError
	require.ErrorAs(t, err, &deployErr)
}

// Outside protected environments a fresh conflict blocks only on the same
// branch and commit.
func TestCheckServersAvailabilityBlocksOnlySameRevisionElsewhere(t *testing.T) {
	env := testEnvironment()
	view := queuedView(env)
	engine, facade, _ := newTestEngine(t, view)

	freshStart := engine.now().Add(-5 * time.Minute)
	other := &model.Deployment{
		ID:              99,
		Branch:          "other",
		Commit:          "zzz999",
		Status:          model.DeploymentStatusDeploy,
		DateStartDeploy: &freshStart,
	}
	facade.DeploymentMock.Conflicting = []*model.Deployment{other}
	require.NoError(t, engine.runStep(context.Background(), engine.stepCheckServersAvailability("dev")))

	other.Branch = "master"
	other.Commit = "abc123"
	err := engine.runStep(context.Background(), engine.stepCheckServersAvailability("dev"))
	var deployErr *DeploymentError
	require.ErrorAs(t, err, &deployErr)
}

// haproxyRecorder captures the exact order of cluster actions.
type haproxyRecorder struct {
	calls []string
	// failures maps a call description to an error to inject.
	failures map[string]error
}

func (r *haproxyRecorder) record(host string, keys []string, expectedStatus string, action haproxy.Action) error {
	call := fmt.Sprintf("%s expect=%q keys=%v", action, expectedStatus, keys)
	r.calls = append(r.calls, call)
	if err, ok := r.failures[call]; ok {
		return err
	}
	return nil
}

// Scenario: two clusters, the rolling orchestration drains and refills them
// one at a time, verifying health before every drain.
func TestClusterOrchestrationHappyPath(t *testing.T) {
	env := testEnvironment()
	view := queuedView(env)
	engine, _, _ := newTestEngine(t, view)

	recorder := &haproxyRecorder{}
	engine.clusterAction = recorder.record

	var copied []string
	err := engine.clusterOrchestration(context.Background(), view.TargetClusters(), func(cluster *model.Cluster) error {
		copied = append(copied, cluster.Name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, copied)

	c1Keys := []string{"backend-c1,s1", "backend-c1,s2"}
	c2Keys := []string{"backend-c2,s3", "backend-c2,s4"}
	assert.Equal(t, []string{
		// ensure_clusters_up(old)
		fmt.Sprintf(`ENABLE expect="UP" keys=%v`, c1Keys),
		fmt.Sprintf(`ENABLE expect="UP" keys=%v`, c2Keys),
		// disable(c1), copy, enable(c1)
		fmt.Sprintf(`DISABLE expect="" keys=%v`, c1Keys),
		fmt.Sprintf(`ENABLE expect="" keys=%v`, c1Keys),
		// ensure_up(new=[c1]); no old cluster remains to batch-disable
		fmt.Sprintf(`ENABLE expect="UP" keys=%v`, c1Keys),
		// disable(c2), copy, enable(c2)
		fmt.Sprintf(`DISABLE expect="" keys=%v`, c2Keys),
		fmt.Sprintf(`ENABLE expect="" keys=%v`, c2Keys),
	}, recorder.calls)
}

// An unexpected HAProxy state during the precheck fails the deployment before
// any cluster is mutated.
func TestClusterOrchestrationPrecheckFailure(t *testing.T) {
	env := testEnvironment()
	view := queuedView(env)
	engine, _, _ := newTestEngine(t, view)

	c1Keys := []string{"backend-c1,s1", "backend-c1,s2"}
	recorder := &haproxyRecorder{failures: map[string]error{
		fmt.Sprintf(`ENABLE expect="UP" keys=%v`, c1Keys): &haproxy.UnexpectedServerStatusError{Reason: "s1 down"},
	}}
	engine.clusterAction = recorder.record

	err := engine.clusterOrchestration(context.Background(), view.TargetClusters(), func(*model.Cluster) error {
		t.Fatal("no cluster should have been copied")
		return nil
	})
	var deployErr *DeploymentError
	require.ErrorAs(t, err, &deployErr)
	assert.Len(t, recorder.calls, 1)
}

// A single-server target wraps the server in a synthetic cluster with no
// HAProxy host, so the orchestration performs no drain at all.
func TestClusterOrchestrationSingleServerSkipsHAProxy(t *testing.T) {
	env := testEnvironment()
	view := queuedView(env)
	server := env.Clusters[0].Servers[0].Server
	view.ServerID = &server.ID
	view.Server = server
	engine, _, _ := newTestEngine(t, view)

	recorder := &haproxyRecorder{}
	engine.clusterAction = recorder.record

	var copied []string
	err := engine.clusterOrchestration(context.Background(), view.TargetClusters(), func(cluster *model.Cluster) error {
		copied = append(copied, cluster.Name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, copied)
	assert.Empty(t, recorder.calls)
}

func TestCheckConfigurationRejectsNonQueuedStatus(t *testing.T) {
	env := testEnvironment()
	view := queuedView(env)
	view.Status = model.DeploymentStatusDeploy
	engine, _, _ := newTestEngine(t, view)

	err := engine.runStep(context.Background(), engine.stepCheckConfiguration())
	var deployErr *DeploymentError
	require.ErrorAs(t, err, &deployErr)
}

func TestCheckConfigurationRequiresTargetServers(t *testing.T) {
	env := testEnvironment()
	env.Clusters = nil
	view := queuedView(env)
	engine, _, _ := newTestEngine(t, view)

	err := engine.runStep(context.Background(), engine.stepCheckConfiguration())
	var deployErr *DeploymentError
	require.ErrorAs(t, err, &deployErr)
}

func TestCheckConfigurationStampsStartDate(t *testing.T) {
	env := testEnvironment()
	view := queuedView(env)
	engine, _, _ := newTestEngine(t, view)

	require.NoError(t, engine.runStep(context.Background(), engine.stepCheckConfiguration()))
	require.NotNil(t, view.DateStartDeploy)
	assert.Equal(t, engine.now().UTC(), *view.DateStartDeploy)
}

func TestReleasePathComputation(t *testing.T) {
	env := testEnvironment()
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "/var/www/app", env.ReleasePath("master", "abc123def456", now))

	env.Repository.DeployMethod = model.DeployMethodSymlink
	assert.Equal(t, "/var/www/org/app_releases/20260701_master_abc123de",
		env.ReleasePath("master", "abc123def456", now))
	assert.Equal(t, "/var/www", env.RemoteRepoPath())
	assert.Equal(t, "app", env.ProductionFolder())
}
