// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package worker

import (
	"context"
	"testing"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/deploy"
	"github.com/AMD-AGI/Primus-Deploy/pkg/executil"
	"github.com/AMD-AGI/Primus-Deploy/pkg/gitutil"
	"github.com/AMD-AGI/Primus-Deploy/pkg/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func auditorFixture(t *testing.T) (*CheckReleasesWorker, *health.Registry, *database.MockFacade) {
	t.Helper()
	facade := database.NewMockFacade()
	repo := &model.Repository{ID: 1, Name: "org/app"}
	require.NoError(t, facade.RepositoryMock.CreateRepository(context.Background(), repo))

	env := &model.Environment{
		ID:           4,
		RepositoryID: 1,
		Name:         "prod",
		TargetPath:   "/var/www/app",
		RemoteUser:   "deploy",
		Repository:   repo,
		Clusters: []*model.Cluster{{
			ID:   1,
			Name: "c1",
			Servers: []*model.ClusterServerAssociation{
				{ServerID: 10, Server: &model.Server{ID: 10, Name: "s1", Activated: true}},
				{ServerID: 11, Server: &model.Server{ID: 11, Name: "s2", Activated: true}},
			},
		}},
	}
	require.NoError(t, facade.EnvironmentMock.CreateEnvironment(context.Background(), env))

	registry := health.NewRegistry()
	w := NewCheckReleasesWorker(time.Minute, nil, registry)
	w.facade = facade
	w.sleep = func(time.Duration) {}
	w.now = func() time.Time { return time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC) }
	return w, registry, facade
}

func releaseFor(commit string, age time.Duration, now time.Time) deploy.ReleaseStatus {
	return deploy.ReleaseStatusFromRelease(&gitutil.Release{
		Branch:         "master",
		Commit:         commit,
		DeploymentDate: now.Add(-age),
	})
}

// Two servers carrying different commits, both older than 30 minutes, flag
// the environment as drifted.
func TestSweepFlagsDrift(t *testing.T) {
	w, registry, _ := auditorFixture(t)
	now := w.now()
	w.probe = func(host executil.Host, _ string, _ time.Duration) deploy.ReleaseStatus {
		if host.Name == "s1" {
			return releaseFor("c1", time.Hour, now)
		}
		return releaseFor("c2", time.Hour, now)
	}
	w.Sweep(context.Background())

	status := registry.GetStatus()
	assert.True(t, status.Degraded)
	require.Len(t, status.Errors[HealthKeyReleases], 1)
	assert.Contains(t, status.Errors[HealthKeyReleases][0], "env:[prod]")
}

// Matching commits across servers keep the health key clean.
func TestSweepHealthyWhenCommitsMatch(t *testing.T) {
	w, registry, _ := auditorFixture(t)
	now := w.now()
	w.probe = func(executil.Host, string, time.Duration) deploy.ReleaseStatus {
		return releaseFor("c1", time.Hour, now)
	}
	w.Sweep(context.Background())
	assert.False(t, registry.GetStatus().Degraded)
}

// Releases younger than 30 minutes are still settling and never compared.
func TestSweepIgnoresFreshReleases(t *testing.T) {
	w, registry, _ := auditorFixture(t)
	now := w.now()
	calls := 0
	w.probe = func(host executil.Host, _ string, _ time.Duration) deploy.ReleaseStatus {
		calls++
		if host.Name == "s1" {
			return releaseFor("c1", 10*time.Minute, now)
		}
		return releaseFor("c2", 10*time.Minute, now)
	}
	w.Sweep(context.Background())
	assert.Equal(t, 2, calls)
	assert.False(t, registry.GetStatus().Degraded)
}

// ssh exit code 255 is a transport failure: skipped without degradation.
func TestSweepSkipsSSHTransportFailures(t *testing.T) {
	w, registry, _ := auditorFixture(t)
	w.probe = func(executil.Host, string, time.Duration) deploy.ReleaseStatus {
		return deploy.ReleaseStatusFromError("connection refused", 255)
	}
	w.Sweep(context.Background())
	assert.False(t, registry.GetStatus().Degraded)
}

// Any other probe failure is retried once, then recorded as degraded.
func TestSweepRetriesThenDegrades(t *testing.T) {
	w, registry, _ := auditorFixture(t)
	attempts := map[string]int{}
	w.probe = func(host executil.Host, _ string, _ time.Duration) deploy.ReleaseStatus {
		attempts[host.Name]++
		return deploy.ReleaseStatusFromError("no such file", 1)
	}
	w.Sweep(context.Background())

	assert.Equal(t, 2, attempts["s1"])
	assert.Equal(t, 2, attempts["s2"])
	status := registry.GetStatus()
	assert.True(t, status.Degraded)
	assert.Len(t, status.Errors[HealthKeyReleases], 2)
}

// Deactivated servers are not probed at all.
func TestSweepSkipsDeactivatedServers(t *testing.T) {
	w, registry, facade := auditorFixture(t)
	env := facade.EnvironmentMock.Environments[4]
	env.Clusters[0].Servers[1].Server.Activated = false

	var probed []string
	now := w.now()
	w.probe = func(host executil.Host, _ string, _ time.Duration) deploy.ReleaseStatus {
		probed = append(probed, host.Name)
		return releaseFor("c1", time.Hour, now)
	}
	w.Sweep(context.Background())
	assert.Equal(t, []string{"s1"}, probed)
	assert.False(t, registry.GetStatus().Degraded)
}

// Ignored environments are skipped entirely.
func TestSweepHonorsIgnoreList(t *testing.T) {
	w, registry, _ := auditorFixture(t)
	w.ignoreEnvs = map[string]struct{}{"prod": {}}
	w.probe = func(executil.Host, string, time.Duration) deploy.ReleaseStatus {
		t.Fatal("no probe expected for an ignored environment")
		return deploy.ReleaseStatus{}
	}
	w.Sweep(context.Background())
	assert.False(t, registry.GetStatus().Degraded)
}
