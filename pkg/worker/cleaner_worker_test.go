// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/gitutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanerRemovesUnusedMirrors(t *testing.T) {
	gitutil.LocksFolder = t.TempDir()
	baseReposPath := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(baseReposPath, "org_app_prod"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(baseReposPath, "org_app_stale"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(baseReposPath, "orphan_dir"), 0o755))

	mock := withMockFacade(t)
	ctx := context.Background()
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	repo := &model.Repository{ID: 1, Name: "org/app"}
	recent := &model.Environment{ID: 10, RepositoryID: 1, Name: "prod", Repository: repo}
	stale := &model.Environment{ID: 11, RepositoryID: 1, Name: "stale", Repository: repo}
	require.NoError(t, mock.EnvironmentMock.CreateEnvironment(ctx, recent))
	require.NoError(t, mock.EnvironmentMock.CreateEnvironment(ctx, stale))

	recentID, staleID := recent.ID, stale.ID
	require.NoError(t, mock.DeploymentMock.CreateDeployment(ctx, &model.Deployment{
		EnvironmentID: &recentID,
		QueuedDate:    now.Add(-24 * time.Hour),
		Status:        model.DeploymentStatusComplete,
	}))
	require.NoError(t, mock.DeploymentMock.CreateDeployment(ctx, &model.Deployment{
		EnvironmentID: &staleID,
		QueuedDate:    now.Add(-40 * 24 * time.Hour),
		Status:        model.DeploymentStatusComplete,
	}))

	w := NewCleanerWorker(baseReposPath, 20*24*time.Hour)
	w.facade = mock
	w.now = func() time.Time { return now }
	require.NoError(t, w.Cleanup(ctx))

	_, err := os.Stat(filepath.Join(baseReposPath, "org_app_prod"))
	assert.NoError(t, err, "the recently deployed mirror must stay")
	_, err = os.Stat(filepath.Join(baseReposPath, "org_app_stale"))
	assert.True(t, os.IsNotExist(err), "the stale mirror should be gone")
	_, err = os.Stat(filepath.Join(baseReposPath, "orphan_dir"))
	assert.True(t, os.IsNotExist(err), "directories with no environment should be gone")
}
