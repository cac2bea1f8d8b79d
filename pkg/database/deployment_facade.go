// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package database

import (
	"context"
	"errors"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"gorm.io/gorm"
)

// DeploymentFacadeInterface defines the database operation interface for Deployment
type DeploymentFacadeInterface interface {
	CreateDeployment(ctx context.Context, deployment *model.Deployment) error
	// GetDeployment loads a deployment with its environment tree
	// (repository, clusters, servers), user roles and log entries.
	GetDeployment(ctx context.Context, id int64) (*model.Deployment, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	SetDateStartDeploy(ctx context.Context, id int64, date time.Time) error
	EndDeployment(ctx context.Context, id int64, status string, date time.Time) error
	AppendLogEntry(ctx context.Context, entry *model.LogEntry) error

	// ListConflicting returns non-terminal deployments other than excludeID
	// touching any of the given servers, whether targeted directly, via a
	// cluster, or via a full-environment deployment.
	ListConflicting(ctx context.Context, excludeID int64, serverIDs []int64) ([]*model.Deployment, error)
	ListActiveByEnvironment(ctx context.Context, environmentID int64) ([]*model.Deployment, error)
	ListRecent(ctx context.Context, environmentIDs []int64, limit int) ([]*model.Deployment, error)
	ListByRepository(ctx context.Context, repositoryName string, environmentIDs []int64, limit int) ([]*model.Deployment, error)
	// DistinctCompleteCommits returns the subset of commits having a COMPLETE
	// deployment in any of the given environments.
	DistinctCompleteCommits(ctx context.Context, environmentIDs []int64, commits []string) ([]string, error)
	// MaxQueuedDates returns environment_id -> max(queued_date) over all deployments.
	MaxQueuedDates(ctx context.Context) (map[int64]time.Time, error)
}

// DeploymentFacade implements DeploymentFacadeInterface
type DeploymentFacade struct {
	BaseFacade
}

// NewDeploymentFacade creates a new DeploymentFacade instance
func NewDeploymentFacade() DeploymentFacadeInterface {
	return &DeploymentFacade{}
}

func (f *DeploymentFacade) CreateDeployment(ctx context.Context, deployment *model.Deployment) error {
	return f.getDB().WithContext(ctx).Create(deployment).Error
}

func (f *DeploymentFacade) GetDeployment(ctx context.Context, id int64) (*model.Deployment, error) {
	var deployment model.Deployment
	err := f.getDB().WithContext(ctx).
		Preload("Environment.Repository").
		Preload("Environment.Clusters.Servers.Server").
		Preload("Cluster.Servers.Server").
		Preload("Server").
		Preload("User.Roles").
		Preload("LogEntries", func(db *gorm.DB) *gorm.DB {
			return db.Order("log_entries.date ASC, log_entries.id ASC")
		}).
		First(&deployment, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &deployment, nil
}

func (f *DeploymentFacade) UpdateStatus(ctx context.Context, id int64, status string) error {
	return f.getDB().WithContext(ctx).Model(&model.Deployment{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (f *DeploymentFacade) SetDateStartDeploy(ctx context.Context, id int64, date time.Time) error {
	return f.getDB().WithContext(ctx).Model(&model.Deployment{}).
		Where("id = ?", id).
		Update("date_start_deploy", date).Error
}

func (f *DeploymentFacade) EndDeployment(ctx context.Context, id int64, status string, date time.Time) error {
	return f.getDB().WithContext(ctx).Model(&model.Deployment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          status,
			"date_end_deploy": date,
		}).Error
}

func (f *DeploymentFacade) AppendLogEntry(ctx context.Context, entry *model.LogEntry) error {
	return f.getDB().WithContext(ctx).Create(entry).Error
}

func (f *DeploymentFacade) ListConflicting(ctx context.Context, excludeID int64, serverIDs []int64) ([]*model.Deployment, error) {
	if len(serverIDs) == 0 {
		return nil, nil
	}
	db := f.getDB().WithContext(ctx)

	// Deployments targeting one of the servers directly.
	direct := db.Model(&model.Deployment{}).Select("deploys.id").
		Where("deploys.server_id IN ?", serverIDs)

	// Deployments targeting a cluster containing one of the servers.
	byCluster := db.Model(&model.Deployment{}).Select("deploys.id").
		Joins("JOIN clusters_servers ON clusters_servers.cluster_id = deploys.cluster_id").
		Where("clusters_servers.server_id IN ?", serverIDs)

	// Full-environment deployments whose environment includes one of the servers.
	byEnvironment := db.Model(&model.Deployment{}).Select("deploys.id").
		Where("deploys.server_id IS NULL AND deploys.cluster_id IS NULL").
		Joins("JOIN environments_clusters ON environments_clusters.environment_id = deploys.environment_id").
		Joins("JOIN clusters_servers ON clusters_servers.cluster_id = environments_clusters.cluster_id").
		Where("clusters_servers.server_id IN ?", serverIDs)

	var deployments []*model.Deployment
	err := db.
		Where("deploys.id IN (?) OR deploys.id IN (?) OR deploys.id IN (?)", direct, byCluster, byEnvironment).
		Where("deploys.status NOT IN ?", []string{model.DeploymentStatusComplete, model.DeploymentStatusFailed}).
		Where("deploys.id <> ?", excludeID).
		Find(&deployments).Error
	return deployments, err
}

func (f *DeploymentFacade) ListActiveByEnvironment(ctx context.Context, environmentID int64) ([]*model.Deployment, error) {
	var deployments []*model.Deployment
	err := f.getDB().WithContext(ctx).
		Where("environment_id = ?", environmentID).
		Where("status NOT IN ?", []string{model.DeploymentStatusComplete, model.DeploymentStatusFailed}).
		Find(&deployments).Error
	return deployments, err
}

func (f *DeploymentFacade) ListRecent(ctx context.Context, environmentIDs []int64, limit int) ([]*model.Deployment, error) {
	db := f.getDB().WithContext(ctx).
		Preload("LogEntries").
		Preload("User").
		Order("date_start_deploy DESC").
		Limit(limit)
	if environmentIDs != nil {
		db = db.Where("environment_id IN ?", environmentIDs)
	}
	var deployments []*model.Deployment
	err := db.Find(&deployments).Error
	return deployments, err
}

func (f *DeploymentFacade) ListByRepository(ctx context.Context, repositoryName string, environmentIDs []int64, limit int) ([]*model.Deployment, error) {
	db := f.getDB().WithContext(ctx).
		Preload("User").
		Where("repository_name = ?", repositoryName).
		Order("date_start_deploy DESC").
		Limit(limit)
	if environmentIDs != nil {
		db = db.Where("environment_id IN ?", environmentIDs)
	}
	var deployments []*model.Deployment
	err := db.Find(&deployments).Error
	return deployments, err
}

func (f *DeploymentFacade) DistinctCompleteCommits(ctx context.Context, environmentIDs []int64, commits []string) ([]string, error) {
	if len(environmentIDs) == 0 || len(commits) == 0 {
		return nil, nil
	}
	var out []string
	err := f.getDB().WithContext(ctx).Model(&model.Deployment{}).
		Distinct("commit").
		Where("commit IN ?", commits).
		Where("status = ?", model.DeploymentStatusComplete).
		Where("environment_id IN ?", environmentIDs).
		Pluck("commit", &out).Error
	return out, err
}

func (f *DeploymentFacade) MaxQueuedDates(ctx context.Context) (map[int64]time.Time, error) {
	type row struct {
		EnvironmentID int64
		MaxQueuedDate time.Time
	}
	var rows []row
	err := f.getDB().WithContext(ctx).Model(&model.Deployment{}).
		Select("environment_id, MAX(queued_date) AS max_queued_date").
		Where("environment_id IS NOT NULL").
		Group("environment_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int64]time.Time, len(rows))
	for _, r := range rows {
		out[r.EnvironmentID] = r.MaxQueuedDate
	}
	return out, nil
}
