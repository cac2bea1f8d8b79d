// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package database

import (
	"context"
	"errors"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"gorm.io/gorm"
)

// EnvironmentFacadeInterface defines the database operation interface for Environment
type EnvironmentFacadeInterface interface {
	CreateEnvironment(ctx context.Context, env *model.Environment) error
	UpdateEnvironment(ctx context.Context, env *model.Environment) error
	DeleteEnvironment(ctx context.Context, id int64) error
	// GetEnvironment loads an environment with its repository and cluster tree.
	GetEnvironment(ctx context.Context, id int64) (*model.Environment, error)
	ListEnvironments(ctx context.Context, ids []int64) ([]*model.Environment, error)
	ListByRepository(ctx context.Context, repositoryID int64) ([]*model.Environment, error)
	ListByRepositoryName(ctx context.Context, repositoryName string) ([]*model.Environment, error)
	// ListParents returns environments of the same repository one rung below
	// on the promotion ladder, restricted to the same deploy branch.
	ListParents(ctx context.Context, repositoryID int64, envOrder int, deployBranch string) ([]*model.Environment, error)
}

// EnvironmentFacade implements EnvironmentFacadeInterface
type EnvironmentFacade struct {
	BaseFacade
}

// NewEnvironmentFacade creates a new EnvironmentFacade instance
func NewEnvironmentFacade() EnvironmentFacadeInterface {
	return &EnvironmentFacade{}
}

func (f *EnvironmentFacade) CreateEnvironment(ctx context.Context, env *model.Environment) error {
	return f.getDB().WithContext(ctx).Create(env).Error
}

func (f *EnvironmentFacade) UpdateEnvironment(ctx context.Context, env *model.Environment) error {
	return f.getDB().WithContext(ctx).Save(env).Error
}

func (f *EnvironmentFacade) DeleteEnvironment(ctx context.Context, id int64) error {
	return f.getDB().WithContext(ctx).Delete(&model.Environment{}, id).Error
}

func (f *EnvironmentFacade) GetEnvironment(ctx context.Context, id int64) (*model.Environment, error) {
	var env model.Environment
	err := f.getDB().WithContext(ctx).
		Preload("Repository").
		Preload("Clusters.Servers.Server").
		First(&env, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &env, nil
}

func (f *EnvironmentFacade) ListEnvironments(ctx context.Context, ids []int64) ([]*model.Environment, error) {
	db := f.getDB().WithContext(ctx).
		Preload("Repository").
		Preload("Clusters.Servers.Server")
	if ids != nil {
		db = db.Where("id IN ?", ids)
	}
	var envs []*model.Environment
	err := db.Find(&envs).Error
	return envs, err
}

func (f *EnvironmentFacade) ListByRepository(ctx context.Context, repositoryID int64) ([]*model.Environment, error) {
	var envs []*model.Environment
	err := f.getDB().WithContext(ctx).
		Preload("Repository").
		Preload("Clusters.Servers.Server").
		Where("repository_id = ?", repositoryID).
		Find(&envs).Error
	return envs, err
}

func (f *EnvironmentFacade) ListByRepositoryName(ctx context.Context, repositoryName string) ([]*model.Environment, error) {
	var envs []*model.Environment
	err := f.getDB().WithContext(ctx).
		Preload("Repository").
		Preload("Clusters.Servers.Server").
		Joins("JOIN repositories ON repositories.id = environments.repository_id").
		Where("repositories.name = ?", repositoryName).
		Find(&envs).Error
	return envs, err
}

func (f *EnvironmentFacade) ListParents(ctx context.Context, repositoryID int64, envOrder int, deployBranch string) ([]*model.Environment, error) {
	var envs []*model.Environment
	err := f.getDB().WithContext(ctx).
		Where("repository_id = ?", repositoryID).
		Where("env_order = ?", envOrder-1).
		Where("deploy_branch = ?", deployBranch).
		Find(&envs).Error
	return envs, err
}
