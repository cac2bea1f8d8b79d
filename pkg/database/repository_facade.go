// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package database

import (
	"context"
	"errors"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"gorm.io/gorm"
)

// RepositoryFacadeInterface defines the database operation interface for Repository
type RepositoryFacadeInterface interface {
	CreateRepository(ctx context.Context, repo *model.Repository) error
	UpdateRepository(ctx context.Context, repo *model.Repository) error
	DeleteRepository(ctx context.Context, id int64) error
	GetRepository(ctx context.Context, id int64) (*model.Repository, error)
	GetRepositoryByName(ctx context.Context, name string) (*model.Repository, error)
	// ListRepositories restricted to the given environment ids; nil means all.
	ListRepositories(ctx context.Context, environmentIDs []int64) ([]*model.Repository, error)
}

// RepositoryFacade implements RepositoryFacadeInterface
type RepositoryFacade struct {
	BaseFacade
}

// NewRepositoryFacade creates a new RepositoryFacade instance
func NewRepositoryFacade() RepositoryFacadeInterface {
	return &RepositoryFacade{}
}

func (f *RepositoryFacade) CreateRepository(ctx context.Context, repo *model.Repository) error {
	return f.getDB().WithContext(ctx).Create(repo).Error
}

func (f *RepositoryFacade) UpdateRepository(ctx context.Context, repo *model.Repository) error {
	return f.getDB().WithContext(ctx).Save(repo).Error
}

func (f *RepositoryFacade) DeleteRepository(ctx context.Context, id int64) error {
	return f.getDB().WithContext(ctx).Delete(&model.Repository{}, id).Error
}

func (f *RepositoryFacade) GetRepository(ctx context.Context, id int64) (*model.Repository, error) {
	var repo model.Repository
	err := f.getDB().WithContext(ctx).Preload("Environments").First(&repo, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &repo, nil
}

func (f *RepositoryFacade) GetRepositoryByName(ctx context.Context, name string) (*model.Repository, error) {
	var repo model.Repository
	err := f.getDB().WithContext(ctx).Preload("Environments").
		Where("name = ?", name).
		First(&repo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &repo, nil
}

func (f *RepositoryFacade) ListRepositories(ctx context.Context, environmentIDs []int64) ([]*model.Repository, error) {
	db := f.getDB().WithContext(ctx).Preload("Environments")
	if environmentIDs != nil {
		db = db.
			Joins("JOIN environments ON environments.repository_id = repositories.id").
			Where("environments.id IN ?", environmentIDs).
			Distinct("repositories.*")
	}
	var repos []*model.Repository
	err := db.Find(&repos).Error
	return repos, err
}
