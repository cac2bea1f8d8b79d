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

// UserFacadeInterface defines the database operation interface for User and Role
type UserFacadeInterface interface {
	CreateUser(ctx context.Context, user *model.User) error
	UpdateUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, id int64) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	// GetUserByUsername loads the user with roles and the default user's roles.
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserBySessionToken(ctx context.Context, token string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	// IssueSessionToken stamps a fresh session token on the user row.
	IssueSessionToken(ctx context.Context, userID int64, token string, issuedAt time.Time) error
	ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error

	CreateRole(ctx context.Context, role *model.Role) error
	UpdateRole(ctx context.Context, role *model.Role) error
	DeleteRole(ctx context.Context, id int64) error
	GetRole(ctx context.Context, id int64) (*model.Role, error)
	ListRoles(ctx context.Context) ([]*model.Role, error)
}

// UserFacade implements UserFacadeInterface
type UserFacade struct {
	BaseFacade
}

// NewUserFacade creates a new UserFacade instance
func NewUserFacade() UserFacadeInterface {
	return &UserFacade{}
}

func (f *UserFacade) CreateUser(ctx context.Context, user *model.User) error {
	return f.getDB().WithContext(ctx).Create(user).Error
}

func (f *UserFacade) UpdateUser(ctx context.Context, user *model.User) error {
	return f.getDB().WithContext(ctx).Save(user).Error
}

func (f *UserFacade) DeleteUser(ctx context.Context, id int64) error {
	return f.getDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM users_roles WHERE user_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.User{}, id).Error
	})
}

func (f *UserFacade) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := f.getDB().WithContext(ctx).Preload("Roles").First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return f.withDefaultRoles(ctx, &user)
}

func (f *UserFacade) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := f.getDB().WithContext(ctx).Preload("Roles").
		Where("username = ?", username).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return f.withDefaultRoles(ctx, &user)
}

func (f *UserFacade) GetUserBySessionToken(ctx context.Context, token string) (*model.User, error) {
	var user model.User
	err := f.getDB().WithContext(ctx).Preload("Roles").
		Where("session_token = ?", token).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return f.withDefaultRoles(ctx, &user)
}

// withDefaultRoles attaches the "default" user roles to any other account.
func (f *UserFacade) withDefaultRoles(ctx context.Context, user *model.User) (*model.User, error) {
	if user.Username == model.DefaultUsername {
		return user, nil
	}
	var defaultUser model.User
	err := f.getDB().WithContext(ctx).Preload("Roles").
		Where("username = ?", model.DefaultUsername).
		First(&defaultUser).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user, nil
		}
		return nil, err
	}
	user.DefaultRoles = defaultUser.Roles
	return user, nil
}

func (f *UserFacade) ListUsers(ctx context.Context) ([]*model.User, error) {
	var users []*model.User
	err := f.getDB().WithContext(ctx).Preload("Roles").Find(&users).Error
	return users, err
}

func (f *UserFacade) IssueSessionToken(ctx context.Context, userID int64, token string, issuedAt time.Time) error {
	return f.getDB().WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"session_token":   token,
			"token_issued_at": issuedAt,
		}).Error
}

func (f *UserFacade) ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	return f.getDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM users_roles WHERE user_id = ?", userID).Error; err != nil {
			return err
		}
		for _, roleID := range roleIDs {
			if err := tx.Exec("INSERT INTO users_roles (user_id, role_id) VALUES (?, ?)", userID, roleID).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (f *UserFacade) CreateRole(ctx context.Context, role *model.Role) error {
	return f.getDB().WithContext(ctx).Create(role).Error
}

func (f *UserFacade) UpdateRole(ctx context.Context, role *model.Role) error {
	return f.getDB().WithContext(ctx).Save(role).Error
}

func (f *UserFacade) DeleteRole(ctx context.Context, id int64) error {
	return f.getDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM users_roles WHERE role_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Role{}, id).Error
	})
}

func (f *UserFacade) GetRole(ctx context.Context, id int64) (*model.Role, error) {
	var role model.Role
	err := f.getDB().WithContext(ctx).First(&role, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}

func (f *UserFacade) ListRoles(ctx context.Context) ([]*model.Role, error) {
	var roles []*model.Role
	err := f.getDB().WithContext(ctx).Find(&roles).Error
	return roles, err
}
