// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package model

import (
	"time"
)

const (
	TableNameUser = "users"
	TableNameRole = "roles"
)

// DefaultUsername is the fallback account applied to unauthenticated requests.
// Its roles are also granted to every other user.
const DefaultUsername = "default"

// AutoDeployUsername owns deployments triggered by push notifications.
const AutoDeployUsername = "auto"

// User is an account able to authenticate and deploy.
type User struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement:true" json:"id"`
	Username      string     `gorm:"column:username;uniqueIndex;not null" json:"username"`
	Email         string     `gorm:"column:email;not null" json:"email"`
	SessionToken  *string    `gorm:"column:session_token" json:"-"`
	TokenIssuedAt *time.Time `gorm:"column:token_issued_at" json:"-"`
	// AuthToken is the bcrypt hash of the long-lived API token, if any.
	AuthToken *string `gorm:"column:auth_token" json:"-"`
	AccountID int64   `gorm:"column:accountid;not null;default:0" json:"accountid"`

	Roles []*Role `gorm:"many2many:users_roles;" json:"roles,omitempty"`
	// DefaultRoles carries the roles of the "default" user, loaded by the
	// user facade so permission checks can include them.
	DefaultRoles []*Role `gorm:"-" json:"-"`
}

// TableName returns the table name
func (*User) TableName() string {
	return TableNameUser
}

// AllRoles returns the user's own roles plus the default user's roles.
func (u *User) AllRoles() []*Role {
	out := make([]*Role, 0, len(u.Roles)+len(u.DefaultRoles))
	out = append(out, u.Roles...)
	out = append(out, u.DefaultRoles...)
	return out
}

// Role names a set of permissions, stored as a JSON blob.
type Role struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement:true" json:"id"`
	Name string `gorm:"column:name;uniqueIndex;not null" json:"name"`
	// Permissions is the JSON representation understood by the
	// authorization package. Simple and dirty.
	Permissions string `gorm:"column:permissions;not null" json:"permissions"`
}

// TableName returns the table name
func (*Role) TableName() string {
	return TableNameRole
}
