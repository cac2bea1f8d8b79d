// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package model

import (
	"strings"
)

const TableNameRepository = "repositories"

// Deploy methods. Inplace overwrites the target path directly; symlink
// materializes a timestamped release directory and atomically swaps a link.
const (
	DeployMethodInplace = "inplace"
	DeployMethodSymlink = "symlink"
)

// Repository is a deployable source project.
type Repository struct {
	ID                int64  `gorm:"column:id;primaryKey;autoIncrement:true" json:"id"`
	Name              string `gorm:"column:name;uniqueIndex;not null" json:"name"`
	DeployMethod      string `gorm:"column:deploy_method;not null;default:inplace" json:"deploy_method"`
	GitServer         string `gorm:"column:git_server;not null" json:"git_server"`
	NotifyOwnersMails string `gorm:"column:notify_owners_mails;not null;default:''" json:"notify_owners_mails"`

	Environments []*Environment `gorm:"foreignKey:RepositoryID" json:"environments,omitempty"`
}

// TableName returns the table name
func (*Repository) TableName() string {
	return TableNameRepository
}

// NotifyMailsList splits the stored comma separated mail list.
func (r *Repository) NotifyMailsList() []string {
	var out []string
	for _, s := range strings.Split(r.NotifyOwnersMails, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
