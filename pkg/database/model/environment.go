// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package model

import (
	"fmt"
	"path"
	"time"
)

const TableNameEnvironment = "environments"

// Environment is a deployment target of a repository (one rung of the
// promotion ladder). (repository_id, name) is unique.
type Environment struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement:true" json:"id"`
	RepositoryID int64  `gorm:"column:repository_id;not null;uniqueIndex:unique_environment_repository,priority:1" json:"repository_id"`
	Name         string `gorm:"column:name;not null;uniqueIndex:unique_environment_repository,priority:2" json:"name"`
	TargetPath   string `gorm:"column:target_path;not null" json:"target_path"`
	AutoDeploy   bool   `gorm:"column:auto_deploy;not null;default:false" json:"auto_deploy"`
	RemoteUser   string `gorm:"column:remote_user;not null;default:deploy" json:"remote_user"`
	SyncOptions  string `gorm:"column:sync_options;not null;default:''" json:"sync_options"`
	EnvOrder     int    `gorm:"column:env_order;not null;default:0" json:"env_order"`
	DeployBranch string `gorm:"column:deploy_branch;not null;default:''" json:"deploy_branch"`
	FailDeployOnFailedTests bool `gorm:"column:fail_deploy_on_failed_tests;not null;default:true" json:"fail_deploy_on_failed_tests"`

	Repository *Repository `gorm:"foreignKey:RepositoryID" json:"repository,omitempty"`
	Clusters   []*Cluster  `gorm:"many2many:environments_clusters;" json:"clusters,omitempty"`
}

// TableName returns the table name
func (*Environment) TableName() string {
	return TableNameEnvironment
}

// Servers returns every server of every cluster of the environment.
// Clusters and their associations must be preloaded.
func (e *Environment) Servers() []*Server {
	var out []*Server
	for _, cluster := range e.Clusters {
		for _, asso := range cluster.Servers {
			if asso.Server != nil {
				out = append(out, asso.Server)
			}
		}
	}
	return out
}

// LocalRepoDirectoryName is the mirror directory name for this environment,
// derived from "<repo>_<env>" with unsafe characters replaced.
func (e *Environment) LocalRepoDirectoryName() string {
	raw := fmt.Sprintf("%s_%s", e.Repository.Name, e.Name)
	out := make([]rune, 0, len(raw))
	for _, c := range raw {
		if isPathSafe(c) {
			out = append(out, c)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}

func isPathSafe(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_' || c == '(' || c == ')':
		return true
	}
	return false
}

// ReleasePath returns the remote directory that receives the code for the
// given revision. Under inplace it is the target path itself; under symlink
// it is a timestamped sibling under "<repo>_releases".
func (e *Environment) ReleasePath(branch, commit string, now time.Time) string {
	if e.Repository.DeployMethod == DeployMethodInplace {
		return e.TargetPath
	}
	shortCommit := commit
	if len(shortCommit) > 8 {
		shortCommit = shortCommit[:8]
	}
	releasesFolder := fmt.Sprintf("%s_releases", e.Repository.Name)
	return path.Join(
		e.RemoteRepoPath(),
		releasesFolder,
		fmt.Sprintf("%s_%s_%s", now.UTC().Format("20060102"), branch, shortCommit),
	)
}

// RemoteRepoPath is the parent directory of the target path.
func (e *Environment) RemoteRepoPath() string {
	return path.Dir(path.Clean(e.TargetPath))
}

// ProductionFolder is the last element of the target path.
func (e *Environment) ProductionFolder() string {
	return path.Base(path.Clean(e.TargetPath))
}
