// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package database

import (
	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/sql"
)

// AutoMigrate creates or updates every table of the deployer schema.
func AutoMigrate() error {
	db := sql.GetDefaultDB()
	return db.AutoMigrate(
		&model.Repository{},
		&model.Environment{},
		&model.Cluster{},
		&model.Server{},
		&model.ClusterServerAssociation{},
		&model.Deployment{},
		&model.LogEntry{},
		&model.User{},
		&model.Role{},
		&model.DeploymentJob{},
	)
}
