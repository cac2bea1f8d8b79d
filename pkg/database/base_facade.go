// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package database

import (
	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
	"github.com/AMD-AGI/Primus-Deploy/pkg/sql"
	"gorm.io/gorm"
)

// BaseFacade is the base structure for all Facades, providing DB access capability
type BaseFacade struct{}

// getDB retrieves the default database connection
func (f *BaseFacade) getDB() *gorm.DB {
	db := sql.GetDefaultDB()
	if db == nil {
		log.Errorf("getDB: database connection is nil")
	}
	return db
}
