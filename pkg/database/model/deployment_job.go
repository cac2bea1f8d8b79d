// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package model

import (
	"time"
)

const TableNameDeploymentJob = "deployment_jobs"

// Deployment job states. A reserved job whose visibility deadline passed is
// redelivered as if ready.
const (
	JobStateReady    = "ready"
	JobStateReserved = "reserved"
	JobStateDelayed  = "delayed"
)

// DeploymentJob is one entry of a durable FIFO tube. Jobs are reserved with a
// visibility timeout (TTR); a job not deleted before the deadline goes back to
// the ready state and its release counter is bumped.
type DeploymentJob struct {
	ID          int64      `gorm:"column:id;primaryKey;autoIncrement:true" json:"id"`
	Tube        string     `gorm:"column:tube;index;not null" json:"tube"`
	Payload     string     `gorm:"column:payload;not null" json:"payload"`
	State       string     `gorm:"column:state;not null;default:ready" json:"state"`
	TTRSeconds  int        `gorm:"column:ttr_seconds;not null" json:"ttr_seconds"`
	ReservedAt  *time.Time `gorm:"column:reserved_at" json:"reserved_at"`
	ReservedBy  string     `gorm:"column:reserved_by" json:"reserved_by"`
	// Releases counts how many times the job went back to ready after a
	// reservation (explicit release or TTR expiry).
	Releases  int        `gorm:"column:releases;not null;default:0" json:"releases"`
	ReadyAt   time.Time  `gorm:"column:ready_at;not null" json:"ready_at"`
	CreatedAt time.Time  `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName returns the table name
func (*DeploymentJob) TableName() string {
	return TableNameDeploymentJob
}
