// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package model

import (
	"fmt"
	"time"
)

const (
	TableNameDeployment = "deploys"
	TableNameLogEntry   = "log_entries"
)

// Deployment statuses. QUEUED is the only state from which the engine starts.
const (
	DeploymentStatusQueued     = "QUEUED"
	DeploymentStatusInit       = "INIT"
	DeploymentStatusPreDeploy  = "PRE_DEPLOY"
	DeploymentStatusDeploy     = "DEPLOY"
	DeploymentStatusPostDeploy = "POST_DEPLOY"
	DeploymentStatusComplete   = "COMPLETE"
	DeploymentStatusFailed     = "FAILED"
)

// IsTerminalDeploymentStatus reports whether no further transition is possible.
func IsTerminalDeploymentStatus(status string) bool {
	return status == DeploymentStatusComplete || status == DeploymentStatusFailed
}

// Log entry severities.
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)

// Deployment records one deployment request and its progress. Repository and
// environment names are denormalized for traceability (the environment may be
// modified or deleted afterwards). At most one of ClusterID/ServerID is set;
// both nil means "all clusters of the environment".
type Deployment struct {
	ID              int64      `gorm:"column:id;primaryKey;autoIncrement:true" json:"id"`
	RepositoryName  string     `gorm:"column:repository_name;not null" json:"repository_name"`
	EnvironmentName string     `gorm:"column:environment_name;not null" json:"environment_name"`
	EnvironmentID   *int64     `gorm:"column:environment_id" json:"environment_id"`
	ClusterID       *int64     `gorm:"column:cluster_id" json:"cluster_id"`
	ServerID        *int64     `gorm:"column:server_id" json:"server_id"`
	Branch          string     `gorm:"column:branch;not null" json:"branch"`
	Commit          string     `gorm:"column:commit;not null" json:"commit"`
	UserID          *int64     `gorm:"column:user_id" json:"user_id"`
	Status          string     `gorm:"column:status;not null" json:"status"`
	QueuedDate      time.Time  `gorm:"column:queued_date;not null" json:"queued_date"`
	DateStartDeploy *time.Time `gorm:"column:date_start_deploy" json:"date_start_deploy"`
	DateEndDeploy   *time.Time `gorm:"column:date_end_deploy" json:"date_end_deploy"`

	Environment *Environment `gorm:"foreignKey:EnvironmentID" json:"environment,omitempty"`
	Cluster     *Cluster     `gorm:"foreignKey:ClusterID" json:"cluster,omitempty"`
	Server      *Server      `gorm:"foreignKey:ServerID" json:"server,omitempty"`
	User        *User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	LogEntries  []*LogEntry  `gorm:"foreignKey:DeployID" json:"log_entries,omitempty"`
}

// TableName returns the table name
func (*Deployment) TableName() string {
	return TableNameDeployment
}

// TargetClusters resolves the clusters this deployment operates on.
// Associations must be preloaded.
func (d *Deployment) TargetClusters() []*Cluster {
	if d.ServerID != nil && d.Server != nil {
		return []*Cluster{OneServerCluster(d.Server)}
	}
	if d.ClusterID != nil && d.Cluster != nil {
		return []*Cluster{d.Cluster}
	}
	if d.Environment != nil {
		return d.Environment.Clusters
	}
	return nil
}

// TargetServers resolves the union of servers over the target clusters.
func (d *Deployment) TargetServers() []*Server {
	var out []*Server
	for _, cluster := range d.TargetClusters() {
		for _, asso := range cluster.Servers {
			if asso.Server != nil {
				out = append(out, asso.Server)
			}
		}
	}
	return out
}

// DeactivatedServers returns the target servers that are deactivated.
func (d *Deployment) DeactivatedServers() []*Server {
	var out []*Server
	for _, s := range d.TargetServers() {
		if !s.Activated {
			out = append(out, s)
		}
	}
	return out
}

// End stamps the terminal status and end date.
func (d *Deployment) End(status string, date time.Time) {
	d.Status = status
	d.DateEndDeploy = &date
}

// LogEntry is one append-only line of a deployment log.
type LogEntry struct {
	ID       int64     `gorm:"column:id;primaryKey;autoIncrement:true" json:"id"`
	DeployID int64     `gorm:"column:deploy_id;not null" json:"deploy_id"`
	Date     time.Time `gorm:"column:date;not null" json:"date"`
	Severity string    `gorm:"column:severity;not null;default:info" json:"severity"`
	Message  string    `gorm:"column:message;not null" json:"message"`
}

// TableName returns the table name
func (*LogEntry) TableName() string {
	return TableNameLogEntry
}

// NewLogEntry creates an info entry stamped now.
func NewLogEntry(message string) *LogEntry {
	return &LogEntry{Date: time.Now().UTC(), Severity: SeverityInfo, Message: message}
}

// NewLogEntryWithSeverity creates an entry with an explicit severity.
func NewLogEntryWithSeverity(message, severity string) *LogEntry {
	return &LogEntry{Date: time.Now().UTC(), Severity: severity, Message: message}
}

// Format renders the entry the way it appears in mails and logs.
func (l *LogEntry) Format() string {
	prefix := ""
	switch l.Severity {
	case SeverityWarn:
		prefix = "warning: "
	case SeverityError:
		prefix = "ERROR: "
	}
	return fmt.Sprintf("[%s] %s%s", l.Date.UTC().Format("2006-01-02 15:04:05"), prefix, l.Message)
}
