// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package serialize renders domain models into the JSON structures exposed by
// the REST and websocket surfaces. Serializers are hand written, one per DTO.
package serialize

import (
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
)

// ISODate renders a nullable time in ISO-8601, or nil.
func ISODate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// LogEntry renders one deployment log line.
func LogEntry(entry *model.LogEntry) map[string]interface{} {
	return map[string]interface{}{
		"id":        entry.ID,
		"deploy_id": entry.DeployID,
		"date":      entry.Date.UTC().Format(time.RFC3339Nano),
		"severity":  entry.Severity,
		"message":   entry.Message,
	}
}

// Deployment renders a deployment row with its log entries.
func Deployment(d *model.Deployment) map[string]interface{} {
	entries := make([]map[string]interface{}, 0, len(d.LogEntries))
	for _, entry := range d.LogEntries {
		entries = append(entries, LogEntry(entry))
	}
	out := map[string]interface{}{
		"id":                d.ID,
		"repository_name":   d.RepositoryName,
		"environment_name":  d.EnvironmentName,
		"environment_id":    d.EnvironmentID,
		"cluster_id":        d.ClusterID,
		"server_id":         d.ServerID,
		"branch":            d.Branch,
		"commit":            d.Commit,
		"user_id":           d.UserID,
		"status":            d.Status,
		"queued_date":       d.QueuedDate.UTC().Format(time.RFC3339Nano),
		"date_start_deploy": ISODate(d.DateStartDeploy),
		"date_end_deploy":   ISODate(d.DateEndDeploy),
		"log_entries":       entries,
	}
	if d.User != nil {
		out["username"] = d.User.Username
	}
	return out
}

// Server renders a server row.
func Server(s *model.Server) map[string]interface{} {
	return map[string]interface{}{
		"id":            s.ID,
		"name":          s.Name,
		"port":          s.Port,
		"activated":     s.Activated,
		"inventory_key": s.InventoryKey,
	}
}

// Cluster renders a cluster with its server associations.
func Cluster(c *model.Cluster) map[string]interface{} {
	servers := make([]map[string]interface{}, 0, len(c.Servers))
	for _, asso := range c.Servers {
		entry := map[string]interface{}{
			"cluster_id":  asso.ClusterID,
			"server_id":   asso.ServerID,
			"haproxy_key": asso.HAProxyKey,
		}
		if asso.Server != nil {
			entry["server"] = Server(asso.Server)
		}
		servers = append(servers, entry)
	}
	return map[string]interface{}{
		"id":            c.ID,
		"name":          c.Name,
		"haproxy_host":  c.HAProxyHost,
		"inventory_key": c.InventoryKey,
		"servers":       servers,
	}
}

// Environment renders an environment row.
func Environment(e *model.Environment) map[string]interface{} {
	clusters := make([]map[string]interface{}, 0, len(e.Clusters))
	for _, cluster := range e.Clusters {
		clusters = append(clusters, Cluster(cluster))
	}
	return map[string]interface{}{
		"id":                          e.ID,
		"repository_id":               e.RepositoryID,
		"name":                        e.Name,
		"target_path":                 e.TargetPath,
		"auto_deploy":                 e.AutoDeploy,
		"remote_user":                 e.RemoteUser,
		"sync_options":                e.SyncOptions,
		"env_order":                   e.EnvOrder,
		"deploy_branch":               e.DeployBranch,
		"fail_deploy_on_failed_tests": e.FailDeployOnFailedTests,
		"clusters":                    clusters,
	}
}

// Repository renders a repository row with its environments.
func Repository(r *model.Repository) map[string]interface{} {
	envs := make([]map[string]interface{}, 0, len(r.Environments))
	for _, env := range r.Environments {
		envs = append(envs, Environment(env))
	}
	return map[string]interface{}{
		"id":                  r.ID,
		"name":                r.Name,
		"deploy_method":       r.DeployMethod,
		"git_server":          r.GitServer,
		"notify_owners_mails": r.NotifyMailsList(),
		"environments":        envs,
	}
}

// User renders a user row with its role names.
func User(u *model.User) map[string]interface{} {
	roles := make([]map[string]interface{}, 0, len(u.Roles))
	for _, role := range u.Roles {
		roles = append(roles, Role(role))
	}
	return map[string]interface{}{
		"id":        u.ID,
		"username":  u.Username,
		"email":     u.Email,
		"accountid": u.AccountID,
		"roles":     roles,
	}
}

// Role renders a role row.
func Role(r *model.Role) map[string]interface{} {
	return map[string]interface{}{
		"id":          r.ID,
		"name":        r.Name,
		"permissions": r.Permissions,
	}
}
