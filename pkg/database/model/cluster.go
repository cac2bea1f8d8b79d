// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package model

import (
	"time"
)

const (
	TableNameCluster                  = "clusters"
	TableNameClusterServerAssociation = "clusters_servers"
	TableNameServer                   = "servers"
)

// Cluster groups servers that are drained and released together.
type Cluster struct {
	ID          int64      `gorm:"column:id;primaryKey;autoIncrement:true" json:"id"`
	Name        string     `gorm:"column:name;uniqueIndex;not null" json:"name"`
	HAProxyHost *string    `gorm:"column:haproxy_host" json:"haproxy_host"`
	// InventoryKey is the join key with the upstream inventory; unique when set.
	InventoryKey *string    `gorm:"column:inventory_key;uniqueIndex" json:"inventory_key"`
	UpdatedAt    *time.Time `gorm:"column:updated_at" json:"updated_at"`

	Servers []*ClusterServerAssociation `gorm:"foreignKey:ClusterID" json:"servers,omitempty"`
}

// TableName returns the table name
func (*Cluster) TableName() string {
	return TableNameCluster
}

// ActivatedServers returns the servers of the cluster that are activated.
// Associations must be preloaded.
func (c *Cluster) ActivatedServers() []*Server {
	var out []*Server
	for _, asso := range c.Servers {
		if asso.Server != nil && asso.Server.Activated {
			out = append(out, asso.Server)
		}
	}
	return out
}

// HAProxyKeys returns the haproxy key of every association, nil entries included
// so that callers can detect misconfigured servers.
func (c *Cluster) HAProxyKeys() []*string {
	keys := make([]*string, 0, len(c.Servers))
	for _, asso := range c.Servers {
		keys = append(keys, asso.HAProxyKey)
	}
	return keys
}

// OneServerCluster wraps a single server into a synthetic cluster with no
// HAProxy host, used when an operator targets one server directly.
func OneServerCluster(server *Server) *Cluster {
	return &Cluster{
		Name:    server.Name,
		Servers: []*ClusterServerAssociation{{Server: server, ServerID: server.ID}},
	}
}

// ClusterServerAssociation links a server into a cluster along with its
// HAProxy key ("<backend>,<server>"). A nil key means the server is not drained.
type ClusterServerAssociation struct {
	ClusterID  int64   `gorm:"column:cluster_id;primaryKey" json:"cluster_id"`
	ServerID   int64   `gorm:"column:server_id;primaryKey" json:"server_id"`
	HAProxyKey *string `gorm:"column:haproxy_key" json:"haproxy_key"`

	Server *Server `gorm:"foreignKey:ServerID" json:"server,omitempty"`
}

// TableName returns the table name
func (*ClusterServerAssociation) TableName() string {
	return TableNameClusterServerAssociation
}

// Server is a deployment target host.
type Server struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement:true" json:"id"`
	Name      string `gorm:"column:name;uniqueIndex;not null" json:"name"`
	Port      int    `gorm:"column:port;not null;default:22" json:"port"`
	Activated bool   `gorm:"column:activated;not null;default:true" json:"activated"`
	InventoryKey *string `gorm:"column:inventory_key;uniqueIndex" json:"inventory_key"`
}

// TableName returns the table name
func (*Server) TableName() string {
	return TableNameServer
}
