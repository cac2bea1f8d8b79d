// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package inventory reconciles the local cluster and server model with the
// upstream inventory service.
package inventory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// Cluster statuses returned by the inventory.
const (
	ClusterStatusExisting = "existing"
	ClusterStatusDeleted  = "deleted"
)

// ClusterDTO is the inventory's view of a cluster.
type ClusterDTO struct {
	InventoryKey string     `json:"inventory_key"`
	Name         string     `json:"name"`
	UpdatedAt    *time.Time `json:"updated_at"`
}

// ServerDTO is the inventory's view of a server.
type ServerDTO struct {
	InventoryKey string `json:"inventory_key"`
	Name         string `json:"name"`
	Activated    bool   `json:"activated"`
}

// Host is the inventory API consumed by the sync workers.
type Host interface {
	// GetLastUpdate returns the inventory-side fingerprint of the cluster set.
	GetLastUpdate(ctx context.Context) (string, error)
	// GetClusters returns every cluster key known to the inventory.
	GetClusters(ctx context.Context) ([]string, error)
	// GetCluster returns the status and content of one cluster.
	GetCluster(ctx context.Context, key string) (string, *ClusterDTO, []ServerDTO, error)
}

// Client is the HTTP implementation of Host.
type Client struct {
	baseURL    string
	httpClient *resty.Client
}

// NewClient creates a client for the inventory API host.
func NewClient(apiHost string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(apiHost, "/"),
		httpClient: resty.New().SetTimeout(15 * time.Second),
	}
}

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(result).
		Get(c.baseURL + path)
	if err != nil {
		return errors.Wrapf(err, "inventory GET %s", path)
	}
	if resp.StatusCode() != http.StatusOK {
		return errors.Errorf("inventory GET %s: unexpected status %d", path, resp.StatusCode())
	}
	return nil
}

// GetLastUpdate implements Host.
func (c *Client) GetLastUpdate(ctx context.Context) (string, error) {
	var out struct {
		LastUpdate string `json:"last_update"`
	}
	if err := c.get(ctx, "/clusters/last_update", &out); err != nil {
		return "", err
	}
	return out.LastUpdate, nil
}

// GetClusters implements Host.
func (c *Client) GetClusters(ctx context.Context) ([]string, error) {
	var out struct {
		Clusters []string `json:"clusters"`
	}
	if err := c.get(ctx, "/clusters", &out); err != nil {
		return nil, err
	}
	return out.Clusters, nil
}

// GetCluster implements Host.
func (c *Client) GetCluster(ctx context.Context, key string) (string, *ClusterDTO, []ServerDTO, error) {
	var out struct {
		Status  string      `json:"status"`
		Cluster *ClusterDTO `json:"cluster"`
		Servers []ServerDTO `json:"servers"`
	}
	if err := c.get(ctx, "/clusters/"+key, &out); err != nil {
		return "", nil, nil, err
	}
	return out.Status, out.Cluster, out.Servers, nil
}

// Fingerprint hashes the (inventory_key, updated_at) pairs of the local
// clusters; comparing it with the inventory's last_update detects divergence.
func Fingerprint(clusters []*model.Cluster) string {
	pairs := make([]string, 0, len(clusters))
	for _, cluster := range clusters {
		if cluster.InventoryKey == nil {
			continue
		}
		updatedAt := ""
		if cluster.UpdatedAt != nil {
			updatedAt = cluster.UpdatedAt.UTC().Format(time.RFC3339)
		}
		pairs = append(pairs, fmt.Sprintf("%s:%s", *cluster.InventoryKey, updatedAt))
	}
	sort.Strings(pairs)
	sum := sha256.Sum256([]byte(strings.Join(pairs, "\n")))
	return hex.EncodeToString(sum[:])
}
