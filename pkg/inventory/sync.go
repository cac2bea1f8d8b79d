// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package inventory

import (
	"context"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
	"github.com/pkg/errors"
)

// upsertServer finds the server by inventory key, falling back to a name
// match for servers pre-dating inventory keys, and updates it with the
// inventory data; a brand new server is created.
func upsertServer(ctx context.Context, facade database.ClusterFacadeInterface, dto ServerDTO) (*model.Server, error) {
	server, err := facade.GetServerByInventoryKey(ctx, dto.InventoryKey)
	if err != nil {
		return nil, err
	}
	if server == nil {
		// Transition path: match by name to avoid duplicating servers that
		// exist in the legacy database without an inventory key.
		server, err = facade.GetServerByName(ctx, dto.Name)
		if err != nil {
			return nil, err
		}
	}
	if server == nil {
		key := dto.InventoryKey
		server = &model.Server{
			Name:         dto.Name,
			Port:         22,
			Activated:    dto.Activated,
			InventoryKey: &key,
		}
		if err := facade.CreateServer(ctx, server); err != nil {
			return nil, err
		}
		return server, nil
	}
	key := dto.InventoryKey
	server.Name = dto.Name
	server.Activated = dto.Activated
	server.InventoryKey = &key
	if err := facade.UpdateServer(ctx, server); err != nil {
		return nil, err
	}
	return server, nil
}

// AddCluster creates a cluster from inventory data and links its servers.
func AddCluster(ctx context.Context, clusterDTO *ClusterDTO, serverDTOs []ServerDTO) error {
	facade := database.GetFacade().GetCluster()
	key := clusterDTO.InventoryKey
	cluster := &model.Cluster{
		Name:         clusterDTO.Name,
		InventoryKey: &key,
		UpdatedAt:    clusterDTO.UpdatedAt,
	}
	if err := facade.CreateCluster(ctx, cluster); err != nil {
		return err
	}
	var assos []*model.ClusterServerAssociation
	for _, dto := range serverDTOs {
		server, err := upsertServer(ctx, facade, dto)
		if err != nil {
			return err
		}
		assos = append(assos, &model.ClusterServerAssociation{ServerID: server.ID})
		log.Infof("server %s added in cluster %s", server.Name, cluster.Name)
	}
	return facade.ReplaceClusterServers(ctx, cluster.ID, assos)
}

// UpdateCluster reconciles an existing cluster with inventory data: cluster
// fields are refreshed, servers are matched by inventory key (name fallback),
// vanished servers are detached.
func UpdateCluster(ctx context.Context, clusterDTO *ClusterDTO, serverDTOs []ServerDTO) error {
	facade := database.GetFacade().GetCluster()
	cluster, err := facade.GetClusterByInventoryKey(ctx, clusterDTO.InventoryKey)
	if err != nil {
		return err
	}
	if cluster == nil {
		return errors.Errorf("no cluster found with inventory key %s", clusterDTO.InventoryKey)
	}
	cluster.Name = clusterDTO.Name
	cluster.UpdatedAt = clusterDTO.UpdatedAt
	if err := facade.UpdateCluster(ctx, cluster); err != nil {
		return err
	}

	// Keep the haproxy key of associations that survive the reconciliation.
	oldAssos := map[int64]*model.ClusterServerAssociation{}
	oldNames := map[int64]string{}
	for _, asso := range cluster.Servers {
		oldAssos[asso.ServerID] = asso
		if asso.Server != nil {
			oldNames[asso.ServerID] = asso.Server.Name
		}
	}

	var assos []*model.ClusterServerAssociation
	seen := map[int64]struct{}{}
	for _, dto := range serverDTOs {
		server, err := upsertServer(ctx, facade, dto)
		if err != nil {
			return err
		}
		seen[server.ID] = struct{}{}
		asso := &model.ClusterServerAssociation{ServerID: server.ID}
		if old, ok := oldAssos[server.ID]; ok {
			asso.HAProxyKey = old.HAProxyKey
		} else {
			log.Infof("server %s added in cluster %s", server.Name, cluster.Name)
		}
		assos = append(assos, asso)
	}
	for serverID, name := range oldNames {
		if _, stillThere := seen[serverID]; !stillThere {
			log.Infof("server %s was removed from cluster %s", name, cluster.Name)
		}
	}
	return facade.ReplaceClusterServers(ctx, cluster.ID, assos)
}

// DeleteCluster soft-deletes the cluster: renamed to "old-<name>", inventory
// key and update stamp cleared. Environment links are preserved so operators
// can audit what the cluster was serving.
func DeleteCluster(ctx context.Context, clusterKey string) (string, error) {
	facade := database.GetFacade().GetCluster()
	cluster, err := facade.GetClusterByInventoryKey(ctx, clusterKey)
	if err != nil {
		return "", err
	}
	if cluster == nil {
		return "handled: already deleted (maybe by another instance of the deployer)", nil
	}
	if err := facade.SoftDeleteCluster(ctx, cluster.ID); err != nil {
		return "", err
	}
	return "deleted", nil
}
