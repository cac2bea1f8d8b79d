// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package database

import (
	"context"
	"errors"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"gorm.io/gorm"
)

// ClusterFacadeInterface defines the database operation interface for Cluster and Server
type ClusterFacadeInterface interface {
	CreateCluster(ctx context.Context, cluster *model.Cluster) error
	UpdateCluster(ctx context.Context, cluster *model.Cluster) error
	DeleteCluster(ctx context.Context, id int64) error
	GetCluster(ctx context.Context, id int64) (*model.Cluster, error)
	GetClusterByInventoryKey(ctx context.Context, key string) (*model.Cluster, error)
	ListClusters(ctx context.Context) ([]*model.Cluster, error)
	// ListClustersWithInventoryKeyNotIn returns clusters carrying an inventory
	// key absent from the given set.
	ListClustersWithInventoryKeyNotIn(ctx context.Context, keys []string) ([]*model.Cluster, error)
	// ReplaceClusterServers swaps the server association set of a cluster.
	ReplaceClusterServers(ctx context.Context, clusterID int64, assos []*model.ClusterServerAssociation) error
	// SoftDeleteCluster renames the cluster to "old-<name>" and clears its
	// inventory key and update stamp; environment links are left untouched.
	SoftDeleteCluster(ctx context.Context, clusterID int64) error

	CreateServer(ctx context.Context, server *model.Server) error
	UpdateServer(ctx context.Context, server *model.Server) error
	DeleteServer(ctx context.Context, id int64) error
	GetServer(ctx context.Context, id int64) (*model.Server, error)
	GetServerByName(ctx context.Context, name string) (*model.Server, error)
	GetServerByInventoryKey(ctx context.Context, key string) (*model.Server, error)
	ListServers(ctx context.Context) ([]*model.Server, error)
	// ListEnvironmentsByServer returns the environments containing the server.
	ListEnvironmentsByServer(ctx context.Context, serverID int64) ([]*model.Environment, error)
}

// ClusterFacade implements ClusterFacadeInterface
type ClusterFacade struct {
	BaseFacade
}

// NewClusterFacade creates a new ClusterFacade instance
func NewClusterFacade() ClusterFacadeInterface {
	return &ClusterFacade{}
}

func (f *ClusterFacade) CreateCluster(ctx context.Context, cluster *model.Cluster) error {
	return f.getDB().WithContext(ctx).Create(cluster).Error
}

func (f *ClusterFacade) UpdateCluster(ctx context.Context, cluster *model.Cluster) error {
	return f.getDB().WithContext(ctx).Save(cluster).Error
}

func (f *ClusterFacade) DeleteCluster(ctx context.Context, id int64) error {
	return f.getDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cluster_id = ?", id).Delete(&model.ClusterServerAssociation{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM environments_clusters WHERE cluster_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Cluster{}, id).Error
	})
}

func (f *ClusterFacade) GetCluster(ctx context.Context, id int64) (*model.Cluster, error) {
	var cluster model.Cluster
	err := f.getDB().WithContext(ctx).Preload("Servers.Server").First(&cluster, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cluster, nil
}

func (f *ClusterFacade) GetClusterByInventoryKey(ctx context.Context, key string) (*model.Cluster, error) {
	var cluster model.Cluster
	err := f.getDB().WithContext(ctx).Preload("Servers.Server").
		Where("inventory_key = ?", key).
		First(&cluster).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cluster, nil
}

func (f *ClusterFacade) ListClusters(ctx context.Context) ([]*model.Cluster, error) {
	var clusters []*model.Cluster
	err := f.getDB().WithContext(ctx).Preload("Servers.Server").Find(&clusters).Error
	return clusters, err
}

func (f *ClusterFacade) ListClustersWithInventoryKeyNotIn(ctx context.Context, keys []string) ([]*model.Cluster, error) {
	db := f.getDB().WithContext(ctx).Where("inventory_key IS NOT NULL")
	if len(keys) > 0 {
		db = db.Where("inventory_key NOT IN ?", keys)
	}
	var clusters []*model.Cluster
	err := db.Find(&clusters).Error
	return clusters, err
}

func (f *ClusterFacade) ReplaceClusterServers(ctx context.Context, clusterID int64, assos []*model.ClusterServerAssociation) error {
	return f.getDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cluster_id = ?", clusterID).Delete(&model.ClusterServerAssociation{}).Error; err != nil {
			return err
		}
		for _, asso := range assos {
			asso.ClusterID = clusterID
			if err := tx.Create(asso).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (f *ClusterFacade) SoftDeleteCluster(ctx context.Context, clusterID int64) error {
	var cluster model.Cluster
	if err := f.getDB().WithContext(ctx).First(&cluster, clusterID).Error; err != nil {
		return err
	}
	return f.getDB().WithContext(ctx).Model(&model.Cluster{}).
		Where("id = ?", clusterID).
		Updates(map[string]interface{}{
			"name":          "old-" + cluster.Name,
			"inventory_key": nil,
			"updated_at":    nil,
		}).Error
}

func (f *ClusterFacade) CreateServer(ctx context.Context, server *model.Server) error {
	return f.getDB().WithContext(ctx).Create(server).Error
}

func (f *ClusterFacade) UpdateServer(ctx context.Context, server *model.Server) error {
	return f.getDB().WithContext(ctx).Save(server).Error
}

func (f *ClusterFacade) DeleteServer(ctx context.Context, id int64) error {
	return f.getDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("server_id = ?", id).Delete(&model.ClusterServerAssociation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Server{}, id).Error
	})
}

func (f *ClusterFacade) GetServer(ctx context.Context, id int64) (*model.Server, error) {
	var server model.Server
	err := f.getDB().WithContext(ctx).First(&server, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &server, nil
}

func (f *ClusterFacade) GetServerByName(ctx context.Context, name string) (*model.Server, error) {
	var server model.Server
	err := f.getDB().WithContext(ctx).Where("name = ?", name).First(&server).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &server, nil
}

func (f *ClusterFacade) GetServerByInventoryKey(ctx context.Context, key string) (*model.Server, error) {
	var server model.Server
	err := f.getDB().WithContext(ctx).Where("inventory_key = ?", key).First(&server).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &server, nil
}

func (f *ClusterFacade) ListServers(ctx context.Context) ([]*model.Server, error) {
	var servers []*model.Server
	err := f.getDB().WithContext(ctx).Find(&servers).Error
	return servers, err
}

func (f *ClusterFacade) ListEnvironmentsByServer(ctx context.Context, serverID int64) ([]*model.Environment, error) {
	var envs []*model.Environment
	err := f.getDB().WithContext(ctx).
		Preload("Repository").
		Preload("Clusters.Servers.Server").
		Joins("JOIN environments_clusters ON environments_clusters.environment_id = environments.id").
		Joins("JOIN clusters_servers ON clusters_servers.cluster_id = environments_clusters.cluster_id").
		Where("clusters_servers.server_id = ?", serverID).
		Distinct("environments.*").
		Find(&envs).Error
	return envs, err
}
