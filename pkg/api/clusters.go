// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package api

import (
	"net/http"

	"github.com/AMD-AGI/Primus-Deploy/pkg/authorization"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/serialize"
	"github.com/gin-gonic/gin"
)

func (s *Server) listClusters(c *gin.Context) {
	if !enforce(c, authorization.Default()) {
		return
	}
	clusters, err := database.GetFacade().GetCluster().ListClusters(c.Request.Context())
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]map[string]interface{}, 0, len(clusters))
	for _, cluster := range clusters {
		out = append(out, serialize.Cluster(cluster))
	}
	c.JSON(http.StatusOK, gin.H{"clusters": out})
}

type clusterBody struct {
	Name        string `json:"name"`
	HAProxyHost string `json:"haproxy_host"`
	Servers     []struct {
		ServerID   int64  `json:"server_id"`
		HAProxyKey string `json:"haproxy_key"`
	} `json:"servers"`
}

func (body clusterBody) haproxyHost() *string {
	if body.HAProxyHost == "" {
		return nil
	}
	host := body.HAProxyHost
	return &host
}

func (body clusterBody) associations() []*model.ClusterServerAssociation {
	var assos []*model.ClusterServerAssociation
	for _, server := range body.Servers {
		asso := &model.ClusterServerAssociation{ServerID: server.ServerID}
		if server.HAProxyKey != "" {
			key := server.HAProxyKey
			asso.HAProxyKey = &key
		}
		assos = append(assos, asso)
	}
	return assos
}

func (s *Server) postCluster(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	var body clusterBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" {
		abortError(c, http.StatusBadRequest, "malformed cluster")
		return
	}
	facade := database.GetFacade().GetCluster()
	for _, server := range body.Servers {
		existing, err := facade.GetServer(c.Request.Context(), server.ServerID)
		if err != nil {
			abortError(c, http.StatusInternalServerError, err.Error())
			return
		}
		if existing == nil {
			abortError(c, http.StatusBadRequest, "unknown server")
			return
		}
	}
	cluster := &model.Cluster{Name: body.Name, HAProxyHost: body.haproxyHost()}
	if err := facade.CreateCluster(c.Request.Context(), cluster); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if err := facade.ReplaceClusterServers(c.Request.Context(), cluster.ID, body.associations()); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	created, err := facade.GetCluster(c.Request.Context(), cluster.ID)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"cluster": serialize.Cluster(created)})
}

func (s *Server) putCluster(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	facade := database.GetFacade().GetCluster()
	cluster, err := facade.GetCluster(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if cluster == nil {
		abortError(c, http.StatusNotFound, "cluster not found")
		return
	}
	var body clusterBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortError(c, http.StatusBadRequest, "malformed cluster")
		return
	}
	for _, server := range body.Servers {
		existing, err := facade.GetServer(c.Request.Context(), server.ServerID)
		if err != nil {
			abortError(c, http.StatusInternalServerError, err.Error())
			return
		}
		if existing == nil {
			abortError(c, http.StatusNotFound, "unknown server")
			return
		}
	}
	cluster.Name = body.Name
	cluster.HAProxyHost = body.haproxyHost()
	if err := facade.UpdateCluster(c.Request.Context(), cluster); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if err := facade.ReplaceClusterServers(c.Request.Context(), cluster.ID, body.associations()); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	updated, err := facade.GetCluster(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"cluster": serialize.Cluster(updated)})
}

func (s *Server) deleteCluster(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	facade := database.GetFacade().GetCluster()
	cluster, err := facade.GetCluster(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if cluster == nil {
		abortError(c, http.StatusNotFound, "cluster not found")
		return
	}
	if err := facade.DeleteCluster(c.Request.Context(), id); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"cluster": serialize.Cluster(cluster)})
}
