// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package api

import (
	"net/http"
	"strings"

	"github.com/AMD-AGI/Primus-Deploy/pkg/authorization"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/serialize"
	"github.com/gin-gonic/gin"
)

func (s *Server) listRecentDeployments(c *gin.Context) {
	if !enforce(c, authorization.Default()) {
		return
	}
	deployments, err := database.GetFacade().GetDeployment().ListRecent(
		c.Request.Context(), readableEnvironmentIDs(c), 70)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]map[string]interface{}, 0, len(deployments))
	for _, deployment := range deployments {
		out = append(out, serialize.Deployment(deployment))
	}
	c.JSON(http.StatusOK, gin.H{"deployments": out})
}

func (s *Server) listDeploymentsByRepository(c *gin.Context) {
	if !enforce(c, authorization.Default()) {
		return
	}
	// Repository names may contain slashes; the UI escapes them with '~'.
	name := strings.ReplaceAll(c.Param("name"), "~", "/")
	deployments, err := database.GetFacade().GetDeployment().ListByRepository(
		c.Request.Context(), name, readableEnvironmentIDs(c), 50)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]map[string]interface{}, 0, len(deployments))
	for _, deployment := range deployments {
		out = append(out, serialize.Deployment(deployment))
	}
	c.JSON(http.StatusOK, gin.H{"deployments": out})
}

func (s *Server) getDeploymentByID(c *gin.Context) {
	if !enforce(c, authorization.Default()) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	deployment, err := database.GetFacade().GetDeployment().GetDeployment(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if deployment == nil {
		abortError(c, http.StatusNotFound, "deployment not found")
		return
	}
	user := currentUser(c)
	if !authorization.HasPermission(user, authorization.ReadAllEnvironments()) {
		if deployment.EnvironmentID == nil ||
			!authorization.HasPermission(user, authorization.Read(*deployment.EnvironmentID)) {
			abortError(c, http.StatusForbidden, "insufficient permissions")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"deployment": serialize.Deployment(deployment)})
}
