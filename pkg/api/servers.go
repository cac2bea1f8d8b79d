// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package api

import (
	"net/http"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/authorization"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/deploy"
	"github.com/AMD-AGI/Primus-Deploy/pkg/executil"
	"github.com/AMD-AGI/Primus-Deploy/pkg/serialize"
	"github.com/gin-gonic/gin"
)

func (s *Server) listServers(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	servers, err := database.GetFacade().GetCluster().ListServers(c.Request.Context())
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]map[string]interface{}, 0, len(servers))
	for _, server := range servers {
		out = append(out, serialize.Server(server))
	}
	c.JSON(http.StatusOK, gin.H{"servers": out})
}

type serverBody struct {
	Name      string `json:"name"`
	Port      int    `json:"port"`
	Activated *bool  `json:"activated"`
}

func (s *Server) postServer(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	var body serverBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" {
		abortError(c, http.StatusBadRequest, "malformed server")
		return
	}
	server := &model.Server{Name: body.Name, Port: body.Port, Activated: true}
	if server.Port == 0 {
		server.Port = 22
	}
	if body.Activated != nil {
		server.Activated = *body.Activated
	}
	if err := database.GetFacade().GetCluster().CreateServer(c.Request.Context(), server); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"server": serialize.Server(server)})
}

func (s *Server) putServer(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	facade := database.GetFacade().GetCluster()
	server, err := facade.GetServer(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if server == nil {
		abortError(c, http.StatusNotFound, "server not found")
		return
	}
	var body serverBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortError(c, http.StatusBadRequest, "malformed server")
		return
	}
	server.Name = body.Name
	if body.Port != 0 {
		server.Port = body.Port
	}
	if body.Activated != nil {
		server.Activated = *body.Activated
	}
	if err := facade.UpdateServer(c.Request.Context(), server); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"server": serialize.Server(server)})
}

func (s *Server) deleteServer(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	facade := database.GetFacade().GetCluster()
	server, err := facade.GetServer(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if server == nil {
		abortError(c, http.StatusNotFound, "server not found")
		return
	}
	if err := facade.DeleteServer(c.Request.Context(), id); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"server": serialize.Server(server)})
}

// getServerReleases probes the release of every environment containing the server.
func (s *Server) getServerReleases(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	facade := database.GetFacade().GetCluster()
	server, err := facade.GetServer(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if server == nil {
		abortError(c, http.StatusNotFound, "server not found")
		return
	}
	environments, err := facade.ListEnvironmentsByServer(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}

	releases := []map[string]interface{}{}
	for _, env := range environments {
		servers := env.Servers()
		targets := make([]deploy.ReleaseTarget, 0, len(servers))
		for _, envServer := range servers {
			targets = append(targets, deploy.ReleaseTarget{
				Host:       executil.HostFromServer(envServer, env.RemoteUser),
				TargetPath: env.TargetPath,
			})
		}
		statuses := deploy.ConcurrentGetReleaseStatus(targets, 5*time.Second)
		data := map[string]interface{}{
			"environment": serialize.Environment(env),
			"servers":     []map[string]interface{}{},
		}
		serverEntries := make([]map[string]interface{}, 0, len(servers))
		for i, envServer := range servers {
			serverEntries = append(serverEntries, map[string]interface{}{
				"server":         serialize.Server(envServer),
				"release_status": statuses[i].ToDict(env.ID, envServer.ID),
			})
		}
		data["servers"] = serverEntries
		releases = append(releases, data)
	}
	c.JSON(http.StatusOK, gin.H{"releases": releases})
}
