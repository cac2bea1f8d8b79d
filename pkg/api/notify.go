// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package api

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/AMD-AGI/Primus-Deploy/pkg/authorization"
	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
	"github.com/AMD-AGI/Primus-Deploy/pkg/websocket"
	"github.com/AMD-AGI/Primus-Deploy/pkg/worker"
	"github.com/gin-gonic/gin"
)

// sshURLPattern extracts "org/repo" from git@host:org/repo.git URLs.
var sshURLPattern = regexp.MustCompile(`git@([a-zA-Z0-9.]+):([a-zA-Z0-9./_-]+)\.git`)

// postNotify handles push notifications from source providers (GitHub and
// compatible). The universal extraction: repository.full_name (with an SSH
// URL fallback), after (commit) and ref (refs/heads/<branch>).
func (s *Server) postNotify(c *gin.Context) {
	var body struct {
		Repository map[string]interface{} `json:"repository"`
		After      string                 `json:"after"`
		Ref        string                 `json:"ref"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Repository == nil {
		abortError(c, http.StatusBadRequest, "malformed notification")
		return
	}
	raw, _ := json.Marshal(body.Repository)
	log.Infof("Received notification from provider '%s': %s", c.Param("provider"), raw)

	repoName, _ := body.Repository["full_name"].(string)
	if repoName == "" {
		if sshURL, ok := body.Repository["git_ssh_url"].(string); ok {
			if matches := sshURLPattern.FindStringSubmatch(sshURL); matches != nil {
				repoName = matches[2]
			}
		}
	}
	if repoName == "" {
		repoName, _ = body.Repository["name"].(string)
	}
	if repoName == "" {
		abortError(c, http.StatusBadRequest, "could not determine the repository name")
		return
	}

	parts := strings.Split(body.Ref, "/")
	if len(parts) < 3 {
		abortError(c, http.StatusBadRequest, "malformed ref")
		return
	}
	branch := strings.Join(parts[2:], "/")

	err := worker.HandleAutodeployNotification(c.Request.Context(), repoName, branch, body.After,
		s.queue, s.notifier, s.cfg.Cluster.GetDeployersURLs())
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": 0})
}

// postNotificationUpdatedRepo handles the provider-agnostic variant: the
// caller names the repository and branch directly. Without a commit only the
// mirror refresh happens.
func (s *Server) postNotificationUpdatedRepo(c *gin.Context) {
	var body struct {
		Repository string `json:"repository"`
		Branch     string `json:"branch"`
		Commit     string `json:"commit"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Repository == "" || body.Branch == "" {
		abortError(c, http.StatusBadRequest, "missing repository or branch")
		return
	}
	err := worker.HandleAutodeployNotification(c.Request.Context(), body.Repository, body.Branch, body.Commit,
		s.queue, s.notifier, s.cfg.Cluster.GetDeployersURLs())
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": 0, "message": "notification processed"})
}

// postNotificationWebsocketEvent republishes an event forwarded by a peer
// deployer on the local websocket hub. Requires the Deployer permission.
func (s *Server) postNotificationWebsocketEvent(c *gin.Context) {
	if !enforce(c, authorization.Deployer()) {
		return
	}
	var body struct {
		Event struct {
			Type    string                 `json:"type"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"event"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Event.Type == "" {
		abortError(c, http.StatusBadRequest, "malformed event")
		return
	}
	s.websocketNotifier.Publish(websocket.NewEvent(body.Event.Type, body.Event.Payload))
	c.JSON(http.StatusOK, gin.H{"status": 0})
}
