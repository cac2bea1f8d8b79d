// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/AMD-AGI/Primus-Deploy/pkg/authorization"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/deploy"
	"github.com/AMD-AGI/Primus-Deploy/pkg/executil"
	"github.com/AMD-AGI/Primus-Deploy/pkg/gitutil"
	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
	"github.com/AMD-AGI/Primus-Deploy/pkg/serialize"
	"github.com/AMD-AGI/Primus-Deploy/pkg/worker"
	"github.com/gin-gonic/gin"
)

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abortError(c, http.StatusBadRequest, "malformed id")
		return 0, false
	}
	return id, true
}

// readableEnvironmentIDs returns nil when the account can read everything,
// else the explicit id list.
func readableEnvironmentIDs(c *gin.Context) []int64 {
	user := currentUser(c)
	if user != nil && authorization.HasPermission(user, authorization.ReadAllEnvironments()) {
		return nil
	}
	if user == nil {
		return []int64{}
	}
	return authorization.ReadableEnvironments(user)
}

func (s *Server) listEnvironments(c *gin.Context) {
	if !enforce(c, authorization.Default()) {
		return
	}
	envs, err := database.GetFacade().GetEnvironment().ListEnvironments(c.Request.Context(), readableEnvironmentIDs(c))
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]map[string]interface{}, 0, len(envs))
	for _, env := range envs {
		out = append(out, serialize.Environment(env))
	}
	c.JSON(http.StatusOK, gin.H{"environments": out})
}

func (s *Server) getEnvironment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if !enforce(c, authorization.Read(id)) {
		return
	}
	env, err := database.GetFacade().GetEnvironment().GetEnvironment(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if env == nil {
		abortError(c, http.StatusNotFound, "environment not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"environment": serialize.Environment(env)})
}

type environmentBody struct {
	Name         string `json:"name"`
	TargetPath   string `json:"target_path"`
	AutoDeploy   bool   `json:"auto_deploy"`
	RemoteUser   string `json:"remote_user"`
	SyncOptions  string `json:"sync_options"`
	EnvOrder     int    `json:"env_order"`
	DeployBranch string `json:"deploy_branch"`
	FailDeployOnFailedTests bool    `json:"fail_deploy_on_failed_tests"`
	Clusters                []int64 `json:"clusters"`
}

func applyEnvironmentBody(env *model.Environment, body environmentBody) {
	env.Name = body.Name
	env.TargetPath = body.TargetPath
	env.AutoDeploy = body.AutoDeploy
	env.RemoteUser = body.RemoteUser
	env.SyncOptions = body.SyncOptions
	env.EnvOrder = body.EnvOrder
	env.DeployBranch = body.DeployBranch
	env.FailDeployOnFailedTests = body.FailDeployOnFailedTests
	env.Clusters = nil
	for _, clusterID := range body.Clusters {
		env.Clusters = append(env.Clusters, &model.Cluster{ID: clusterID})
	}
}

func (s *Server) putEnvironment(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	facade := database.GetFacade().GetEnvironment()
	env, err := facade.GetEnvironment(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if env == nil {
		abortError(c, http.StatusNotFound, "environment not found")
		return
	}
	var body environmentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortError(c, http.StatusBadRequest, "malformed environment")
		return
	}
	applyEnvironmentBody(env, body)
	if err := facade.UpdateEnvironment(c.Request.Context(), env); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"environment": serialize.Environment(env)})
}

func (s *Server) deleteEnvironment(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	facade := database.GetFacade().GetEnvironment()
	env, err := facade.GetEnvironment(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if env == nil {
		abortError(c, http.StatusNotFound, "environment not found")
		return
	}
	if err := facade.DeleteEnvironment(c.Request.Context(), id); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"environment": serialize.Environment(env)})
}

// postEnvironmentDeployment validates the request and queues a deployment.
// DeployBusinessHours is the minimal permission; the engine checks the rest
// during the deployment proper.
func (s *Server) postEnvironmentDeployment(c *gin.Context) {
	environmentID, ok := pathID(c)
	if !ok {
		return
	}

	var userID int64
	if impersonated := c.GetHeader("X-Impersonate-Username"); impersonated != "" {
		if !enforce(c, authorization.Impersonate()) {
			return
		}
		target, err := database.GetFacade().GetUser().GetUserByUsername(c.Request.Context(), impersonated)
		if err != nil {
			abortError(c, http.StatusInternalServerError, err.Error())
			return
		}
		if target == nil || !authorization.HasPermission(target, authorization.DeployBusinessHours(environmentID)) {
			abortError(c, http.StatusForbidden, "impersonated user can not deploy here")
			return
		}
		userID = target.ID
		log.Infof("User %s impersonated user %s in order to deploy in the environment %d",
			currentUser(c).Username, impersonated, environmentID)
	} else {
		if !enforce(c, authorization.DeployBusinessHours(environmentID)) {
			return
		}
		userID = currentUser(c).ID
	}

	env, err := database.GetFacade().GetEnvironment().GetEnvironment(c.Request.Context(), environmentID)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if env == nil {
		abortError(c, http.StatusNotFound, "environment not found")
		return
	}

	var body struct {
		Branch string `json:"branch"`
		Commit string `json:"commit"`
		Target struct {
			Cluster *int64 `json:"cluster"`
			Server  *int64 `json:"server"`
		} `json:"target"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || len(body.Commit) < 3 || len(body.Branch) == 0 {
		abortError(c, http.StatusBadRequest, "malformed deployment request")
		return
	}

	deployID, err := worker.CreateDeploymentJob(c.Request.Context(), s.queue, s.notifier,
		env.Repository.Name, env.Name, env.ID, body.Target.Cluster, body.Target.Server,
		body.Branch, body.Commit, userID)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"deployment_id": deployID, "status": model.DeploymentStatusQueued})
}

// postEnvironmentFetch queues a mirror refresh for the environment.
func (s *Server) postEnvironmentFetch(c *gin.Context) {
	if !enforce(c, authorization.Default()) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	env, err := database.GetFacade().GetEnvironment().GetEnvironment(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if env == nil {
		abortError(c, http.StatusNotFound, "environment not found")
		return
	}
	s.fetchQueue.Enqueue(env)
	c.JSON(http.StatusOK, gin.H{"message": "fetch job queued"})
}

// getEnvironmentServers probes the release manifest of every server of the
// environment. Results are cached briefly.
func (s *Server) getEnvironmentServers(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if !enforce(c, authorization.Read(id)) {
		return
	}
	env, err := database.GetFacade().GetEnvironment().GetEnvironment(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if env == nil {
		abortError(c, http.StatusNotFound, "environment not found")
		return
	}

	cacheKey := fmt.Sprintf("environment-servers-%d", id)
	if cached, ok := s.releaseCache.Get(cacheKey); ok {
		c.JSON(http.StatusOK, gin.H{"servers_status": cached})
		return
	}

	servers := env.Servers()
	targets := make([]deploy.ReleaseTarget, 0, len(servers))
	for _, server := range servers {
		targets = append(targets, deploy.ReleaseTarget{
			Host:       executil.HostFromServer(server, env.RemoteUser),
			TargetPath: env.TargetPath,
		})
	}
	releases := deploy.ConcurrentGetReleaseStatus(targets, 0)

	serversStatus := map[string]interface{}{}
	for i, server := range servers {
		serversStatus[strconv.FormatInt(server.ID, 10)] = map[string]interface{}{
			"release_status": releases[i].ToDict(env.ID, server.ID),
			"server":         serialize.Server(server),
		}
	}
	s.releaseCache.SetDefault(cacheKey, serversStatus)
	c.JSON(http.StatusOK, gin.H{"servers_status": serversStatus})
}

// getEnvironmentCommits lists the recent commits of the deploy branch, each
// tagged deployable when the promotion-ladder predecessor already carries it.
func (s *Server) getEnvironmentCommits(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if !enforce(c, authorization.Read(id)) {
		return
	}
	env, err := database.GetFacade().GetEnvironment().GetEnvironment(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if env == nil {
		abortError(c, http.StatusNotFound, "environment not found")
		return
	}
	path := filepath.Join(s.cfg.General.LocalRepoPath, env.LocalRepoDirectoryName())
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusOK, gin.H{"commits": []interface{}{}, "info": "Git repository not cloned on the server"})
		return
	}
	commits, err := gitutil.NewLocalRepository(path).ListCommits(env.DeployBranch, 150)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}

	parents, err := database.GetFacade().GetEnvironment().ListParents(
		c.Request.Context(), env.RepositoryID, env.EnvOrder, env.DeployBranch)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if len(parents) > 0 {
		parentIDs := make([]int64, 0, len(parents))
		for _, parent := range parents {
			parentIDs = append(parentIDs, parent.ID)
		}
		hexshas := make([]string, 0, len(commits))
		for _, commit := range commits {
			hexshas = append(hexshas, commit.Hexsha)
		}
		deployable, err := database.GetFacade().GetDeployment().DistinctCompleteCommits(
			c.Request.Context(), parentIDs, hexshas)
		if err != nil {
			abortError(c, http.StatusInternalServerError, err.Error())
			return
		}
		deployableSet := map[string]struct{}{}
		for _, commit := range deployable {
			deployableSet[commit] = struct{}{}
		}
		for _, commit := range commits {
			if _, ok := deployableSet[commit.Hexsha]; !ok {
				commit.Deployable = false
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"commits": commits})
}
