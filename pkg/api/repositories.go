// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package api

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/AMD-AGI/Primus-Deploy/pkg/authorization"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/gitutil"
	"github.com/AMD-AGI/Primus-Deploy/pkg/serialize"
	"github.com/gin-gonic/gin"
)

func (s *Server) listRepositories(c *gin.Context) {
	if !enforce(c, authorization.Default()) {
		return
	}
	repos, err := database.GetFacade().GetRepository().ListRepositories(c.Request.Context(), readableEnvironmentIDs(c))
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]map[string]interface{}, 0, len(repos))
	for _, repo := range repos {
		out = append(out, serialize.Repository(repo))
	}
	c.JSON(http.StatusOK, gin.H{"repositories": out})
}

func (s *Server) getRepository(c *gin.Context) {
	if !enforce(c, authorization.Default()) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	repo, err := database.GetFacade().GetRepository().GetRepository(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if repo == nil {
		abortError(c, http.StatusNotFound, "repository not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"repository": serialize.Repository(repo)})
}

func (s *Server) getRepositoryByName(c *gin.Context) {
	if !enforce(c, authorization.Default()) {
		return
	}
	name := strings.TrimPrefix(c.Param("name"), "/")
	repo, err := database.GetFacade().GetRepository().GetRepositoryByName(c.Request.Context(), name)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if repo == nil {
		abortError(c, http.StatusNotFound, "Repository not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"repository": serialize.Repository(repo)})
}

type repositoryBody struct {
	Name              string   `json:"name"`
	DeployMethod      string   `json:"deploy_method"`
	GitServer         string   `json:"git_server"`
	NotifyOwnersMails []string `json:"notify_owners_mails"`
}

func (s *Server) postRepository(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	var body repositoryBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" {
		abortError(c, http.StatusBadRequest, "malformed repository")
		return
	}
	repo := &model.Repository{
		Name:              body.Name,
		DeployMethod:      body.DeployMethod,
		GitServer:         body.GitServer,
		NotifyOwnersMails: strings.Join(body.NotifyOwnersMails, ","),
	}
	if repo.DeployMethod == "" {
		repo.DeployMethod = model.DeployMethodInplace
	}
	if err := database.GetFacade().GetRepository().CreateRepository(c.Request.Context(), repo); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"repository": serialize.Repository(repo)})
}

func (s *Server) putRepository(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	facade := database.GetFacade().GetRepository()
	repo, err := facade.GetRepository(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if repo == nil {
		abortError(c, http.StatusNotFound, "repository not found")
		return
	}
	var body repositoryBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortError(c, http.StatusBadRequest, "malformed repository")
		return
	}
	repo.Name = body.Name
	repo.DeployMethod = body.DeployMethod
	repo.GitServer = body.GitServer
	repo.NotifyOwnersMails = strings.Join(body.NotifyOwnersMails, ",")
	if err := facade.UpdateRepository(c.Request.Context(), repo); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"repository": serialize.Repository(repo)})
}

func (s *Server) deleteRepository(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	facade := database.GetFacade().GetRepository()
	repo, err := facade.GetRepository(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if repo == nil {
		abortError(c, http.StatusNotFound, "repository not found")
		return
	}
	if err := facade.DeleteRepository(c.Request.Context(), id); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"repository": serialize.Repository(repo)})
}

// getRepositoryDiff returns the git diff between two commits of the mirror.
func (s *Server) getRepositoryDiff(c *gin.Context) {
	if !enforce(c, authorization.Default()) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	fromCommit := c.Query("from")
	toCommit := c.Query("to")
	envs, err := database.GetFacade().GetEnvironment().ListByRepository(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if len(envs) == 0 {
		abortError(c, http.StatusNotFound, "repository has no environments")
		return
	}
	user := currentUser(c)
	allowed := false
	for _, env := range envs {
		if authorization.HasPermission(user, authorization.DeployBusinessHours(env.ID)) {
			allowed = true
			break
		}
	}
	if !allowed {
		abortError(c, http.StatusForbidden, "insufficient permissions")
		return
	}
	env := envs[0]
	path := filepath.Join(s.cfg.General.LocalRepoPath, env.LocalRepoDirectoryName())
	diff, err := gitutil.NewLocalRepository(path).Diff(fromCommit, toCommit)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"diff": gin.H{"from": fromCommit, "to": toCommit, "diff": diff}})
}

func (s *Server) listRepositoryEnvironments(c *gin.Context) {
	if !enforce(c, authorization.Default()) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	envs, err := database.GetFacade().GetEnvironment().ListByRepository(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	readable := readableEnvironmentIDs(c)
	out := make([]map[string]interface{}, 0, len(envs))
	for _, env := range envs {
		if readable != nil && !containsID(readable, env.ID) {
			continue
		}
		out = append(out, serialize.Environment(env))
	}
	c.JSON(http.StatusOK, gin.H{"environments": out})
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func (s *Server) postRepositoryEnvironment(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	repo, err := database.GetFacade().GetRepository().GetRepository(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if repo == nil {
		abortError(c, http.StatusNotFound, "repository not found")
		return
	}
	var body environmentBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" {
		abortError(c, http.StatusBadRequest, "malformed environment")
		return
	}
	env := &model.Environment{RepositoryID: id}
	applyEnvironmentBody(env, body)
	if err := database.GetFacade().GetEnvironment().CreateEnvironment(c.Request.Context(), env); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"environment": serialize.Environment(env)})
}
