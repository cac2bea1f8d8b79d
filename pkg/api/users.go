// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package api

import (
	"encoding/json"
	"net/http"

	"github.com/AMD-AGI/Primus-Deploy/pkg/authorization"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/integration"
	"github.com/AMD-AGI/Primus-Deploy/pkg/serialize"
	"github.com/gin-gonic/gin"
)

func (s *Server) listUsers(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	users, err := database.GetFacade().GetUser().ListUsers(c.Request.Context())
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]map[string]interface{}, 0, len(users))
	for _, user := range users {
		out = append(out, serialize.User(user))
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

type userBody struct {
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	AccountID int64   `json:"accountid"`
	Roles     []int64 `json:"roles"`
	AuthToken *string `json:"auth_token"`
}

func (s *Server) loadRoles(c *gin.Context, roleIDs []int64) ([]*model.Role, bool) {
	facade := database.GetFacade().GetUser()
	roles := make([]*model.Role, 0, len(roleIDs))
	for _, roleID := range roleIDs {
		role, err := facade.GetRole(c.Request.Context(), roleID)
		if err != nil {
			abortError(c, http.StatusInternalServerError, err.Error())
			return nil, false
		}
		if role == nil {
			abortError(c, http.StatusNotFound, "role not found")
			return nil, false
		}
		roles = append(roles, role)
	}
	return roles, true
}

func (s *Server) postUser(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	var body userBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Username == "" {
		abortError(c, http.StatusBadRequest, "malformed user")
		return
	}
	roles, ok := s.loadRoles(c, body.Roles)
	if !ok {
		return
	}
	user := &model.User{
		Username:  body.Username,
		Email:     body.Email,
		AccountID: body.AccountID,
		Roles:     roles,
	}
	if body.AuthToken != nil {
		hashed, err := integration.HashToken(*body.AuthToken)
		if err != nil {
			abortError(c, http.StatusInternalServerError, err.Error())
			return
		}
		user.AuthToken = &hashed
	}
	if err := database.GetFacade().GetUser().CreateUser(c.Request.Context(), user); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": serialize.User(user)})
}

func (s *Server) getUser(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	user, err := database.GetFacade().GetUser().GetUser(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if user == nil {
		abortError(c, http.StatusNotFound, "user not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": serialize.User(user)})
}

func (s *Server) putUser(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	facade := database.GetFacade().GetUser()
	user, err := facade.GetUser(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if user == nil {
		abortError(c, http.StatusNotFound, "user not found")
		return
	}
	var body userBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortError(c, http.StatusBadRequest, "malformed user")
		return
	}
	if _, ok := s.loadRoles(c, body.Roles); !ok {
		return
	}
	user.Username = body.Username
	user.Email = body.Email
	user.AccountID = body.AccountID
	if body.AuthToken != nil {
		if *body.AuthToken == "" {
			user.AuthToken = nil
		} else {
			hashed, err := integration.HashToken(*body.AuthToken)
			if err != nil {
				abortError(c, http.StatusInternalServerError, err.Error())
				return
			}
			user.AuthToken = &hashed
		}
	}
	user.Roles = nil
	if err := facade.UpdateUser(c.Request.Context(), user); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if err := facade.ReplaceUserRoles(c.Request.Context(), user.ID, body.Roles); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	updated, err := facade.GetUser(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": serialize.User(updated)})
}

func (s *Server) deleteUser(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	facade := database.GetFacade().GetUser()
	user, err := facade.GetUser(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if user == nil {
		abortError(c, http.StatusNotFound, "user not found")
		return
	}
	if err := facade.DeleteUser(c.Request.Context(), id); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": serialize.User(user)})
}

func (s *Server) listRoles(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	roles, err := database.GetFacade().GetUser().ListRoles(c.Request.Context())
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]map[string]interface{}, 0, len(roles))
	for _, role := range roles {
		out = append(out, serialize.Role(role))
	}
	c.JSON(http.StatusOK, gin.H{"roles": out})
}

func (s *Server) getRole(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	role, err := database.GetFacade().GetUser().GetRole(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if role == nil {
		abortError(c, http.StatusNotFound, "role not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": serialize.Role(role)})
}

type roleBody struct {
	Name        string                 `json:"name"`
	Permissions map[string]interface{} `json:"permissions"`
}

// validatePermissions round-trips the blob through the authorization package
// so malformed grants never reach the database.
func validatePermissions(c *gin.Context, raw map[string]interface{}) (string, bool) {
	permissions, err := authorization.PermissionsFromDict(raw)
	if err != nil {
		abortError(c, http.StatusBadRequest, err.Error())
		return "", false
	}
	blob, err := json.Marshal(authorization.PermissionsToDict(permissions))
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return "", false
	}
	return string(blob), true
}

func (s *Server) postRole(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	var body roleBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" {
		abortError(c, http.StatusBadRequest, "malformed role")
		return
	}
	blob, ok := validatePermissions(c, body.Permissions)
	if !ok {
		return
	}
	role := &model.Role{Name: body.Name, Permissions: blob}
	if err := database.GetFacade().GetUser().CreateRole(c.Request.Context(), role); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": serialize.Role(role)})
}

func (s *Server) putRole(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	facade := database.GetFacade().GetUser()
	role, err := facade.GetRole(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if role == nil {
		abortError(c, http.StatusNotFound, "role not found")
		return
	}
	var body roleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortError(c, http.StatusBadRequest, "malformed role")
		return
	}
	blob, ok := validatePermissions(c, body.Permissions)
	if !ok {
		return
	}
	role.Name = body.Name
	role.Permissions = blob
	if err := facade.UpdateRole(c.Request.Context(), role); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": serialize.Role(role)})
}

func (s *Server) deleteRole(c *gin.Context) {
	if !enforce(c, authorization.SuperAdmin()) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	facade := database.GetFacade().GetUser()
	role, err := facade.GetRole(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if role == nil {
		abortError(c, http.StatusNotFound, "role not found")
		return
	}
	if err := facade.DeleteRole(c.Request.Context(), id); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": serialize.Role(role)})
}
