// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package api

import (
	"net/http"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/integration"
	"github.com/AMD-AGI/Primus-Deploy/pkg/serialize"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// issueToken stamps a fresh session token on the user and renders the
// response shared by both authentication endpoints.
func issueToken(c *gin.Context, user *model.User) {
	issuedAt := time.Now().UTC()
	token := uuid.NewString()
	if err := database.GetFacade().GetUser().IssueSessionToken(c.Request.Context(), user.ID, token, issuedAt); err != nil {
		abortError(c, http.StatusInternalServerError, "could not persist the session token")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expire_at": issuedAt.Add(sessionTokenTTL).Format(time.RFC3339),
		"user":      serialize.User(user),
	})
}

// postAuthSession validates an externally-issued session id (human users).
func (s *Server) postAuthSession(c *gin.Context) {
	var body struct {
		SessionID *string `json:"sessionid"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.SessionID == nil || *body.SessionID == "" {
		abortError(c, http.StatusBadRequest, "missing sessionid")
		return
	}
	user, err := s.authenticator.GetUserBySessionID(c.Request.Context(), *body.SessionID)
	if err == integration.ErrInvalidSession {
		abortError(c, http.StatusBadRequest, "invalid session")
		return
	}
	if err == integration.ErrNoMatchingUser || user == nil {
		abortError(c, http.StatusForbidden, "no matching user")
		return
	}
	if err != nil {
		abortError(c, http.StatusInternalServerError, "authentication backend error")
		return
	}
	issueToken(c, user)
}

// postAuthToken validates a long-lived token (bots and services).
func (s *Server) postAuthToken(c *gin.Context) {
	var body struct {
		Username  string  `json:"username"`
		AuthToken *string `json:"auth_token"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.AuthToken == nil || *body.AuthToken == "" {
		abortError(c, http.StatusBadRequest, "missing auth_token")
		return
	}
	user, err := s.authenticator.GetUserByToken(c.Request.Context(), body.Username, *body.AuthToken)
	if err == integration.ErrNoMatchingUser || user == nil {
		abortError(c, http.StatusForbidden, "no matching user")
		return
	}
	if err != nil {
		abortError(c, http.StatusInternalServerError, "authentication backend error")
		return
	}
	issueToken(c, user)
}

// getAccount returns the current account.
func (s *Server) getAccount(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		abortError(c, http.StatusForbidden, "no account")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": serialize.User(user)})
}
