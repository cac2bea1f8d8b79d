// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package api

import (
	"net/http"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/authorization"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
	"github.com/gin-gonic/gin"
)

// sessionTokenTTL is the lifetime of an issued session token.
const sessionTokenTTL = 30 * time.Minute

const accountContextKey = "deployer.account"

// CorsMiddleware allows the web UI, served from anywhere, to call the API.
func CorsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "X-Session-Token, X-Impersonate-Username, Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// AuthMiddleware resolves the account of the request: a valid X-Session-Token
// maps to its user (rejecting expired tokens), no token falls back to the
// "default" user. Preflight requests pass through.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		token := c.GetHeader("X-Session-Token")
		if token == "" {
			useDefaultUser(c)
			c.Next()
			return
		}
		user, err := database.GetFacade().GetUser().GetUserBySessionToken(c.Request.Context(), token)
		if err != nil {
			abortError(c, http.StatusInternalServerError, "could not check the session token")
			return
		}
		if user == nil {
			log.Infof("Unauthorized access attempt with token: %s", token)
			abortError(c, http.StatusForbidden, "invalid session token")
			return
		}
		if user.TokenIssuedAt == nil || user.TokenIssuedAt.Add(sessionTokenTTL).Before(time.Now().UTC()) {
			log.Infof("Token expired: %s", token)
			abortError(c, http.StatusForbidden, "session token expired")
			return
		}
		c.Set(accountContextKey, user)
		c.Next()
	}
}

func useDefaultUser(c *gin.Context) {
	user, err := database.GetFacade().GetUser().GetUserByUsername(c.Request.Context(), model.DefaultUsername)
	if err != nil {
		log.Errorf("could not load the default user: %v", err)
		return
	}
	if user != nil {
		c.Set(accountContextKey, user)
	}
}

// currentUser returns the request account, possibly nil.
func currentUser(c *gin.Context) *model.User {
	if raw, ok := c.Get(accountContextKey); ok {
		if user, ok := raw.(*model.User); ok {
			return user
		}
	}
	return nil
}

// enforce aborts with 403 unless the account holds the permission.
func enforce(c *gin.Context, permission authorization.Permission) bool {
	user := currentUser(c)
	if user == nil || !authorization.HasPermission(user, permission) {
		abortError(c, http.StatusForbidden, "insufficient permissions")
		return false
	}
	return true
}

// abortError renders the error body shared by every endpoint.
func abortError(c *gin.Context, status int, details string) {
	c.AbortWithStatusJSON(status, gin.H{
		"status":  1,
		"error":   http.StatusText(status),
		"details": details,
	})
}
