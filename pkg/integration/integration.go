// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package integration lets operators plug site-specific behavior into the
// deployer: artifact detection, extra notification sinks, and the backend
// validating human sessions. Providers are compiled in and selected by name
// from the configuration.
package integration

import (
	"context"
	"sort"
	"sync"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/deploy"
	"github.com/AMD-AGI/Primus-Deploy/pkg/notification"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidSession reports a session id the backend does not recognize.
var ErrInvalidSession = errors.New("invalid session")

// ErrNoMatchingUser reports credentials matching no account.
var ErrNoMatchingUser = errors.New("no matching user")

// Authenticator validates credentials and resolves them to a user.
type Authenticator interface {
	// GetUserBySessionID validates an externally-issued session id.
	GetUserBySessionID(ctx context.Context, sessionID string) (*model.User, error)
	// GetUserByToken validates a long-lived service token.
	GetUserByToken(ctx context.Context, username, token string) (*model.User, error)
}

// Provider is the integration hook surface.
type Provider interface {
	// DetectArtifact may substitute a built artifact for the repository tree;
	// return deploy.ErrNoArtifactDetected to use the default.
	DetectArtifact(localRepoPath, gitServer, repositoryName, commit, environmentName string) (deploy.Artifact, error)
	// BuildNotifiers returns extra notification sinks.
	BuildNotifiers() []notification.Notifier
	// Authenticator returns the credential backend.
	Authenticator() Authenticator
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Provider{}
)

// Register adds a provider constructor to the compiled-in registry.
func Register(name string, constructor func() Provider) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = constructor
}

// Build instantiates the named provider; the empty name selects the default.
func Build(name string) (Provider, error) {
	if name == "" {
		name = "default"
	}
	registryMu.RLock()
	constructor, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unknown integration provider '%s' (registered: %v)", name, registeredNames())
	}
	return constructor(), nil
}

func registeredNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("default", func() Provider { return &DefaultProvider{} })
}

// DefaultProvider ships with the deployer: no artifact override, no extra
// sinks, token authentication against the local user table.
type DefaultProvider struct{}

// DetectArtifact implements Provider.
func (p *DefaultProvider) DetectArtifact(string, string, string, string, string) (deploy.Artifact, error) {
	return nil, deploy.ErrNoArtifactDetected
}

// BuildNotifiers implements Provider.
func (p *DefaultProvider) BuildNotifiers() []notification.Notifier {
	return nil
}

// Authenticator implements Provider.
func (p *DefaultProvider) Authenticator() Authenticator {
	return &databaseAuthenticator{}
}

// databaseAuthenticator checks tokens against the bcrypt hash stored on the
// user row. Session ids need an external backend, so they are rejected.
type databaseAuthenticator struct{}

func (a *databaseAuthenticator) GetUserBySessionID(context.Context, string) (*model.User, error) {
	return nil, ErrInvalidSession
}

func (a *databaseAuthenticator) GetUserByToken(ctx context.Context, username, token string) (*model.User, error) {
	user, err := database.GetFacade().GetUser().GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || user.AuthToken == nil {
		return nil, ErrNoMatchingUser
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.AuthToken), []byte(token)) != nil {
		return nil, ErrNoMatchingUser
	}
	return user, nil
}

// HashToken hashes a service token for storage.
func HashToken(token string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(token), 12)
	return string(out), err
}
