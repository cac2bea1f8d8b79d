// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package authorization

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
)

// Permission kinds. Permissions form a lattice:
// SuperAdmin implies everything; Impersonate implies ReadAllEnvironments;
// Deploy(e) implies DeployBusinessHours(e) implies Read(e) implies Default.
type Kind int

const (
	KindDefault Kind = iota
	KindRead
	KindDeployBusinessHours
	KindDeploy
	KindReadAllEnvironments
	KindImpersonate
	KindDeployer
	KindSuperAdmin
)

// Permission is a value object; EnvironmentID is meaningful only for the
// environment-scoped kinds.
type Permission struct {
	Kind          Kind
	EnvironmentID int64
}

func Default() Permission {
	return Permission{Kind: KindDefault}
}

func Read(environmentID int64) Permission {
	return Permission{Kind: KindRead, EnvironmentID: environmentID}
}

func DeployBusinessHours(environmentID int64) Permission {
	return Permission{Kind: KindDeployBusinessHours, EnvironmentID: environmentID}
}

func Deploy(environmentID int64) Permission {
	return Permission{Kind: KindDeploy, EnvironmentID: environmentID}
}

func ReadAllEnvironments() Permission {
	return Permission{Kind: KindReadAllEnvironments}
}

func Impersonate() Permission {
	return Permission{Kind: KindImpersonate}
}

func Deployer() Permission {
	return Permission{Kind: KindDeployer}
}

func SuperAdmin() Permission {
	return Permission{Kind: KindSuperAdmin}
}

// Implies reports whether holding p grants other.
func (p Permission) Implies(other Permission) bool {
	switch p.Kind {
	case KindSuperAdmin:
		return true
	case KindDeployer:
		// Deployer is a service-to-service grant: it implies every permission,
		// SuperAdmin included.
		return true
	case KindImpersonate:
		return other.Kind == KindImpersonate || ReadAllEnvironments().Implies(other)
	case KindReadAllEnvironments:
		return other.Kind == KindReadAllEnvironments || other.Kind == KindRead || other.Kind == KindDefault
	case KindDeploy:
		if other.Kind == KindDeploy {
			return other.EnvironmentID == p.EnvironmentID
		}
		return DeployBusinessHours(p.EnvironmentID).Implies(other)
	case KindDeployBusinessHours:
		if other.Kind == KindDeployBusinessHours {
			return other.EnvironmentID == p.EnvironmentID
		}
		return Read(p.EnvironmentID).Implies(other)
	case KindRead:
		if other.Kind == KindRead {
			return other.EnvironmentID == p.EnvironmentID
		}
		return other.Kind == KindDefault
	case KindDefault:
		return other.Kind == KindDefault
	}
	return false
}

// ReadableEnvironments returns the environment ids this permission exposes.
func (p Permission) ReadableEnvironments() []int64 {
	switch p.Kind {
	case KindRead, KindDeployBusinessHours, KindDeploy:
		return []int64{p.EnvironmentID}
	}
	return nil
}

// PermissionsFromDict parses the JSON role blob:
//
//	{"admin": true, "impersonate": true, "deployer": true,
//	 "read": [1, 2], "deploy_business_hours": [3], "deploy": [4]}
func PermissionsFromDict(data map[string]interface{}) ([]Permission, error) {
	var out []Permission
	for _, flag := range []struct {
		name string
		perm Permission
	}{
		{"admin", SuperAdmin()},
		{"impersonate", Impersonate()},
		{"deployer", Deployer()},
	} {
		if v, ok := data[flag.name]; ok {
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("permission '%s' must be a boolean", flag.name)
			}
			if b {
				out = append(out, flag.perm)
			}
		}
	}
	for _, scoped := range []struct {
		name string
		ctor func(int64) Permission
	}{
		{"read", Read},
		{"deploy_business_hours", DeployBusinessHours},
		{"deploy", Deploy},
	} {
		if v, ok := data[scoped.name]; ok {
			list, ok := v.([]interface{})
			if !ok {
				return nil, fmt.Errorf("permission '%s' must be a list of environment ids", scoped.name)
			}
			for _, raw := range list {
				envID, err := toInt64(raw)
				if err != nil {
					return nil, fmt.Errorf("permission '%s': %w", scoped.name, err)
				}
				out = append(out, scoped.ctor(envID))
			}
		}
	}
	return out, nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case json.Number:
		return n.Int64()
	}
	return 0, fmt.Errorf("expected an integer, got %T", v)
}

// PermissionsToDict serializes a permission list back to the role blob format.
// Environment id lists are deduplicated and sorted.
func PermissionsToDict(permissions []Permission) map[string]interface{} {
	out := map[string]interface{}{}
	envLists := map[string]map[int64]struct{}{}
	appendEnv := func(key string, id int64) {
		if envLists[key] == nil {
			envLists[key] = map[int64]struct{}{}
		}
		envLists[key][id] = struct{}{}
	}
	for _, p := range permissions {
		switch p.Kind {
		case KindSuperAdmin:
			out["admin"] = true
		case KindImpersonate:
			out["impersonate"] = true
		case KindDeployer:
			out["deployer"] = true
		case KindRead:
			appendEnv("read", p.EnvironmentID)
		case KindDeployBusinessHours:
			appendEnv("deploy_business_hours", p.EnvironmentID)
		case KindDeploy:
			appendEnv("deploy", p.EnvironmentID)
		}
	}
	for key, set := range envLists {
		ids := make([]int64, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		out[key] = ids
	}
	return out
}

// ParseRolePermissions parses the permissions blob of a role.
func ParseRolePermissions(role *model.Role) ([]Permission, error) {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(role.Permissions), &data); err != nil {
		return nil, fmt.Errorf("role %s: invalid permissions blob: %w", role.Name, err)
	}
	return PermissionsFromDict(data)
}

// RoleAllows reports whether any permission of the role implies the requested one.
func RoleAllows(role *model.Role, requested Permission) bool {
	permissions, err := ParseRolePermissions(role)
	if err != nil {
		return false
	}
	for _, p := range permissions {
		if p.Implies(requested) {
			return true
		}
	}
	return false
}

// HasPermission checks the requested permission against every role of the user,
// the default user's roles included.
func HasPermission(user *model.User, requested Permission) bool {
	if user == nil {
		return false
	}
	for _, role := range user.AllRoles() {
		if RoleAllows(role, requested) {
			return true
		}
	}
	return false
}

// ReadableEnvironments returns the set of environment ids the user can read.
// Check ReadAllEnvironments separately before relying on this list.
func ReadableEnvironments(user *model.User) []int64 {
	set := map[int64]struct{}{}
	for _, role := range user.AllRoles() {
		permissions, err := ParseRolePermissions(role)
		if err != nil {
			continue
		}
		for _, p := range permissions {
			for _, id := range p.ReadableEnvironments() {
				set[id] = struct{}{}
			}
		}
	}
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
