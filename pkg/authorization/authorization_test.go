// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package authorization

import (
	"encoding/json"
	"testing"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImpliesIsReflexive(t *testing.T) {
	permissions := []Permission{
		Default(),
		Read(1),
		DeployBusinessHours(1),
		Deploy(1),
		ReadAllEnvironments(),
		Impersonate(),
		Deployer(),
		SuperAdmin(),
	}
	for _, p := range permissions {
		assert.True(t, p.Implies(p), "%v should imply itself", p)
	}
}

func TestSuperAdminImpliesEverything(t *testing.T) {
	admin := SuperAdmin()
	for _, p := range []Permission{
		Default(), Read(7), DeployBusinessHours(7), Deploy(7),
		ReadAllEnvironments(), Impersonate(), SuperAdmin(),
	} {
		assert.True(t, admin.Implies(p))
	}
}

func TestDeployImpliesTheChainOnSameEnvironment(t *testing.T) {
	deploy := Deploy(3)
	assert.True(t, deploy.Implies(DeployBusinessHours(3)))
	assert.True(t, deploy.Implies(Read(3)))
	assert.True(t, deploy.Implies(Default()))

	assert.False(t, deploy.Implies(Deploy(4)))
	assert.False(t, deploy.Implies(DeployBusinessHours(4)))
	assert.False(t, deploy.Implies(Read(4)))
	assert.False(t, deploy.Implies(SuperAdmin()))
	assert.False(t, deploy.Implies(ReadAllEnvironments()))
}

func TestImpersonateImpliesReadAll(t *testing.T) {
	impersonate := Impersonate()
	assert.True(t, impersonate.Implies(ReadAllEnvironments()))
	assert.True(t, impersonate.Implies(Read(12)))
	assert.True(t, impersonate.Implies(Default()))
	assert.False(t, impersonate.Implies(Deploy(12)))
	assert.False(t, impersonate.Implies(SuperAdmin()))
}

func TestReadDoesNotImplyWrites(t *testing.T) {
	read := Read(1)
	assert.False(t, read.Implies(Deploy(1)))
	assert.False(t, read.Implies(DeployBusinessHours(1)))
	assert.True(t, read.Implies(Default()))
}

func TestPermissionsDictRoundTrip(t *testing.T) {
	cases := []map[string]interface{}{
		{"admin": true},
		{"impersonate": true},
		{"deployer": true},
		{"read": []interface{}{float64(1), float64(2)}},
		{"deploy_business_hours": []interface{}{float64(3)}},
		{"deploy": []interface{}{float64(4)}},
		{
			"admin":  true,
			"read":   []interface{}{float64(1)},
			"deploy": []interface{}{float64(2), float64(9)},
		},
	}
	for _, data := range cases {
		permissions, err := PermissionsFromDict(data)
		require.NoError(t, err)
		out := PermissionsToDict(permissions)

		// Compare through JSON so []int64 and []interface{} normalize.
		wantJSON, err := json.Marshal(data)
		require.NoError(t, err)
		gotJSON, err := json.Marshal(out)
		require.NoError(t, err)
		assert.JSONEq(t, string(wantJSON), string(gotJSON))
	}
}

func TestPermissionsFromDictRejectsBadTypes(t *testing.T) {
	_, err := PermissionsFromDict(map[string]interface{}{"admin": "yes"})
	assert.Error(t, err)
	_, err = PermissionsFromDict(map[string]interface{}{"read": "not-a-list"})
	assert.Error(t, err)
	_, err = PermissionsFromDict(map[string]interface{}{"deploy": []interface{}{"x"}})
	assert.Error(t, err)
}

func TestHasPermissionUsesDefaultRoles(t *testing.T) {
	user := &model.User{
		Username: "alice",
		Roles: []*model.Role{
			{Name: "reader", Permissions: `{"read": [5]}`},
		},
		DefaultRoles: []*model.Role{
			{Name: "everyone", Permissions: `{"read": [1]}`},
		},
	}
	assert.True(t, HasPermission(user, Read(5)))
	assert.True(t, HasPermission(user, Read(1)))
	assert.False(t, HasPermission(user, Read(2)))
	assert.False(t, HasPermission(user, Deploy(5)))
}

func TestReadableEnvironments(t *testing.T) {
	user := &model.User{
		Username: "bob",
		Roles: []*model.Role{
			{Name: "a", Permissions: `{"read": [3, 1], "deploy": [2]}`},
			{Name: "b", Permissions: `{"deploy_business_hours": [1]}`},
		},
	}
	assert.Equal(t, []int64{1, 2, 3}, ReadableEnvironments(user))
}
