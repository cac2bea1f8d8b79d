// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package health

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryLifecycle(t *testing.T) {
	registry := NewRegistry()
	assert.False(t, registry.GetStatus().Degraded)

	registry.AddDegraded("releases", "env prod out of sync")
	registry.AddDegraded("releases", "env beta out of sync")
	registry.AddDegraded("workers", "worker api died")

	status := registry.GetStatus()
	assert.True(t, status.Degraded)
	assert.Len(t, status.Errors["releases"], 2)
	assert.Len(t, status.Errors["workers"], 1)

	registry.SetOK("releases")
	status = registry.GetStatus()
	assert.True(t, status.Degraded)
	assert.NotContains(t, status.Errors, "releases")

	registry.SetOK("workers")
	assert.False(t, registry.GetStatus().Degraded)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	registry := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registry.AddDegraded("releases", "x")
			registry.GetStatus()
			registry.SetOK("releases")
		}()
	}
	wg.Wait()
}

func TestStatusIsACopy(t *testing.T) {
	registry := NewRegistry()
	registry.AddDegraded("releases", "one")
	status := registry.GetStatus()
	status.Errors["releases"][0] = "mutated"
	assert.Equal(t, "one", registry.GetStatus().Errors["releases"][0])
}
