// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package haproxy

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHAProxy serves the stats CSV and records admin actions.
type fakeHAProxy struct {
	mu       sync.Mutex
	statuses map[string]string // "backend/server" -> status
	actions  []string          // "action backend/server"
}

func newFakeHAProxy() *fakeHAProxy {
	return &fakeHAProxy{statuses: map[string]string{}}
}

func (f *fakeHAProxy) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			f.mu.Lock()
			defer f.mu.Unlock()
			fmt.Fprint(w, "# pxname,svname,status,\n")
			for key, status := range f.statuses {
				parts := strings.SplitN(key, "/", 2)
				fmt.Fprintf(w, "%s,%s,%s,\n", parts[0], parts[1], status)
			}
			return
		}
		_ = r.ParseForm()
		backend := r.PostFormValue("b")
		server := r.PostFormValue("s")
		action := r.PostFormValue("action")
		f.mu.Lock()
		f.actions = append(f.actions, fmt.Sprintf("%s %s/%s", action, backend, server))
		if action == "disable" {
			f.statuses[backend+"/"+server] = "MAINT"
		} else {
			f.statuses[backend+"/"+server] = "UP"
		}
		f.mu.Unlock()
		w.Header().Set("Location", "/;DONE")
		w.WriteHeader(http.StatusSeeOther)
	}
}

func (f *fakeHAProxy) recordedActions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.actions...)
}

func TestStatusParsesCSV(t *testing.T) {
	fake := newFakeHAProxy()
	fake.statuses["web/srv1"] = "UP"
	fake.statuses["web/srv2"] = "MAINT"
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret")
	row, err := client.Status("web", "srv1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "UP", row["status"])

	row, err = client.Status("web", "missing")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestEnableDisableRequire303WithDone(t *testing.T) {
	fake := newFakeHAProxy()
	fake.statuses["web/srv1"] = "UP"
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := NewClient(server.URL, "", "")
	require.NoError(t, client.Disable("web", "srv1"))
	assert.Equal(t, []string{"disable web/srv1"}, fake.recordedActions())

	// A 200 response is a failure even though the request "succeeded".
	flat := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer flat.Close()
	err := NewClient(flat.URL, "", "").Enable("web", "srv1")
	assert.Error(t, err)
}

func TestClusterActionRejectsMalformedKeys(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "", "")
	err := ClusterAction(client, []string{"web,srv1", "badkey"}, "", ActionDisable)
	var invalid *InvalidKeyFormatError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, []string{"badkey"}, invalid.Keys)

	err = ClusterAction(client, []string{""}, "", ActionDisable)
	require.ErrorAs(t, err, &invalid)
}

func TestClusterActionPrecheckFailure(t *testing.T) {
	fake := newFakeHAProxy()
	fake.statuses["web/srv1"] = "UP"
	fake.statuses["web/srv2"] = "DOWN"
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := NewClient(server.URL, "", "")
	err := ClusterAction(client, []string{"web,srv1", "web,srv2"}, "UP", ActionEnable)
	var unexpected *UnexpectedServerStatusError
	require.ErrorAs(t, err, &unexpected)
	// Nothing mutated: the status check failed before any action.
	assert.Empty(t, fake.recordedActions())
}

func TestClusterActionDisablesOnlyUpServers(t *testing.T) {
	fake := newFakeHAProxy()
	fake.statuses["web/srv1"] = "UP"
	fake.statuses["web/srv2"] = "MAINT"
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := NewClient(server.URL, "", "")
	require.NoError(t, ClusterAction(client, []string{"web,srv1", "web,srv2"}, "", ActionDisable))
	assert.Equal(t, []string{"disable web/srv1"}, fake.recordedActions())
}

func TestClusterActionEnablesOnlyMaintServers(t *testing.T) {
	fake := newFakeHAProxy()
	fake.statuses["web/srv1"] = "MAINT"
	fake.statuses["web/srv2"] = "UP"
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := NewClient(server.URL, "", "")
	require.NoError(t, ClusterAction(client, []string{"web,srv1", "web,srv2"}, "", ActionEnable))
	assert.Equal(t, []string{"enable web/srv1"}, fake.recordedActions())
}

func TestClusterActionMissingServer(t *testing.T) {
	fake := newFakeHAProxy()
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := NewClient(server.URL, "", "")
	err := ClusterAction(client, []string{"web,ghost"}, "", ActionDisable)
	var unexpected *UnexpectedServerStatusError
	require.ErrorAs(t, err, &unexpected)
	assert.Contains(t, unexpected.Error(), "not found")
}
