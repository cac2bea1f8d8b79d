// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
general:
  local_repo_path: /srv/deployer/repos
  api_port: 8080
  websocket_port: 9000
  haproxy_user: admin
  haproxy_pass: secret
  notify_mails: "ops@example.com, release@example.com"
  carbon_host: carbon.example.com
  carbon_port: 2003
  check_releases_frequency: 120
  check_releases_ignore_environments: "sandbox,dev"
database:
  host: db.example.com
  port: 5432
  user_name: deployer
  password: hunter2
  db_name: deployer
  driver: postgres
mail:
  mta: smtp.example.com:25
  sender: deployer@example.com
cluster:
  deployers_urls: "http://dep1.example.com, http://dep2.example.com"
  this_deployer_url: http://dep1.example.com
  this_deployer_username: deployer-bot
  this_deployer_token: tok
integration:
  provider: default
inventory:
  activate: true
  api_host: http://inventory.example.com
  update_frequency: 15
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "/srv/deployer/repos", cfg.General.LocalRepoPath)
	assert.Equal(t, 8080, cfg.General.APIPort)
	assert.Equal(t, []string{"ops@example.com", "release@example.com"}, cfg.General.GetNotifyMails())
	assert.Equal(t, 2*time.Minute, cfg.General.GetCheckReleasesFrequency())
	assert.Equal(t, []string{"sandbox", "dev"}, cfg.General.GetCheckReleasesIgnoreEnvironments())

	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.NoError(t, cfg.Database.Validate())

	assert.Equal(t, []string{"http://dep1.example.com", "http://dep2.example.com"}, cfg.Cluster.GetDeployersURLs())
	assert.Equal(t, []string{"http://dep2.example.com"}, cfg.Cluster.GetOtherDeployersURLs())

	assert.True(t, cfg.Inventory.Activate)
	assert.Equal(t, 15*time.Minute, cfg.Inventory.GetUpdateFrequency())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "general: {}\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.General.GetDeployerWorkers())
	assert.Equal(t, 3, cfg.General.GetFetchWorkers())
	assert.Equal(t, 5*time.Minute, cfg.General.GetCheckReleasesFrequency())
	assert.Equal(t, 20*24*time.Hour, cfg.General.GetCleanerMaxUnusedAge())
	assert.Equal(t, 30*time.Minute, cfg.Inventory.GetUpdateFrequency())
	assert.Empty(t, cfg.General.GetNotifyMails())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
