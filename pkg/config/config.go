// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package config

import (
	"os"
	"strings"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/errors"
	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
	"github.com/AMD-AGI/Primus-Deploy/pkg/sql"
	"gopkg.in/yaml.v2"
)

type Config struct {
	General     GeneralConfig      `json:"general" yaml:"general"`
	Database    sql.DatabaseConfig `json:"database" yaml:"database"`
	Mail        MailConfig         `json:"mail" yaml:"mail"`
	Cluster     ClusterConfig      `json:"cluster" yaml:"cluster"`
	Integration IntegrationConfig  `json:"integration" yaml:"integration"`
	Inventory   InventoryConfig    `json:"inventory" yaml:"inventory"`
	Log         *log.Config        `json:"log" yaml:"log"`
}

type GeneralConfig struct {
	LocalRepoPath string `json:"local_repo_path" yaml:"local_repo_path"`
	APIPort       int    `json:"api_port" yaml:"api_port"`
	WebsocketPort int    `json:"websocket_port" yaml:"websocket_port"`
	HAProxyUser   string `json:"haproxy_user" yaml:"haproxy_user"`
	HAProxyPass   string `json:"haproxy_pass" yaml:"haproxy_pass"`
	// NotifyMails are added to the recipients of every deployment mail.
	NotifyMails string `json:"notify_mails" yaml:"notify_mails"`
	CarbonHost  string `json:"carbon_host" yaml:"carbon_host"`
	CarbonPort  int    `json:"carbon_port" yaml:"carbon_port"`
	// DeployerWorkers is the number of concurrent deployment executors.
	DeployerWorkers int `json:"deployer_workers" yaml:"deployer_workers"`
	FetchWorkers    int `json:"fetch_workers" yaml:"fetch_workers"`

	CheckReleasesFrequencySeconds     int    `json:"check_releases_frequency" yaml:"check_releases_frequency"`
	CheckReleasesIgnoreEnvironments   string `json:"check_releases_ignore_environments" yaml:"check_releases_ignore_environments"`
	CleanerMaxUnusedAgeDays           int    `json:"cleaner_max_unused_age_days" yaml:"cleaner_max_unused_age_days"`
}

type MailConfig struct {
	MTA    string `json:"mta" yaml:"mta"`
	Sender string `json:"sender" yaml:"sender"`
}

type ClusterConfig struct {
	// DeployersURLs lists every deployer instance of the cluster, this one included.
	DeployersURLs string `json:"deployers_urls" yaml:"deployers_urls"`
	ThisDeployerURL      string `json:"this_deployer_url" yaml:"this_deployer_url"`
	ThisDeployerUsername string `json:"this_deployer_username" yaml:"this_deployer_username"`
	ThisDeployerToken    string `json:"this_deployer_token" yaml:"this_deployer_token"`
}

type IntegrationConfig struct {
	// Provider selects an integration provider from the compiled-in registry.
	Provider string `json:"provider" yaml:"provider"`
}

type InventoryConfig struct {
	Activate bool   `json:"activate" yaml:"activate"`
	APIHost  string `json:"api_host" yaml:"api_host"`
	// UpdateFrequencyMinutes is the checker wakeup period.
	UpdateFrequencyMinutes int `json:"update_frequency" yaml:"update_frequency"`
}

var config *Config

func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}
	configFile, err := os.Open(path)
	if err != nil {
		return nil, errors.NewError().
			WithCode(errors.CodeInitializeError).
			WithMessage("failed to open config file").
			WithError(err)
	}
	defer configFile.Close()
	decoder := yaml.NewDecoder(configFile)
	loaded := &Config{}
	err = decoder.Decode(loaded)
	if err != nil {
		return nil, errors.NewError().
			WithCode(errors.CodeInitializeError).
			WithMessage("failed to parse config file").
			WithError(err)
	}
	config = loaded
	return config, nil
}

// GetConfig returns the last loaded configuration.
func GetConfig() *Config {
	return config
}

func splitCommaList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GetNotifyMails returns the global recipients added to every deployment mail.
func (c GeneralConfig) GetNotifyMails() []string {
	return splitCommaList(c.NotifyMails)
}

// GetCheckReleasesFrequency returns the release auditor period, default 5 minutes.
func (c GeneralConfig) GetCheckReleasesFrequency() time.Duration {
	if c.CheckReleasesFrequencySeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.CheckReleasesFrequencySeconds) * time.Second
}

// GetCheckReleasesIgnoreEnvironments returns environment names excluded from auditing.
func (c GeneralConfig) GetCheckReleasesIgnoreEnvironments() []string {
	return splitCommaList(c.CheckReleasesIgnoreEnvironments)
}

// GetCleanerMaxUnusedAge returns how long an unused mirror is kept, default 20 days.
func (c GeneralConfig) GetCleanerMaxUnusedAge() time.Duration {
	if c.CleanerMaxUnusedAgeDays <= 0 {
		return 20 * 24 * time.Hour
	}
	return time.Duration(c.CleanerMaxUnusedAgeDays) * 24 * time.Hour
}

// GetDeployerWorkers returns the executor count, default 5.
func (c GeneralConfig) GetDeployerWorkers() int {
	if c.DeployerWorkers <= 0 {
		return 5
	}
	return c.DeployerWorkers
}

// GetFetchWorkers returns the async fetcher count, default 3.
func (c GeneralConfig) GetFetchWorkers() int {
	if c.FetchWorkers <= 0 {
		return 3
	}
	return c.FetchWorkers
}

// GetDeployersURLs returns every configured deployer URL.
func (c ClusterConfig) GetDeployersURLs() []string {
	return splitCommaList(c.DeployersURLs)
}

// GetOtherDeployersURLs returns the peer URLs, this instance excluded.
func (c ClusterConfig) GetOtherDeployersURLs() []string {
	var out []string
	for _, url := range c.GetDeployersURLs() {
		if url != c.ThisDeployerURL {
			out = append(out, url)
		}
	}
	return out
}

// GetUpdateFrequency returns the inventory checker period, default 30 minutes.
func (c InventoryConfig) GetUpdateFrequency() time.Duration {
	if c.UpdateFrequencyMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.UpdateFrequencyMinutes) * time.Minute
}
