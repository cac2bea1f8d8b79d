// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Command primus-deploy runs the deployer daemon: the supervisor spawns the
// API, the websocket hub and every background worker, then waits for SIGTERM.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/AMD-AGI/Primus-Deploy/pkg/api"
	"github.com/AMD-AGI/Primus-Deploy/pkg/config"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/deploy"
	"github.com/AMD-AGI/Primus-Deploy/pkg/health"
	"github.com/AMD-AGI/Primus-Deploy/pkg/integration"
	"github.com/AMD-AGI/Primus-Deploy/pkg/inventory"
	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
	"github.com/AMD-AGI/Primus-Deploy/pkg/mail"
	"github.com/AMD-AGI/Primus-Deploy/pkg/notification"
	"github.com/AMD-AGI/Primus-Deploy/pkg/queue"
	"github.com/AMD-AGI/Primus-Deploy/pkg/sql"
	"github.com/AMD-AGI/Primus-Deploy/pkg/supervisor"
	"github.com/AMD-AGI/Primus-Deploy/pkg/websocket"
	"github.com/AMD-AGI/Primus-Deploy/pkg/worker"
)

func main() {
	configPath := flag.String("f", "/etc/primus-deploy/config.yaml", "path to the settings file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "could not start the deployer: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	log.Infof("=== Starting the Deployer ===")
	log.Infof("Using configuration file at %s", configPath)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Log != nil {
		if err := log.Init(cfg.Log); err != nil {
			return err
		}
	}

	if _, err := sql.InitDefault(cfg.Database); err != nil {
		return err
	}
	if err := database.AutoMigrate(); err != nil {
		return err
	}

	provider, err := integration.Build(cfg.Integration.Provider)
	if err != nil {
		return err
	}

	registry := health.NewRegistry()
	mailer := mail.NewMailer()
	hub := websocket.NewHub(cfg.General.WebsocketPort)
	websocketNotifier := notification.NewWebSocketNotifier(hub)

	sinks := []notification.Notifier{
		notification.NewMailNotifier(mailer, cfg.Mail.Sender, cfg.General.GetNotifyMails()),
		websocketNotifier,
		notification.NewGraphiteNotifier(cfg.General.CarbonHost, cfg.General.CarbonPort),
		notification.NewRemoteDeployerNotifier(
			cfg.Cluster.GetOtherDeployersURLs(),
			cfg.Cluster.ThisDeployerUsername,
			cfg.Cluster.ThisDeployerToken,
		),
	}
	sinks = append(sinks, provider.BuildNotifiers()...)
	notifier := notification.NewCollection(sinks...)

	deploymentQueue := queue.NewDeploymentQueue()
	fetchQueue := worker.NewFetchQueue()

	generalConfig := deploy.GeneralConfig{
		BaseReposPath:   cfg.General.LocalRepoPath,
		HAProxyUser:     cfg.General.HAProxyUser,
		HAProxyPassword: cfg.General.HAProxyPass,
		NotifyMails:     cfg.General.GetNotifyMails(),
		MailSender:      cfg.Mail.Sender,
	}

	sup := supervisor.New(registry)
	sup.Add(hub)
	sup.Add(mail.NewWorker(mailer, cfg.Mail.MTA))

	for i := 0; i < cfg.General.GetDeployerWorkers(); i++ {
		sup.Add(worker.NewDeployerWorker(deploymentQueue, generalConfig, notifier,
			provider.DetectArtifact, mailer, strconv.Itoa(i)))
	}
	for i := 1; i <= cfg.General.GetFetchWorkers(); i++ {
		sup.Add(worker.NewAsyncFetchWorker(fetchQueue, cfg.General.LocalRepoPath, notifier,
			fmt.Sprintf("async-fetch-worker-%d", i)))
	}
	sup.Add(worker.NewCheckReleasesWorker(
		cfg.General.GetCheckReleasesFrequency(),
		cfg.General.GetCheckReleasesIgnoreEnvironments(),
		registry,
	))
	sup.Add(worker.NewCleanerWorker(cfg.General.LocalRepoPath, cfg.General.GetCleanerMaxUnusedAge()))

	if cfg.Inventory.Activate {
		inventoryHost := inventory.NewClient(cfg.Inventory.APIHost)
		updateQueue := inventory.NewUpdateQueue()
		sup.Add(inventory.NewUpdateChecker(inventoryHost, updateQueue, cfg.Inventory.GetUpdateFrequency()))
		sup.Add(inventory.NewAsyncInventoryWorker(inventoryHost, updateQueue))
	}

	sup.Add(api.NewServer(cfg, deploymentQueue, notifier, websocketNotifier, fetchQueue,
		provider.Authenticator(), registry))

	go sup.Monitor()
	notifier.Dispatch(notification.DeployerStarted())
	log.Infof("Deployer initialization is complete")

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	<-signals
	log.Infof("Received termination signal, will exit after cleanup.")

	sup.Shutdown()
	notifier.Dispatch(notification.DeployerStopped())
	log.Infof("** Deployer stopped **")
	return nil
}
