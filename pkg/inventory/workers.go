// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package inventory

import (
	"context"
	"math/rand"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
)

// applierPollTimeout bounds one blocking queue read so stop is observed.
const applierPollTimeout = 2 * time.Second

// resyncWarningThreshold triggers a warning after this many consecutive full
// resyncs: usually a sign one cluster keeps failing to apply.
const resyncWarningThreshold = 5

// AsyncInventoryWorker is the applier: it drains the update queue and
// reconciles each object with the local database.
type AsyncInventoryWorker struct {
	host  Host
	queue *UpdateQueue
	stop  chan struct{}
}

// NewAsyncInventoryWorker creates the applier.
func NewAsyncInventoryWorker(host Host, queue *UpdateQueue) *AsyncInventoryWorker {
	return &AsyncInventoryWorker{host: host, queue: queue, stop: make(chan struct{})}
}

// Name identifies the worker for the supervisor.
func (w *AsyncInventoryWorker) Name() string {
	return "async-inventory-updater"
}

// Start consumes the queue until Stop is called.
func (w *AsyncInventoryWorker) Start() {
	for {
		select {
		case <-w.stop:
			return
		default:
		}
		item, ok := w.queue.Get(applierPollTimeout)
		if !ok {
			continue
		}
		switch item.Type {
		case TypeCluster:
			if err := w.SyncCluster(context.Background(), item.Key); err != nil {
				log.Errorf("[%s] error when syncing cluster %s: %v", w.Name(), item.Key, err)
			}
		default:
			log.Warnf("[%s] unknown update type %d for key %s, dropping it", w.Name(), item.Type, item.Key)
		}
	}
}

// Stop makes Start return at the next suspension point.
func (w *AsyncInventoryWorker) Stop() {
	close(w.stop)
}

// SyncCluster reconciles one cluster with the inventory's view of it.
func (w *AsyncInventoryWorker) SyncCluster(ctx context.Context, clusterKey string) error {
	status, clusterDTO, serverDTOs, err := w.host.GetCluster(ctx, clusterKey)
	if err != nil {
		return err
	}
	local, err := database.GetFacade().GetCluster().GetClusterByInventoryKey(ctx, clusterKey)
	if err != nil {
		return err
	}

	var result string
	switch status {
	case ClusterStatusExisting:
		if local == nil {
			if err := AddCluster(ctx, clusterDTO, serverDTOs); err != nil {
				return err
			}
			result = "created"
		} else {
			if err := UpdateCluster(ctx, clusterDTO, serverDTOs); err != nil {
				return err
			}
			result = "updated"
		}
	case ClusterStatusDeleted:
		result, err = DeleteCluster(ctx, clusterKey)
		if err != nil {
			return err
		}
	default:
		log.Warnf("[%s] unknown status '%s' for cluster %s", w.Name(), status, clusterKey)
		return nil
	}
	log.Infof("[%s] cluster %s: successfully %s", w.Name(), clusterKey, result)
	return nil
}

// UpdateChecker periodically compares the local cluster fingerprint with the
// inventory and schedules a resync when they diverge.
type UpdateChecker struct {
	host      Host
	queue     *UpdateQueue
	frequency time.Duration
	stop      chan struct{}

	successiveResync int
	// sleepStep bounds every sleep so the stop signal is observed promptly.
	sleepStep time.Duration
	randInt   func(n int64) int64
}

// NewUpdateChecker creates the checker.
func NewUpdateChecker(host Host, queue *UpdateQueue, frequency time.Duration) *UpdateChecker {
	return &UpdateChecker{
		host:      host,
		queue:     queue,
		frequency: frequency,
		stop:      make(chan struct{}),
		sleepStep: 5 * time.Second,
		randInt:   rand.Int63n,
	}
}

// Name identifies the worker for the supervisor.
func (c *UpdateChecker) Name() string {
	return "inventory-update-checker"
}

// Start delays a random fraction of the period (so several deployer instances
// do not resync simultaneously), then checks on every period.
func (c *UpdateChecker) Start() {
	if !c.sleepInterruptible(time.Duration(c.randInt(int64(c.frequency)))) {
		return
	}
	for {
		log.Infof("[%s] inventory worker woke up", c.Name())
		c.CheckOnce(context.Background())
		if !c.sleepInterruptible(c.frequency) {
			return
		}
	}
}

// Stop makes Start return at the next suspension point.
func (c *UpdateChecker) Stop() {
	close(c.stop)
}

// sleepInterruptible sleeps in small steps, returning false when stopped.
func (c *UpdateChecker) sleepInterruptible(total time.Duration) bool {
	remaining := total
	for remaining > 0 {
		step := c.sleepStep
		if step > remaining {
			step = remaining
		}
		select {
		case <-c.stop:
			return false
		case <-time.After(step):
		}
		remaining -= step
	}
	return true
}

// CheckOnce runs a single divergence check.
func (c *UpdateChecker) CheckOnce(ctx context.Context) {
	// An update is still being applied: checking now would re-enqueue the
	// same clusters. Skip the cycle entirely.
	if !c.queue.Empty() {
		log.Infof("[%s] an update is in progress, retry next cycle", c.Name())
		return
	}

	remoteFingerprint, err := c.host.GetLastUpdate(ctx)
	if err != nil {
		log.Errorf("[%s] communication issues with the inventory. Retry in %s: %v", c.Name(), c.frequency, err)
		return
	}
	localClusters, err := database.GetFacade().GetCluster().ListClusters(ctx)
	if err != nil {
		log.Errorf("[%s] could not list local clusters: %v", c.Name(), err)
		return
	}
	if Fingerprint(localClusters) == remoteFingerprint {
		log.Infof("[%s] clusters up to date", c.Name())
		c.successiveResync = 0
		return
	}

	inventoryClusters, err := c.host.GetClusters(ctx)
	if err != nil {
		log.Errorf("[%s] communication issues with the inventory. Retry in %s: %v", c.Name(), c.frequency, err)
		return
	}
	// Also resync every local cluster the inventory no longer lists, so
	// deletions are noticed.
	known := map[string]struct{}{}
	for _, key := range inventoryClusters {
		known[key] = struct{}{}
	}
	keys := append([]string(nil), inventoryClusters...)
	for _, cluster := range localClusters {
		if cluster.InventoryKey == nil {
			continue
		}
		if _, ok := known[*cluster.InventoryKey]; !ok {
			keys = append([]string{*cluster.InventoryKey}, keys...)
		}
	}

	log.Infof("[%s] syncing %d clusters...", c.Name(), len(keys))
	for _, key := range keys {
		c.queue.Put(UpdateItem{Type: TypeCluster, Key: key})
	}

	c.successiveResync++
	if c.successiveResync > resyncWarningThreshold {
		log.Warnf("[%s] full sync often run, it might be an error with a cluster: see logs for more info.", c.Name())
	}
}
