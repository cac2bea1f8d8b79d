// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package worker

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/gitutil"
	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
	"github.com/robfig/cron/v3"
)

// cleanerSchedule fires the cleanup once a day.
const cleanerSchedule = "30 4 * * *"

// CleanerWorker removes mirror directories that no deployment used recently.
type CleanerWorker struct {
	baseReposPath string
	maxUnusedAge  time.Duration
	facade        database.FacadeInterface
	cron          *cron.Cron
	stop          chan struct{}
	now           func() time.Time
}

// NewCleanerWorker creates the cleaner. maxUnusedAge defaults to 20 days.
func NewCleanerWorker(baseReposPath string, maxUnusedAge time.Duration) *CleanerWorker {
	if maxUnusedAge <= 0 {
		maxUnusedAge = 20 * 24 * time.Hour
	}
	return &CleanerWorker{
		baseReposPath: baseReposPath,
		maxUnusedAge:  maxUnusedAge,
		facade:        database.GetFacade(),
		stop:          make(chan struct{}),
		now:           time.Now,
	}
}

// Name identifies the worker for the supervisor.
func (w *CleanerWorker) Name() string {
	return "cleaner-worker"
}

// Start schedules the daily cleanup until Stop is called.
func (w *CleanerWorker) Start() {
	w.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := w.cron.AddFunc(cleanerSchedule, func() {
		if err := w.Cleanup(context.Background()); err != nil {
			log.Errorf("Unexpected error when trying to clean up on-disk directories: %v", err)
		}
	})
	if err != nil {
		log.Errorf("could not schedule the cleaner: %v", err)
		return
	}
	w.cron.Start()
	<-w.stop
	ctx := w.cron.Stop()
	<-ctx.Done()
}

// Stop makes Start return once the in-flight cleanup completes.
func (w *CleanerWorker) Stop() {
	close(w.stop)
}

// Cleanup removes every mirror directory not on the keep-list: a directory is
// kept when its environment's most recent deployment was queued within the
// max unused age.
func (w *CleanerWorker) Cleanup(ctx context.Context) error {
	log.Infof("Cleaner worker wakeup.")
	now := w.now().UTC()

	entries, err := os.ReadDir(w.baseReposPath)
	if err != nil {
		return err
	}
	deletionCandidates := map[string]struct{}{}
	for _, entry := range entries {
		deletionCandidates[entry.Name()] = struct{}{}
	}

	maxQueuedDates, err := w.facade.GetDeployment().MaxQueuedDates(ctx)
	if err != nil {
		return err
	}
	environments, err := w.facade.GetEnvironment().ListEnvironments(ctx, nil)
	if err != nil {
		return err
	}
	toKeep := map[string]struct{}{}
	for _, env := range environments {
		lastQueued, ok := maxQueuedDates[env.ID]
		if !ok {
			continue
		}
		if lastQueued.After(now.Add(-w.maxUnusedAge)) {
			toKeep[env.LocalRepoDirectoryName()] = struct{}{}
		}
	}

	for name := range deletionCandidates {
		if _, keep := toKeep[name]; keep {
			continue
		}
		path := filepath.Join(w.baseReposPath, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		// Both locks must be held: no fetch or deployment may be touching
		// the mirror while it goes away.
		err := gitutil.LockRepositoryFetch(path, true, func(*gitutil.FetchRepository) error {
			return gitutil.LockRepositoryWrite(path, func(*gitutil.WriteRepository) error {
				return os.RemoveAll(path)
			})
		})
		if err != nil {
			log.Errorf("could not delete unused directory %s: %v", path, err)
			continue
		}
		log.Infof("Deleted unused directory %s", path)
	}
	log.Infof("Cleaner worker going to sleep.")
	return nil
}
