// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package supervisor spawns and monitors every long-lived worker of the
// deployer, restarting them when they panic and shutting them down in order.
package supervisor

import (
	"sync"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/health"
	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
)

// HealthKeyWorkers is the health registry key flagged when a worker died
// without being restarted.
const HealthKeyWorkers = "workers"

// restartDelay is waited before restarting a panicked worker.
const restartDelay = 30 * time.Second

// monitorPeriod is how often worker liveness is checked.
const monitorPeriod = 20 * time.Second

// joinTimeout bounds how long shutdown waits on each worker.
const joinTimeout = 10 * time.Second

// Worker is a long-lived runner managed by the supervisor. Start blocks until
// Stop is called; Stop may be called from any goroutine.
type Worker interface {
	Name() string
	Start()
	Stop()
}

type supervised struct {
	worker Worker
	done   chan struct{}
	// alive is cleared when the runner goroutine exits for good.
	alive bool
}

// Supervisor owns the worker fleet.
type Supervisor struct {
	mu       sync.Mutex
	workers  []*supervised
	running  bool
	stopped  chan struct{}
	health   *health.Registry
	// restartDelay is a field so tests can shorten it.
	restartDelay time.Duration
}

// New creates a supervisor publishing liveness to the health registry.
func New(registry *health.Registry) *Supervisor {
	return &Supervisor{
		stopped:      make(chan struct{}),
		health:       registry,
		restartDelay: restartDelay,
	}
}

// Add registers and starts a worker. The worker runs in its own goroutine; a
// panic is logged and the worker is restarted after a delay, unless the
// supervisor is shutting down.
func (s *Supervisor) Add(worker Worker) {
	sv := &supervised{worker: worker, done: make(chan struct{}), alive: true}
	s.mu.Lock()
	s.workers = append(s.workers, sv)
	s.running = true
	s.mu.Unlock()

	log.Debugf("Starting worker %s", worker.Name())
	go s.run(sv)
}

func (s *Supervisor) run(sv *supervised) {
	defer close(sv.done)
	for {
		exited := s.runOnce(sv)
		if exited {
			// A clean exit outside shutdown is a dead worker: flag it for
			// the monitor instead of restarting.
			select {
			case <-s.stopped:
			default:
				s.mu.Lock()
				sv.alive = false
				s.mu.Unlock()
			}
			return
		}
		// The worker panicked. Restart it unless we are shutting down.
		select {
		case <-s.stopped:
			s.mu.Lock()
			sv.alive = false
			s.mu.Unlock()
			return
		case <-time.After(s.restartDelay):
		}
		log.Warnf("Restarting worker %s", sv.worker.Name())
	}
}

// runOnce runs the worker until it returns; true means a clean exit.
func (s *Supervisor) runOnce(sv *supervised) (clean bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("The worker %s died: %v. It will be restarted in %s.", sv.worker.Name(), r, s.restartDelay)
			clean = false
		}
	}()
	sv.worker.Start()
	return true
}

// Monitor periodically verifies worker liveness until shutdown; a worker that
// died without restart degrades the health registry.
func (s *Supervisor) Monitor() {
	for {
		select {
		case <-s.stopped:
			return
		case <-time.After(monitorPeriod):
		}
		s.mu.Lock()
		for _, sv := range s.workers {
			if !sv.alive {
				log.Errorf("The worker %s died. You should examine the logs to find out what went wrong.", sv.worker.Name())
				s.health.AddDegraded(HealthKeyWorkers, "worker "+sv.worker.Name()+" died")
			}
		}
		s.mu.Unlock()
	}
}

// Shutdown stops every worker and waits up to the join timeout for each.
// Workers still alive are logged loudly but not force-killed: SIGKILL is the
// documented escape hatch.
func (s *Supervisor) Shutdown() {
	log.Infof("Stopping the deployer (this can take a few seconds)...")
	close(s.stopped)

	s.mu.Lock()
	workers := append([]*supervised(nil), s.workers...)
	s.running = false
	s.mu.Unlock()

	for _, sv := range workers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("Error when stopping the worker %s: %v", sv.worker.Name(), r)
				}
			}()
			sv.worker.Stop()
		}()
	}
	for _, sv := range workers {
		select {
		case <-sv.done:
		case <-time.After(joinTimeout):
			log.Errorf("The worker '%s' is still alive after %s (maybe because of a deployment in progress?). "+
				"If you want to force the exit, send SIGKILL to the deployer daemon.", sv.worker.Name(), joinTimeout)
		}
	}
}
