// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package supervisor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/health"
	"github.com/stretchr/testify/assert"
)

// testWorker runs until stopped, optionally panicking a few times first.
type testWorker struct {
	name       string
	panicsLeft int32
	starts     int32
	stop       chan struct{}
}

func newTestWorker(name string, panics int32) *testWorker {
	return &testWorker{name: name, panicsLeft: panics, stop: make(chan struct{})}
}

func (w *testWorker) Name() string { return w.name }

func (w *testWorker) Start() {
	atomic.AddInt32(&w.starts, 1)
	if atomic.AddInt32(&w.panicsLeft, -1) >= 0 {
		panic("worker crashed")
	}
	<-w.stop
}

func (w *testWorker) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
}

func TestSupervisorRestartsPanickedWorker(t *testing.T) {
	sup := New(health.NewRegistry())
	sup.restartDelay = 10 * time.Millisecond

	w := newTestWorker("flappy", 2)
	sup.Add(w)

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&w.starts) < 3 {
		select {
		case <-deadline:
			t.Fatalf("worker was started %d times, expected 3", atomic.LoadInt32(&w.starts))
		case <-time.After(5 * time.Millisecond):
		}
	}
	sup.Shutdown()
}

func TestSupervisorShutdownStopsWorkers(t *testing.T) {
	sup := New(health.NewRegistry())
	w := newTestWorker("steady", 0)
	sup.Add(w)

	// Give the worker a moment to block on its stop channel.
	time.Sleep(20 * time.Millisecond)
	done := make(chan struct{})
	go func() {
		sup.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&w.starts))
}

func TestSupervisorDoesNotRestartDuringShutdown(t *testing.T) {
	sup := New(health.NewRegistry())
	sup.restartDelay = time.Hour // a pending restart must be interrupted

	w := newTestWorker("crasher", 100)
	sup.Add(w)
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		sup.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown was blocked by the restart delay")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&w.starts))
}
