// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deployer_queue_jobs_enqueued_total",
		Help: "Jobs appended to a tube",
	}, []string{"tube"})

	jobsReserved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deployer_queue_jobs_reserved_total",
		Help: "Jobs reserved by a worker",
	}, []string{"tube"})

	jobsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deployer_queue_jobs_deleted_total",
		Help: "Jobs deleted after completion",
	}, []string{"tube"})

	jobsReleased = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deployer_queue_jobs_released_total",
		Help: "Jobs released back to the ready state",
	}, []string{"tube"})
)
