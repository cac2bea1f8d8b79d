// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package database

import (
	"context"
	"errors"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"gorm.io/gorm"
)

// JobFacadeInterface defines the database operation interface for the job tube
type JobFacadeInterface interface {
	PutJob(ctx context.Context, job *model.DeploymentJob) error
	// ReleaseExpiredReservations puts back every reserved job whose visibility
	// deadline passed and bumps its release counter. Returns the count.
	ReleaseExpiredReservations(ctx context.Context, tube string, now time.Time) (int64, error)
	// TryReserveJob atomically claims the oldest ready job of the tube.
	// Returns nil when the tube is empty or the claim was lost to another worker.
	TryReserveJob(ctx context.Context, tube, workerID string, now time.Time) (*model.DeploymentJob, error)
	DeleteJob(ctx context.Context, id int64) error
	// ReleaseJob puts a reserved job back in the ready state after a delay.
	ReleaseJob(ctx context.Context, id int64, delay time.Duration, now time.Time) error
	GetJob(ctx context.Context, id int64) (*model.DeploymentJob, error)
	CountReadyJobs(ctx context.Context, tube string) (int64, error)
}

// JobFacade implements JobFacadeInterface
type JobFacade struct {
	BaseFacade
}

// NewJobFacade creates a new JobFacade instance
func NewJobFacade() JobFacadeInterface {
	return &JobFacade{}
}

func (f *JobFacade) PutJob(ctx context.Context, job *model.DeploymentJob) error {
	return f.getDB().WithContext(ctx).Create(job).Error
}

func (f *JobFacade) ReleaseExpiredReservations(ctx context.Context, tube string, now time.Time) (int64, error) {
	res := f.getDB().WithContext(ctx).Model(&model.DeploymentJob{}).
		Where("tube = ?", tube).
		Where("state = ?", model.JobStateReserved).
		Where("reserved_at + (ttr_seconds * interval '1 second') < ?", now).
		Updates(map[string]interface{}{
			"state":       model.JobStateReady,
			"reserved_at": nil,
			"reserved_by": "",
			"releases":    gorm.Expr("releases + 1"),
			"ready_at":    now,
		})
	return res.RowsAffected, res.Error
}

func (f *JobFacade) TryReserveJob(ctx context.Context, tube, workerID string, now time.Time) (*model.DeploymentJob, error) {
	var job model.DeploymentJob
	err := f.getDB().WithContext(ctx).
		Where("tube = ?", tube).
		Where("state = ?", model.JobStateReady).
		Where("ready_at <= ?", now).
		Order("id ASC").
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	// Optimistic claim: only one worker wins the state transition.
	res := f.getDB().WithContext(ctx).Model(&model.DeploymentJob{}).
		Where("id = ?", job.ID).
		Where("state = ?", model.JobStateReady).
		Updates(map[string]interface{}{
			"state":       model.JobStateReserved,
			"reserved_at": now,
			"reserved_by": workerID,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	job.State = model.JobStateReserved
	job.ReservedAt = &now
	job.ReservedBy = workerID
	return &job, nil
}

func (f *JobFacade) DeleteJob(ctx context.Context, id int64) error {
	return f.getDB().WithContext(ctx).Delete(&model.DeploymentJob{}, id).Error
}

func (f *JobFacade) ReleaseJob(ctx context.Context, id int64, delay time.Duration, now time.Time) error {
	return f.getDB().WithContext(ctx).Model(&model.DeploymentJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"state":       model.JobStateReady,
			"reserved_at": nil,
			"reserved_by": "",
			"releases":    gorm.Expr("releases + 1"),
			"ready_at":    now.Add(delay),
		}).Error
}

func (f *JobFacade) GetJob(ctx context.Context, id int64) (*model.DeploymentJob, error) {
	var job model.DeploymentJob
	err := f.getDB().WithContext(ctx).First(&job, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (f *JobFacade) CountReadyJobs(ctx context.Context, tube string) (int64, error) {
	var count int64
	err := f.getDB().WithContext(ctx).Model(&model.DeploymentJob{}).
		Where("tube = ?", tube).
		Where("state = ?", model.JobStateReady).
		Count(&count).Error
	return count, err
}
