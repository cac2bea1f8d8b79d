// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package deploy

import (
	"context"
	"fmt"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
	"github.com/AMD-AGI/Primus-Deploy/pkg/notification"
)

// DeploymentError marks a failed step; the engine turns it into a FAILED
// deployment.
type DeploymentError struct {
	Message string
}

func (e *DeploymentError) Error() string {
	return e.Message
}

// Step is one unit of the deployment pipeline. Run streams log entries
// through the StepContext as they happen; returning an error is a hard
// failure. Emitting an error-severity entry fails the step once it finishes,
// unless AllowErrors is set.
type Step struct {
	Description string
	Run         func(sc *StepContext) error
	// AllowErrors keeps the deployment going when the step emitted
	// error-severity entries (hard failures still abort).
	AllowErrors bool
}

// StepContext persists log entries as they are emitted, so a crash leaves a
// partial but consistent trail.
type StepContext struct {
	ctx     context.Context
	engine  *Engine
	errored bool
}

// Log appends the entry to the deployment log and persists it immediately.
func (sc *StepContext) Log(entry *model.LogEntry) {
	entry.DeployID = sc.engine.view.ID
	sc.engine.writeEntry(entry)
	sc.engine.view.LogEntries = append(sc.engine.view.LogEntries, entry)
	if err := sc.engine.facade.GetDeployment().AppendLogEntry(sc.ctx, entry); err != nil {
		log.Errorf("[deploy %d] could not persist log entry: %v", sc.engine.view.ID, err)
	}
	if entry.Severity == model.SeverityError {
		sc.errored = true
	}
}

// Logf appends an info entry.
func (sc *StepContext) Logf(format string, args ...interface{}) {
	sc.Log(model.NewLogEntry(fmt.Sprintf(format, args...)))
}

// LogAll appends a batch of entries (as produced by executil.Capture).
func (sc *StepContext) LogAll(entries []*model.LogEntry) {
	for _, entry := range entries {
		sc.Log(entry)
	}
}

// Context returns the step's context.
func (sc *StepContext) Context() context.Context {
	return sc.ctx
}

// runStep drives one step: announces it, streams its log entries, and decides
// whether the deployment continues.
func (e *Engine) runStep(ctx context.Context, step Step) error {
	e.logInfof("Running step: %s", step.Description)

	sc := &StepContext{ctx: ctx, engine: e}
	sc.Log(model.NewLogEntry(fmt.Sprintf("Step: %s", step.Description)))
	e.notifier.Dispatch(notification.DeploymentStepStart(e.view, step.Description))

	err := step.Run(sc)
	if err != nil {
		sc.Log(model.NewLogEntryWithSeverity(
			fmt.Sprintf("Error when running step '%s': %s", step.Description, err), model.SeverityError))
		e.notifier.Dispatch(notification.DeploymentStepEnd(e.view, step.Description, true))
		return &DeploymentError{Message: fmt.Sprintf("step '%s' failed: %s", step.Description, err)}
	}

	e.notifier.Dispatch(notification.DeploymentStepEnd(e.view, step.Description, sc.errored))
	if sc.errored && !step.AllowErrors {
		message := fmt.Sprintf("Step '%s' failed", step.Description)
		e.logErrorf("%s", message)
		return &DeploymentError{Message: message}
	}
	return nil
}
