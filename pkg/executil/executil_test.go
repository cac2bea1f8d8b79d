// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package executil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecCmdCapturesOutput(t *testing.T) {
	res := ExecCmd([]string{"sh", "-c", "echo out; echo err >&2"}, "", time.Minute)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
}

func TestExecCmdNonZeroExit(t *testing.T) {
	res := ExecCmd([]string{"sh", "-c", "exit 3"}, "", time.Minute)
	assert.Equal(t, 3, res.ExitCode)
}

func TestExecCmdTimeout(t *testing.T) {
	res := ExecCmd([]string{"sleep", "5"}, "", 200*time.Millisecond)
	assert.Equal(t, 1, res.ExitCode)
	assert.True(t, strings.HasPrefix(res.Stderr, "Timeout"), "stderr was: %q", res.Stderr)
}

func TestExecCmdUnknownBinary(t *testing.T) {
	res := ExecCmd([]string{"/does/not/exist"}, "", time.Minute)
	assert.Equal(t, 1, res.ExitCode)
	assert.NotEmpty(t, res.Stderr)
}

func TestExecScriptMissingIsNotAnError(t *testing.T) {
	res := ExecScript(t.TempDir(), "predeploy.sh", nil)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "No script 'predeploy.sh'.", res.Stdout)
}

func TestExecScriptRunsExisting(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "predeploy.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/bash\necho ran $1\n"), 0o755))
	res := ExecScript(dir, "predeploy.sh", []string{"prod"})
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "ran prod\n", res.Stdout)
}

func TestCaptureSeverities(t *testing.T) {
	entries := Capture("step", Result{ExitCode: 0, Stdout: "fine", Stderr: "careful"})
	require.Len(t, entries, 2)
	assert.Equal(t, model.SeverityInfo, entries[0].Severity)
	assert.Equal(t, model.SeverityWarn, entries[1].Severity)

	entries = Capture("step", Result{ExitCode: 2, Stdout: "partial", Stderr: "boom"})
	require.Len(t, entries, 3)
	assert.Equal(t, model.SeverityError, entries[1].Severity)
	assert.Equal(t, model.SeverityError, entries[2].Severity)
	assert.Contains(t, entries[2].Message, "exited with code 2")
}

func TestHostFromServer(t *testing.T) {
	host := HostFromServer(&model.Server{Name: "web1", Port: 2222}, "deploy")
	assert.Equal(t, Host{Name: "web1", Username: "deploy", Port: 2222}, host)

	host = HostFromServer(&model.Server{Name: "web2"}, "deploy")
	assert.Equal(t, 22, host.Port)
}
