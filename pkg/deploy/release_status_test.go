// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package deploy

import (
	"testing"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/executil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withStubbedSSH(t *testing.T, stub func(host executil.Host, cmd []string, timeout time.Duration) executil.Result) {
	t.Helper()
	previous := sshRunner
	sshRunner = stub
	t.Cleanup(func() { sshRunner = previous })
}

func TestGetReleaseStatusParsesManifest(t *testing.T) {
	withStubbedSSH(t, func(host executil.Host, cmd []string, _ time.Duration) executil.Result {
		assert.Equal(t, []string{"cat", "/var/www/app/.git_release"}, cmd)
		return executil.Result{
			ExitCode: 0,
			Stdout:   "master\nabc123\n2026-07-01T10:00:00.000000\n/var/www/app\n",
		}
	})
	status := GetReleaseStatus(executil.Host{Name: "s1", Username: "deploy", Port: 22}, "/var/www/app", 0)
	require.Empty(t, status.Error())
	assert.Equal(t, "abc123", status.Release().Commit)
	assert.Equal(t, "commit abc123", status.FormatCommit())
}

func TestGetReleaseStatusSSHFailure(t *testing.T) {
	withStubbedSSH(t, func(executil.Host, []string, time.Duration) executil.Result {
		return executil.Result{ExitCode: 255, Stderr: "connection refused"}
	})
	status := GetReleaseStatus(executil.Host{Name: "s1"}, "/var/www/app", 0)
	assert.NotEmpty(t, status.Error())
	assert.Equal(t, 255, status.ErrorCode())
	assert.Equal(t, "unknown", status.FormatCommit())
}

func TestGetReleaseStatusParseFailure(t *testing.T) {
	withStubbedSSH(t, func(executil.Host, []string, time.Duration) executil.Result {
		return executil.Result{ExitCode: 0, Stdout: "garbage"}
	})
	status := GetReleaseStatus(executil.Host{Name: "s1"}, "/var/www/app", 0)
	assert.Equal(t, "Could not parse the .git_release file", status.Error())
	assert.Equal(t, 0, status.ErrorCode())
}

func TestReleaseStatusToDict(t *testing.T) {
	withStubbedSSH(t, func(executil.Host, []string, time.Duration) executil.Result {
		return executil.Result{ExitCode: 1, Stderr: "no such file"}
	})
	status := GetReleaseStatus(executil.Host{Name: "s1"}, "/var/www/app", 0)
	dict := status.ToDict(4, 7)
	assert.Equal(t, "4_7", dict["id"])
	assert.Equal(t, false, dict["get_info_successful"])
}

func TestConcurrentGetReleaseStatusPreservesOrder(t *testing.T) {
	withStubbedSSH(t, func(host executil.Host, _ []string, _ time.Duration) executil.Result {
		return executil.Result{
			ExitCode: 0,
			Stdout:   "master\ncommit-" + host.Name + "\n2026-07-01T10:00:00.000000\n/var/www/app\n",
		}
	})
	targets := []ReleaseTarget{
		{Host: executil.Host{Name: "s1"}, TargetPath: "/var/www/app"},
		{Host: executil.Host{Name: "s2"}, TargetPath: "/var/www/app"},
		{Host: executil.Host{Name: "s3"}, TargetPath: "/var/www/app"},
	}
	statuses := ConcurrentGetReleaseStatus(targets, time.Second)
	require.Len(t, statuses, 3)
	assert.Equal(t, "commit-s1", statuses[0].Release().Commit)
	assert.Equal(t, "commit-s2", statuses[1].Release().Commit)
	assert.Equal(t, "commit-s3", statuses[2].Release().Commit)
}
