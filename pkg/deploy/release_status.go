// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package deploy

import (
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/executil"
	"github.com/AMD-AGI/Primus-Deploy/pkg/gitutil"
)

// releaseProbeTimeout bounds the ssh cat of one manifest.
const releaseProbeTimeout = 4 * time.Second

// maxConcurrentProbes bounds fan-out when probing many servers at once.
const maxConcurrentProbes = 20

// ReleaseStatus is the outcome of reading one .git_release manifest: either a
// parsed release or an error descriptor carrying the ssh exit code.
type ReleaseStatus struct {
	release   *gitutil.Release
	err       string
	errorCode int
}

// ReleaseStatusFromError builds an error status.
func ReleaseStatusFromError(message string, code int) ReleaseStatus {
	return ReleaseStatus{err: message, errorCode: code}
}

// ReleaseStatusFromRelease builds a success status.
func ReleaseStatusFromRelease(release *gitutil.Release) ReleaseStatus {
	return ReleaseStatus{release: release}
}

// Release returns the parsed manifest, nil on error statuses.
func (s ReleaseStatus) Release() *gitutil.Release {
	return s.release
}

// Error returns the error message, empty on success.
func (s ReleaseStatus) Error() string {
	return s.err
}

// ErrorCode returns the ssh exit code of a failed probe (255 means the ssh
// transport itself failed).
func (s ReleaseStatus) ErrorCode() int {
	return s.errorCode
}

// FormatCommit renders the commit for log messages.
func (s ReleaseStatus) FormatCommit() string {
	if s.release != nil {
		return fmt.Sprintf("commit %s", s.release.Commit)
	}
	return "unknown"
}

// ToDict renders the status for the servers endpoint.
func (s ReleaseStatus) ToDict(environmentID, serverID int64) map[string]interface{} {
	id := fmt.Sprintf("%d_%d", environmentID, serverID)
	if s.err != "" {
		return map[string]interface{}{
			"id":                  id,
			"server_id":           serverID,
			"environment_id":      environmentID,
			"get_info_successful": false,
			"get_info_error":      s.err,
		}
	}
	return map[string]interface{}{
		"id":                  id,
		"server_id":           serverID,
		"environment_id":      environmentID,
		"get_info_successful": true,
		"release": map[string]interface{}{
			"branch":          s.release.Branch,
			"commit":          s.release.Commit,
			"deployment_date": s.release.DeploymentDate.UTC().Format(time.RFC3339Nano),
			"in_progress":     s.release.InProgress,
		},
	}
}

// sshRunner is replaced in tests.
var sshRunner = executil.RunCmdBySSH

// GetReleaseStatus reads and parses the manifest of a target path on a host.
func GetReleaseStatus(host executil.Host, targetPath string, timeout time.Duration) ReleaseStatus {
	if timeout <= 0 {
		timeout = releaseProbeTimeout
	}
	res := sshRunner(host, []string{"cat", path.Join(targetPath, gitutil.ReleaseFileName)}, timeout)
	if res.ExitCode != 0 {
		return ReleaseStatusFromError(res.Stdout+"\n"+res.Stderr, res.ExitCode)
	}
	release, err := gitutil.ParseReleaseFileContents(res.Stdout)
	if err != nil {
		return ReleaseStatusFromError("Could not parse the .git_release file", 0)
	}
	return ReleaseStatusFromRelease(release)
}

// ReleaseTarget names one manifest to probe.
type ReleaseTarget struct {
	Host       executil.Host
	TargetPath string
}

// ConcurrentGetReleaseStatus probes every target with a bounded worker pool,
// preserving input order in the result.
func ConcurrentGetReleaseStatus(targets []ReleaseTarget, timeout time.Duration) []ReleaseStatus {
	if len(targets) == 0 {
		return nil
	}
	out := make([]ReleaseStatus, len(targets))
	sem := make(chan struct{}, maxConcurrentProbes)
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target ReleaseTarget) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			out[i] = GetReleaseStatus(target.Host, target.TargetPath, timeout)
		}(i, target)
	}
	wg.Wait()
	return out
}
