// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package deploy

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrNoArtifactDetected is returned by detectors that do not recognize the
// repository; the engine then falls back to GitArtifact.
var ErrNoArtifactDetected = errors.New("no artifact detected")

// Artifact is the thing actually copied to the target servers. The default
// implementation is the repository working tree itself; integration providers
// may substitute built artifacts (tarballs pulled from a build pipeline).
type Artifact interface {
	// Obtain performs any necessary action (download, build) and returns the
	// local folder to copy to the target servers.
	Obtain() (string, error)
	// Cleanup removes temporary files after the deployment.
	Cleanup() error
	// ShouldRunPredeployScripts reports whether predeploy.sh and the local
	// test script apply to this artifact type.
	ShouldRunPredeployScripts() bool
	// Description is a short label for the deployment log.
	Description() string
	// LocalPath is the folder to copy, valid after Obtain.
	LocalPath() string
}

// ArtifactDetector inspects the checked-out repository and returns an
// artifact, or ErrNoArtifactDetected.
type ArtifactDetector func(localRepoPath, gitServer, repositoryName, commit, environmentName string) (Artifact, error)

// GitArtifact deploys the repository working tree as is.
type GitArtifact struct {
	localPath string
}

// NewGitArtifact wraps the mirror working tree.
func NewGitArtifact(localRepoPath string) *GitArtifact {
	if !strings.HasSuffix(localRepoPath, "/") {
		localRepoPath += "/"
	}
	return &GitArtifact{localPath: localRepoPath}
}

func (a *GitArtifact) Obtain() (string, error) {
	return a.localPath, nil
}

func (a *GitArtifact) Cleanup() error {
	return nil
}

func (a *GitArtifact) ShouldRunPredeployScripts() bool {
	return true
}

func (a *GitArtifact) Description() string {
	return "Git (run the predeploy scripts, then deploy the repository contents)"
}

func (a *GitArtifact) LocalPath() string {
	return a.localPath
}
