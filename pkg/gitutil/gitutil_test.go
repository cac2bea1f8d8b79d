// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package gitutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathToFilename(t *testing.T) {
	assert.Equal(t, "_srv_repos_my-app_prod", pathToFilename("/srv/repos/my-app_prod"))
	assert.Equal(t, "app_(beta)", pathToFilename("app (beta)"))
}

func TestBuildRepoURL(t *testing.T) {
	assert.Equal(t, "git@git.example.com:org/app", BuildRepoURL("org/app", "git.example.com"))
	assert.Equal(t, "ssh://git@git.example.com:2222/org/app",
		BuildRepoURL("org/app", "ssh://git@git.example.com:2222"))
	assert.Equal(t, "ssh://git@git.example.com:2222/org/app",
		BuildRepoURL("org/app", "ssh://git@git.example.com:2222/"))
}

// The fetch and write locks are disjoint: holding one must not block the other.
func TestFetchAndWriteLocksAreDisjoint(t *testing.T) {
	LocksFolder = t.TempDir()
	repoPath := "/srv/repos/disjoint-test"

	writeAcquired := make(chan struct{})
	err := LockRepositoryFetch(repoPath, true, func(*FetchRepository) error {
		go func() {
			defer close(writeAcquired)
			_ = LockRepositoryWrite(repoPath, func(*WriteRepository) error {
				return nil
			})
		}()
		select {
		case <-writeAcquired:
		case <-time.After(2 * time.Second):
			t.Error("write lock was blocked by the fetch lock")
		}
		return nil
	})
	require.NoError(t, err)
}

// A non-blocking fetch acquisition fails fast while another fetch is running.
func TestFetchLockNonBlocking(t *testing.T) {
	LocksFolder = t.TempDir()
	repoPath := "/srv/repos/nonblocking-test"

	err := LockRepositoryFetch(repoPath, true, func(*FetchRepository) error {
		inner := LockRepositoryFetch(repoPath, false, func(*FetchRepository) error {
			t.Error("the second fetch lock should not have been acquired")
			return nil
		})
		assert.ErrorIs(t, inner, ErrAlreadyLocked)
		return nil
	})
	require.NoError(t, err)
}

func TestParseCommitLog(t *testing.T) {
	out := "abc123\x1falice\x1f1500000000\x1finitial commit\x1e" +
		"def456\x1fbob\x1f1500000100\x1fsecond commit\x1e"
	commits, err := parseCommitLog(out)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, "abc123", commits[0].Hexsha)
	assert.Equal(t, "alice", commits[0].Committer)
	assert.Equal(t, "initial commit", commits[0].Message)
	assert.True(t, commits[0].Deployable)
	assert.Equal(t, time.Unix(1500000000, 0).UTC(), commits[0].AuthoredDate)
}
