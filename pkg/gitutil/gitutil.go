// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package gitutil coordinates access to the local repository mirrors.
//
// Git needs minimal locking, since most of its internal structures are
// immutable. Two hazards remain for non-bare mirrors:
//   - concurrent fetches can race on ref updates (.git/refs/remotes/...);
//     a per-repo "fetch lock" serializes them. If it is already held, the
//     fetch can simply be skipped.
//   - checkouts mutate the working tree; a separate "write lock" covers
//     them. The two locks are disjoint: a fetch may overlap a checkout.
package gitutil

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/executil"
	"github.com/pkg/errors"
)

// LocksFolder hosts the per-mirror lock files.
var LocksFolder = "/tmp/deployerlocks"

const gitTimeout = 600 * time.Second

var sshServerPattern = regexp.MustCompile(`^ssh://.*@.*:\d+`)

// SanitizePathComponent replaces every character outside
// [A-Za-z0-9_()-] with an underscore.
func SanitizePathComponent(path string) string {
	return pathToFilename(path)
}

// pathToFilename sanitizes a mirror path into a lock file name.
func pathToFilename(path string) string {
	out := make([]rune, 0, len(path))
	for _, c := range path {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '(', c == ')':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

func lockFile(repoPath, lockType string) (string, error) {
	if err := os.MkdirAll(LocksFolder, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(LocksFolder, fmt.Sprintf("%s_%s", pathToFilename(repoPath), lockType)), nil
}

// LockRepositoryFetch acquires the fetch lock and hands a fetch-capable
// repository to fn. With blocking false, ErrAlreadyLocked is returned when
// another fetch is in progress.
func LockRepositoryFetch(repoPath string, blocking bool, fn func(repo *FetchRepository) error) error {
	filename, err := lockFile(repoPath, "fetch")
	if err != nil {
		return err
	}
	lock, err := NewFileLock(filename)
	if err != nil {
		return err
	}
	if err := lock.Acquire(blocking); err != nil {
		lock.Release()
		return err
	}
	defer lock.Release()
	return fn(&FetchRepository{LocalRepository{path: repoPath}})
}

// LockRepositoryWrite acquires the write lock and hands a writable repository
// to fn. Acquisition always blocks.
func LockRepositoryWrite(repoPath string, fn func(repo *WriteRepository) error) error {
	filename, err := lockFile(repoPath, "write")
	if err != nil {
		return err
	}
	lock, err := NewFileLock(filename)
	if err != nil {
		return err
	}
	if err := lock.Acquire(true); err != nil {
		lock.Release()
		return err
	}
	defer lock.Release()
	return fn(&WriteRepository{LocalRepository{path: repoPath}})
}

// LockRepositoryClone acquires both locks, then clones if the directory does
// not already contain a repository. Idempotent.
func LockRepositoryClone(remoteURL, repoPath string) (cloned bool, err error) {
	err = LockRepositoryFetch(repoPath, true, func(*FetchRepository) error {
		return LockRepositoryWrite(repoPath, func(*WriteRepository) error {
			if _, statErr := os.Stat(filepath.Join(repoPath, ".git")); statErr == nil {
				return nil
			}
			cloned = true
			return Clone(remoteURL, repoPath)
		})
	})
	return cloned, err
}

// BuildRepoURL derives the remote URL from the repository name and git server.
func BuildRepoURL(repoName, gitServer string) string {
	if sshServerPattern.MatchString(gitServer) {
		if !strings.HasSuffix(gitServer, "/") {
			gitServer += "/"
		}
		return gitServer + repoName
	}
	return fmt.Sprintf("git@%s:%s", gitServer, repoName)
}

// Clone clones the remote into localPath.
func Clone(remoteURL, localPath string) error {
	res := executil.ExecCmd([]string{"git", "clone", remoteURL, localPath}, "", gitTimeout)
	if res.ExitCode != 0 {
		return errors.Errorf("git clone of %s failed: %s", remoteURL, res.Stderr)
	}
	return nil
}

// LocalRepository exposes the operations safe without holding any lock.
type LocalRepository struct {
	path string
}

// NewLocalRepository wraps an existing mirror directory.
func NewLocalRepository(path string) *LocalRepository {
	return &LocalRepository{path: path}
}

func (r *LocalRepository) Path() string {
	return r.path
}

func (r *LocalRepository) git(args ...string) executil.Result {
	return executil.ExecCmd(append([]string{"git"}, args...), r.path, gitTimeout)
}

// Commit is the subset of commit information exposed to the rest of the code.
type Commit struct {
	Message      string    `json:"message"`
	Committer    string    `json:"committer"`
	Hexsha       string    `json:"hexsha"`
	AuthoredDate time.Time `json:"authored_date"`
	Deployable   bool      `json:"deployable"`
}

// ListCommits returns up to count commits of origin/<branch>, newest first.
func (r *LocalRepository) ListCommits(branch string, count int) ([]*Commit, error) {
	if !strings.HasPrefix(branch, "origin/") {
		branch = "origin/" + branch
	}
	res := r.git("log", branch, "-n", strconv.Itoa(count),
		"--format=%H%x1f%cn%x1f%at%x1f%s%x1e")
	if res.ExitCode != 0 {
		return nil, errors.Errorf("git log failed: %s", res.Stderr)
	}
	return parseCommitLog(res.Stdout)
}

// GetCommit resolves a single revision.
func (r *LocalRepository) GetCommit(rev string) (*Commit, error) {
	res := r.git("log", "-n", "1", "--format=%H%x1f%cn%x1f%at%x1f%s%x1e", rev)
	if res.ExitCode != 0 {
		return nil, errors.Errorf("could not resolve revision %s: %s", rev, res.Stderr)
	}
	commits, err := parseCommitLog(res.Stdout)
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, errors.Errorf("no commit found for revision %s", rev)
	}
	return commits[0], nil
}

// Diff returns the textual diff between two revisions.
func (r *LocalRepository) Diff(commitSrc, commitDest string) (string, error) {
	res := r.git("diff", commitSrc, commitDest)
	if res.ExitCode != 0 {
		return "", errors.Errorf("git diff failed: %s", res.Stderr)
	}
	return res.Stdout, nil
}

func parseCommitLog(out string) ([]*Commit, error) {
	var commits []*Commit
	for _, record := range strings.Split(out, "\x1e") {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		fields := strings.Split(record, "\x1f")
		if len(fields) < 4 {
			return nil, errors.Errorf("unexpected git log record: %q", record)
		}
		ts, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, "invalid commit timestamp")
		}
		commits = append(commits, &Commit{
			Hexsha:       fields[0],
			Committer:    fields[1],
			AuthoredDate: time.Unix(ts, 0).UTC(),
			Message:      fields[3],
			Deployable:   true,
		})
	}
	return commits, nil
}

// FetchRepository is a LocalRepository holding the fetch lock.
type FetchRepository struct {
	LocalRepository
}

// Fetch updates all refs from origin. The working tree is never touched.
func (r *FetchRepository) Fetch() error {
	res := r.git("fetch", "origin")
	if res.ExitCode != 0 {
		return errors.Errorf("git fetch failed: %s", res.Stderr)
	}
	return nil
}

// WriteRepository is a LocalRepository holding the write lock.
type WriteRepository struct {
	LocalRepository
}

// SwitchTo makes sure the specified commit is checked out: untracked and
// ignored files are forcefully removed, then HEAD, index and working tree are
// reset to the commit.
func (r *WriteRepository) SwitchTo(commit string) error {
	if res := r.git("clean", "-d", "-x", "-f", "-f"); res.ExitCode != 0 {
		return errors.Errorf("git clean failed: %s", res.Stderr)
	}
	if res := r.git("reset", "--hard", commit); res.ExitCode != 0 {
		return errors.Errorf("git reset to %s failed: %s", commit, res.Stderr)
	}
	return nil
}
