// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package gitutil

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// ErrAlreadyLocked is returned by non-blocking acquisitions when the lock is held.
var ErrAlreadyLocked = errors.New("file already locked")

// FileLock is an advisory flock-based lock. Locks are per path and survive
// only as long as the process holds the descriptor.
type FileLock struct {
	filename string
	file     *os.File
	locked   bool
}

// NewFileLock opens (creating if needed) the lock file.
func NewFileLock(filename string) (*FileLock, error) {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileLock{filename: filename, file: f}, nil
}

// Acquire takes the exclusive lock, blocking unless blocking is false, in
// which case ErrAlreadyLocked is returned when the lock is held elsewhere.
func (l *FileLock) Acquire(blocking bool) error {
	flag := unix.LOCK_EX
	if !blocking {
		flag |= unix.LOCK_NB
	}
	err := unix.Flock(int(l.file.Fd()), flag)
	if err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return ErrAlreadyLocked
		}
		return err
	}
	l.locked = true
	return nil
}

// Release drops the lock and closes the descriptor.
func (l *FileLock) Release() {
	if l.locked {
		_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
		l.locked = false
	}
	_ = l.file.Close()
}
