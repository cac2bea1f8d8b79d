// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package gitutil

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ReleaseFileName is the manifest written at the root of every release.
const ReleaseFileName = ".git_release"

// releaseDateFormat is ISO-8601 with microsecond precision.
const releaseDateFormat = "2006-01-02T15:04:05.000000"

// InProgressMarker is the optional fifth manifest line present while a
// deployment is running.
const InProgressMarker = "deployment in progress"

// ErrInvalidReleaseFile reports an unparsable manifest.
var ErrInvalidReleaseFile = errors.New("invalid release file")

// Release is the parsed content of a .git_release manifest.
type Release struct {
	Branch          string    `json:"branch"`
	Commit          string    `json:"commit"`
	DeploymentDate  time.Time `json:"deployment_date"`
	DestinationPath string    `json:"destination_path"`
	InProgress      bool      `json:"in_progress"`
}

// ReleaseFileContents renders the manifest for the given revision.
func ReleaseFileContents(branch, commit string, date time.Time, destinationPath string) string {
	return strings.Join([]string{
		branch,
		commit,
		date.UTC().Format(releaseDateFormat),
		destinationPath,
	}, "\n")
}

// ParseReleaseFileContents parses a manifest. Fewer than four lines or an
// unparsable date yield ErrInvalidReleaseFile.
func ParseReleaseFileContents(contents string) (*Release, error) {
	lines := strings.Split(strings.TrimRight(contents, "\n"), "\n")
	if len(lines) < 4 {
		return nil, ErrInvalidReleaseFile
	}
	date, err := time.Parse(releaseDateFormat, strings.TrimSpace(lines[2]))
	if err != nil {
		return nil, ErrInvalidReleaseFile
	}
	release := &Release{
		Branch:          strings.TrimSpace(lines[0]),
		Commit:          strings.TrimSpace(lines[1]),
		DeploymentDate:  date,
		DestinationPath: strings.TrimSpace(lines[3]),
	}
	if len(lines) >= 5 && strings.TrimSpace(lines[4]) == InProgressMarker {
		release.InProgress = true
	}
	return release, nil
}
