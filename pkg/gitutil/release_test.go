// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package gitutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaseFileRoundTrip(t *testing.T) {
	date := time.Date(2017, 6, 30, 14, 23, 21, 0, time.UTC)
	contents := ReleaseFileContents("master", "abc123", date, "/var/www/app")
	assert.Equal(t, "master\nabc123\n2017-06-30T14:23:21.000000\n/var/www/app", contents)

	release, err := ParseReleaseFileContents(contents)
	require.NoError(t, err)
	assert.Equal(t, "master", release.Branch)
	assert.Equal(t, "abc123", release.Commit)
	assert.Equal(t, date, release.DeploymentDate)
	assert.Equal(t, "/var/www/app", release.DestinationPath)
	assert.False(t, release.InProgress)
}

func TestParseReleaseFileInProgressMarker(t *testing.T) {
	contents := "master\nabc123\n2017-06-30T14:23:21.000000\n/var/www/app\ndeployment in progress\n"
	release, err := ParseReleaseFileContents(contents)
	require.NoError(t, err)
	assert.True(t, release.InProgress)
}

func TestParseReleaseFileTooFewLines(t *testing.T) {
	_, err := ParseReleaseFileContents("master\nabc123\n")
	assert.ErrorIs(t, err, ErrInvalidReleaseFile)
}

func TestParseReleaseFileBadDate(t *testing.T) {
	_, err := ParseReleaseFileContents("master\nabc123\nnot-a-date\n/var/www/app")
	assert.ErrorIs(t, err, ErrInvalidReleaseFile)
}
