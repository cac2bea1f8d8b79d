// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	err := NewError()
	require.NotNil(t, err)
	assert.Equal(t, 0, err.Code)
	assert.Equal(t, "", err.Message)
	assert.Nil(t, err.InnerError)
	assert.NotEmpty(t, err.Stack, "Stack should be captured")
}

func TestErrorBuilder(t *testing.T) {
	inner := fmt.Errorf("boom")
	err := NewError().
		WithCode(CodeInitializeError).
		WithMessage("failed to open config file").
		WithError(inner)
	assert.Equal(t, CodeInitializeError, err.Code)
	assert.Equal(t, "failed to open config file", err.Message)
	assert.Equal(t, inner, err.InnerError)
	assert.Contains(t, err.Error(), "failed to open config file")
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, inner, err.Unwrap())
}

func TestGetStackString(t *testing.T) {
	err := NewError()
	stack := err.GetStackString()
	assert.Contains(t, stack, "error_test.go")
}
