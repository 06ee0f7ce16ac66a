// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package moerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMoErrCode(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("connection refused")

	tests := []struct {
		name     string
		err      error
		code     uint16
		expected bool
	}{
		{
			name:     "nil error is ok",
			err:      nil,
			code:     Ok,
			expected: true,
		},
		{
			name:     "nil error is not bad config",
			err:      nil,
			code:     ErrBadConfig,
			expected: false,
		},
		{
			name:     "direct code",
			err:      NewBadConfig(ctx, "server must be set"),
			code:     ErrBadConfig,
			expected: true,
		},
		{
			name:     "wrapped by fmt",
			err:      fmt.Errorf("open: %w", NewDiscovery(ctx, cause, "no servers found")),
			code:     ErrDiscovery,
			expected: true,
		},
		{
			name:     "inner coded cause",
			err:      NewDiscovery(ctx, NewInvalidInput(ctx, "bad uri"), "parse uri"),
			code:     ErrInvalidInput,
			expected: true,
		},
		{
			name:     "standard error",
			err:      cause,
			code:     ErrDiscovery,
			expected: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsMoErrCode(tt.err, tt.code))
		})
	}
}

func TestErrorMessageAndCause(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("boom")

	err := NewDrainFailed(ctx, 3, cause)
	assert.Equal(t, ErrDrainFailed, err.ErrorCode())
	assert.Equal(t, "some of the tasks completed exceptionally, failed: 3", err.Message())
	assert.Equal(t, "some of the tasks completed exceptionally, failed: 3: boom", err.Error())
	require.True(t, errors.Is(err, cause))

	err = NewSchemaMismatch(ctx, "column %d (%s)", 1, "name")
	assert.Equal(t, "schema mismatch: column 1 (name)", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestWriteErrorMessage(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("boom")

	assert.Equal(t, "write failed on space users: boom", NewWriteFailed(ctx, cause, "users").Error())
	assert.Equal(t, "write failed: boom", NewWriteFailed(ctx, cause, "").Error())
	assert.Equal(t, "write rejected on space users: boom", NewWriteRejected(ctx, cause, "users").Error())
	assert.Equal(t, "write rejected: boom", NewWriteRejected(ctx, cause, "").Error())
}

func TestCode(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, Ok, Code(nil))
	assert.Equal(t, ErrInternal, Code(errors.New("x")))
	assert.Equal(t, ErrNoSuchSpace, Code(fmt.Errorf("x: %w", NewNoSuchSpace(ctx, "users"))))
}

func TestUnknownCodePanics(t *testing.T) {
	require.Panics(t, func() {
		newError(context.Background(), 1)
	})
}
