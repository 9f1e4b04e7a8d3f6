// Copyright 2024 BitSort Authors
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

package bserr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	err := NewNotSorted(3, 7, 9)
	require.NotNil(t, err)
	assert.Equal(t, ErrNotSorted, err.ErrorCode())
	assert.Equal(t, "array not sorted at position 3: element 7 followed by 9", err.Error())
	assert.False(t, err.Ok())
}

func TestIsBsErrCode(t *testing.T) {
	assert.True(t, IsBsErrCode(nil, Ok))
	assert.False(t, IsBsErrCode(nil, ErrInternal))
	assert.True(t, IsBsErrCode(NewBackendClosed(), ErrBackendClosed))
	assert.False(t, IsBsErrCode(NewBackendClosed(), ErrRPCTimeout))
}

func TestFormattedConstructors(t *testing.T) {
	err := NewBadConfig("workers %d not a power of two", 3)
	assert.Equal(t, "invalid configuration: workers 3 not a power of two", err.Error())

	err = NewNotPowerOfTwo("array size", 100)
	assert.Equal(t, "array size must be a power of two, got 100", err.Error())
}

func TestMissingErrorItemPanics(t *testing.T) {
	defer func() {
		require.NotNil(t, recover())
	}()
	newError(ErrEnd)
}
