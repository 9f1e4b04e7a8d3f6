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

package array

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/bitsort/bitsort/pkg/common/bserr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arr.bin")
	arr := []int32{3, 7, 1, 8, 2, 5, 6, 4}
	require.NoError(t, Store(path, arr))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, arr, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.bin"))
	assert.True(t, bserr.IsBsErrCode(err, bserr.ErrBadArrayFile))
}

func TestLoadNotPowerOfTwo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arr.bin")
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, 3)
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	_, err := Load(path)
	assert.True(t, bserr.IsBsErrCode(err, bserr.ErrNotPowerOfTwo))
}

func TestLoadShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arr.bin")
	buf := make([]byte, 4+4) // claims 4 elements, holds 1
	binary.LittleEndian.PutUint32(buf, 4)
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	_, err := Load(path)
	assert.True(t, bserr.IsBsErrCode(err, bserr.ErrUnexpectedEOF))
}

func TestRandom(t *testing.T) {
	a, err := Random(16, 1)
	require.NoError(t, err)
	b, err := Random(16, 1)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = Random(10, 1)
	assert.True(t, bserr.IsBsErrCode(err, bserr.ErrNotPowerOfTwo))
}

func TestVerify(t *testing.T) {
	require.NoError(t, Verify([]int32{1, 2, 2, 9}, true))
	require.NoError(t, Verify([]int32{9, 2, 2, 1}, false))
	require.NoError(t, Verify(nil, true))

	err := Verify([]int32{1, 3, 2}, true)
	require.True(t, bserr.IsBsErrCode(err, bserr.ErrNotSorted))
	assert.Equal(t, "array not sorted at position 1: element 3 followed by 2", err.Error())

	err = Verify([]int32{3, 1, 2}, false)
	assert.True(t, bserr.IsBsErrCode(err, bserr.ErrNotSorted))
}
