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

package bitonic

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSort(t *testing.T) {
	cases := []struct {
		name      string
		input     []int32
		ascending bool
		want      []int32
	}{
		{
			name:      "ascending",
			input:     []int32{3, 7, 1, 8, 2, 5, 6, 4},
			ascending: true,
			want:      []int32{1, 2, 3, 4, 5, 6, 7, 8},
		},
		{
			name:      "descending",
			input:     []int32{3, 7, 1, 8, 2, 5, 6, 4},
			ascending: false,
			want:      []int32{8, 7, 6, 5, 4, 3, 2, 1},
		},
		{
			name:      "single element",
			input:     []int32{42},
			ascending: true,
			want:      []int32{42},
		},
		{
			name:      "duplicates",
			input:     []int32{2, 2, 1, 1},
			ascending: true,
			want:      []int32{1, 1, 2, 2},
		},
		{
			name:      "negative values",
			input:     []int32{0, -8, 4, -2},
			ascending: false,
			want:      []int32{4, 0, -2, -8},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			arr := append([]int32(nil), c.input...)
			Sort(arr, 0, len(arr), c.ascending)
			assert.Equal(t, c.want, arr)
		})
	}
}

func TestSortSubRange(t *testing.T) {
	arr := []int32{9, 9, 4, 1, 3, 2, 9, 9}
	Sort(arr, 2, 4, true)
	assert.Equal(t, []int32{9, 9, 1, 2, 3, 4, 9, 9}, arr)
}

func TestSortRandom(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for _, n := range []int{2, 16, 256, 4096} {
		arr := make([]int32, n)
		for i := range arr {
			arr[i] = int32(rnd.Intn(1000) - 500)
		}
		expected := append([]int32(nil), arr...)
		sort.Slice(expected, func(i, j int) bool { return expected[i] < expected[j] })

		Sort(arr, 0, n, true)
		require.Equal(t, expected, arr, "n=%d", n)
	}
}

func TestSortIdempotent(t *testing.T) {
	arr := []int32{8, 7, 6, 5, 4, 3, 2, 1}
	Sort(arr, 0, len(arr), false)
	assert.Equal(t, []int32{8, 7, 6, 5, 4, 3, 2, 1}, arr)
}

func TestMergeBitonicInput(t *testing.T) {
	// ascending half followed by descending half is bitonic
	arr := []int32{1, 3, 7, 8, 6, 5, 4, 2}
	Merge(arr, 0, len(arr), false)
	assert.Equal(t, []int32{8, 7, 6, 5, 4, 3, 2, 1}, arr)

	arr = []int32{1, 3, 7, 8, 6, 5, 4, 2}
	Merge(arr, 0, len(arr), true)
	assert.Equal(t, []int32{1, 2, 3, 4, 5, 6, 7, 8}, arr)
}

func TestSubDirection(t *testing.T) {
	assert.True(t, SubDirection(0, true))
	assert.False(t, SubDirection(1, true))
	assert.False(t, SubDirection(0, false))
	assert.True(t, SubDirection(1, false))
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, n := range []int{1, 2, 4, 1 << 20} {
		assert.True(t, IsPowerOfTwo(n), "n=%d", n)
	}
	for _, n := range []int{0, -2, 3, 6, 100} {
		assert.False(t, IsPowerOfTwo(n), "n=%d", n)
	}
}
