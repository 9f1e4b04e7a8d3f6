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

// Package bitonic implements the sequential bitonic sort and merge kernel.
// Both operations work in place on a contiguous sub-range [low, low+count)
// of the array. They keep no shared state, so concurrent invocations on
// disjoint ranges of the same array are safe; the orchestrators rely on that.
package bitonic

import "math/bits"

// Merge merges the range [low, low+count) in the given direction. The range
// must already be bitonic: first half and second half each monotonic, in
// opposite senses. The precondition is guaranteed by construction in Sort and
// by the round structure of the orchestrators, and is never checked here.
func Merge(arr []int32, low, count int, ascending bool) {
	if count <= 1 {
		return
	}
	half := count / 2
	for i := low; i < low+half; i++ {
		if (arr[i] > arr[i+half]) == ascending {
			arr[i], arr[i+half] = arr[i+half], arr[i]
		}
	}
	Merge(arr, low, half, ascending)
	Merge(arr, low+half, half, ascending)
}

// Sort sorts the range [low, low+count) in the given direction. count must be
// a power of two. Recursion depth is log2(count).
func Sort(arr []int32, low, count int, ascending bool) {
	if count <= 1 {
		return
	}
	half := count / 2
	Sort(arr, low, half, true)
	Sort(arr, low+half, half, false)
	Merge(arr, low, count, ascending)
}

// SubDirection returns the direction a participant must use for the block it
// owns in the current round. Even blocks take the requested final direction,
// odd blocks the opposite; the alternation is what makes each pair of adjacent
// blocks a bitonic sequence for the next merge round.
func SubDirection(block int, ascending bool) bool {
	return (block%2 == 0) == ascending
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && bits.OnesCount(uint(n)) == 1
}
