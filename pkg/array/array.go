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

// Package array stages the integer array the sorting service operates on:
// loading and storing the binary file format, generating test inputs, and the
// post-sort verification pass.
//
// The file format is a little-endian int32 element count followed by that many
// little-endian int32 values. The element count must be a power of two.
package array

import (
	"bufio"
	"encoding/binary"
	"io"
	"math/rand"
	"os"

	"github.com/bitsort/bitsort/pkg/common/bserr"
	"github.com/bitsort/bitsort/pkg/sort/bitonic"
)

// Load reads an array file. A short read, an unreadable file or a non
// power-of-two element count are fatal startup errors for the caller.
func Load(path string) ([]int32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, bserr.NewBadArrayFile(path, err.Error())
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var size int32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, bserr.NewBadArrayFile(path, "can not read the array size")
	}
	if !bitonic.IsPowerOfTwo(int(size)) {
		return nil, bserr.NewNotPowerOfTwo("array size", int(size))
	}

	arr := make([]int32, size)
	if err := binary.Read(r, binary.LittleEndian, arr); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, bserr.NewUnexpectedEOF(path)
		}
		return nil, bserr.NewBadArrayFile(path, err.Error())
	}
	return arr, nil
}

// Store writes an array file in the same format Load reads.
func Store(path string, arr []int32) error {
	f, err := os.Create(path)
	if err != nil {
		return bserr.NewBadArrayFile(path, err.Error())
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, int32(len(arr))); err != nil {
		return bserr.NewBadArrayFile(path, err.Error())
	}
	if err := binary.Write(w, binary.LittleEndian, arr); err != nil {
		return bserr.NewBadArrayFile(path, err.Error())
	}
	return w.Flush()
}

// Random returns a size-element array of pseudo random values. size must be a
// power of two.
func Random(size int, seed int64) ([]int32, error) {
	if !bitonic.IsPowerOfTwo(size) {
		return nil, bserr.NewNotPowerOfTwo("array size", size)
	}
	rnd := rand.New(rand.NewSource(seed))
	arr := make([]int32, size)
	for i := range arr {
		arr[i] = int32(rnd.Uint32())
	}
	return arr, nil
}

// Verify checks that the array is monotonic in the given direction with a
// linear scan. It returns a bserr.ErrNotSorted error naming the first
// offending adjacent pair. A verification failure after a sort run is a
// correctness bug and is treated as fatal by the callers.
func Verify(arr []int32, ascending bool) error {
	for i := 0; i < len(arr)-1; i++ {
		if ascending {
			if arr[i] > arr[i+1] {
				return bserr.NewNotSorted(i, arr[i], arr[i+1])
			}
		} else if arr[i] < arr[i+1] {
			return bserr.NewNotSorted(i, arr[i], arr[i+1])
		}
	}
	return nil
}
