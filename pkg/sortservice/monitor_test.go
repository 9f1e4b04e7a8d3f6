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

package sortservice

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lni/goutils/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchBlocksUntilAssign(t *testing.T) {
	defer leaktest.AfterTest(t)()

	m := newMonitor(2)
	fetched := make(chan Task, 1)
	go func() {
		fetched <- m.Fetch(0)
	}()

	select {
	case <-fetched:
		t.Fatal("Fetch returned before any Assign")
	case <-time.After(time.Millisecond * 50):
	}

	m.Assign([]Task{{Kind: TaskSort, Low: 0, Count: 4}, {Kind: TaskSort, Low: 4, Count: 4}})
	task := <-fetched
	assert.Equal(t, TaskSort, task.Kind)
	assert.Equal(t, 0, task.Low)

	m.Complete(0)
	m.Complete(1)
}

func TestFetchIsPositional(t *testing.T) {
	defer leaktest.AfterTest(t)()

	m := newMonitor(2)
	m.Assign([]Task{{Kind: TaskSort, Low: 0}, {Kind: TaskMerge, Low: 8}})

	assert.Equal(t, TaskSort, m.Fetch(0).Kind)
	assert.Equal(t, TaskMerge, m.Fetch(1).Kind)
	// a second Fetch of the same generation returns the same slot
	assert.Equal(t, 8, m.Fetch(1).Low)

	m.Complete(0)
	m.Complete(1)
}

// TestGenerationBarrier checks the monitor's ordering contract: no Fetch may
// observe generation k+1 before every worker has completed generation k.
func TestGenerationBarrier(t *testing.T) {
	defer leaktest.AfterTest(t)()

	const workers = 4
	const generations = 32

	m := newMonitor(workers)
	var completed atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		index := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task := m.Fetch(index)
				if task.Kind == TaskTerminate {
					m.Complete(index)
					return
				}
				// the generation carried in Low must match the number of
				// fully drained generations so far
				gen := int64(task.Low)
				drained := completed.Load() / workers
				assert.Equal(t, drained, gen)
				completed.Add(1)
				m.Complete(index)
			}
		}()
	}

	tasks := make([]Task, workers)
	for gen := 0; gen < generations; gen++ {
		for i := range tasks {
			tasks[i] = Task{Kind: TaskWait, Low: gen}
		}
		m.Assign(tasks)
	}
	for i := range tasks {
		tasks[i] = Task{Kind: TaskTerminate}
	}
	m.Assign(tasks)
	wg.Wait()

	require.Equal(t, int64(workers*generations), completed.Load())
}

func TestAssignBlocksUntilDrained(t *testing.T) {
	defer leaktest.AfterTest(t)()

	m := newMonitor(1)
	m.Assign([]Task{{Kind: TaskWait}})

	second := make(chan struct{})
	go func() {
		m.Assign([]Task{{Kind: TaskTerminate}})
		close(second)
	}()

	select {
	case <-second:
		t.Fatal("Assign returned while previous generation was live")
	case <-time.After(time.Millisecond * 50):
	}

	_ = m.Fetch(0)
	m.Complete(0)
	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("Assign did not return after drain")
	}

	assert.Equal(t, TaskTerminate, m.Fetch(0).Kind)
	m.Complete(0)
}

// TestTerminateShorterGeneration checks that a terminate generation smaller
// than the monitor's capacity releases exactly the covered slots, which is
// how a partially started pool gets unwound.
func TestTerminateShorterGeneration(t *testing.T) {
	defer leaktest.AfterTest(t)()

	m := newMonitor(4)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		index := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task := m.Fetch(index)
				m.Complete(index)
				if task.Kind == TaskTerminate {
					return
				}
			}
		}()
	}

	m.Assign([]Task{{Kind: TaskTerminate}, {Kind: TaskTerminate}})
	wg.Wait()
	m.WaitDrained()
}

func TestWaitDrained(t *testing.T) {
	defer leaktest.AfterTest(t)()

	m := newMonitor(2)
	m.Assign([]Task{{Kind: TaskWait}, {Kind: TaskWait}})

	done := make(chan struct{})
	go func() {
		m.WaitDrained()
		close(done)
	}()

	m.Complete(0)
	select {
	case <-done:
		t.Fatal("WaitDrained returned with one slot live")
	case <-time.After(time.Millisecond * 50):
	}

	m.Complete(1)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitDrained did not return after drain")
	}
}
