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

import "sync"

// monitor is the mutually exclusive region that hands one generation of tasks
// from the distributor to the workers. Task-to-worker mapping is positional:
// worker i only ever reads slot i. A new generation can only be published
// after every slot of the previous generation has been completed, which gives
// the rounds their barrier semantics without a separate barrier primitive.
type monitor struct {
	mu         sync.Mutex
	tasksReady *sync.Cond
	tasksDone  *sync.Cond

	tasks     []Task
	size      int
	done      []bool
	doneCount int
}

func newMonitor(capacity int) *monitor {
	m := &monitor{
		tasks: make([]Task, capacity),
		done:  make([]bool, capacity),
	}
	m.tasksReady = sync.NewCond(&m.mu)
	m.tasksDone = sync.NewCond(&m.mu)
	return m
}

// Assign publishes a new generation of tasks, one slot per worker. It blocks
// until the previous generation has fully drained. Only the single
// distributor may call Assign.
func (m *monitor) Assign(tasks []Task) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.doneCount < m.size {
		m.tasksDone.Wait()
	}

	copy(m.tasks, tasks)
	for i := 0; i < len(tasks); i++ {
		m.done[i] = false
	}
	m.size = len(tasks)
	m.doneCount = 0
	m.tasksReady.Broadcast()
}

// Fetch returns the task currently assigned to the worker's slot, blocking
// until a generation containing an unconsumed task for this slot is
// published.
func (m *monitor) Fetch(index int) Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.size == 0 || index >= m.size || m.done[index] {
		m.tasksReady.Wait()
	}
	return m.tasks[index]
}

// Complete marks the worker's slot as done. The last completion of a
// generation wakes the distributor blocked in Assign.
func (m *monitor) Complete(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.done[index] = true
	m.doneCount++
	if m.doneCount == m.size {
		m.tasksDone.Signal()
	}
}

// WaitDrained blocks until the current generation has fully drained. The
// distributor uses it after the final terminate generation, when no further
// Assign will follow.
func (m *monitor) WaitDrained() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.doneCount < m.size {
		m.tasksDone.Wait()
	}
}
