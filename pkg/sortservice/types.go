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

// Package sortservice implements the shared-memory parallel bitonic sort: a
// pool of worker goroutines driven round by round through a task-exchange
// monitor by a single distributor.
package sortservice

import "fmt"

// TaskKind the kind of work a task slot carries.
type TaskKind int32

const (
	// TaskSort sort the sub-range with the bitonic kernel.
	TaskSort TaskKind = iota
	// TaskMerge bitonic-merge the sub-range.
	TaskMerge
	// TaskWait do nothing this round. The worker still participates in the
	// round's completion accounting.
	TaskWait
	// TaskTerminate exit the worker loop after acknowledging the task.
	TaskTerminate
)

func (k TaskKind) String() string {
	switch k {
	case TaskSort:
		return "sort"
	case TaskMerge:
		return "merge"
	case TaskWait:
		return "wait"
	case TaskTerminate:
		return "terminate"
	default:
		return fmt.Sprintf("unknown(%d)", int32(k))
	}
}

// Task one unit of work for one worker in one round. Tasks are built by the
// distributor each round, consumed exactly once by the worker owning the slot,
// and discarded.
type Task struct {
	Kind      TaskKind
	Low       int
	Count     int
	Ascending bool
}
