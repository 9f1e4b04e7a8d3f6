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
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bitsort/bitsort/pkg/common/bserr"
	"github.com/bitsort/bitsort/pkg/common/stopper"
	"github.com/bitsort/bitsort/pkg/logutil"
	"github.com/bitsort/bitsort/pkg/sort/bitonic"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Option service creation option
type Option func(*Service)

// WithLogger set the logger used by the service
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service the shared-memory bitonic sort service. One Service owns one worker
// pool of a fixed size; Sort may be called repeatedly, each call is one batch
// job driven to completion before it returns.
type Service struct {
	workers int
	logger  *zap.Logger
	stopper *stopper.Stopper

	mu struct {
		sync.Mutex
	}
}

// NewService create a sort service with the given worker count. The worker
// count must be a power of two so that every round divides evenly.
func NewService(workers int, opts ...Option) (*Service, error) {
	if workers < 1 {
		return nil, bserr.NewBadConfig("worker count must be >= 1, got %d", workers)
	}
	if !bitonic.IsPowerOfTwo(workers) {
		return nil, bserr.NewNotPowerOfTwo("worker count", workers)
	}

	s := &Service{workers: workers}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logutil.Adjust(s.logger).Named("sortservice")
	s.stopper = stopper.NewStopper("sort-service",
		stopper.WithLogger(s.logger))
	return s, nil
}

// Sort sorts arr in place in the requested direction, distributing one
// sub-range task per worker per round. It blocks until the array is sorted or
// a configuration error is detected before any task is dispatched.
func (s *Service) Sort(arr []int32, ascending bool) error {
	n := len(arr)
	if !bitonic.IsPowerOfTwo(n) {
		return bserr.NewNotPowerOfTwo("array size", n)
	}
	if s.workers > n {
		return bserr.NewBadConfig("worker count %d exceeds array size %d", s.workers, n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobID := uuid.NewString()
	logger := s.logger.With(zap.String("job", jobID))
	logger.Info("bitonic sort started",
		zap.Int("size", n),
		zap.Int("workers", s.workers),
		zap.Bool("ascending", ascending))
	start := time.Now()

	m := newMonitor(s.workers)
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		index := i
		wg.Add(1)
		err := s.stopper.RunNamedTask(fmt.Sprintf("sort-worker-%d", index),
			func(ctx context.Context) {
				defer wg.Done()
				s.runWorker(index, arr, m)
			})
		if err != nil {
			wg.Done()
			// terminate the workers already started so none stays blocked
			// in Fetch
			if index > 0 {
				terminate := make([]Task, index)
				for j := range terminate {
					terminate[j] = Task{Kind: TaskTerminate}
				}
				m.Assign(terminate)
			}
			wg.Wait()
			return bserr.NewInvalidState("sort service is closed")
		}
	}

	s.distribute(logger, m, n, ascending)
	wg.Wait()

	logger.Info("bitonic sort completed",
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Close stops the worker pool. Close must not be called concurrently with
// Sort.
func (s *Service) Close() error {
	s.stopper.Stop()
	return nil
}

// distribute drives the rounds. Round 0 assigns one sort task per worker.
// Every merge round doubles the sub-range size and halves the number of merge
// tasks; workers whose slot is no longer needed receive wait tasks so the
// generation accounting stays uniform. A final all-terminate generation ends
// the pool. Assign blocking on the previous generation's drain is the round
// barrier: task construction for round k+1 happens after every worker
// completed round k.
func (s *Service) distribute(logger *zap.Logger, m *monitor, n int, ascending bool) {
	count := n / s.workers
	tasks := make([]Task, s.workers)
	for i := range tasks {
		tasks[i] = Task{
			Kind:      TaskSort,
			Low:       i * count,
			Count:     count,
			Ascending: bitonic.SubDirection(i, ascending),
		}
	}
	logger.Debug("assigning sort round",
		zap.Int("tasks", s.workers),
		zap.Int("count", count))
	m.Assign(tasks)

	for count *= 2; count <= n; count *= 2 {
		merges := n / count
		for i := range tasks {
			if i < merges {
				tasks[i] = Task{
					Kind:      TaskMerge,
					Low:       i * count,
					Count:     count,
					Ascending: bitonic.SubDirection(i, ascending),
				}
			} else {
				tasks[i] = Task{Kind: TaskWait}
			}
		}
		logger.Debug("assigning merge round",
			zap.Int("tasks", merges),
			zap.Int("count", count))
		m.Assign(tasks)
	}

	for i := range tasks {
		tasks[i] = Task{Kind: TaskTerminate}
	}
	m.Assign(tasks)
	m.WaitDrained()
}

// runWorker is the worker loop: fetch the slot's task, dispatch on its kind,
// acknowledge. The kernel runs on a disjoint sub-range per slot, so no lock is
// held while sorting.
func (s *Service) runWorker(index int, arr []int32, m *monitor) {
	for {
		task := m.Fetch(index)
		switch task.Kind {
		case TaskSort:
			bitonic.Sort(arr, task.Low, task.Count, task.Ascending)
		case TaskMerge:
			bitonic.Merge(arr, task.Low, task.Count, task.Ascending)
		case TaskWait:
		case TaskTerminate:
			m.Complete(index)
			return
		}
		m.Complete(index)
	}
}
