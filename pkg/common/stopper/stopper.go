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

package stopper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrUnavailable the stopper is not running
	ErrUnavailable = errors.New("runner is unavailable")
)

type state int32

const (
	stateRunning state = iota
	stateStopping
	stateStopped
)

// Option stopper option
type Option func(*options)

type options struct {
	logger         *zap.Logger
	stopTimeout    time.Duration
	reportInterval time.Duration
}

func (opts *options) adjust() {
	if opts.logger == nil {
		opts.logger = zap.NewNop()
	}
	if opts.stopTimeout == 0 {
		opts.stopTimeout = time.Second * 30
	}
	if opts.reportInterval == 0 {
		opts.reportInterval = time.Second * 10
	}
}

// WithLogger set the logger used by the stopper
func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// WithStopTimeout the stopper will print the names of tasks that are still
// running after the timeout expires while stopping.
func WithStopTimeout(timeout time.Duration) Option {
	return func(opts *options) {
		opts.stopTimeout = timeout
	}
}

// Stopper a goroutine manager. All goroutines of a component should be started
// by its stopper, so that Stop can wait for them to exit before returning.
type Stopper struct {
	name    string
	opts    *options
	stopC   chan struct{}
	cancels sync.Map // id -> context.CancelFunc
	tasks   sync.Map // id -> name

	atomic struct {
		lastID uint64
		state  int32
	}
}

// NewStopper create a stopper
func NewStopper(name string, opts ...Option) *Stopper {
	s := &Stopper{
		name:  name,
		opts:  &options{},
		stopC: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s.opts)
	}
	s.opts.adjust()
	return s
}

// RunTask run a task that can be cancelled. ErrUnavailable returned if stopped.
// Example:
//
//	err := s.RunTask(func(ctx context.Context) {
//		select {
//		case <-ctx.Done():
//		// cancelled
//		case <-time.After(time.Second):
//			// do something
//		}
//	})
func (s *Stopper) RunTask(task func(context.Context)) error {
	return s.RunNamedTask("undefined", task)
}

// RunNamedTask run a named task that can be cancelled.
func (s *Stopper) RunNamedTask(name string, task func(context.Context)) error {
	if s.getState() != stateRunning {
		return ErrUnavailable
	}

	id := atomic.AddUint64(&s.atomic.lastID, 1)
	ctx, cancel := context.WithCancel(context.Background())
	s.cancels.Store(id, cancel)
	s.tasks.Store(id, name)

	go func() {
		defer func() {
			s.cancels.Delete(id)
			s.tasks.Delete(id)
			cancel()
		}()
		task(ctx)
	}()
	return nil
}

// Stop stops all running tasks and waits for them to exit.
func (s *Stopper) Stop() {
	if !atomic.CompareAndSwapInt32(&s.atomic.state,
		int32(stateRunning), int32(stateStopping)) {
		// stop already called
		return
	}

	defer atomic.StoreInt32(&s.atomic.state, int32(stateStopped))
	close(s.stopC)

	s.cancels.Range(func(key, value any) bool {
		value.(context.CancelFunc)()
		return true
	})

	timer := time.NewTimer(s.opts.stopTimeout)
	defer timer.Stop()
	ticker := time.NewTicker(time.Millisecond * 10)
	defer ticker.Stop()
	for {
		select {
		case <-timer.C:
			s.opts.logger.Warn("tasks still running after stop timeout",
				zap.String("stopper", s.name),
				zap.String("tasks", s.runningTasks()))
			timer.Reset(s.opts.reportInterval)
		case <-ticker.C:
			if s.runningTaskCount() == 0 {
				return
			}
		}
	}
}

// ShouldStop returns a channel which will be closed on Stop.
func (s *Stopper) ShouldStop() chan struct{} {
	return s.stopC
}

func (s *Stopper) runningTaskCount() int {
	n := 0
	s.tasks.Range(func(key, value any) bool {
		n++
		return true
	})
	return n
}

func (s *Stopper) runningTasks() string {
	var names []string
	s.tasks.Range(func(key, value any) bool {
		names = append(names, value.(string))
		return true
	})
	return fmt.Sprintf("%v", names)
}

func (s *Stopper) getState() state {
	return state(atomic.LoadInt32(&s.atomic.state))
}
