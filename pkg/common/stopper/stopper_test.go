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
	"sync/atomic"
	"testing"
	"time"

	"github.com/lni/goutils/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopWaitsForTasks(t *testing.T) {
	defer leaktest.AfterTest(t)()

	s := NewStopper("test")
	var exited atomic.Bool
	require.NoError(t, s.RunTask(func(ctx context.Context) {
		<-ctx.Done()
		time.Sleep(time.Millisecond * 50)
		exited.Store(true)
	}))
	s.Stop()
	assert.True(t, exited.Load())
}

func TestRunTaskAfterStop(t *testing.T) {
	defer leaktest.AfterTest(t)()

	s := NewStopper("test")
	s.Stop()
	err := s.RunNamedTask("late", func(ctx context.Context) {})
	assert.Equal(t, ErrUnavailable, err)
}

func TestStopIsIdempotent(t *testing.T) {
	defer leaktest.AfterTest(t)()

	s := NewStopper("test")
	require.NoError(t, s.RunTask(func(ctx context.Context) {
		<-ctx.Done()
	}))
	s.Stop()
	s.Stop()
}

func TestShouldStop(t *testing.T) {
	defer leaktest.AfterTest(t)()

	s := NewStopper("test")
	c := make(chan struct{})
	require.NoError(t, s.RunTask(func(ctx context.Context) {
		<-s.ShouldStop()
		close(c)
	}))
	s.Stop()
	select {
	case <-c:
	case <-time.After(time.Second):
		t.Fatal("ShouldStop not closed")
	}
}
