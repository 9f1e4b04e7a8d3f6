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

package clusterservice

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/bitsort/bitsort/pkg/common/bserr"
	"github.com/bitsort/bitsort/pkg/logutil"
	"github.com/bitsort/bitsort/pkg/rpc"
	"github.com/bitsort/bitsort/pkg/sort/bitonic"
)

// WorkerOption worker creation option
type WorkerOption func(*Worker)

// WithWorkerLogger set the worker logger
func WithWorkerLogger(logger *zap.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

// Worker is one compute rank of the cluster. It keeps no array state between
// requests; every request carries the block it operates on and the response
// carries it back.
type Worker struct {
	address string
	logger  *zap.Logger
	server  rpc.RPCServer

	terminateOnce sync.Once
	terminatedC   chan struct{}

	stats struct {
		sorts      atomic.Int64
		merges     atomic.Int64
		waits      atomic.Int64
		terminates atomic.Int64
	}
}

// NewWorker create a worker rank listening at address. The worker does not
// stop itself on a terminate request; it signals Terminated and the owner
// calls Close, so the terminate acknowledgement always reaches the
// coordinator first.
func NewWorker(address string, opts ...WorkerOption) (*Worker, error) {
	w := &Worker{
		address:     address,
		terminatedC: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logutil.Adjust(w.logger).Named("sort-worker").
		With(zap.String("address", address))

	server, err := rpc.NewRPCServer("sort-worker", address, newCodec(),
		rpc.WithServerLogger(w.logger))
	if err != nil {
		return nil, err
	}
	server.RegisterRequestHandler(w.onRequest)
	w.server = server
	return w, nil
}

// Start starts serving requests.
func (w *Worker) Start() error {
	return w.server.Start()
}

// Close stops the rpc server.
func (w *Worker) Close() error {
	return w.server.Close()
}

// Terminated returns a channel closed once a terminate request has been
// acknowledged.
func (w *Worker) Terminated() <-chan struct{} {
	return w.terminatedC
}

func (w *Worker) onRequest(request rpc.Message, sequence uint64, cs rpc.ClientSession) error {
	req, ok := request.(*packet)
	if !ok {
		return bserr.NewInvalidMessage("received %T, not a cluster packet", request)
	}

	resp := &packet{id: req.id, method: req.method, ascending: req.ascending}
	switch req.method {
	case MethodSort, MethodMerge:
		if err := w.runKernel(req, resp); err != nil {
			w.logger.Error("kernel request failed",
				zap.String("request", req.DebugString()),
				zap.Error(err))
			resp.errCode = bserr.CodeOf(err)
			resp.errMsg = err.Error()
		}
	case MethodWait:
		w.stats.waits.Add(1)
	case MethodTerminate:
		w.stats.terminates.Add(1)
	default:
		resp.errCode = bserr.ErrInvalidMessage
		resp.errMsg = bserr.NewInvalidMessage("unknown method %d", uint32(req.method)).Error()
	}

	if err := cs.Write(resp); err != nil {
		return err
	}
	if req.method == MethodTerminate {
		w.logger.Info("terminate acknowledged")
		w.terminateOnce.Do(func() {
			close(w.terminatedC)
		})
	}
	return nil
}

func (w *Worker) runKernel(req *packet, resp *packet) error {
	arr, err := bytesToInt32s(req.payload)
	if err != nil {
		return err
	}
	if !bitonic.IsPowerOfTwo(len(arr)) {
		return bserr.NewNotPowerOfTwo("block size", len(arr))
	}

	switch req.method {
	case MethodSort:
		w.stats.sorts.Add(1)
		bitonic.Sort(arr, 0, len(arr), req.ascending)
	case MethodMerge:
		w.stats.merges.Add(1)
		bitonic.Merge(arr, 0, len(arr), req.ascending)
	}
	resp.payload = int32sToBytes(arr)
	return nil
}
