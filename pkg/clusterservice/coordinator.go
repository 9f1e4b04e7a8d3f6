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
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bitsort/bitsort/pkg/common/bserr"
	"github.com/bitsort/bitsort/pkg/logutil"
	"github.com/bitsort/bitsort/pkg/rpc"
	"github.com/bitsort/bitsort/pkg/sort/bitonic"
)

// CoordinatorOption coordinator creation option
type CoordinatorOption func(*Coordinator)

// WithCoordinatorLogger set the coordinator logger
func WithCoordinatorLogger(logger *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithShrinkStrategy set the group shrink strategy. Default is terminate.
func WithShrinkStrategy(strategy ShrinkStrategy) CoordinatorOption {
	return func(c *Coordinator) {
		c.strategy = strategy
	}
}

// WithRoundTimeout set the per-round rpc timeout. Default 60s.
func WithRoundTimeout(timeout time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.roundTimeout = timeout
	}
}

// Coordinator owns the array and drives the distributed sort over a fixed
// group of worker ranks. Rank index is the position in the address list.
type Coordinator struct {
	ranks        []string
	strategy     ShrinkStrategy
	roundTimeout time.Duration
	logger       *zap.Logger
	client       rpc.RPCClient
}

// NewCoordinator create a coordinator over the given rank addresses. The
// rank count must be a power of two.
func NewCoordinator(ranks []string, opts ...CoordinatorOption) (*Coordinator, error) {
	if len(ranks) < 1 {
		return nil, bserr.NewBadConfig("at least one worker rank is required")
	}
	if !bitonic.IsPowerOfTwo(len(ranks)) {
		return nil, bserr.NewNotPowerOfTwo("rank count", len(ranks))
	}

	c := &Coordinator{
		ranks:        ranks,
		strategy:     ShrinkTerminate,
		roundTimeout: time.Second * 60,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logutil.Adjust(c.logger).Named("sort-coordinator")

	client, err := rpc.NewClient(rpc.NewGoettyBasedBackendFactory(newCodec(),
		rpc.WithBackendLogger(c.logger)))
	if err != nil {
		return nil, err
	}
	c.client = client
	return c, nil
}

// Sort sorts arr in place in the requested direction. Each round the
// coordinator scatters one request per participating rank and blocks until
// every response of the round has been gathered; that gather is the only
// synchronization between rounds. After the final round all ranks that are
// still up receive a terminate request.
func (c *Coordinator) Sort(ctx context.Context, arr []int32, ascending bool) error {
	n := len(arr)
	if !bitonic.IsPowerOfTwo(n) {
		return bserr.NewNotPowerOfTwo("array size", n)
	}
	if len(c.ranks) > n {
		return bserr.NewBadConfig("rank count %d exceeds array size %d", len(c.ranks), n)
	}

	jobID := uuid.NewString()
	logger := c.logger.With(zap.String("job", jobID))
	logger.Info("distributed sort started",
		zap.Int("size", n),
		zap.Int("ranks", len(c.ranks)),
		zap.Bool("ascending", ascending),
		zap.String("strategy", string(c.strategy)))
	start := time.Now()

	active := len(c.ranks)
	for _, plan := range planRounds(n, len(c.ranks), ascending) {
		roundStart := time.Now()

		if c.strategy == ShrinkTerminate &&
			plan.method == MethodMerge && len(plan.blocks) < active {
			idle := c.ranks[len(plan.blocks):active]
			if err := c.broadcast(ctx, MethodTerminate, idle); err != nil {
				return err
			}
			active = len(plan.blocks)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, block := range plan.blocks {
			block := block
			g.Go(func() error {
				return c.dispatchBlock(gctx, arr, plan, block)
			})
		}
		if c.strategy == ShrinkWait {
			for rank := len(plan.blocks); rank < len(c.ranks); rank++ {
				remote := c.ranks[rank]
				g.Go(func() error {
					return c.call(gctx, remote, &packet{method: MethodWait})
				})
			}
		}
		if err := g.Wait(); err != nil {
			return err
		}

		logger.Debug("round completed",
			zap.String("method", plan.method.String()),
			zap.Int("count", plan.count),
			zap.Int("participants", len(plan.blocks)),
			zap.Duration("elapsed", time.Since(roundStart)))
	}

	if err := c.broadcast(ctx, MethodTerminate, c.ranks[:c.survivors(active)]); err != nil {
		return err
	}

	logger.Info("distributed sort completed",
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Close closes the rpc client. Worker processes shut down on their own after
// the terminate acknowledgement.
func (c *Coordinator) Close() error {
	return c.client.Close()
}

func (c *Coordinator) survivors(active int) int {
	if c.strategy == ShrinkWait {
		return len(c.ranks)
	}
	return active
}

// dispatchBlock ships one block to its rank, waits for the response and
// copies the returned block back into place.
func (c *Coordinator) dispatchBlock(ctx context.Context, arr []int32, plan roundPlan, block blockAssignment) error {
	req := &packet{
		method:    plan.method,
		ascending: block.ascending,
		payload:   int32sToBytes(arr[block.low : block.low+plan.count]),
	}
	resp, err := c.send(ctx, c.ranks[block.rank], req)
	if err != nil {
		return err
	}

	values, err := bytesToInt32s(resp.payload)
	if err != nil {
		return err
	}
	if len(values) != plan.count {
		return bserr.NewInvalidMessage("rank %d returned %d elements, want %d",
			block.rank, len(values), plan.count)
	}
	copy(arr[block.low:], values)
	return nil
}

// broadcast sends the same control request to every listed rank and gathers
// the acknowledgements.
func (c *Coordinator) broadcast(ctx context.Context, method Method, remotes []string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, remote := range remotes {
		remote := remote
		g.Go(func() error {
			return c.call(gctx, remote, &packet{method: method})
		})
	}
	return g.Wait()
}

func (c *Coordinator) call(ctx context.Context, remote string, req *packet) error {
	_, err := c.send(ctx, remote, req)
	return err
}

func (c *Coordinator) send(ctx context.Context, remote string, req *packet) (*packet, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.roundTimeout)
		defer cancel()
	}

	f, err := c.client.Send(ctx, remote, req)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	msg, err := f.Get()
	if err != nil {
		return nil, err
	}
	resp := msg.(*packet)
	if err := resp.err(); err != nil {
		return nil, err
	}
	return resp, nil
}
