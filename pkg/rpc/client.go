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

package rpc

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/bitsort/bitsort/pkg/common/bserr"
)

type client struct {
	factory BackendFactory
	nextID  uint64

	mu struct {
		sync.Mutex
		closed   bool
		backends map[string]Backend
	}
}

// NewClient create a rpc client. One backend is created lazily per remote
// address and kept until Close.
func NewClient(factory BackendFactory) (RPCClient, error) {
	c := &client{factory: factory}
	c.mu.backends = make(map[string]Backend)
	return c, nil
}

func (c *client) Send(ctx context.Context, backend string, request Message) (*Future, error) {
	request.SetID(atomic.AddUint64(&c.nextID, 1))
	b, err := c.getBackend(backend)
	if err != nil {
		return nil, err
	}
	return b.Send(ctx, request)
}

func (c *client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mu.closed {
		return nil
	}
	c.mu.closed = true

	for _, b := range c.mu.backends {
		b.Close()
	}
	c.mu.backends = nil
	return nil
}

func (c *client) getBackend(remote string) (Backend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mu.closed {
		return nil, bserr.NewBackendClosed()
	}
	if b, ok := c.mu.backends[remote]; ok {
		return b, nil
	}

	b, err := c.factory.Create(remote)
	if err != nil {
		return nil, bserr.NewBackendCannotConnect(remote)
	}
	c.mu.backends[remote] = b
	return b, nil
}
