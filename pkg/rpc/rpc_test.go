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
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"testing"
	"time"

	"github.com/lni/goutils/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleServer(t *testing.T) {
	defer leaktest.AfterTest(t)()

	testRPCServer(t, "127.0.0.1:36001", func(addr string, rs RPCServer) {
		c := newTestClient(t)
		defer func() {
			assert.NoError(t, c.Close())
		}()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		req := &testMessage{content: "ping"}
		f, err := c.Send(ctx, addr, req)
		require.NoError(t, err)

		defer f.Close()
		resp, err := f.Get()
		require.NoError(t, err)
		assert.Equal(t, req.GetID(), resp.GetID())
		assert.Equal(t, "ping", resp.(*testMessage).content)
	})
}

func TestHandleServerWithPayloadMessage(t *testing.T) {
	defer leaktest.AfterTest(t)()

	testRPCServer(t, "127.0.0.1:36002", func(addr string, rs RPCServer) {
		c := newTestClient(t)
		defer func() {
			assert.NoError(t, c.Close())
		}()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		req := &testMessage{content: "with-payload", payload: []byte("payload")}
		f, err := c.Send(ctx, addr, req)
		require.NoError(t, err)

		defer f.Close()
		resp, err := f.Get()
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), resp.(*testMessage).payload)
	})
}

func TestHandleServerWithCompressedPayload(t *testing.T) {
	defer leaktest.AfterTest(t)()

	// well past the codec's compress threshold and very compressible
	payload := bytes.Repeat([]byte("0123456789abcdef"), 1024)

	testRPCServer(t, "127.0.0.1:36003", func(addr string, rs RPCServer) {
		c := newTestClient(t)
		defer func() {
			assert.NoError(t, c.Close())
		}()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		req := &testMessage{content: "big", payload: payload}
		f, err := c.Send(ctx, addr, req)
		require.NoError(t, err)

		defer f.Close()
		resp, err := f.Get()
		require.NoError(t, err)
		assert.Equal(t, payload, resp.(*testMessage).payload)
	})
}

func TestSendTimeoutWithoutResponse(t *testing.T) {
	defer leaktest.AfterTest(t)()

	s, err := NewRPCServer("test-server", "127.0.0.1:36004", newTestCodec())
	require.NoError(t, err)
	s.RegisterRequestHandler(func(request Message, sequence uint64, cs ClientSession) error {
		// never reply
		return nil
	})
	require.NoError(t, s.Start())
	defer func() {
		assert.NoError(t, s.Close())
	}()

	c := newTestClient(t)
	defer func() {
		assert.NoError(t, c.Close())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*100)
	defer cancel()

	f, err := c.Send(ctx, "127.0.0.1:36004", &testMessage{content: "lost"})
	require.NoError(t, err)
	defer f.Close()

	resp, err := f.Get()
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCompressPayloadRoundTrip(t *testing.T) {
	src := bytes.Repeat([]byte("bitonic"), 512)
	compressed, err := compressPayload(src)
	require.NoError(t, err)
	require.Less(t, len(compressed), len(src))

	restored, err := uncompressPayload(compressed)
	require.NoError(t, err)
	assert.Equal(t, src, restored)
}

func testRPCServer(t *testing.T, addr string, testFunc func(string, RPCServer)) {
	s, err := NewRPCServer("test-server", addr, newTestCodec())
	require.NoError(t, err)
	s.RegisterRequestHandler(func(request Message, sequence uint64, cs ClientSession) error {
		return cs.Write(request)
	})
	require.NoError(t, s.Start())
	defer func() {
		assert.NoError(t, s.Close())
	}()

	testFunc(addr, s)
}

func newTestClient(t *testing.T) RPCClient {
	bf := NewGoettyBasedBackendFactory(newTestCodec(),
		WithBackendConnectWhenCreate(),
		WithBackendConnectTimeout(time.Second*5))
	c, err := NewClient(bf)
	require.NoError(t, err)
	return c
}

func newTestCodec() Codec {
	return NewMessageCodec(func() Message { return &testMessage{} }, 1024, 1024)
}

type testMessage struct {
	id      uint64
	content string
	payload []byte
}

func (m *testMessage) SetID(id uint64) {
	m.id = id
}

func (m *testMessage) GetID() uint64 {
	return m.id
}

func (m *testMessage) Size() int {
	return 8 + len(m.content)
}

func (m *testMessage) MarshalTo(data []byte) (int, error) {
	binary.LittleEndian.PutUint64(data, m.id)
	copy(data[8:], m.content)
	return m.Size(), nil
}

func (m *testMessage) Unmarshal(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("short message: %d bytes", len(data))
	}
	m.id = binary.LittleEndian.Uint64(data)
	m.content = string(data[8:])
	return nil
}

func (m *testMessage) DebugString() string {
	return fmt.Sprintf("%d: %s", m.id, m.content)
}

func (m *testMessage) GetPayloadField() []byte {
	return m.payload
}

func (m *testMessage) SetPayloadField(data []byte) {
	m.payload = data
}
