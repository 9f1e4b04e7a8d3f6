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

// Package rpc implements a small request-response RPC framework on top of
// goetty TCP sessions. Callers provide the concrete Message implementation;
// the framework handles framing, request-response matching and connection
// management.
package rpc

import (
	"context"

	"github.com/fagongzi/goetty/v2/codec"
	"go.uber.org/zap"
)

// Message is the union of all messages that cross the wire. Implementations
// marshal themselves into a caller-provided buffer, so the codec controls
// all allocation.
type Message interface {
	// SetID sets the message id, the response to a request must carry the
	// same id.
	SetID(id uint64)
	// GetID returns the message id
	GetID() uint64
	// Size size of the message after marshal
	Size() int
	// MarshalTo marshal the message into the given buffer
	MarshalTo(data []byte) (int, error)
	// Unmarshal the message from the given buffer
	Unmarshal(data []byte) error
	// DebugString returns a short description used in log output
	DebugString() string
}

// PayloadMessage is a message with a large body that is written to the
// socket directly, bypassing the marshal buffer. Payloads may be compressed
// on the wire.
type PayloadMessage interface {
	Message

	// GetPayloadField returns the payload bytes
	GetPayloadField() []byte
	// SetPayloadField sets the payload bytes
	SetPayloadField(data []byte)
}

// Codec encodes and decodes Messages on a goetty session.
type Codec interface {
	codec.Encoder
	codec.Decoder
}

// ClientSession is the server-side handle used to reply to the client that
// sent the request.
type ClientSession interface {
	// Write writes a response message back to the client session
	Write(response Message) error
}

// RequestHandler handles one received request. sequence is the per-session
// receive counter.
type RequestHandler func(request Message, sequence uint64, cs ClientSession) error

// RPCClient sends requests to remote RPC servers and matches responses to
// their requests.
type RPCClient interface {
	// Send sends the request to the server at backend and returns a Future
	// to wait for the response on. ctx must carry a deadline.
	Send(ctx context.Context, backend string, request Message) (*Future, error)
	// Close closes the client and all its backends
	Close() error
}

// RPCServer accepts client sessions and feeds every decoded request to the
// registered handler.
type RPCServer interface {
	// Start starts listening
	Start() error
	// Close stops the server and closes all client sessions
	Close() error
	// RegisterRequestHandler sets the handler for received requests
	RegisterRequestHandler(handler RequestHandler)
}

// Backend is a connection to a single remote server.
type Backend interface {
	// Send sends the request on this backend
	Send(ctx context.Context, request Message) (*Future, error)
	// Close closes the backend
	Close()
}

// BackendFactory creates backends for remote addresses.
type BackendFactory interface {
	// Create creates a backend to the given remote address
	Create(remote string) (Backend, error)
}

// helper shared by client and server loops
func logMessage(logger *zap.Logger, msg string, m Message) {
	if logger.Core().Enabled(zap.DebugLevel) {
		logger.Debug(msg,
			zap.Uint64("message-id", m.GetID()),
			zap.String("message", m.DebugString()))
	}
}
