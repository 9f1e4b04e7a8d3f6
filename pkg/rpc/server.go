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
	"github.com/fagongzi/goetty/v2"
	"go.uber.org/zap"

	"github.com/bitsort/bitsort/pkg/common/bserr"
	"github.com/bitsort/bitsort/pkg/logutil"
)

// ServerOption server creation option
type ServerOption func(*server)

// WithServerLogger set the server logger
func WithServerLogger(logger *zap.Logger) ServerOption {
	return func(s *server) {
		s.logger = logger
	}
}

// WithServerGoettyOptions set goetty options for accepted sessions
func WithServerGoettyOptions(options ...goetty.Option) ServerOption {
	return func(s *server) {
		s.options.goettyOptions = options
	}
}

type server struct {
	name        string
	address     string
	logger      *zap.Logger
	codec       Codec
	application goetty.NetApplication
	handler     RequestHandler

	options struct {
		goettyOptions []goetty.Option
	}
}

// NewRPCServer create a rpc server accepting connections at address. Each
// decoded request is passed to the registered handler together with a
// ClientSession used to write the response. The handler is called on the
// session's read goroutine, so responses written inside the handler are
// naturally serialized per session.
func NewRPCServer(name, address string, codec Codec, options ...ServerOption) (RPCServer, error) {
	s := &server{
		name:    name,
		address: address,
		codec:   codec,
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = logutil.Adjust(s.logger).Named(name).With(zap.String("address", address))

	s.options.goettyOptions = append(s.options.goettyOptions,
		goetty.WithCodec(s.codec, s.codec),
		goetty.WithLogger(s.logger))
	app, err := goetty.NewApplication(address, s.onMessage,
		goetty.WithAppLogger(s.logger),
		goetty.WithAppSessionOptions(s.options.goettyOptions...))
	if err != nil {
		return nil, err
	}
	s.application = app
	return s, nil
}

func (s *server) Start() error {
	if s.handler == nil {
		return bserr.NewInvalidState("request handler not registered")
	}
	err := s.application.Start()
	if err != nil {
		s.logger.Error("start server failed", zap.Error(err))
		return err
	}
	s.logger.Info("server started")
	return nil
}

func (s *server) Close() error {
	err := s.application.Stop()
	if err != nil {
		s.logger.Error("stop server failed", zap.Error(err))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *server) RegisterRequestHandler(handler RequestHandler) {
	s.handler = handler
}

func (s *server) onMessage(rs goetty.IOSession, value interface{}, sequence uint64) error {
	request, ok := value.(Message)
	if !ok {
		return bserr.NewInvalidMessage("received %T, not a wire message", value)
	}
	logMessage(s.logger, "request received", request)
	return s.handler(request, sequence, &clientSession{conn: rs})
}

type clientSession struct {
	conn goetty.IOSession
}

func (cs *clientSession) Write(response Message) error {
	return cs.conn.Write(response, goetty.WriteOptions{Flush: true})
}
