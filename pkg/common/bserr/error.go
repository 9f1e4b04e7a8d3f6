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

package bserr

import (
	"fmt"
)

const (
	// Ok is not an error.
	Ok uint16 = 0

	// Group 1: internal errors
	ErrStart    uint16 = 20100
	ErrInternal uint16 = 20101
	ErrOOM      uint16 = 20103

	// Group 2: invalid input and configuration
	ErrBadConfig     uint16 = 20300
	ErrInvalidInput  uint16 = 20301
	ErrNotPowerOfTwo uint16 = 20302
	ErrBadArrayFile  uint16 = 20303
	ErrInvalidUTF8   uint16 = 20304
	ErrInvalidArg    uint16 = 20305

	// Group 3: unexpected state and io errors
	ErrInvalidState  uint16 = 20400
	ErrNotSorted     uint16 = 20401
	ErrUnexpectedEOF uint16 = 20407

	// Group 4: rpc errors
	ErrBackendClosed        uint16 = 20500
	ErrBackendCannotConnect uint16 = 20501
	ErrInvalidMessage       uint16 = 20502
	ErrNoAvailableBackend   uint16 = 20503
	ErrRPCTimeout           uint16 = 20504

	ErrEnd uint16 = 65535
)

type errorItem struct {
	code   uint16
	format string
}

var errorMsgRegistry = map[uint16]errorItem{
	ErrInternal: {ErrInternal, "internal error: %s"},
	ErrOOM:      {ErrOOM, "out of memory"},

	ErrBadConfig:     {ErrBadConfig, "invalid configuration: %s"},
	ErrInvalidInput:  {ErrInvalidInput, "invalid input: %s"},
	ErrNotPowerOfTwo: {ErrNotPowerOfTwo, "%s must be a power of two, got %d"},
	ErrBadArrayFile:  {ErrBadArrayFile, "bad array file %s: %s"},
	ErrInvalidUTF8:   {ErrInvalidUTF8, "invalid utf-8 sequence at offset %d"},
	ErrInvalidArg:    {ErrInvalidArg, "invalid argument %s: %v"},

	ErrInvalidState:  {ErrInvalidState, "invalid state: %s"},
	ErrNotSorted:     {ErrNotSorted, "array not sorted at position %d: element %d followed by %d"},
	ErrUnexpectedEOF: {ErrUnexpectedEOF, "unexpected end of file %s"},

	ErrBackendClosed:        {ErrBackendClosed, "the rpc backend is closed"},
	ErrBackendCannotConnect: {ErrBackendCannotConnect, "can not connect to remote %s"},
	ErrInvalidMessage:       {ErrInvalidMessage, "invalid rpc message: %s"},
	ErrNoAvailableBackend:   {ErrNoAvailableBackend, "no available rpc backend for %s"},
	ErrRPCTimeout:           {ErrRPCTimeout, "rpc timeout"},
}

// Error is the bitsort error, carrying an error code and a rendered message.
// Errors that cross a package boundary in this repository are *Error.
type Error struct {
	code    uint16
	message string
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) ErrorCode() uint16 {
	return e.code
}

func (e *Error) Ok() bool {
	return e.code < ErrStart
}

func newError(code uint16, args ...any) *Error {
	item, has := errorMsgRegistry[code]
	if !has {
		panic(fmt.Errorf("missing error item for error code %d", code))
	}
	var msg string
	if len(args) == 0 {
		msg = item.format
	} else {
		msg = fmt.Sprintf(item.format, args...)
	}
	return &Error{code: code, message: msg}
}

// NewWithCode rebuilds an error decoded from the wire, keeping the remote
// code and message as-is.
func NewWithCode(code uint16, message string) *Error {
	return &Error{code: code, message: message}
}

// CodeOf returns the error code carried by err, ErrInternal if err is not
// an *Error, Ok if err is nil.
func CodeOf(err error) uint16 {
	if err == nil {
		return Ok
	}
	if e, ok := err.(*Error); ok {
		return e.code
	}
	return ErrInternal
}

// IsBsErrCode returns true if err is an *Error with the given code.
func IsBsErrCode(err error, code uint16) bool {
	if err == nil {
		return code == Ok
	}
	e, ok := err.(*Error)
	return ok && e.code == code
}

func NewInternalError(format string, args ...any) *Error {
	return newError(ErrInternal, fmt.Sprintf(format, args...))
}

func NewOOM() *Error {
	return newError(ErrOOM)
}

func NewBadConfig(format string, args ...any) *Error {
	return newError(ErrBadConfig, fmt.Sprintf(format, args...))
}

func NewInvalidInput(format string, args ...any) *Error {
	return newError(ErrInvalidInput, fmt.Sprintf(format, args...))
}

func NewNotPowerOfTwo(what string, value int) *Error {
	return newError(ErrNotPowerOfTwo, what, value)
}

func NewBadArrayFile(path string, cause string) *Error {
	return newError(ErrBadArrayFile, path, cause)
}

func NewInvalidUTF8(offset int) *Error {
	return newError(ErrInvalidUTF8, offset)
}

func NewInvalidArg(name string, value any) *Error {
	return newError(ErrInvalidArg, name, value)
}

func NewInvalidState(format string, args ...any) *Error {
	return newError(ErrInvalidState, fmt.Sprintf(format, args...))
}

func NewNotSorted(index int, value, next int32) *Error {
	return newError(ErrNotSorted, index, value, next)
}

func NewUnexpectedEOF(path string) *Error {
	return newError(ErrUnexpectedEOF, path)
}

func NewBackendClosed() *Error {
	return newError(ErrBackendClosed)
}

func NewBackendCannotConnect(remote string) *Error {
	return newError(ErrBackendCannotConnect, remote)
}

func NewInvalidMessage(format string, args ...any) *Error {
	return newError(ErrInvalidMessage, fmt.Sprintf(format, args...))
}

func NewNoAvailableBackend(remote string) *Error {
	return newError(ErrNoAvailableBackend, remote)
}

func NewRPCTimeout() *Error {
	return newError(ErrRPCTimeout)
}
