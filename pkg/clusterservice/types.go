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

// Package clusterservice implements the distributed bitonic sort. A
// coordinator owns the array and drives the rounds; worker ranks are
// stateless compute processes that run the kernel on sub-range payloads
// shipped over the rpc package. The coordinator's blocking gather of all
// responses of a round is the rendezvous between rounds.
package clusterservice

import (
	"encoding/binary"
	"fmt"

	"github.com/bitsort/bitsort/pkg/common/bserr"
	"github.com/bitsort/bitsort/pkg/rpc"
)

// Method identifies the operation a rank is asked to perform.
type Method uint32

const (
	// MethodSort fully sorts the payload in the carried direction
	MethodSort = Method(0)
	// MethodMerge bitonic-merges the payload in the carried direction
	MethodMerge = Method(1)
	// MethodWait asks the rank to acknowledge and sit the round out
	MethodWait = Method(2)
	// MethodTerminate asks the rank process to shut down
	MethodTerminate = Method(3)
)

func (m Method) String() string {
	switch m {
	case MethodSort:
		return "sort"
	case MethodMerge:
		return "merge"
	case MethodWait:
		return "wait"
	case MethodTerminate:
		return "terminate"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(m))
	}
}

// packet is the single wire message of the cluster protocol, used for both
// requests and responses. The array segment travels as the rpc payload, so
// the codec can stream and compress it without another copy.
//
// layout: id(8) method(4) ascending(1) errCode(2) errMsg-len(4) errMsg
type packet struct {
	id        uint64
	method    Method
	ascending bool
	errCode   uint16
	errMsg    string
	payload   []byte
}

var _ rpc.PayloadMessage = (*packet)(nil)

func (p *packet) SetID(id uint64) { p.id = id }

func (p *packet) GetID() uint64 { return p.id }

func (p *packet) Size() int { return 8 + 4 + 1 + 2 + 4 + len(p.errMsg) }

func (p *packet) MarshalTo(data []byte) (int, error) {
	binary.LittleEndian.PutUint64(data, p.id)
	binary.LittleEndian.PutUint32(data[8:], uint32(p.method))
	data[12] = 0
	if p.ascending {
		data[12] = 1
	}
	binary.LittleEndian.PutUint16(data[13:], p.errCode)
	binary.LittleEndian.PutUint32(data[15:], uint32(len(p.errMsg)))
	copy(data[19:], p.errMsg)
	return p.Size(), nil
}

func (p *packet) Unmarshal(data []byte) error {
	if len(data) < 19 {
		return bserr.NewInvalidMessage("packet too short: %d bytes", len(data))
	}
	p.id = binary.LittleEndian.Uint64(data)
	p.method = Method(binary.LittleEndian.Uint32(data[8:]))
	p.ascending = data[12] == 1
	p.errCode = binary.LittleEndian.Uint16(data[13:])
	msgLen := int(binary.LittleEndian.Uint32(data[15:]))
	if len(data) < 19+msgLen {
		return bserr.NewInvalidMessage("packet error message truncated")
	}
	p.errMsg = string(data[19 : 19+msgLen])
	return nil
}

func (p *packet) DebugString() string {
	return fmt.Sprintf("%s ascending=%v payload=%d", p.method, p.ascending, len(p.payload))
}

func (p *packet) GetPayloadField() []byte { return p.payload }

func (p *packet) SetPayloadField(data []byte) { p.payload = data }

// err returns the carried failure as a coded error, nil if none.
func (p *packet) err() error {
	if p.errCode == bserr.Ok {
		return nil
	}
	return bserr.NewWithCode(p.errCode, p.errMsg)
}

func newCodec() rpc.Codec {
	return rpc.NewMessageCodec(func() rpc.Message { return &packet{} },
		defaultPayloadCopySize, defaultCompressThreshold)
}

const (
	defaultPayloadCopySize   = 16 * 1024
	defaultCompressThreshold = 4 * 1024
)

func int32sToBytes(values []int32) []byte {
	data := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(v))
	}
	return data
}

func bytesToInt32s(data []byte) ([]int32, error) {
	if len(data)%4 != 0 {
		return nil, bserr.NewInvalidMessage("payload length %d is not a multiple of 4", len(data))
	}
	values := make([]int32, len(data)/4)
	for i := range values {
		values[i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return values, nil
}
