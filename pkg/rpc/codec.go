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
	"github.com/fagongzi/goetty/v2/buf"
	"github.com/fagongzi/goetty/v2/codec"
	"github.com/fagongzi/goetty/v2/codec/length"
	"github.com/pierrec/lz4"

	"github.com/bitsort/bitsort/pkg/common/bserr"
)

var (
	flagPayloadMessage    byte = 1
	flagCompressedPayload byte = 2
)

type messageCodec struct {
	encoder codec.Encoder
	decoder codec.Decoder
}

// NewMessageCodec create a message codec. If the message is a PayloadMessage,
// payloadCopyBufSize determines how much data is copied from the payload to
// the socket each time. Payloads larger than compressThreshold are lz4 block
// compressed on the wire; pass 0 to disable compression.
func NewMessageCodec(messageFactory func() Message, payloadCopyBufSize, compressThreshold int) Codec {
	bc := &baseCodec{
		messageFactory:    messageFactory,
		payloadBufSize:    payloadCopyBufSize,
		compressThreshold: compressThreshold,
	}
	_, decoder := length.New(bc, bc)
	return &messageCodec{encoder: bc, decoder: decoder}
}

func (c *messageCodec) Decode(in *buf.ByteBuf) (bool, interface{}, error) {
	return c.decoder.Decode(in)
}

func (c *messageCodec) Encode(data interface{}, out *buf.ByteBuf) error {
	return c.encoder.Encode(data, out)
}

type baseCodec struct {
	payloadBufSize    int
	compressThreshold int
	messageFactory    func() Message
}

func (c *baseCodec) Decode(in *buf.ByteBuf) (bool, interface{}, error) {
	message := c.messageFactory()

	data := in.GetMarkedRemindData()
	flag := data[0]
	data = data[1:]
	var payloadData []byte
	if flag&flagPayloadMessage != 0 {
		msize := buf.Byte2Int(data)
		data = data[4:]
		payloadData = data[msize:]
		data = data[:msize]
	}

	err := message.Unmarshal(data)
	if err != nil {
		return false, nil, err
	}

	if flag&flagCompressedPayload != 0 {
		payloadData, err = uncompressPayload(payloadData)
		if err != nil {
			return false, nil, err
		}
	}
	if len(payloadData) > 0 {
		message.(PayloadMessage).SetPayloadField(payloadData)
	}

	in.MarkedBytesReaded()
	return true, message, nil
}

func (c *baseCodec) Encode(data interface{}, out *buf.ByteBuf) error {
	message, ok := data.(Message)
	if !ok {
		return bserr.NewInvalidMessage("%T is not a wire message", data)
	}

	flag := byte(0)
	size := 1 // 1 bytes flag
	var payloadData []byte
	hasPayload := false
	if payload, ok := message.(PayloadMessage); ok {
		payloadData = payload.GetPayloadField()
		if len(payloadData) > 0 {
			payload.SetPayloadField(nil)
			flag |= flagPayloadMessage
			hasPayload = true
			defer payload.SetPayloadField(payloadData)

			if c.compressThreshold > 0 && len(payloadData) >= c.compressThreshold {
				compressed, err := compressPayload(payloadData)
				if err != nil {
					return err
				}
				if len(compressed) < len(payloadData) {
					flag |= flagCompressedPayload
					payloadData = compressed
				}
			}
			size += 4 + len(payloadData) // 4 bytes payload size + payload bytes
		}
	}

	msize := message.Size()
	size += msize

	// 4 bytes total size
	buf.MustWriteInt(out, size)
	// 1 byte flag
	buf.MustWriteByte(out, flag)
	// 4 bytes message size
	if hasPayload {
		buf.MustWriteInt(out, msize)
	}
	// message
	index := out.GetWriteIndex()
	out.Expansion(msize)
	if _, err := message.MarshalTo(out.RawBuf()[index : index+msize]); err != nil {
		return err
	}
	out.SetWriterIndex(index + msize)

	// payload
	if hasPayload {
		if _, err := out.FlushToSink(); err != nil {
			return err
		}
		if _, err := out.WriteToSink(payloadData, c.payloadBufSize); err != nil {
			return err
		}
	}
	return nil
}

/// compressed payload layout: 4 bytes original size, lz4 block
func compressPayload(src []byte) ([]byte, error) {
	dst := make([]byte, 4+lz4.CompressBlockBound(len(src)))
	buf.Int2BytesTo(len(src), dst)
	n, err := lz4.CompressBlock(src, dst[4:], nil)
	if err != nil {
		return nil, bserr.NewInvalidMessage("compress payload: %v", err)
	}
	if n == 0 {
		// incompressible, caller keeps the raw payload
		return src, nil
	}
	return dst[:4+n], nil
}

func uncompressPayload(src []byte) ([]byte, error) {
	if len(src) < 4 {
		return nil, bserr.NewInvalidMessage("compressed payload too short: %d bytes", len(src))
	}
	origSize := buf.Byte2Int(src)
	dst := make([]byte, origSize)
	n, err := lz4.UncompressBlock(src[4:], dst)
	if err != nil {
		return nil, bserr.NewInvalidMessage("uncompress payload: %v", err)
	}
	return dst[:n], nil
}
