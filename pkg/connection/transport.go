// Copyright 2025 Framegate, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package connection

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"

	"github.com/framegate/framegate/pkg/media"
)

// Binary message layout: one kind byte, capture timestamp as big-endian
// unix milliseconds, then the opaque encoded payload.
const (
	frameKindKey   = 0x00
	frameKindDelta = 0x01

	frameHeaderSize = 9
)

var (
	ErrShortFrameMessage = errors.New("frame message shorter than header")
	ErrUnknownFrameKind  = errors.New("unknown frame kind byte")
)

// DecodeFrameMessage parses a transport message into a Frame. The accounted
// byte size is the full message size, header included, since that is what
// occupies the receive path.
func DecodeFrameMessage(payload []byte) (*media.Frame, error) {
	if len(payload) < frameHeaderSize {
		return nil, errors.Wrapf(ErrShortFrameMessage, "got %d bytes", len(payload))
	}

	var kind media.FrameKind
	switch payload[0] {
	case frameKindKey:
		kind = media.FrameKindKey
	case frameKindDelta:
		kind = media.FrameKindDelta
	default:
		return nil, errors.Wrapf(ErrUnknownFrameKind, "0x%02x", payload[0])
	}

	millis := int64(binary.BigEndian.Uint64(payload[1:frameHeaderSize]))
	var body []byte
	if len(payload) > frameHeaderSize {
		body = payload[frameHeaderSize:]
	}
	return media.NewFrame(kind, time.UnixMilli(millis), len(payload), body), nil
}

// EncodeFrameMessage is the inverse of DecodeFrameMessage, used by the
// sending side and by tests.
func EncodeFrameMessage(f *media.Frame) []byte {
	buf := make([]byte, frameHeaderSize+len(f.Payload))
	if f.Kind == media.FrameKindKey {
		buf[0] = frameKindKey
	} else {
		buf[0] = frameKindDelta
	}
	binary.BigEndian.PutUint64(buf[1:frameHeaderSize], uint64(f.Timestamp.UnixMilli()))
	copy(buf[frameHeaderSize:], f.Payload)
	return buf
}
