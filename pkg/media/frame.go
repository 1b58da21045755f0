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

package media

import (
	"fmt"
	"time"
)

// FrameKind distinguishes independently decodable key frames from delta
// frames that reference a prior key frame.
type FrameKind int

const (
	FrameKindKey FrameKind = iota
	FrameKindDelta
)

func (k FrameKind) String() string {
	switch k {
	case FrameKindKey:
		return "key"
	case FrameKindDelta:
		return "delta"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Frame is one unit of encoded video as it moves through the pipeline.
// The payload is opaque to everything downstream of the transport; only
// kind, capture timestamp and size participate in buffering decisions.
// Frames are not mutated after construction.
type Frame struct {
	Kind      FrameKind
	Timestamp time.Time
	ByteSize  int
	Payload   []byte
}

// NewFrame builds a frame whose accounted size is independent of the
// payload, e.g. when only metadata is forwarded.
func NewFrame(kind FrameKind, ts time.Time, byteSize int, payload []byte) *Frame {
	return &Frame{
		Kind:      kind,
		Timestamp: ts,
		ByteSize:  byteSize,
		Payload:   payload,
	}
}

func NewKeyFrame(ts time.Time, payload []byte) *Frame {
	return &Frame{
		Kind:      FrameKindKey,
		Timestamp: ts,
		ByteSize:  len(payload),
		Payload:   payload,
	}
}

func NewDeltaFrame(ts time.Time, payload []byte) *Frame {
	return &Frame{
		Kind:      FrameKindDelta,
		Timestamp: ts,
		ByteSize:  len(payload),
		Payload:   payload,
	}
}
