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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/framegate/framegate/pkg/media"
)

func TestFrameMessageRoundTrip(t *testing.T) {
	ts := time.UnixMilli(1700000123456)

	for _, tc := range []struct {
		name  string
		frame *media.Frame
	}{
		{"key frame", media.NewKeyFrame(ts, []byte{0x01, 0x02, 0x03})},
		{"delta frame", media.NewDeltaFrame(ts, []byte{0xff})},
		{"empty payload", media.NewDeltaFrame(ts, nil)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			decoded, err := DecodeFrameMessage(EncodeFrameMessage(tc.frame))
			require.NoError(t, err)
			require.Equal(t, tc.frame.Kind, decoded.Kind)
			require.True(t, ts.Equal(decoded.Timestamp))
			require.Equal(t, tc.frame.Payload, decoded.Payload)
			// accounted size covers the whole message
			require.Equal(t, frameHeaderSize+len(tc.frame.Payload), decoded.ByteSize)
		})
	}
}

func TestDecodeFrameMessageErrors(t *testing.T) {
	_, err := DecodeFrameMessage([]byte{0x00, 0x01})
	require.ErrorIs(t, err, ErrShortFrameMessage)

	bad := EncodeFrameMessage(media.NewKeyFrame(time.Now(), nil))
	bad[0] = 0x7f
	_, err = DecodeFrameMessage(bad)
	require.ErrorIs(t, err, ErrUnknownFrameKind)
}
