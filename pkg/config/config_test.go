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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/framegate/framegate/pkg/buffer"
	"github.com/framegate/framegate/pkg/connection"
)

func TestDefaultsAndOverlay(t *testing.T) {
	conf, err := NewConfig(`
endpoint: wss://rc.example.com/stream
auth:
  device_id: dev-1
  token: tok-1
buffer:
  max_buffer_bytes: 1000
  max_frame_count: 10
  drop_threshold_fraction: 0.8
  min_key_frame_interval: 2s
`, nil)
	require.NoError(t, err)

	require.Equal(t, "wss://rc.example.com/stream", conf.Endpoint)
	require.Equal(t, int64(1000), conf.Buffer.MaxBufferBytes)
	require.Equal(t, 2*time.Second, conf.Buffer.MinKeyFrameInterval)
	// untouched sections keep defaults
	require.Equal(t, 10*time.Second, conf.Connection.PingInterval)
	require.Equal(t, connection.DefaultReconnectConfig.MaxDelay, conf.Connection.Reconnect.MaxDelay)
	require.Equal(t, "info", conf.Logging.Level)
	require.True(t, conf.Logging.JSON)
}

func TestUnknownFieldsRejected(t *testing.T) {
	_, err := NewConfig(`
endpoint: wss://rc.example.com
bufffer:
  max_frame_count: 10
`, nil)
	require.Error(t, err)
}

func TestEndpointRequired(t *testing.T) {
	_, err := NewConfig("", nil)
	require.ErrorIs(t, err, ErrEndpointRequired)
}

func TestInsecureEndpointRejected(t *testing.T) {
	_, err := NewConfig("endpoint: ws://rc.example.com/stream", nil)
	require.ErrorIs(t, err, connection.ErrInsecureEndpoint)

	// development exception only covers local hosts
	_, err = NewConfig(`
endpoint: ws://127.0.0.1:7880
development: true
`, nil)
	require.NoError(t, err)
}

func TestInvalidBufferConfigRejected(t *testing.T) {
	_, err := NewConfig(`
endpoint: wss://rc.example.com
buffer:
  max_buffer_bytes: 1000
  max_frame_count: 10
  drop_threshold_fraction: 1.1
`, nil)
	require.ErrorIs(t, err, buffer.ErrInvalidDropThreshold)
}

func TestDevelopmentAdjustsLogging(t *testing.T) {
	conf, err := NewConfig(`
endpoint: wss://rc.example.com
development: true
`, nil)
	require.NoError(t, err)
	require.False(t, conf.Logging.JSON)
	require.Equal(t, "debug", conf.Logging.Level)
}
