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

package diagnostics

import (
	"time"

	"github.com/framegate/framegate/pkg/connection"
)

// Report is a point-in-time snapshot of the metric groups. Each group is
// self-consistent; no invariant spans groups.
type Report struct {
	GeneratedAt time.Time

	Heartbeat    HeartbeatStats
	Connection   ConnectionStats
	Frames       FrameStats
	JitterBuffer JitterBufferStats
	Network      NetworkStats
	System       SystemStats
}

type HeartbeatStats struct {
	Count         int64
	LastHeartbeat time.Time
	MeanInterval  time.Duration
}

type ConnectionStats struct {
	State          connection.State
	Connects       int64
	Disconnects    int64
	Errors         int64
	Uptime         time.Duration
	Downtime       time.Duration
	LastTransition time.Time
}

type FrameStats struct {
	FramesReceived int64
	KeyFrames      int64
	DeltaFrames    int64
	BytesReceived  int64
	// over the rolling arrival window
	FPS        float64
	BitrateBps float64
}

type JitterBufferStats struct {
	BufferedFrames int
	BufferedBytes  int64
	Utilization    float64
	DroppedFrames  uint64
}

type NetworkStats struct {
	MessagesReceived int64
	MessagesSent     int64
	BytesReceived    int64
	BytesSent        int64
	MeanRTT          time.Duration
	// mean absolute successive RTT difference
	Jitter      time.Duration
	MeanLatency time.Duration
}
