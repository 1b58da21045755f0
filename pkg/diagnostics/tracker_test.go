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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/framegate/framegate/pkg/buffer"
	"github.com/framegate/framegate/pkg/connection"
	"github.com/framegate/framegate/pkg/media"
)

func newTestTracker(windowSize int) (*Tracker, *time.Time) {
	t := NewTracker(TrackerParams{WindowSize: windowSize})
	now := time.Unix(1700000000, 0)
	t.nowFn = func() time.Time { return now }
	t.sysFn = func() SystemStats { return SystemStats{} }
	return t, &now
}

func TestSampleWindowEviction(t *testing.T) {
	w := newSampleWindow(3)
	require.Equal(t, 0, w.len())
	require.Equal(t, 0.0, w.mean())

	w.add(1)
	w.add(2)
	w.add(3)
	require.Equal(t, []float64{1, 2, 3}, w.values())

	// capacity reached, oldest sample falls out
	w.add(10)
	require.Equal(t, []float64{2, 3, 10}, w.values())
	require.Equal(t, 5.0, w.mean())
}

func TestSampleWindowJitter(t *testing.T) {
	w := newSampleWindow(10)
	require.Equal(t, 0.0, w.meanAbsDelta())
	w.add(0.100)
	require.Equal(t, 0.0, w.meanAbsDelta())
	w.add(0.140)
	w.add(0.120)
	// |40ms| + |-20ms| over 2 deltas
	require.InDelta(t, 0.030, w.meanAbsDelta(), 1e-9)
}

func TestConnectionUptimeAccounting(t *testing.T) {
	tr, now := newTestTracker(0)

	tr.RecordStateChange(connection.StateConnecting)
	*now = now.Add(2 * time.Second)
	tr.RecordStateChange(connection.StateConnected)
	*now = now.Add(10 * time.Second)

	rep := tr.GenerateReport()
	require.Equal(t, connection.StateConnected, rep.Connection.State)
	require.Equal(t, int64(1), rep.Connection.Connects)
	require.Equal(t, 10*time.Second, rep.Connection.Uptime)
	require.Equal(t, 2*time.Second, rep.Connection.Downtime)

	tr.RecordStateChange(connection.StateError)
	*now = now.Add(3 * time.Second)

	rep = tr.GenerateReport()
	require.Equal(t, int64(1), rep.Connection.Errors)
	require.Equal(t, 10*time.Second, rep.Connection.Uptime)
	require.Equal(t, 5*time.Second, rep.Connection.Downtime)
}

func TestHeartbeatIntervals(t *testing.T) {
	tr, now := newTestTracker(0)

	tr.RecordHeartbeat()
	*now = now.Add(time.Second)
	tr.RecordHeartbeat()
	*now = now.Add(3 * time.Second)
	tr.RecordHeartbeat()

	rep := tr.GenerateReport()
	require.Equal(t, int64(3), rep.Heartbeat.Count)
	require.Equal(t, *now, rep.Heartbeat.LastHeartbeat)
	require.Equal(t, 2*time.Second, rep.Heartbeat.MeanInterval)
}

func TestFrameRates(t *testing.T) {
	tr, now := newTestTracker(0)

	// 30 frames of 1000 bytes at ~33ms spacing
	for i := 0; i < 30; i++ {
		kind := media.FrameKindDelta
		if i == 0 {
			kind = media.FrameKindKey
		}
		tr.RecordFrame(media.NewFrame(kind, *now, 1000, nil))
		*now = now.Add(33 * time.Millisecond)
	}

	rep := tr.GenerateReport()
	require.Equal(t, int64(30), rep.Frames.FramesReceived)
	require.Equal(t, int64(1), rep.Frames.KeyFrames)
	require.Equal(t, int64(29), rep.Frames.DeltaFrames)
	require.Equal(t, int64(30000), rep.Frames.BytesReceived)
	require.InDelta(t, 30.3, rep.Frames.FPS, 0.5)
	require.Greater(t, rep.Frames.BitrateBps, 0.0)
}

func TestNetworkGroup(t *testing.T) {
	tr, _ := newTestTracker(0)

	tr.RecordMessageReceived(100)
	tr.RecordMessageReceived(200)
	tr.RecordMessageSent(50)
	tr.RecordRTT(100 * time.Millisecond)
	tr.RecordRTT(140 * time.Millisecond)
	tr.RecordLatency(20 * time.Millisecond)

	rep := tr.GenerateReport()
	require.Equal(t, int64(2), rep.Network.MessagesReceived)
	require.Equal(t, int64(1), rep.Network.MessagesSent)
	require.Equal(t, int64(300), rep.Network.BytesReceived)
	require.Equal(t, int64(50), rep.Network.BytesSent)
	require.Equal(t, 120*time.Millisecond, rep.Network.MeanRTT)
	require.Equal(t, 40*time.Millisecond, rep.Network.Jitter)
	require.Equal(t, 20*time.Millisecond, rep.Network.MeanLatency)
}

func TestBufferSnapshotPassthrough(t *testing.T) {
	tr, _ := newTestTracker(0)

	tr.ObserveBufferSnapshot(buffer.Snapshot{
		FrameCount:    7,
		Bytes:         7000,
		DroppedFrames: 3,
		Utilization:   0.7,
	})

	rep := tr.GenerateReport()
	require.Equal(t, 7, rep.JitterBuffer.BufferedFrames)
	require.Equal(t, int64(7000), rep.JitterBuffer.BufferedBytes)
	require.Equal(t, uint64(3), rep.JitterBuffer.DroppedFrames)
	require.Equal(t, 0.7, rep.JitterBuffer.Utilization)
}

func TestSystemGroup(t *testing.T) {
	tr, _ := newTestTracker(0)

	tr.sysFn = func() SystemStats {
		return SystemStats{
			MemoryTotal: 16 << 30,
			MemoryUsed:  4 << 30,
			MemoryLoad:  0.25,
			LoadAvg1:    1.5,
			LoadAvg5:    0.9,
		}
	}

	rep := tr.GenerateReport()
	require.Equal(t, uint64(16<<30), rep.System.MemoryTotal)
	require.Equal(t, uint64(4<<30), rep.System.MemoryUsed)
	require.Equal(t, 0.25, rep.System.MemoryLoad)
	require.Equal(t, 1.5, rep.System.LoadAvg1)
	require.Equal(t, 0.9, rep.System.LoadAvg5)
}

func TestTrackerReset(t *testing.T) {
	tr, now := newTestTracker(0)

	tr.RecordHeartbeat()
	tr.RecordStateChange(connection.StateConnected)
	*now = now.Add(time.Second)
	tr.RecordFrame(media.NewFrame(media.FrameKindKey, *now, 100, nil))
	tr.RecordRTT(10 * time.Millisecond)
	tr.RecordMessageReceived(100)
	tr.ObserveBufferSnapshot(buffer.Snapshot{FrameCount: 1})

	tr.Reset()

	rep := tr.GenerateReport()
	require.Equal(t, int64(0), rep.Heartbeat.Count)
	require.Equal(t, int64(0), rep.Connection.Connects)
	require.Equal(t, time.Duration(0), rep.Connection.Uptime)
	require.Equal(t, time.Duration(0), rep.Connection.Downtime)
	require.Equal(t, int64(0), rep.Frames.FramesReceived)
	require.Equal(t, 0.0, rep.Frames.FPS)
	require.Equal(t, int64(0), rep.Network.MessagesReceived)
	require.Equal(t, time.Duration(0), rep.Network.MeanRTT)
	require.Equal(t, 0, rep.JitterBuffer.BufferedFrames)
}
