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

// Package diagnostics records connection, heartbeat, frame, jitter-buffer,
// network and host observations for the streaming pipeline. The tracker is
// a passive recorder: it never influences admission or connection decisions.
package diagnostics

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/framegate/framegate/pkg/buffer"
	"github.com/framegate/framegate/pkg/connection"
	"github.com/framegate/framegate/pkg/logger"
	"github.com/framegate/framegate/pkg/media"
)

// DefaultWindowSize retains enough samples for roughly a minute and a half
// of once-per-second observations.
const DefaultWindowSize = 90

type TrackerParams struct {
	// number of samples retained per rolling window
	WindowSize int
	Logger     *zap.SugaredLogger
}

type Tracker struct {
	params TrackerParams

	lock  sync.RWMutex
	nowFn func() time.Time
	sysFn func() SystemStats

	// heartbeat
	heartbeatCount     int64
	lastHeartbeatAt    time.Time
	heartbeatIntervals *sampleWindow

	// connection
	connState        connection.State
	lastTransitionAt time.Time
	connects         int64
	disconnects      int64
	connErrors       int64
	uptime           time.Duration
	downtime         time.Duration

	// frames
	framesReceived int64
	keyFrames      int64
	deltaFrames    int64
	frameBytes     int64
	frameArrivals  *sampleWindow // unix nanos
	frameSizes     *sampleWindow

	// jitter buffer, fed from buffer snapshots
	lastBufferSnapshot buffer.Snapshot

	// network
	messagesIn  int64
	messagesOut int64
	bytesIn     int64
	bytesOut    int64
	rtts        *sampleWindow // seconds
	latencies   *sampleWindow // seconds
}

func NewTracker(params TrackerParams) *Tracker {
	if params.WindowSize <= 0 {
		params.WindowSize = DefaultWindowSize
	}
	if params.Logger == nil {
		params.Logger = logger.GetLogger()
	}
	return &Tracker{
		params:             params,
		nowFn:              time.Now,
		sysFn:              readSystemStats,
		heartbeatIntervals: newSampleWindow(params.WindowSize),
		frameArrivals:      newSampleWindow(params.WindowSize),
		frameSizes:         newSampleWindow(params.WindowSize),
		rtts:               newSampleWindow(params.WindowSize),
		latencies:          newSampleWindow(params.WindowSize),
	}
}

func (t *Tracker) RecordHeartbeat() {
	t.lock.Lock()
	defer t.lock.Unlock()

	now := t.nowFn()
	t.heartbeatCount++
	if !t.lastHeartbeatAt.IsZero() {
		t.heartbeatIntervals.add(now.Sub(t.lastHeartbeatAt).Seconds())
	}
	t.lastHeartbeatAt = now
}

// RecordStateChange folds a connection state transition into the uptime and
// downtime accumulators. Uptime between the last transition and "now" is
// attributed to the state being left.
func (t *Tracker) RecordStateChange(s connection.State) {
	t.lock.Lock()
	defer t.lock.Unlock()

	now := t.nowFn()
	if !t.lastTransitionAt.IsZero() {
		elapsed := now.Sub(t.lastTransitionAt)
		if t.connState == connection.StateConnected {
			t.uptime += elapsed
		} else {
			t.downtime += elapsed
		}
	}

	switch s {
	case connection.StateConnected:
		t.connects++
	case connection.StateDisconnected:
		t.disconnects++
	case connection.StateError:
		t.connErrors++
	}

	t.connState = s
	t.lastTransitionAt = now
}

func (t *Tracker) RecordFrame(f *media.Frame) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.framesReceived++
	t.frameBytes += int64(f.ByteSize)
	switch f.Kind {
	case media.FrameKindKey:
		t.keyFrames++
	case media.FrameKindDelta:
		t.deltaFrames++
	}

	t.frameArrivals.add(float64(t.nowFn().UnixNano()))
	t.frameSizes.add(float64(f.ByteSize))
}

func (t *Tracker) RecordRTT(rtt time.Duration) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.rtts.add(rtt.Seconds())
}

func (t *Tracker) RecordLatency(d time.Duration) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.latencies.add(d.Seconds())
}

func (t *Tracker) RecordMessageReceived(bytes int) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.messagesIn++
	t.bytesIn += int64(bytes)
}

func (t *Tracker) RecordMessageSent(bytes int) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.messagesOut++
	t.bytesOut += int64(bytes)
}

// ObserveBufferSnapshot retains the latest jitter-buffer occupancy for the
// report. The tracker has no other relationship with the buffer.
func (t *Tracker) ObserveBufferSnapshot(s buffer.Snapshot) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.lastBufferSnapshot = s
}

// GenerateReport assembles an immutable snapshot. Uptime and downtime are
// extended to "now" from the stored transition timestamp; nothing is
// updated on a timer.
func (t *Tracker) GenerateReport() Report {
	t.lock.RLock()
	defer t.lock.RUnlock()

	now := t.nowFn()

	uptime, downtime := t.uptime, t.downtime
	if !t.lastTransitionAt.IsZero() {
		elapsed := now.Sub(t.lastTransitionAt)
		if t.connState == connection.StateConnected {
			uptime += elapsed
		} else {
			downtime += elapsed
		}
	}

	fps, bitrate := t.frameRatesLocked()

	return Report{
		GeneratedAt: now,
		Heartbeat: HeartbeatStats{
			Count:         t.heartbeatCount,
			LastHeartbeat: t.lastHeartbeatAt,
			MeanInterval:  secondsToDuration(t.heartbeatIntervals.mean()),
		},
		Connection: ConnectionStats{
			State:          t.connState,
			Connects:       t.connects,
			Disconnects:    t.disconnects,
			Errors:         t.connErrors,
			Uptime:         uptime,
			Downtime:       downtime,
			LastTransition: t.lastTransitionAt,
		},
		Frames: FrameStats{
			FramesReceived: t.framesReceived,
			KeyFrames:      t.keyFrames,
			DeltaFrames:    t.deltaFrames,
			BytesReceived:  t.frameBytes,
			FPS:            fps,
			BitrateBps:     bitrate,
		},
		JitterBuffer: JitterBufferStats{
			BufferedFrames: t.lastBufferSnapshot.FrameCount,
			BufferedBytes:  t.lastBufferSnapshot.Bytes,
			Utilization:    t.lastBufferSnapshot.Utilization,
			DroppedFrames:  t.lastBufferSnapshot.DroppedFrames,
		},
		Network: NetworkStats{
			MessagesReceived: t.messagesIn,
			MessagesSent:     t.messagesOut,
			BytesReceived:    t.bytesIn,
			BytesSent:        t.bytesOut,
			MeanRTT:          secondsToDuration(t.rtts.mean()),
			Jitter:           secondsToDuration(t.rtts.meanAbsDelta()),
			MeanLatency:      secondsToDuration(t.latencies.mean()),
		},
		System: t.sysFn(),
	}
}

// frameRatesLocked derives fps and bitrate from the arrival window span.
func (t *Tracker) frameRatesLocked() (float64, float64) {
	arrivals := t.frameArrivals.values()
	if len(arrivals) < 2 {
		return 0, 0
	}

	span := (arrivals[len(arrivals)-1] - arrivals[0]) / float64(time.Second)
	if span <= 0 {
		return 0, 0
	}

	var sumBytes float64
	for _, v := range t.frameSizes.values() {
		sumBytes += v
	}

	fps := float64(len(arrivals)-1) / span
	bitrate := sumBytes * 8 / span
	return fps, bitrate
}

// Reset zeroes every metric group.
func (t *Tracker) Reset() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.heartbeatCount = 0
	t.lastHeartbeatAt = time.Time{}
	t.heartbeatIntervals.reset()

	t.connState = connection.StateDisconnected
	t.lastTransitionAt = time.Time{}
	t.connects = 0
	t.disconnects = 0
	t.connErrors = 0
	t.uptime = 0
	t.downtime = 0

	t.framesReceived = 0
	t.keyFrames = 0
	t.deltaFrames = 0
	t.frameBytes = 0
	t.frameArrivals.reset()
	t.frameSizes.reset()

	t.lastBufferSnapshot = buffer.Snapshot{}

	t.messagesIn = 0
	t.messagesOut = 0
	t.bytesIn = 0
	t.bytesOut = 0
	t.rtts.reset()
	t.latencies.reset()
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
