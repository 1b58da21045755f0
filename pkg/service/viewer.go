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

// Package service assembles the resilient streaming pipeline: secure
// connection in front, frame buffer in the middle, diagnostics alongside.
package service

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/frostbyte73/core"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/framegate/framegate/pkg/buffer"
	"github.com/framegate/framegate/pkg/config"
	"github.com/framegate/framegate/pkg/connection"
	"github.com/framegate/framegate/pkg/diagnostics"
	"github.com/framegate/framegate/pkg/logger"
	"github.com/framegate/framegate/pkg/media"
	"github.com/framegate/framegate/pkg/telemetry/prometheus"
)

// Viewer owns one remote-control video session end to end. The render loop
// is the single consumer, pulling through NextFrame/PeekFrame; the
// transport read loop is the single producer.
type Viewer struct {
	conf   *config.Config
	logger *zap.SugaredLogger

	buffer  *buffer.FrameBuffer
	tracker *diagnostics.Tracker
	conn    *connection.SecureConnection

	stop    core.Fuse
	workers errgroup.Group
	started atomic.Bool
	stopped atomic.Bool
}

func NewViewer(conf *config.Config) (*Viewer, error) {
	log := logger.GetLogger()

	buf, err := buffer.NewFrameBuffer(buffer.FrameBufferParams{
		Config: conf.Buffer,
		Logger: log,
	})
	if err != nil {
		return nil, err
	}

	tracker := diagnostics.NewTracker(diagnostics.TrackerParams{
		WindowSize: conf.Diagnostics.WindowSize,
		Logger:     log,
	})

	conn, err := connection.NewSecureConnection(connection.Params{
		Endpoint:           conf.Endpoint,
		DeviceID:           conf.Auth.DeviceID,
		Token:              conf.Auth.Token,
		HardwareID:         conf.Auth.HardwareID,
		PinnedCertificates: conf.Auth.PinnedCertificates,
		Development:        conf.Development,
		PingInterval:       conf.Connection.PingInterval,
		PingTimeout:        conf.Connection.PingTimeout,
		Logger:             log,
	})
	if err != nil {
		return nil, err
	}

	v := &Viewer{
		conf:    conf,
		logger:  log,
		buffer:  buf,
		tracker: tracker,
		conn:    conn,
		stop:    core.NewFuse(),
	}

	buf.OnFrameDropped(func(*media.Frame) {
		prometheus.IncrementDroppedFrames(1)
	})
	conn.OnFrame(v.handleFrame)
	conn.OnRTT(v.handleRTT)
	conn.OnStateChange(v.handleStateChange)

	return v, nil
}

// Start launches the connection supervisor and the stats worker. Returns
// immediately; connection failures surface through the status snapshot, not
// through Start.
func (v *Viewer) Start() {
	if v.started.Swap(true) {
		return
	}

	v.logger.Infow("starting viewer",
		"endpoint", v.conf.Endpoint,
		"bufferCapacity", humanize.Bytes(uint64(v.conf.Buffer.MaxBufferBytes)),
		"maxFrames", v.conf.Buffer.MaxFrameCount,
	)

	v.workers.Go(v.connectionWorker)
	v.workers.Go(v.statsWorker)
}

// Stop breaks the fuse and joins both workers before returning. Safe to call
// more than once and before Start.
func (v *Viewer) Stop() {
	if v.stopped.Swap(true) {
		return
	}

	v.stop.Break()
	v.conn.Disconnect()
	if err := v.workers.Wait(); err != nil {
		v.logger.Warnw("worker exited with error", "error", err)
	}
	v.logger.Infow("viewer stopped")
}

// connectionWorker keeps the session alive: dial, wait for it to drop,
// redial with exponential backoff. Backoff resets after every successful
// connect.
func (v *Viewer) connectionWorker() error {
	rc := v.conf.Connection.Reconnect
	attempt := 0

	for {
		if v.stop.IsBroken() {
			return nil
		}

		attempt++
		if rc.Exhausted(attempt) {
			return errors.Errorf("reconnect attempts exhausted after %d attempts", attempt-1)
		}

		if err := v.conn.Connect(context.Background()); err != nil {
			delay := rc.Delay(attempt)
			v.logger.Warnw("connection attempt failed", "error", err, "attempt", attempt, "retryIn", delay)
			select {
			case <-v.stop.Watch():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		attempt = 0

		select {
		case <-v.stop.Watch():
			v.conn.Disconnect()
			return nil
		case <-v.conn.Done():
			// session dropped or token rotated, loop redials
		}
	}
}

// statsWorker periodically feeds buffer occupancy to the tracker and the
// prometheus gauges.
func (v *Viewer) statsWorker() error {
	interval := v.conf.Diagnostics.StatsInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-v.stop.Watch():
			return nil
		case <-ticker.C:
			snap := v.buffer.Snapshot()
			v.tracker.ObserveBufferSnapshot(snap)
			prometheus.UpdateBufferSnapshot(snap)
		}
	}
}

func (v *Viewer) handleFrame(f *media.Frame) {
	v.tracker.RecordFrame(f)
	v.tracker.RecordMessageReceived(f.ByteSize)
	prometheus.IncrementFrames(f.Kind.String(), f.ByteSize)
	v.buffer.Push(f)
}

func (v *Viewer) handleRTT(rtt time.Duration) {
	// pong doubles as the session heartbeat
	v.tracker.RecordHeartbeat()
	v.tracker.RecordRTT(rtt)
}

func (v *Viewer) handleStateChange(s connection.State) {
	v.tracker.RecordStateChange(s)
	prometheus.SetConnectionState(s)
}

// NextFrame hands the oldest buffered frame to the render loop.
func (v *Viewer) NextFrame() (*media.Frame, bool) {
	return v.buffer.Pop()
}

func (v *Viewer) PeekFrame() (*media.Frame, bool) {
	return v.buffer.Peek()
}

// NeedsKeyFrame is the advisory signal the render loop forwards to the
// sender when it wants a refresh.
func (v *Viewer) NeedsKeyFrame() bool {
	return v.buffer.NeedsKeyFrame()
}

func (v *Viewer) BufferSnapshot() buffer.Snapshot {
	return v.buffer.Snapshot()
}

func (v *Viewer) UpdateBufferConfig(u buffer.ConfigUpdate) error {
	return v.buffer.UpdateConfig(u)
}

// UpdateToken rotates the credential; a live session reconnects via the
// supervisor.
func (v *Viewer) UpdateToken(token string) {
	v.conn.UpdateToken(token)
}

func (v *Viewer) ConnectionStatus() connection.Status {
	return v.conn.Status()
}

func (v *Viewer) GenerateReport() diagnostics.Report {
	return v.tracker.GenerateReport()
}
