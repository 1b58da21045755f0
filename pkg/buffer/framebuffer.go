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

package buffer

import (
	"sync"
	"time"

	"github.com/gammazero/deque"
	"go.uber.org/zap"

	"github.com/framegate/framegate/pkg/logger"
	"github.com/framegate/framegate/pkg/media"
)

// Snapshot is a point-in-time view of buffer occupancy.
type Snapshot struct {
	FrameCount    int
	Bytes         int64
	DroppedFrames uint64
	LastDropAt    time.Time
	// max of byte and frame-count utilization, either dimension can
	// trigger pressure on its own. May transiently exceed 1.0 when a key
	// frame is admitted over capacity.
	Utilization float64
}

type FrameBufferParams struct {
	Config Config
	Logger *zap.SugaredLogger
}

// FrameBuffer absorbs bursty encoded frames between the transport receive
// path and the render loop. Admission favors decodability: key frames are
// never refused and never evicted, delta frames are shed oldest-first once
// either capacity dimension crosses the configured threshold.
//
// All state is guarded by a single mutex. The admit/evict/recheck sequence
// in Push must be atomic as a whole, so no finer-grained locking.
type FrameBuffer struct {
	params FrameBufferParams

	lock           sync.Mutex
	config         Config
	frames         deque.Deque[*media.Frame]
	totalBytes     int64
	droppedFrames  uint64
	lastDropAt     time.Time
	lastKeyFrameAt time.Time
	onFrameDropped func(*media.Frame)

	nowFn func() time.Time
}

func NewFrameBuffer(params FrameBufferParams) (*FrameBuffer, error) {
	if err := params.Config.Validate(); err != nil {
		return nil, err
	}
	if params.Logger == nil {
		params.Logger = logger.GetLogger()
	}
	return &FrameBuffer{
		params: params,
		config: params.Config,
		nowFn:  time.Now,
	}, nil
}

// OnFrameDropped registers a callback invoked for every evicted or rejected
// frame, while the buffer lock is held. Callbacks must not call back into
// the buffer.
func (b *FrameBuffer) OnFrameDropped(fn func(*media.Frame)) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.onFrameDropped = fn
}

// Push offers a frame to the buffer and reports whether it was admitted.
// Key frames are admitted unconditionally, even over capacity: refusing one
// would leave every dependent delta frame until the next key frame
// undecodable, which costs more than a transient capacity overshoot.
func (b *FrameBuffer) Push(f *media.Frame) bool {
	b.lock.Lock()
	defer b.lock.Unlock()

	now := b.nowFn()

	if f.Kind == media.FrameKindKey {
		b.frames.PushBack(f)
		b.totalBytes += int64(f.ByteSize)
		b.lastKeyFrameAt = now
		return true
	}

	if !b.admissionSafeLocked(f) {
		b.evictLocked(f, now)
	}

	// after eviction the threshold may still be crossed if nothing
	// evictable remained; only the hard caps decide rejection here
	if b.totalBytes+int64(f.ByteSize) > b.config.MaxBufferBytes ||
		b.frames.Len()+1 > b.config.MaxFrameCount {
		b.countDropLocked(f, now)
		return false
	}

	b.frames.PushBack(f)
	b.totalBytes += int64(f.ByteSize)
	return true
}

// admissionSafeLocked reports whether admitting f keeps both capacity
// dimensions under the hard caps and at or below the drop threshold.
// Utilization exactly at the threshold is still safe; eviction starts once
// either dimension would cross it.
func (b *FrameBuffer) admissionSafeLocked(f *media.Frame) bool {
	newBytes := b.totalBytes + int64(f.ByteSize)
	newCount := b.frames.Len() + 1

	if newBytes > b.config.MaxBufferBytes || newCount > b.config.MaxFrameCount {
		return false
	}

	byteUtil := float64(newBytes) / float64(b.config.MaxBufferBytes)
	countUtil := float64(newCount) / float64(b.config.MaxFrameCount)
	threshold := b.config.DropThresholdFraction
	return byteUtil <= threshold && countUtil <= threshold
}

// evictLocked sheds the oldest delta frames until admitting f becomes safe
// or no delta frame remains. Key frames are skipped unconditionally. The
// safety check is re-run after every single eviction; this can evict more
// than strictly necessary when threshold and hard-cap checks disagree.
// Callers depend on that count, so it must not be optimized away.
func (b *FrameBuffer) evictLocked(f *media.Frame, now time.Time) {
	for !b.admissionSafeLocked(f) {
		idx := -1
		for i := 0; i < b.frames.Len(); i++ {
			if b.frames.At(i).Kind == media.FrameKindDelta {
				idx = i
				break
			}
		}
		if idx < 0 {
			return
		}

		dropped := b.frames.Remove(idx)
		b.totalBytes -= int64(dropped.ByteSize)
		b.countDropLocked(dropped, now)
	}
}

func (b *FrameBuffer) countDropLocked(f *media.Frame, now time.Time) {
	b.droppedFrames++
	b.lastDropAt = now
	if b.onFrameDropped != nil {
		b.onFrameDropped(f)
	}
}

// Pop removes and returns the oldest queued frame. ok is false when the
// buffer is empty.
func (b *FrameBuffer) Pop() (*media.Frame, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.frames.Len() == 0 {
		return nil, false
	}

	f := b.frames.PopFront()
	b.totalBytes -= int64(f.ByteSize)
	return f, true
}

// Peek returns the oldest queued frame without removing it.
func (b *FrameBuffer) Peek() (*media.Frame, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.frames.Len() == 0 {
		return nil, false
	}
	return b.frames.Front(), true
}

func (b *FrameBuffer) Snapshot() Snapshot {
	b.lock.Lock()
	defer b.lock.Unlock()

	byteUtil := float64(b.totalBytes) / float64(b.config.MaxBufferBytes)
	countUtil := float64(b.frames.Len()) / float64(b.config.MaxFrameCount)
	util := byteUtil
	if countUtil > util {
		util = countUtil
	}

	return Snapshot{
		FrameCount:    b.frames.Len(),
		Bytes:         b.totalBytes,
		DroppedFrames: b.droppedFrames,
		LastDropAt:    b.lastDropAt,
		Utilization:   util,
	}
}

// Clear empties the queue. Drop counters and timestamps are retained.
func (b *FrameBuffer) Clear() {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.frames.Clear()
	b.totalBytes = 0
}

// Reset reinitializes the buffer for a restarted stream: queue, counters
// and key-frame bookkeeping all go back to zero.
func (b *FrameBuffer) Reset() {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.frames.Clear()
	b.totalBytes = 0
	b.droppedFrames = 0
	b.lastDropAt = time.Time{}
	b.lastKeyFrameAt = time.Time{}
}

func (b *FrameBuffer) Config() Config {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.config
}

// UpdateConfig merges a partial update into the current configuration.
// An invalid result leaves the buffer untouched and returns the validation
// error; limits are never silently clamped.
func (b *FrameBuffer) UpdateConfig(update ConfigUpdate) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	merged := update.apply(b.config)
	if err := merged.Validate(); err != nil {
		return err
	}

	b.config = merged
	return nil
}

// TimeSinceLastKeyFrame returns the elapsed time since a key frame was last
// admitted. ok is false when no key frame has ever been seen.
func (b *FrameBuffer) TimeSinceLastKeyFrame() (time.Duration, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.lastKeyFrameAt.IsZero() {
		return 0, false
	}
	return b.nowFn().Sub(b.lastKeyFrameAt), true
}

// NeedsKeyFrame reports whether the consumer should ask the sender for a
// key-frame refresh. Advisory only, the buffer itself never requests one.
func (b *FrameBuffer) NeedsKeyFrame() bool {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.lastKeyFrameAt.IsZero() {
		return true
	}
	return b.nowFn().Sub(b.lastKeyFrameAt) >= b.config.MinKeyFrameInterval
}
