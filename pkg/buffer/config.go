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
	"time"

	"github.com/pkg/errors"
)

var (
	ErrInvalidDropThreshold = errors.New("drop_threshold_fraction must be within [0, 1]")
	ErrInvalidByteLimit     = errors.New("max_buffer_bytes must be positive")
	ErrInvalidFrameLimit    = errors.New("max_frame_count must be positive")
)

// Config bounds the frame buffer. Immutable per update; UpdateConfig swaps
// in a fully validated copy.
type Config struct {
	MaxBufferBytes int64 `yaml:"max_buffer_bytes,omitempty"`
	MaxFrameCount  int   `yaml:"max_frame_count,omitempty"`
	// fraction of either capacity at which eviction of delta frames begins
	DropThresholdFraction float64 `yaml:"drop_threshold_fraction,omitempty"`
	// advisory only, drives NeedsKeyFrame signaling
	MinKeyFrameInterval time.Duration `yaml:"min_key_frame_interval,omitempty"`
}

var DefaultConfig = Config{
	MaxBufferBytes:        8 * 1024 * 1024,
	MaxFrameCount:         120,
	DropThresholdFraction: 0.8,
	MinKeyFrameInterval:   2 * time.Second,
}

func (c Config) Validate() error {
	if c.MaxBufferBytes <= 0 {
		return errors.Wrapf(ErrInvalidByteLimit, "got %d", c.MaxBufferBytes)
	}
	if c.MaxFrameCount <= 0 {
		return errors.Wrapf(ErrInvalidFrameLimit, "got %d", c.MaxFrameCount)
	}
	if c.DropThresholdFraction < 0 || c.DropThresholdFraction > 1 {
		return errors.Wrapf(ErrInvalidDropThreshold, "got %v", c.DropThresholdFraction)
	}
	return nil
}

// ConfigUpdate is a partial configuration, nil fields keep current values.
type ConfigUpdate struct {
	MaxBufferBytes        *int64
	MaxFrameCount         *int
	DropThresholdFraction *float64
	MinKeyFrameInterval   *time.Duration
}

func (u ConfigUpdate) apply(base Config) Config {
	if u.MaxBufferBytes != nil {
		base.MaxBufferBytes = *u.MaxBufferBytes
	}
	if u.MaxFrameCount != nil {
		base.MaxFrameCount = *u.MaxFrameCount
	}
	if u.DropThresholdFraction != nil {
		base.DropThresholdFraction = *u.DropThresholdFraction
	}
	if u.MinKeyFrameInterval != nil {
		base.MinKeyFrameInterval = *u.MinKeyFrameInterval
	}
	return base
}
