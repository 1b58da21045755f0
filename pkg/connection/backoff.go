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

import "time"

// ReconnectConfig drives the caller-side reconnection policy. The
// connection itself never retries; the supervising loop asks Delay for the
// next wait.
type ReconnectConfig struct {
	BaseDelay time.Duration `yaml:"base_delay,omitempty"`
	MaxDelay  time.Duration `yaml:"max_delay,omitempty"`
	// 0 means retry forever
	MaxAttempts int `yaml:"max_attempts,omitempty"`
}

var DefaultReconnectConfig = ReconnectConfig{
	BaseDelay: 500 * time.Millisecond,
	MaxDelay:  30 * time.Second,
}

// Delay returns the backoff before the given attempt (1-based), doubling
// per attempt and bounded by MaxDelay. Recomputed from the attempt count
// each time, no state is kept here.
func (c ReconnectConfig) Delay(attempt int) time.Duration {
	base := c.BaseDelay
	if base <= 0 {
		base = DefaultReconnectConfig.BaseDelay
	}
	max := c.MaxDelay
	if max <= 0 {
		max = DefaultReconnectConfig.MaxDelay
	}
	if attempt < 1 {
		attempt = 1
	}

	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max || d <= 0 {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// Exhausted reports whether the attempt count has passed the configured
// limit.
func (c ReconnectConfig) Exhausted(attempt int) bool {
	return c.MaxAttempts > 0 && attempt > c.MaxAttempts
}
