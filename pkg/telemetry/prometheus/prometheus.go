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

package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/framegate/framegate/pkg/buffer"
	"github.com/framegate/framegate/pkg/connection"
)

const framegateNamespace = "framegate"

var (
	initialized bool

	promFrameTotal   *prometheus.CounterVec
	promFrameBytes   prometheus.Counter
	promFrameDropped prometheus.Counter

	promBufferUtilization prometheus.Gauge
	promBufferBytes       prometheus.Gauge
	promBufferFrames      prometheus.Gauge

	promConnectionState *prometheus.GaugeVec
)

// Init registers the pipeline metrics with a device-id constant label.
// Must be called once before any update function.
func Init(deviceID string) {
	if initialized {
		return
	}
	initialized = true

	constLabels := prometheus.Labels{"device_id": deviceID}

	promFrameTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   framegateNamespace,
		Subsystem:   "frame",
		Name:        "total",
		ConstLabels: constLabels,
	}, []string{"kind"})
	promFrameBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   framegateNamespace,
		Subsystem:   "frame",
		Name:        "bytes",
		ConstLabels: constLabels,
	})
	promFrameDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   framegateNamespace,
		Subsystem:   "frame",
		Name:        "dropped_total",
		ConstLabels: constLabels,
	})
	promBufferUtilization = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   framegateNamespace,
		Subsystem:   "buffer",
		Name:        "utilization",
		ConstLabels: constLabels,
	})
	promBufferBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   framegateNamespace,
		Subsystem:   "buffer",
		Name:        "bytes",
		ConstLabels: constLabels,
	})
	promBufferFrames = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   framegateNamespace,
		Subsystem:   "buffer",
		Name:        "frames",
		ConstLabels: constLabels,
	})
	promConnectionState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   framegateNamespace,
		Subsystem:   "connection",
		Name:        "state",
		ConstLabels: constLabels,
	}, []string{"state"})

	prometheus.MustRegister(promFrameTotal)
	prometheus.MustRegister(promFrameBytes)
	prometheus.MustRegister(promFrameDropped)
	prometheus.MustRegister(promBufferUtilization)
	prometheus.MustRegister(promBufferBytes)
	prometheus.MustRegister(promBufferFrames)
	prometheus.MustRegister(promConnectionState)
}

func IncrementFrames(kind string, bytes int) {
	if !initialized {
		return
	}
	promFrameTotal.WithLabelValues(kind).Inc()
	promFrameBytes.Add(float64(bytes))
}

func IncrementDroppedFrames(count uint64) {
	if !initialized {
		return
	}
	promFrameDropped.Add(float64(count))
}

func UpdateBufferSnapshot(s buffer.Snapshot) {
	if !initialized {
		return
	}
	promBufferUtilization.Set(s.Utilization)
	promBufferBytes.Set(float64(s.Bytes))
	promBufferFrames.Set(float64(s.FrameCount))
}

// SetConnectionState exposes the state machine as a one-hot gauge vector.
func SetConnectionState(s connection.State) {
	if !initialized {
		return
	}
	for _, state := range []connection.State{
		connection.StateDisconnected,
		connection.StateConnecting,
		connection.StateConnected,
		connection.StateError,
	} {
		v := 0.0
		if state == s {
			v = 1.0
		}
		promConnectionState.WithLabelValues(state.String()).Set(v)
	}
}
