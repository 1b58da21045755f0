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

// sampleWindow is a fixed-capacity ring of float64 samples. Aggregates are
// recomputed on read; nothing is maintained incrementally.
type sampleWindow struct {
	samples []float64
	head    int
	size    int
}

func newSampleWindow(capacity int) *sampleWindow {
	if capacity <= 0 {
		capacity = 1
	}
	return &sampleWindow{
		samples: make([]float64, capacity),
	}
}

func (w *sampleWindow) add(v float64) {
	w.samples[w.head] = v
	w.head = (w.head + 1) % len(w.samples)
	if w.size < len(w.samples) {
		w.size++
	}
}

func (w *sampleWindow) len() int {
	return w.size
}

// values returns samples oldest first.
func (w *sampleWindow) values() []float64 {
	out := make([]float64, 0, w.size)
	start := w.head - w.size
	if start < 0 {
		start += len(w.samples)
	}
	for i := 0; i < w.size; i++ {
		out = append(out, w.samples[(start+i)%len(w.samples)])
	}
	return out
}

func (w *sampleWindow) mean() float64 {
	if w.size == 0 {
		return 0
	}
	var sum float64
	for _, v := range w.values() {
		sum += v
	}
	return sum / float64(w.size)
}

// meanAbsDelta is the arithmetic mean of absolute successive differences,
// the jitter measure used for RTT samples.
func (w *sampleWindow) meanAbsDelta() float64 {
	vals := w.values()
	if len(vals) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(vals); i++ {
		d := vals[i] - vals[i-1]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum / float64(len(vals)-1)
}

func (w *sampleWindow) reset() {
	w.head = 0
	w.size = 0
}
