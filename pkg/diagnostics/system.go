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
	"github.com/mackerelio/go-osstat/loadavg"
	"github.com/mackerelio/go-osstat/memory"
)

type SystemStats struct {
	MemoryTotal uint64
	MemoryUsed  uint64
	// used / total, 0 when unavailable
	MemoryLoad float64
	LoadAvg1   float64
	LoadAvg5   float64
}

// readSystemStats samples host memory and load average. Either probe can
// fail on platforms without the backing syscalls; the corresponding fields
// stay zero and the report is still produced.
func readSystemStats() SystemStats {
	var s SystemStats
	if memInfo, err := memory.Get(); err == nil && memInfo.Total != 0 {
		s.MemoryTotal = memInfo.Total
		s.MemoryUsed = memInfo.Used
		s.MemoryLoad = float64(memInfo.Used) / float64(memInfo.Total)
	}
	if la, err := loadavg.Get(); err == nil {
		s.LoadAvg1 = la.Loadavg1
		s.LoadAvg5 = la.Loadavg5
	}
	return s
}
