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

import (
	"strconv"
	"time"
)

// Wire field names of the session auth contract. The server side matches
// on these exact strings; do not rename.
const (
	AuthFieldDeviceID   = "deviceId"
	AuthFieldToken      = "token"
	AuthFieldHardwareID = "hardwareId"
	AuthFieldTimestamp  = "timestamp"
)

// buildAuthParams assembles the authentication parameter set sent with a
// connection attempt. The timestamp is a replay-mitigation signal; it is
// only effective if the server enforces freshness, so it is defense in
// depth rather than a complete anti-replay scheme.
//
// Caller-supplied extras are merged in but can never override the reserved
// fields.
func buildAuthParams(deviceID, token, hardwareID string, now time.Time, extra map[string]string) map[string]string {
	params := make(map[string]string, len(extra)+4)
	for k, v := range extra {
		params[k] = v
	}

	params[AuthFieldDeviceID] = deviceID
	params[AuthFieldToken] = token
	if hardwareID != "" {
		params[AuthFieldHardwareID] = hardwareID
	} else {
		delete(params, AuthFieldHardwareID)
	}
	params[AuthFieldTimestamp] = strconv.FormatInt(now.UnixMilli(), 10)

	return params
}
