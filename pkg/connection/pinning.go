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
	"crypto/tls"

	"go.uber.org/zap"
)

// PinVerifier checks a TLS session against pinned certificate fingerprints.
// Actual fingerprint verification is delegated to a platform-native layer;
// this interface exists so that layer can be injected without changing the
// connection core.
type PinVerifier interface {
	Verify(state *tls.ConnectionState, pins []string) error
}

// noopPinVerifier is the default. It reports success unconditionally and
// logs that real verification must happen in the platform layer. This is a
// documented limitation of this layer, not an oversight.
type noopPinVerifier struct {
	logger *zap.SugaredLogger
}

func NewNoopPinVerifier(l *zap.SugaredLogger) PinVerifier {
	return &noopPinVerifier{logger: l}
}

func (v *noopPinVerifier) Verify(_ *tls.ConnectionState, pins []string) error {
	if len(pins) > 0 {
		v.logger.Warnw("certificate pin verification delegated to platform verifier, accepting session",
			"pinnedFingerprints", len(pins))
	}
	return nil
}
