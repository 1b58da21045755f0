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
	"net"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrInsecureEndpoint = errors.New("endpoint must use an encrypted transport")
	ErrInvalidEndpoint  = errors.New("endpoint is not a valid URL")
)

// ValidateEndpoint enforces the transport security policy once, at
// construction time. Encrypted schemes always pass. Unencrypted schemes are
// tolerated only in development mode and only toward hosts that cannot be
// reached from the public internet.
func ValidateEndpoint(raw string, development bool) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidEndpoint, err.Error())
	}
	if u.Host == "" {
		return nil, errors.Wrapf(ErrInvalidEndpoint, "missing host in %q", raw)
	}

	switch strings.ToLower(u.Scheme) {
	case "wss", "https":
		return u, nil
	case "ws", "http":
		if development && isLocalHost(u.Hostname()) {
			return u, nil
		}
		return nil, errors.Wrapf(ErrInsecureEndpoint, "scheme %q to host %q", u.Scheme, u.Hostname())
	default:
		return nil, errors.Wrapf(ErrInvalidEndpoint, "unsupported scheme %q", u.Scheme)
	}
}

// isLocalHost reports whether the host resolves lexically to a loopback or
// private-network address. No DNS lookup: a name that is not "localhost"
// and not a literal IP never qualifies.
func isLocalHost(hostname string) bool {
	if strings.EqualFold(hostname, "localhost") {
		return true
	}
	ip := net.ParseIP(hostname)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}
