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

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/framegate/framegate/pkg/buffer"
	"github.com/framegate/framegate/pkg/connection"
	"github.com/framegate/framegate/pkg/diagnostics"
	"github.com/framegate/framegate/pkg/logger"
)

var ErrEndpointRequired = errors.New("endpoint must be set")

type Config struct {
	// remote-control session endpoint, wss:// outside development
	Endpoint string `yaml:"endpoint,omitempty"`

	Auth        AuthConfig        `yaml:"auth,omitempty"`
	Buffer      buffer.Config     `yaml:"buffer,omitempty"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics,omitempty"`
	Connection  ConnectionConfig  `yaml:"connection,omitempty"`

	PrometheusPort uint32        `yaml:"prometheus_port,omitempty"`
	Logging        logger.Config `yaml:"logging,omitempty"`

	Development bool `yaml:"development,omitempty"`
}

type AuthConfig struct {
	DeviceID   string `yaml:"device_id,omitempty"`
	Token      string `yaml:"token,omitempty"`
	HardwareID string `yaml:"hardware_id,omitempty"`
	// pinned certificate fingerprints, verification is platform-delegated
	PinnedCertificates []string `yaml:"pinned_certificates,omitempty"`
}

type DiagnosticsConfig struct {
	WindowSize int `yaml:"window_size,omitempty"`
	// cadence of buffer snapshots fed to the tracker and prometheus
	StatsInterval time.Duration `yaml:"stats_interval,omitempty"`
}

type ConnectionConfig struct {
	PingInterval time.Duration              `yaml:"ping_interval,omitempty"`
	PingTimeout  time.Duration              `yaml:"ping_timeout,omitempty"`
	Reconnect    connection.ReconnectConfig `yaml:"reconnect,omitempty"`
}

var DefaultConfig = Config{
	Buffer: buffer.DefaultConfig,
	Diagnostics: DiagnosticsConfig{
		WindowSize:    diagnostics.DefaultWindowSize,
		StatsInterval: 10 * time.Second,
	},
	Connection: ConnectionConfig{
		PingInterval: 10 * time.Second,
		PingTimeout:  2 * time.Second,
		Reconnect:    connection.DefaultReconnectConfig,
	},
	Logging: logger.Config{
		Level: "info",
		JSON:  true,
	},
}

// NewConfig layers defaults, then the YAML body, then CLI overrides, and
// validates the result.
func NewConfig(confString string, c *cli.Context) (*Config, error) {
	// start with defaults
	conf := DefaultConfig

	if confString != "" {
		decoder := yaml.NewDecoder(strings.NewReader(confString))
		decoder.KnownFields(true)
		if err := decoder.Decode(&conf); err != nil {
			return nil, fmt.Errorf("could not parse config: %v", err)
		}
	}

	if c != nil {
		conf.updateFromCLI(c)
	}

	if conf.Development {
		conf.Logging.JSON = false
		if conf.Logging.Level == "info" {
			conf.Logging.Level = "debug"
		}
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (conf *Config) updateFromCLI(c *cli.Context) {
	if c.IsSet("endpoint") {
		conf.Endpoint = c.String("endpoint")
	}
	if c.IsSet("device-id") {
		conf.Auth.DeviceID = c.String("device-id")
	}
	if c.IsSet("token") {
		conf.Auth.Token = c.String("token")
	}
	if c.IsSet("prometheus-port") {
		conf.PrometheusPort = uint32(c.Uint("prometheus-port"))
	}
	if c.Bool("dev") {
		conf.Development = true
	}
}

func (conf *Config) Validate() error {
	if conf.Endpoint == "" {
		return ErrEndpointRequired
	}
	if _, err := connection.ValidateEndpoint(conf.Endpoint, conf.Development); err != nil {
		return err
	}
	if err := conf.Buffer.Validate(); err != nil {
		return errors.Wrap(err, "invalid buffer config")
	}
	return nil
}
