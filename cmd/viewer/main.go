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

package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/framegate/framegate/pkg/config"
	"github.com/framegate/framegate/pkg/logger"
	"github.com/framegate/framegate/pkg/service"
	"github.com/framegate/framegate/pkg/telemetry/prometheus"
	"github.com/framegate/framegate/version"
)

var baseFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "config",
		Usage: "path to framegate config file",
	},
	&cli.StringFlag{
		Name:    "config-body",
		Usage:   "framegate config in YAML, typically passed in as an environment var in a container",
		EnvVars: []string{"FRAMEGATE_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "endpoint",
		Usage:   "remote-control session endpoint (wss://...)",
		EnvVars: []string{"FRAMEGATE_ENDPOINT"},
	},
	&cli.StringFlag{
		Name:    "device-id",
		Usage:   "stable device identity presented to the session endpoint",
		EnvVars: []string{"FRAMEGATE_DEVICE_ID"},
	},
	&cli.StringFlag{
		Name:    "token",
		Usage:   "session credential",
		EnvVars: []string{"FRAMEGATE_TOKEN"},
	},
	&cli.UintFlag{
		Name:  "prometheus-port",
		Usage: "port to expose prometheus metrics on",
	},
	&cli.BoolFlag{
		Name:  "dev",
		Usage: "sets log-level to debug, console formatter, and allows plaintext endpoints on private hosts. insecure for production",
	},
}

func main() {
	app := &cli.App{
		Name:     "framegate",
		Usage:    "device-side remote-control video viewer",
		Version:  version.Version,
		Flags:    baseFlags,
		Action:   runViewer,
		Commands: []*cli.Command{
			{
				Name:   "print-config",
				Usage:  "print the effective configuration and exit",
				Action: printConfig,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func getConfig(c *cli.Context) (*config.Config, error) {
	confString := c.String("config-body")
	if confString == "" {
		if configFile := c.String("config"); configFile != "" {
			content, err := os.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			confString = string(content)
		}
	}
	return config.NewConfig(confString, c)
}

func runViewer(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}

	logger.InitFromConfig(conf.Logging)
	log := logger.GetLogger()
	log.Infow("starting framegate", "version", version.Version)

	prometheus.Init(conf.Auth.DeviceID)
	if conf.PrometheusPort > 0 {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			addr := fmt.Sprintf(":%d", conf.PrometheusPort)
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Errorw("prometheus listener failed", "error", err)
			}
		}()
	}

	viewer, err := service.NewViewer(conf)
	if err != nil {
		return err
	}
	viewer.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Infow("exit requested, shutting down", "signal", sig)
	viewer.Stop()

	return nil
}

func printConfig(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}
	fmt.Printf("%+v\n", *conf)
	return nil
}
