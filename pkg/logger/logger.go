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

package logger

import (
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var defaultLogger atomic.Pointer[zap.SugaredLogger]

func init() {
	defaultLogger.Store(zap.NewNop().Sugar())
}

type Config struct {
	// valid levels: debug, info, warn, error, fatal, panic
	Level string `yaml:"level,omitempty"`
	JSON  bool   `yaml:"json,omitempty"`
}

// InitFromConfig replaces the process-wide logger. Called once at startup;
// components capture the logger in their params and are unaffected by later
// re-initialization.
func InitFromConfig(conf Config) {
	var zapConf zap.Config
	if conf.JSON {
		zapConf = zap.NewProductionConfig()
	} else {
		zapConf = zap.NewDevelopmentConfig()
	}

	if conf.Level != "" {
		lvl := zapcore.Level(0)
		if err := lvl.UnmarshalText([]byte(conf.Level)); err == nil {
			zapConf.Level = zap.NewAtomicLevelAt(lvl)
		}
	}

	l, err := zapConf.Build()
	if err != nil {
		return
	}
	defaultLogger.Store(l.Sugar().Named("framegate"))
}

func GetLogger() *zap.SugaredLogger {
	return defaultLogger.Load()
}

func SetLogger(l *zap.SugaredLogger) {
	defaultLogger.Store(l)
}
