// Copyright 2023-2024 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package util

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	gLogger *zap.Logger
	gLevel  zap.AtomicLevel
)

func init() {
	gLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		gLevel,
	)
	gLogger = zap.New(core, zap.AddCallerSkip(1))
}

func SetLogLevel(lvl zapcore.Level) {
	gLevel.SetLevel(lvl)
}

func Debug(msg string, fields ...zap.Field) {
	gLogger.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	gLogger.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	gLogger.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	gLogger.Error(msg, fields...)
}

func SyncLog() {
	_ = gLogger.Sync()
}
