// Copyright 2019 The Nuclear Core Authors
// This file is part of the Nuclear Core library.
//
// The Nuclear Core library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The Nuclear Core library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the Nuclear Core library. If not, see <http://www.gnu.org/licenses/>.

// Package xlog wraps zap into the keyset-style logging calls used across
// the consensus core (mirrors the teacher's log.Error(msg, "key", val, ...)
// convention).
package xlog

import (
	"go.uber.org/zap"
)

var root *zap.SugaredLogger

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	root = l.Sugar()
}

// SetDevelopment swaps the root logger for a human-readable console logger,
// meant for cmd/ binaries run outside a container.
func SetDevelopment() {
	l, err := zap.NewDevelopment()
	if err != nil {
		return
	}
	root = l.Sugar()
}

func Debug(msg string, kv ...interface{}) { root.Debugw(msg, kv...) }
func Trace(msg string, kv ...interface{}) { root.Debugw(msg, kv...) }
func Info(msg string, kv ...interface{})  { root.Infow(msg, kv...) }
func Warn(msg string, kv ...interface{})  { root.Warnw(msg, kv...) }
func Error(msg string, kv ...interface{}) { root.Errorw(msg, kv...) }

// Critical logs at error level and is reserved for FatalStateError/
// IntegrityError conditions the caller is about to abort on.
func Critical(msg string, kv ...interface{}) { root.Errorw("CRITICAL: "+msg, kv...) }

func Sync() { _ = root.Sync() }
