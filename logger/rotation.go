// Copyright 2025 The flowkv Authors
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

package logger

import (
	"io"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation selects a calendar-time trigger for log rotation, layered on
// top of lumberjack's own size/age-based rotation (which always applies
// regardless of this setting).
type Rotation string

const (
	RotationNever  Rotation = "Never"
	RotationHourly Rotation = "Hourly"
	RotationDaily  Rotation = "Daily"
)

func (r Rotation) period() time.Duration {
	switch r {
	case RotationHourly:
		return time.Hour
	case RotationDaily:
		return 24 * time.Hour
	default:
		return 0
	}
}

// timeRotatingWriter forces lj.Rotate() at the start of every hour or day,
// per Rotation, in addition to lumberjack's own size-triggered rotation.
type timeRotatingWriter struct {
	lj *lumberjack.Logger
}

// withTimeRotation wraps lj with a background ticker that calls Rotate at
// each period boundary; RotationNever returns lj unchanged.
func withTimeRotation(lj *lumberjack.Logger, r Rotation) io.Writer {
	period := r.period()
	if period == 0 {
		return lj
	}

	w := &timeRotatingWriter{lj: lj}
	go w.run(period)
	return w
}

func (w *timeRotatingWriter) run(period time.Duration) {
	for {
		next := time.Now().Truncate(period).Add(period)
		timer := time.NewTimer(time.Until(next))
		<-timer.C
		_ = w.lj.Rotate()
	}
}

func (w *timeRotatingWriter) Write(p []byte) (int, error) {
	return w.lj.Write(p)
}
