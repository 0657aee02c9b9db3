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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gopkg.in/natefinch/lumberjack.v2"
)

func newTestLumberjack(t *testing.T) *lumberjack.Logger {
	t.Helper()
	return &lumberjack.Logger{Filename: filepath.Join(t.TempDir(), "flowkv.log")}
}

func TestRotationPeriods(t *testing.T) {
	assert.Equal(t, time.Duration(0), RotationNever.period())
	assert.Equal(t, time.Hour, RotationHourly.period())
	assert.Equal(t, 24*time.Hour, RotationDaily.period())
}

func TestWithTimeRotationNeverReturnsUnwrapped(t *testing.T) {
	lj := newTestLumberjack(t)
	w := withTimeRotation(lj, RotationNever)
	assert.Same(t, lj, w)
}
