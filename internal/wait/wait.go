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

// Package wait is a small periodic-task helper for the background
// maintenance loops processes in this repo run (e.g. logging subscription
// stats), shaped after the single call site in the teacher's controller.go.
package wait

import (
	"context"
	"time"

	"github.com/flowkv/flowkv/internal/rescue"
)

// Until calls fn every period until ctx is cancelled. A panic inside fn is
// recovered and logged; it never stops subsequent ticks.
func Until(ctx context.Context, period time.Duration, fn func()) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce(fn)
		}
	}
}

func runOnce(fn func()) {
	defer rescue.HandleCrash()
	fn()
}
