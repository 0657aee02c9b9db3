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

package mux

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/flowkv/flowkv/common"
)

var (
	substreamsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "mux_substreams_accepted_total",
			Help:      "Inbound substreams handed to a server session's on_substream handler",
		},
	)

	substreamsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "mux_substreams_opened_total",
			Help:      "Outbound substreams opened via OpenStream",
		},
	)
)
