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

package broadcaster

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/flowkv/flowkv/common"
)

var (
	activeSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "pubsub_active_subscriptions",
			Help:      "Live subscriptions across all topics",
		},
	)

	activeTopics = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "pubsub_active_topics",
			Help:      "Topics with at least one live subscriber",
		},
	)

	subscribersReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "pubsub_subscribers_reaped_total",
			Help:      "Subscribers removed because their channel was full or closed",
		},
	)
)
