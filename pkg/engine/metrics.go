// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
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

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iorstat_engine_poll_duration_seconds",
			Help:    "Time taken by one sample, delta and convert cycle",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"source"},
	)

	pollTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iorstat_engine_polls_total",
			Help: "Total number of poll cycles",
		},
		[]string{"source", "result"}, // published, primed, skipped, stale, terminal
	)

	resubscribeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iorstat_engine_resubscribe_attempts_total",
			Help: "Total number of resubscription attempts",
		},
		[]string{"source", "result"}, // success or error
	)

	sourceState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "iorstat_engine_source_state",
			Help: "Current source state (0 idle, 1 subscribed, 2 sampling, 3 resubscribing, 4 stopped)",
		},
		[]string{"source"},
	)

	sourceChannels = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "iorstat_engine_source_channels",
			Help: "Number of channels in the current subscription of a source",
		},
		[]string{"source"},
	)
)
