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

package sink

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iorstat/iorstat/pkg/host"
)

var (
	hostPowerDesc = prometheus.NewDesc(
		"iorstat_host_system_power_watts",
		"Whole-system power draw reported by the SMC",
		nil, nil,
	)
	hostMemoryDesc = prometheus.NewDesc(
		"iorstat_host_memory_bytes",
		"Host memory by kind",
		[]string{"kind"}, nil, // used, total
	)
	hostSwapDesc = prometheus.NewDesc(
		"iorstat_host_swap_bytes",
		"Host swap by kind",
		[]string{"kind"}, nil,
	)
)

// HostCollector reads host gauges on every scrape.
type HostCollector struct {
	reader  host.GaugeReader
	timeout time.Duration
}

var _ prometheus.Collector = (*HostCollector)(nil)

// NewHostCollector returns a collector backed by reader. Each scrape reads
// the gauges within timeout.
func NewHostCollector(reader host.GaugeReader, timeout time.Duration) *HostCollector {
	return &HostCollector{reader: reader, timeout: timeout}
}

// Describe implements prometheus.Collector.
func (c *HostCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- hostPowerDesc
	ch <- hostMemoryDesc
	ch <- hostSwapDesc
}

// Collect implements prometheus.Collector. A failed read yields no samples.
func (c *HostCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	g, err := c.reader.ReadGauges(ctx)
	if err != nil {
		slog.Warn("failed to read host gauges", "error", err)
		return
	}

	if g.SystemPower != nil {
		ch <- prometheus.MustNewConstMetric(hostPowerDesc, prometheus.GaugeValue, *g.SystemPower)
	}
	ch <- prometheus.MustNewConstMetric(hostMemoryDesc, prometheus.GaugeValue, float64(g.Memory.Used), "used")
	ch <- prometheus.MustNewConstMetric(hostMemoryDesc, prometheus.GaugeValue, float64(g.Memory.Total), "total")
	ch <- prometheus.MustNewConstMetric(hostSwapDesc, prometheus.GaugeValue, float64(g.Swap.Used), "used")
	ch <- prometheus.MustNewConstMetric(hostSwapDesc, prometheus.GaugeValue, float64(g.Swap.Total), "total")
}
