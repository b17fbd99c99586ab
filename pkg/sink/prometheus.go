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
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iorstat/iorstat/pkg/measurement"
	"github.com/iorstat/iorstat/pkg/soc"
)

// Prometheus exports the latest metric values as gauges. When a summarizer
// is set, SoC summary gauges are exported as well.
type Prometheus struct {
	summarizer *soc.Summarizer

	channels     *prometheus.GaugeVec
	power        *prometheus.GaugeVec
	clusterUsage *prometheus.GaugeVec
	clusterFreq  *prometheus.GaugeVec
}

// NewPrometheus registers the exporter gauges with reg. summarizer may be nil.
func NewPrometheus(reg prometheus.Registerer, summarizer *soc.Summarizer) (*Prometheus, error) {
	p := &Prometheus{
		summarizer: summarizer,
		channels: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "iorstat_channel_value",
				Help: "Latest converted value of a hardware report channel",
			},
			[]string{"source", "group", "subgroup", "channel", "state", "unit"},
		),
		power: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "iorstat_soc_power_watts",
				Help: "Average SoC power by component",
			},
			[]string{"source", "component"}, // cpu, gpu, ane, total
		),
		clusterUsage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "iorstat_soc_usage_percent",
				Help: "Frequency weighted active residency by unit",
			},
			[]string{"source", "unit"}, // ecpu, pcpu, gpu
		),
		clusterFreq: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "iorstat_soc_frequency_mhz",
				Help: "Residency weighted average frequency by unit",
			},
			[]string{"source", "unit"},
		),
	}

	for _, c := range []prometheus.Collector{p.channels, p.power, p.clusterUsage, p.clusterFreq} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return p, nil
}

// OnMetrics implements engine.Consumer.
func (p *Prometheus) OnMetrics(_ context.Context, set measurement.MetricSet) {
	for _, m := range set.Metrics {
		p.channels.WithLabelValues(set.Source, m.Group, m.SubGroup, m.Channel, m.State, string(m.Unit)).Set(m.Value)
	}

	if p.summarizer == nil {
		return
	}
	s := p.summarizer.Summarize(set)
	p.power.WithLabelValues(set.Source, "cpu").Set(s.Power.CPU)
	p.power.WithLabelValues(set.Source, "gpu").Set(s.Power.GPU)
	p.power.WithLabelValues(set.Source, "ane").Set(s.Power.ANE)
	p.power.WithLabelValues(set.Source, "total").Set(s.Power.Total)
	p.clusterUsage.WithLabelValues(set.Source, "ecpu").Set(s.ECPU.Percent)
	p.clusterUsage.WithLabelValues(set.Source, "pcpu").Set(s.PCPU.Percent)
	p.clusterUsage.WithLabelValues(set.Source, "gpu").Set(s.GPU.Percent)
	p.clusterFreq.WithLabelValues(set.Source, "ecpu").Set(s.ECPU.FrequencyMHz)
	p.clusterFreq.WithLabelValues(set.Source, "pcpu").Set(s.PCPU.FrequencyMHz)
	p.clusterFreq.WithLabelValues(set.Source, "gpu").Set(s.GPU.FrequencyMHz)
}

// OnTerminal implements engine.Consumer. Series of a stopped source are
// removed so stale values are not scraped.
func (p *Prometheus) OnTerminal(source string, _ error) {
	labels := prometheus.Labels{"source": source}
	p.channels.DeletePartialMatch(labels)
	p.power.DeletePartialMatch(labels)
	p.clusterUsage.DeletePartialMatch(labels)
	p.clusterFreq.DeletePartialMatch(labels)
}
