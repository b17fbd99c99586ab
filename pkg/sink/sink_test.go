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
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iorstat/iorstat/pkg/engine"
	"github.com/iorstat/iorstat/pkg/host"
	"github.com/iorstat/iorstat/pkg/measurement"
	"github.com/iorstat/iorstat/pkg/serializer"
	"github.com/iorstat/iorstat/pkg/soc"
)

var (
	_ engine.Consumer = (*Latest)(nil)
	_ engine.Consumer = (*Prometheus)(nil)
	_ engine.Consumer = (*Writer)(nil)
	_ engine.Consumer = Fanout(nil)

	errGauges = stderrors.New("gauges unavailable")
)

type failingGauges struct{}

func (failingGauges) ReadGauges(context.Context) (host.Gauges, error) {
	return host.Gauges{}, errGauges
}

func metricSet(source string) measurement.MetricSet {
	return measurement.MetricSet{
		Source:    source,
		Timestamp: time.Unix(1_700_000_000, 0),
		Elapsed:   time.Second,
		Metrics: []measurement.Metric{
			{Group: soc.GroupEnergy, Channel: soc.ChannelCPUEnergy, Value: 2, Unit: measurement.UnitWatts},
			{Group: soc.GroupEnergy, Channel: "ANE0", Value: 0.5, Unit: measurement.UnitWatts},
			{Group: soc.GroupCPU, SubGroup: soc.SubGroupCoreState, Channel: "PCPU0", State: "IDLE", Value: 50, Unit: measurement.UnitPercent},
			{Group: soc.GroupCPU, SubGroup: soc.SubGroupCoreState, Channel: "PCPU0", State: "V0", Value: 50, Unit: measurement.UnitPercent},
		},
	}
}

func TestLatest(t *testing.T) {
	l := NewLatest()
	assert.False(t, l.Ready())

	_, ok := l.Get("soc")
	assert.False(t, ok)

	ctx := context.Background()
	l.OnMetrics(ctx, metricSet("soc"))
	l.OnMetrics(ctx, metricSet("aux"))
	assert.True(t, l.Ready())

	got, ok := l.Get("soc")
	require.True(t, ok)
	assert.Equal(t, "soc", got.Source)

	all := l.All()
	require.Len(t, all, 2)
	assert.Equal(t, "aux", all[0].Source)

	boom := stderrors.New("boom")
	l.OnTerminal("aux", boom)
	assert.False(t, l.Ready())
	assert.ErrorIs(t, l.Err("aux"), boom)
	assert.NoError(t, l.Err("soc"))

	all = l.All()
	require.Len(t, all, 1)
	assert.Equal(t, "soc", all[0].Source)

	l.OnTerminal("soc", boom)
	assert.Empty(t, l.All())
}

func TestFanout(t *testing.T) {
	a, b := NewLatest(), NewLatest()
	f := Fanout{a, b}

	f.OnMetrics(context.Background(), metricSet("soc"))
	f.OnTerminal("soc", stderrors.New("x"))

	for _, l := range []*Latest{a, b} {
		_, ok := l.Get("soc")
		assert.True(t, ok)
		assert.Error(t, l.Err("soc"))
	}
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(serializer.NewWriter(serializer.FormatJSON, &buf),
		WithInclude(soc.GroupEnergy+"/*"),
		WithExclude("*ANE*"))

	w.OnMetrics(context.Background(), metricSet("soc"))

	var got measurement.MetricSet
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got.Metrics, 1)
	assert.Equal(t, soc.ChannelCPUEnergy, got.Metrics[0].Channel)

	w.OnTerminal("soc", stderrors.New("done"))
}

func gauges(t *testing.T, reg *prometheus.Registry, name string) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]float64)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			key := ""
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "source" {
					continue
				}
				if key != "" {
					key += ","
				}
				key += lp.GetName() + "=" + lp.GetValue()
			}
			out[key] = m.GetGauge().GetValue()
		}
	}
	return out
}

func TestPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	sum, err := soc.NewSummarizer(soc.FrequencyTables{
		ECPU: []uint32{600},
		PCPU: []uint32{1000, 2000},
	})
	require.NoError(t, err)

	p, err := NewPrometheus(reg, sum)
	require.NoError(t, err)

	p.OnMetrics(context.Background(), metricSet("soc"))

	channels := gauges(t, reg, "iorstat_channel_value")
	assert.Len(t, channels, 4)
	assert.InDelta(t, 2.0, channels["channel=CPU Energy,group=Energy Model,state=,subgroup=,unit=watts"], 1e-9)

	power := gauges(t, reg, "iorstat_soc_power_watts")
	assert.InDelta(t, 2.5, power["component=total"], 1e-9)
	assert.InDelta(t, 0.5, power["component=ane"], 1e-9)

	freq := gauges(t, reg, "iorstat_soc_frequency_mhz")
	assert.InDelta(t, 1000.0, freq["unit=pcpu"], 1e-9)

	p.OnTerminal("soc", stderrors.New("stopped"))
	assert.Empty(t, gauges(t, reg, "iorstat_channel_value"))
	assert.Empty(t, gauges(t, reg, "iorstat_soc_power_watts"))
}

func TestPrometheusDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg, nil)
	require.NoError(t, err)

	_, err = NewPrometheus(reg, nil)
	assert.Error(t, err)
}

func TestHostCollector(t *testing.T) {
	watts := 14.25
	tests := []struct {
		name       string
		reader     host.GaugeReader
		wantPower  map[string]float64
		wantMemory map[string]float64
	}{
		{
			name: "every gauge",
			reader: host.Static{
				SystemPower: &watts,
				Memory:      host.Memory{Used: 6, Total: 16},
				Swap:        host.Memory{Used: 1, Total: 2},
			},
			wantPower:  map[string]float64{"": 14.25},
			wantMemory: map[string]float64{"kind=used": 6, "kind=total": 16},
		},
		{
			name:       "no system power",
			reader:     host.Static{Memory: host.Memory{Used: 2, Total: 4}},
			wantPower:  map[string]float64{},
			wantMemory: map[string]float64{"kind=used": 2, "kind=total": 4},
		},
		{
			name:       "read failure",
			reader:     failingGauges{},
			wantPower:  map[string]float64{},
			wantMemory: map[string]float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			require.NoError(t, reg.Register(NewHostCollector(tt.reader, time.Second)))

			assert.Equal(t, tt.wantPower, gauges(t, reg, "iorstat_host_system_power_watts"))
			assert.Equal(t, tt.wantMemory, gauges(t, reg, "iorstat_host_memory_bytes"))
		})
	}
}
