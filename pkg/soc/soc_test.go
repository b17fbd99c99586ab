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

package soc

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iorstat/iorstat/pkg/errors"
	"github.com/iorstat/iorstat/pkg/host"
	"github.com/iorstat/iorstat/pkg/measurement"
)

func table(freqs ...uint32) []byte {
	out := make([]byte, 0, len(freqs)*voltageStateSize)
	for i, f := range freqs {
		out = binary.LittleEndian.AppendUint32(out, f)
		out = binary.LittleEndian.AppendUint32(out, uint32(600+i*50)) // mV
	}
	return out
}

func TestParseVoltageStates(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    []uint32
		wantErr bool
	}{
		{name: "hz table", data: table(600_000_000, 972_000_000, 2_064_000_000), want: []uint32{600, 972, 2064}},
		{name: "khz table", data: table(744_000, 1_044_000, 2_424_000), want: []uint32{744, 1044, 2424}},
		{name: "hz gpu table with off entry", data: table(0, 444_000_000, 1_296_000_000), want: []uint32{0, 444, 1296}},
		{name: "empty", data: nil, want: []uint32{}},
		{name: "partial record", data: []byte{1, 2, 3, 4, 5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVoltageStates(tt.data)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseVoltageStatesScale(t *testing.T) {
	got, err := ParseVoltageStatesScale(table(0, 396_000_000), ScaleHz)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 396}, got)

	_, err = ParseVoltageStatesScale(table(1), 0)
	assert.Error(t, err)
}

var tables = FrequencyTables{
	ECPU: []uint32{600, 1000},
	PCPU: []uint32{1000, 2000, 3000},
	GPU:  []uint32{0, 500, 1000},
}

func percent(group, sub, ch string, states []string, values ...float64) []measurement.Metric {
	out := make([]measurement.Metric, len(states))
	for i, s := range states {
		out[i] = measurement.Metric{Group: group, SubGroup: sub, Channel: ch, State: s, Value: values[i], Unit: measurement.UnitPercent}
	}
	return out
}

func watts(ch string, v float64) measurement.Metric {
	return measurement.Metric{Group: GroupEnergy, Channel: ch, Value: v, Unit: measurement.UnitWatts}
}

func TestNewSummarizer(t *testing.T) {
	_, err := NewSummarizer(FrequencyTables{PCPU: []uint32{1}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidRequest))

	s, err := NewSummarizer(tables)
	require.NoError(t, err)
	assert.Equal(t, tables, s.Tables())
}

func TestSummarize(t *testing.T) {
	s, err := NewSummarizer(tables)
	require.NoError(t, err)

	eStates := []string{"IDLE", "V0", "V1"}
	pStates := []string{"IDLE", "DOWN", "V0", "V1", "V2"}
	gStates := []string{"OFF", "P1", "P2"}

	var metrics []measurement.Metric
	// half idle, active time split evenly between 600 and 1000 MHz
	metrics = append(metrics, percent(GroupCPU, SubGroupCoreState, "ECPU0", eStates, 50, 25, 25)...)
	// fully idle
	metrics = append(metrics, percent(GroupCPU, SubGroupCoreState, "ECPU1", eStates, 100, 0, 0)...)
	// fully active at 3000 MHz
	metrics = append(metrics, percent(GroupCPU, SubGroupCoreState, "PCPU0", pStates, 0, 0, 0, 0, 100)...)
	// 75% off, rest at 1000 MHz
	metrics = append(metrics, percent(GroupGPU, SubGroupGPUState, ChannelGPUState, gStates, 75, 0, 25)...)
	metrics = append(metrics,
		watts(ChannelCPUEnergy, 1.5),
		watts(ChannelGPUEnergy, 0.25),
		watts("ANE0", 0.1),
		watts("ANE1", 0.05),
		watts("DRAM", 0.4),
	)

	ts := time.Unix(1_700_000_000, 0)
	got := s.Summarize(measurement.MetricSet{Source: "soc", Timestamp: ts, Elapsed: time.Second, Metrics: metrics})

	assert.Equal(t, "soc", got.Source)
	assert.Equal(t, ts, got.Timestamp)

	require.Len(t, got.ECPU.Cores, 2)
	assert.Equal(t, "ECPU0", got.ECPU.Cores[0].Name)
	assert.InDelta(t, 800.0, got.ECPU.Cores[0].FrequencyMHz, 1e-9)
	assert.InDelta(t, 100*800.0*0.5/1000, got.ECPU.Cores[0].Percent, 1e-9)
	assert.InDelta(t, 0.0, got.ECPU.Cores[1].FrequencyMHz, 1e-9)
	assert.InDelta(t, 0.0, got.ECPU.Cores[1].Percent, 1e-9)
	// average 400 MHz floored at the 600 MHz minimum
	assert.InDelta(t, 600.0, got.ECPU.FrequencyMHz, 1e-9)
	assert.InDelta(t, 20.0, got.ECPU.Percent, 1e-9)

	require.Len(t, got.PCPU.Cores, 1)
	assert.InDelta(t, 3000.0, got.PCPU.FrequencyMHz, 1e-9)
	assert.InDelta(t, 100.0, got.PCPU.Percent, 1e-9)
	assert.InDelta(t, 60.0, got.CPUPercent, 1e-9)

	assert.Equal(t, ChannelGPUState, got.GPU.Name)
	assert.InDelta(t, 1000.0, got.GPU.FrequencyMHz, 1e-9)
	assert.InDelta(t, 25.0, got.GPU.Percent, 1e-9)

	assert.InDelta(t, 1.5, got.Power.CPU, 1e-9)
	assert.InDelta(t, 0.25, got.Power.GPU, 1e-9)
	assert.InDelta(t, 0.15, got.Power.ANE, 1e-9)
	assert.InDelta(t, 1.9, got.Power.Total, 1e-9)
}

func TestSummarizeEmptySet(t *testing.T) {
	s, err := NewSummarizer(tables)
	require.NoError(t, err)

	got := s.Summarize(measurement.MetricSet{Source: "soc"})
	assert.Empty(t, got.ECPU.Cores)
	assert.Zero(t, got.ECPU.FrequencyMHz)
	assert.Zero(t, got.GPU.Percent)
	assert.Zero(t, got.Power.Total)
}

func TestUsageOf(t *testing.T) {
	tests := []struct {
		name     string
		states   []residency
		freqs    []uint32
		wantFreq float64
		wantPct  float64
	}{
		{
			name:   "all zero residency",
			states: []residency{{"IDLE", 0}, {"V0", 0}},
			freqs:  []uint32{100},
		},
		{
			name:     "no inactive states",
			states:   []residency{{"V0", 50}, {"V1", 50}},
			freqs:    []uint32{100, 300},
			wantFreq: 200,
			wantPct:  100 * 200.0 / 300,
		},
		{
			name:     "more states than table entries",
			states:   []residency{{"IDLE", 50}, {"V0", 25}, {"V1", 25}},
			freqs:    []uint32{400},
			wantFreq: 200,
			wantPct:  100 * 400.0 * 0.5 / 400,
		},
		{
			name:   "only inactive states",
			states: []residency{{"IDLE", 60}, {"OFF", 40}},
			freqs:  []uint32{100, 200},
		},
		{
			name:   "empty table",
			states: []residency{{"V0", 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := usageOf(tt.states, tt.freqs)
			assert.InDelta(t, tt.wantFreq, got.FrequencyMHz, 1e-9)
			assert.InDelta(t, tt.wantPct, got.Percent, 1e-9)
		})
	}
}

func TestSummaryAttachHost(t *testing.T) {
	watts := 18.5
	tests := []struct {
		name       string
		gauges     host.Gauges
		wantSystem float64
	}{
		{
			name:       "with system power",
			gauges:     host.Gauges{SystemPower: &watts, Memory: host.Memory{Used: 4, Total: 16}},
			wantSystem: 18.5,
		},
		{
			name:   "without system power",
			gauges: host.Gauges{Memory: host.Memory{Used: 4, Total: 16}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Summary{Power: Power{CPU: 1, Total: 1}}
			s.AttachHost(tt.gauges)

			require.NotNil(t, s.Host)
			assert.Equal(t, uint64(16), s.Host.Memory.Total)
			assert.InDelta(t, tt.wantSystem, s.Power.System, 1e-9)
			assert.InDelta(t, 1.0, s.Power.Total, 1e-9, "system power is not added to the SoC total")
		})
	}
}
