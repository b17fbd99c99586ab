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
	"strings"
	"time"

	"github.com/iorstat/iorstat/pkg/errors"
	"github.com/iorstat/iorstat/pkg/host"
	"github.com/iorstat/iorstat/pkg/measurement"
)

// Channel groups and names the summary reads.
const (
	GroupEnergy       = "Energy Model"
	GroupCPU          = "CPU Stats"
	GroupGPU          = "GPU Stats"
	SubGroupCoreState = "CPU Core Performance States"
	SubGroupGPUState  = "GPU Performance States"

	ChannelCPUEnergy = "CPU Energy"
	ChannelGPUEnergy = "GPU Energy"
	ChannelGPUState  = "GPUPH"
	prefixANE        = "ANE"
	prefixECPU       = "ECPU"
	prefixPCPU       = "PCPU"
)

var inactiveStates = map[string]struct{}{
	"IDLE": {},
	"DOWN": {},
	"OFF":  {},
}

// FrequencyTables holds DVFS frequencies in MHz, lowest first.
type FrequencyTables struct {
	ECPU []uint32 `json:"ecpu" yaml:"ecpu"`
	PCPU []uint32 `json:"pcpu" yaml:"pcpu"`
	// GPU starts with the entry of the OFF state.
	GPU []uint32 `json:"gpu" yaml:"gpu"`
}

// Validate checks that both CPU tables are present.
func (t FrequencyTables) Validate() error {
	if len(t.ECPU) == 0 || len(t.PCPU) == 0 {
		return errors.NewWithContext(errors.ErrCodeInvalidRequest,
			"cpu frequency tables are empty",
			map[string]any{"ecpu": len(t.ECPU), "pcpu": len(t.PCPU)})
	}
	return nil
}

// Usage is the activity of one core or unit.
type Usage struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// FrequencyMHz is the residency-weighted average active frequency.
	FrequencyMHz float64 `json:"frequencyMHz" yaml:"frequencyMHz"`
	// Percent is active residency scaled by frequency relative to the
	// maximum table frequency.
	Percent float64 `json:"percent" yaml:"percent"`
}

// Cluster aggregates the cores of one CPU cluster.
type Cluster struct {
	Usage `json:",inline" yaml:",inline"`
	Cores []Usage `json:"cores,omitempty" yaml:"cores,omitempty"`
}

// Power holds average power in watts.
type Power struct {
	CPU   float64 `json:"cpu" yaml:"cpu"`
	GPU   float64 `json:"gpu" yaml:"gpu"`
	ANE   float64 `json:"ane" yaml:"ane"`
	Total float64 `json:"total" yaml:"total"`
	// System is the whole-system draw reported by the SMC, zero when the
	// host does not report it. It is not part of Total.
	System float64 `json:"system" yaml:"system"`
}

// Summary is the SoC view of one metric set.
type Summary struct {
	Source    string        `json:"source" yaml:"source"`
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`

	ECPU Cluster `json:"ecpu" yaml:"ecpu"`
	PCPU Cluster `json:"pcpu" yaml:"pcpu"`
	GPU  Usage   `json:"gpu" yaml:"gpu"`
	// CPUPercent is the mean of both cluster percentages.
	CPUPercent float64 `json:"cpuPercent" yaml:"cpuPercent"`

	Power Power `json:"power" yaml:"power"`

	// Host carries memory, swap and system power when attached.
	Host *host.Gauges `json:"host,omitempty" yaml:"host,omitempty"`
}

// AttachHost adds host gauges to the summary and copies the system power
// reading into Power.System.
func (s *Summary) AttachHost(g host.Gauges) {
	s.Host = &g
	if g.SystemPower != nil {
		s.Power.System = *g.SystemPower
	}
}

// Summarizer turns metric sets into summaries.
type Summarizer struct {
	tables FrequencyTables
}

// NewSummarizer returns a Summarizer using tables.
func NewSummarizer(tables FrequencyTables) (*Summarizer, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	return &Summarizer{tables: tables}, nil
}

// Tables returns the frequency tables in use.
func (s *Summarizer) Tables() FrequencyTables {
	return s.tables
}

// Summarize computes the summary of set. Channels that are absent leave the
// corresponding fields zero.
func (s *Summarizer) Summarize(set measurement.MetricSet) Summary {
	out := Summary{
		Source:    set.Source,
		Timestamp: set.Timestamp,
		Elapsed:   set.Elapsed,
	}

	cores := set.ByChannel(GroupCPU, SubGroupCoreState)
	var eCores, pCores []Usage
	for _, name := range sortedChannels(set, GroupCPU, SubGroupCoreState) {
		switch {
		case strings.Contains(name, prefixECPU):
			u := usageOf(residencies(cores[name]), s.tables.ECPU)
			u.Name = name
			eCores = append(eCores, u)
		case strings.Contains(name, prefixPCPU):
			u := usageOf(residencies(cores[name]), s.tables.PCPU)
			u.Name = name
			pCores = append(pCores, u)
		}
	}
	out.ECPU = aggregate(eCores, s.tables.ECPU)
	out.PCPU = aggregate(pCores, s.tables.PCPU)
	out.CPUPercent = (out.ECPU.Percent + out.PCPU.Percent) / 2

	if len(s.tables.GPU) > 1 {
		gpu := set.ByChannel(GroupGPU, SubGroupGPUState)[ChannelGPUState]
		if len(gpu) > 0 {
			out.GPU = usageOf(residencies(gpu), s.tables.GPU[1:])
			out.GPU.Name = ChannelGPUState
		}
	}

	for _, m := range set.Metrics {
		if m.Group != GroupEnergy || m.Unit != measurement.UnitWatts {
			continue
		}
		switch {
		case m.Channel == ChannelCPUEnergy:
			out.Power.CPU += m.Value
		case m.Channel == ChannelGPUEnergy:
			out.Power.GPU += m.Value
		case strings.HasPrefix(m.Channel, prefixANE):
			out.Power.ANE += m.Value
		}
	}
	out.Power.Total = out.Power.CPU + out.Power.GPU + out.Power.ANE

	return out
}

// sortedChannels returns channel names of a subgroup in metric order.
func sortedChannels(set measurement.MetricSet, group, subGroup string) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, m := range set.Metrics {
		if m.Group != group || m.SubGroup != subGroup {
			continue
		}
		if _, ok := seen[m.Channel]; ok {
			continue
		}
		seen[m.Channel] = struct{}{}
		names = append(names, m.Channel)
	}
	return names
}

type residency struct {
	state string
	value float64
}

func residencies(metrics []measurement.Metric) []residency {
	out := make([]residency, 0, len(metrics))
	for _, m := range metrics {
		if m.Unit != measurement.UnitPercent {
			continue
		}
		out = append(out, residency{state: m.State, value: m.Value})
	}
	return out
}

// usageOf weights table frequencies by the residency of the active states.
// Active states start at the first state that is not inactive and map to
// the table in order.
func usageOf(states []residency, freqs []uint32) Usage {
	if len(freqs) == 0 {
		return Usage{}
	}

	offset := len(states)
	for i, s := range states {
		if _, inactive := inactiveStates[s.state]; !inactive {
			offset = i
			break
		}
	}

	var active, total float64
	for i, s := range states {
		total += s.value
		if i >= offset {
			active += s.value
		}
	}

	var avg float64
	if active > 0 {
		for i := 0; i < len(freqs) && offset+i < len(states); i++ {
			avg += states[offset+i].value / active * float64(freqs[i])
		}
	}

	var ratio float64
	if total > 0 {
		ratio = active / total
	}
	minFreq := float64(freqs[0])
	maxFreq := float64(freqs[len(freqs)-1])

	u := Usage{FrequencyMHz: avg}
	if maxFreq > 0 {
		u.Percent = 100 * max(avg, minFreq) * ratio / maxFreq
	}
	return u
}

// aggregate averages core usage, flooring frequency at the table minimum.
func aggregate(cores []Usage, freqs []uint32) Cluster {
	c := Cluster{Cores: cores}
	if len(cores) == 0 || len(freqs) == 0 {
		return c
	}
	var freq, pct float64
	for _, u := range cores {
		freq += u.FrequencyMHz
		pct += u.Percent
	}
	n := float64(len(cores))
	c.FrequencyMHz = max(freq/n, float64(freqs[0]))
	c.Percent = pct / n
	return c
}
