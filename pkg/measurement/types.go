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

package measurement

import (
	"fmt"
	"strconv"
	"time"

	"github.com/iorstat/iorstat/pkg/channel"
	"github.com/iorstat/iorstat/pkg/errors"
	"github.com/iorstat/iorstat/pkg/ioreport"
)

// Unit is the unit of a converted metric.
type Unit string

const (
	UnitWatts          Unit = "watts"
	UnitPercent        Unit = "percent"
	UnitCount          Unit = "count"
	UnitBytesPerSecond Unit = "bytes_per_second"
)

// String returns the unit name.
func (u Unit) String() string {
	return string(u)
}

// StateReading is the cumulative residency of one state.
type StateReading struct {
	Name      string `json:"name" yaml:"name"`
	Residency int64  `json:"residency" yaml:"residency"`
}

// Reading is the raw value of one channel. Value is set for simple channels,
// States for state residency channels.
type Reading struct {
	Descriptor channel.Descriptor `json:"descriptor" yaml:"descriptor"`
	Value      int64              `json:"value,omitempty" yaml:"value,omitempty"`
	States     []StateReading     `json:"states,omitempty" yaml:"states,omitempty"`
}

// Sample is one capture of every channel of a channel set, in descriptor
// order.
type Sample struct {
	Fingerprint string    `json:"fingerprint" yaml:"fingerprint"`
	Handle      string    `json:"handle" yaml:"handle"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
	Readings    []Reading `json:"readings" yaml:"readings"`
}

// StateDelta is the residency gained by one state between two samples.
type StateDelta struct {
	Name      string `json:"name" yaml:"name"`
	Residency int64  `json:"residency" yaml:"residency"`
}

// ChannelDelta is the non-negative change of one channel.
type ChannelDelta struct {
	Descriptor channel.Descriptor `json:"descriptor" yaml:"descriptor"`
	Value      int64              `json:"value,omitempty" yaml:"value,omitempty"`
	States     []StateDelta       `json:"states,omitempty" yaml:"states,omitempty"`
}

// ResidencyTotal returns the sum of all state residencies.
func (c ChannelDelta) ResidencyTotal() int64 {
	var total int64
	for _, s := range c.States {
		total += s.Residency
	}
	return total
}

// Delta is the difference between two samples of the same channel set.
type Delta struct {
	Fingerprint string         `json:"fingerprint" yaml:"fingerprint"`
	Elapsed     time.Duration  `json:"elapsed" yaml:"elapsed"`
	Channels    []ChannelDelta `json:"channels" yaml:"channels"`
}

// Metric is one converted value.
type Metric struct {
	Group    string  `json:"group" yaml:"group"`
	SubGroup string  `json:"subGroup,omitempty" yaml:"subGroup,omitempty"`
	Channel  string  `json:"channel" yaml:"channel"`
	State    string  `json:"state,omitempty" yaml:"state,omitempty"`
	Value    float64 `json:"value" yaml:"value"`
	Unit     Unit    `json:"unit" yaml:"unit"`
}

// Key identifies the metric within a metric set.
func (m Metric) Key() string {
	key := ioreport.Key(m.Group, m.SubGroup, m.Channel)
	if m.State != "" {
		key += "/" + m.State
	}
	return key
}

// String returns a human-readable form of the metric.
func (m Metric) String() string {
	return fmt.Sprintf("%s=%g %s", m.Key(), m.Value, m.Unit)
}

// MetricSet holds the metrics produced by one poll cycle of one source.
type MetricSet struct {
	Source    string        `json:"source" yaml:"source"`
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
	Metrics   []Metric      `json:"metrics" yaml:"metrics"`
}

// Find returns the first metric for channel and state. An empty state matches
// simple channel metrics.
func (s MetricSet) Find(channelName, state string) (Metric, bool) {
	for _, m := range s.Metrics {
		if m.Channel == channelName && m.State == state {
			return m, true
		}
	}
	return Metric{}, false
}

// ByChannel returns the metrics of every channel in subGroup, keyed by
// channel name, in original order within each channel.
func (s MetricSet) ByChannel(group, subGroup string) map[string][]Metric {
	out := make(map[string][]Metric)
	for _, m := range s.Metrics {
		if m.Group != group || m.SubGroup != subGroup {
			continue
		}
		out[m.Channel] = append(out[m.Channel], m)
	}
	return out
}

// TableHeader returns the column names of the metric table.
func (s MetricSet) TableHeader() []string {
	return []string{"GROUP", "SUBGROUP", "CHANNEL", "STATE", "VALUE", "UNIT"}
}

// TableRows returns one row per metric.
func (s MetricSet) TableRows() [][]string {
	rows := make([][]string, 0, len(s.Metrics))
	for _, m := range s.Metrics {
		rows = append(rows, []string{
			m.Group,
			m.SubGroup,
			m.Channel,
			m.State,
			strconv.FormatFloat(m.Value, 'f', 3, 64),
			string(m.Unit),
		})
	}
	return rows
}

// Average combines metric sets from consecutive polls of one source. Values
// are averaged per metric key; the timestamp is the last set's and the
// elapsed time is the sum. Metrics missing from some sets are averaged over
// the sets that carry them.
func Average(sets []MetricSet) (MetricSet, error) {
	if len(sets) == 0 {
		return MetricSet{}, errors.New(errors.ErrCodeInvalidRequest, "no metric sets to average")
	}
	if len(sets) == 1 {
		return sets[0], nil
	}

	type acc struct {
		metric Metric
		sum    float64
		n      int
	}

	var order []string
	byKey := make(map[string]*acc)
	out := MetricSet{Source: sets[0].Source}

	for _, s := range sets {
		if s.Source != out.Source {
			return MetricSet{}, errors.NewWithContext(errors.ErrCodeInvalidRequest,
				"cannot average metric sets of different sources",
				map[string]any{"want": out.Source, "got": s.Source})
		}
		out.Elapsed += s.Elapsed
		if s.Timestamp.After(out.Timestamp) {
			out.Timestamp = s.Timestamp
		}
		for _, m := range s.Metrics {
			k := m.Key()
			a, ok := byKey[k]
			if !ok {
				a = &acc{metric: m}
				byKey[k] = a
				order = append(order, k)
			}
			a.sum += m.Value
			a.n++
		}
	}

	out.Metrics = make([]Metric, 0, len(order))
	for _, k := range order {
		a := byKey[k]
		m := a.metric
		m.Value = a.sum / float64(a.n)
		out.Metrics = append(out.Metrics, m)
	}
	return out, nil
}
