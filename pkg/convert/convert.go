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

package convert

import (
	"strings"

	"github.com/iorstat/iorstat/pkg/channel"
	"github.com/iorstat/iorstat/pkg/measurement"
)

// energyScales maps energy unit labels to joules.
var energyScales = map[string]float64{
	"J":  1,
	"mJ": 1e-3,
	"uJ": 1e-6,
	"µJ": 1e-6, // micro sign
	"μJ": 1e-6, // greek mu
	"nJ": 1e-9,
}

// byteScales maps byte counter unit labels to bytes.
var byteScales = map[string]float64{
	"B":   1,
	"KB":  1e3,
	"KiB": 1 << 10,
}

// ByteScale returns the bytes per unit for a byte counter unit label.
func ByteScale(unit string) (float64, bool) {
	s, ok := byteScales[strings.TrimSpace(unit)]
	return s, ok
}

// EnergyScale returns the joules per unit for an energy unit label.
func EnergyScale(unit string) (float64, bool) {
	s, ok := energyScales[strings.TrimSpace(unit)]
	return s, ok
}

// Option configures a Converter.
type Option func(*Converter)

// WithScales sets count multipliers keyed by channel key
// ("group/subgroup/name") or channel name. Keys take precedence.
func WithScales(scales map[string]float64) Option {
	return func(c *Converter) {
		for k, v := range scales {
			c.scales[k] = v
		}
	}
}

// Converter converts deltas to metrics.
type Converter struct {
	scales map[string]float64
}

// New returns a Converter.
func New(opts ...Option) *Converter {
	c := &Converter{scales: make(map[string]float64)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert returns the metrics of d in channel order. State residency channels
// yield one metric per state.
func (c *Converter) Convert(d *measurement.Delta) []measurement.Metric {
	if d == nil {
		return nil
	}

	seconds := d.Elapsed.Seconds()
	out := make([]measurement.Metric, 0, len(d.Channels))

	for _, ch := range d.Channels {
		desc := ch.Descriptor
		base := measurement.Metric{
			Group:    desc.Group,
			SubGroup: desc.SubGroup,
			Channel:  desc.Name,
		}

		switch desc.Kind {
		case channel.KindStateResidency:
			total := ch.ResidencyTotal()
			for _, s := range ch.States {
				m := base
				m.State = s.Name
				m.Unit = measurement.UnitPercent
				if total > 0 {
					m.Value = 100 * float64(s.Residency) / float64(total)
				}
				out = append(out, m)
			}

		case channel.KindSimple:
			m := base
			if scale, ok := EnergyScale(desc.Unit); ok {
				m.Unit = measurement.UnitWatts
				if seconds > 0 {
					m.Value = float64(ch.Value) * scale / seconds
				}
			} else if scale, ok := ByteScale(desc.Unit); ok {
				m.Unit = measurement.UnitBytesPerSecond
				if seconds > 0 {
					m.Value = float64(ch.Value) * scale / seconds
				}
			} else {
				m.Unit = measurement.UnitCount
				m.Value = float64(ch.Value) * c.scale(desc)
			}
			out = append(out, m)
		}
	}
	return out
}

func (c *Converter) scale(d channel.Descriptor) float64 {
	if s, ok := c.scales[d.Key()]; ok {
		return s
	}
	if s, ok := c.scales[d.Name]; ok {
		return s
	}
	return 1
}
