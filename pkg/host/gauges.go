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

package host

import (
	"context"
	"log/slog"

	"github.com/shirou/gopsutil/v4/mem"

	"github.com/iorstat/iorstat/pkg/errors"
)

// Memory is a used and total pair in bytes.
type Memory struct {
	Used  uint64 `json:"used" yaml:"used"`
	Total uint64 `json:"total" yaml:"total"`
}

// Percent returns Used as a percentage of Total.
func (m Memory) Percent() float64 {
	if m.Total == 0 {
		return 0
	}
	return 100 * float64(m.Used) / float64(m.Total)
}

// Gauges is a point-in-time reading of host levels.
type Gauges struct {
	// SystemPower is the whole-system draw in watts. It is nil when the
	// platform does not report it.
	SystemPower *float64 `json:"systemPower,omitempty" yaml:"systemPower,omitempty"`
	Memory      Memory   `json:"memory" yaml:"memory"`
	Swap        Memory   `json:"swap" yaml:"swap"`
}

// GaugeReader reads host gauges.
type GaugeReader interface {
	ReadGauges(ctx context.Context) (Gauges, error)
}

// System reads the gauges of the running host.
type System struct {
	memory func(ctx context.Context) (Memory, Memory, error)
	power  func() (float64, error)
}

// NewSystem returns a System reader.
func NewSystem() *System {
	return &System{memory: readMemory, power: ReadSystemPower}
}

// ReadGauges implements GaugeReader. A missing power reading is not an
// error.
func (s *System) ReadGauges(ctx context.Context) (Gauges, error) {
	used, swap, err := s.memory(ctx)
	if err != nil {
		return Gauges{}, err
	}

	g := Gauges{Memory: used, Swap: swap}
	if w, err := s.power(); err != nil {
		slog.Debug("system power unavailable", "error", err)
	} else {
		g.SystemPower = &w
	}
	return g, nil
}

func readMemory(ctx context.Context) (Memory, Memory, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Memory{}, Memory{}, errors.Wrap(errors.ErrCodeUnavailable, "failed to read memory usage", err)
	}
	sw, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return Memory{}, Memory{}, errors.Wrap(errors.ErrCodeUnavailable, "failed to read swap usage", err)
	}
	return Memory{Used: vm.Used, Total: vm.Total}, Memory{Used: sw.Used, Total: sw.Total}, nil
}

// Static is a GaugeReader returning fixed gauges.
type Static Gauges

// ReadGauges implements GaugeReader.
func (s Static) ReadGauges(context.Context) (Gauges, error) {
	return Gauges(s), nil
}
