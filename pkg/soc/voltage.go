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

	"github.com/iorstat/iorstat/pkg/errors"
)

const (
	voltageStateSize = 8

	// Power manager registry keys of the DVFS tables.
	KeyECPUStates = "voltage-states1-sram"
	KeyPCPUStates = "voltage-states5-sram"
	KeyGPUStates  = "voltage-states9-sram"

	// ScaleHz converts table values reported in Hz to MHz.
	ScaleHz = 1000 * 1000
	// ScaleKHz converts table values reported in kHz to MHz.
	ScaleKHz = 1000

	// Tables in Hz exceed this raw value; tables in kHz never do.
	hzThreshold = 100 * 1000 * 1000
)

// ParseVoltageStates decodes a DVFS table of little-endian
// (frequency, voltage) uint32 pairs into frequencies in MHz. The unit of
// the raw frequencies is detected from their magnitude.
func ParseVoltageStates(data []byte) ([]uint32, error) {
	raw, err := rawFrequencies(data)
	if err != nil {
		return nil, err
	}
	scale := uint32(ScaleKHz)
	for _, f := range raw {
		if f >= hzThreshold {
			scale = ScaleHz
			break
		}
	}
	return scaled(raw, scale), nil
}

// ParseVoltageStatesScale decodes a DVFS table using a fixed scale.
func ParseVoltageStatesScale(data []byte, scale uint32) ([]uint32, error) {
	if scale == 0 {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "voltage state scale must be positive")
	}
	raw, err := rawFrequencies(data)
	if err != nil {
		return nil, err
	}
	return scaled(raw, scale), nil
}

func rawFrequencies(data []byte) ([]uint32, error) {
	if len(data)%voltageStateSize != 0 {
		return nil, errors.NewWithContext(errors.ErrCodeInvalidRequest,
			"voltage state table has a partial record",
			map[string]any{"bytes": len(data)})
	}
	out := make([]uint32, 0, len(data)/voltageStateSize)
	for off := 0; off < len(data); off += voltageStateSize {
		out = append(out, binary.LittleEndian.Uint32(data[off:off+4]))
	}
	return out, nil
}

func scaled(raw []uint32, scale uint32) []uint32 {
	out := make([]uint32, len(raw))
	for i, f := range raw {
		out[i] = f / scale
	}
	return out
}
