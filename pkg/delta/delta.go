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

package delta

import (
	"log/slog"

	"github.com/iorstat/iorstat/pkg/channel"
	"github.com/iorstat/iorstat/pkg/errors"
	"github.com/iorstat/iorstat/pkg/measurement"
)

// Compute returns the per-channel difference cur - prev.
func Compute(prev, cur *measurement.Sample) (*measurement.Delta, error) {
	if prev == nil || cur == nil {
		return nil, errors.New(errors.ErrCodeLogicInvariant, "delta requires two samples")
	}
	if prev.Fingerprint != cur.Fingerprint {
		return nil, errors.NewWithContext(errors.ErrCodeLogicInvariant,
			"samples come from different channel sets",
			map[string]any{"previous": prev.Fingerprint, "current": cur.Fingerprint})
	}
	if !cur.Timestamp.After(prev.Timestamp) {
		return nil, errors.NewWithContext(errors.ErrCodeLogicInvariant,
			"current sample is not newer than previous sample",
			map[string]any{"previous": prev.Timestamp, "current": cur.Timestamp})
	}
	if len(prev.Readings) != len(cur.Readings) {
		return nil, errors.NewWithContext(errors.ErrCodeLogicInvariant,
			"samples have different channel counts",
			map[string]any{"previous": len(prev.Readings), "current": len(cur.Readings)})
	}

	d := &measurement.Delta{
		Fingerprint: cur.Fingerprint,
		Elapsed:     cur.Timestamp.Sub(prev.Timestamp),
		Channels:    make([]measurement.ChannelDelta, len(cur.Readings)),
	}

	clamped := 0
	for i := range cur.Readings {
		p, c := prev.Readings[i], cur.Readings[i]
		if p.Descriptor != c.Descriptor {
			return nil, errors.NewWithContext(errors.ErrCodeLogicInvariant,
				"samples disagree on channel order",
				map[string]any{"index": i, "previous": p.Descriptor.Key(), "current": c.Descriptor.Key()})
		}

		cd := measurement.ChannelDelta{Descriptor: c.Descriptor}
		switch c.Descriptor.Kind {
		case channel.KindSimple:
			cd.Value = diff(p.Value, c.Value, &clamped)
		case channel.KindStateResidency:
			states, err := stateDeltas(c.Descriptor, p.States, c.States, &clamped)
			if err != nil {
				return nil, err
			}
			cd.States = states
		}
		d.Channels[i] = cd
	}

	if clamped > 0 {
		slog.Debug("clamped negative counter deltas",
			"fingerprint", cur.Fingerprint, "count", clamped)
	}
	return d, nil
}

func stateDeltas(desc channel.Descriptor, prev, cur []measurement.StateReading, clamped *int) ([]measurement.StateDelta, error) {
	if len(prev) != len(cur) {
		return nil, errors.NewWithContext(errors.ErrCodeLogicInvariant,
			"state count changed between samples",
			map[string]any{"channel": desc.Key(), "previous": len(prev), "current": len(cur)})
	}
	out := make([]measurement.StateDelta, len(cur))
	for j := range cur {
		if prev[j].Name != cur[j].Name {
			return nil, errors.NewWithContext(errors.ErrCodeLogicInvariant,
				"state names changed between samples",
				map[string]any{"channel": desc.Key(), "previous": prev[j].Name, "current": cur[j].Name})
		}
		out[j] = measurement.StateDelta{
			Name:      cur[j].Name,
			Residency: diff(prev[j].Residency, cur[j].Residency, clamped),
		}
	}
	return out, nil
}

func diff(prev, cur int64, clamped *int) int64 {
	if cur < prev {
		*clamped++
		return 0
	}
	return cur - prev
}
