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

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/net"

	"github.com/iorstat/iorstat/pkg/errors"
)

// ByteCounters is a cumulative pair of byte counters of one device.
type ByteCounters struct {
	// In is bytes received (network) or read (disk).
	In uint64
	// Out is bytes sent (network) or written (disk).
	Out uint64
}

// Counters reads cumulative byte counters keyed by device name.
type Counters interface {
	Network(ctx context.Context) (map[string]ByteCounters, error)
	Disk(ctx context.Context) (map[string]ByteCounters, error)
}

// SystemCounters reads the counters of the running host.
type SystemCounters struct{}

// Network returns per-interface counters.
func (SystemCounters) Network(ctx context.Context) (map[string]ByteCounters, error) {
	stats, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnavailable, "failed to read network counters", err)
	}
	out := make(map[string]ByteCounters, len(stats))
	for _, s := range stats {
		out[s.Name] = ByteCounters{In: s.BytesRecv, Out: s.BytesSent}
	}
	return out, nil
}

// Disk returns per-drive counters.
func (SystemCounters) Disk(ctx context.Context) (map[string]ByteCounters, error) {
	stats, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnavailable, "failed to read disk counters", err)
	}
	out := make(map[string]ByteCounters, len(stats))
	for name, s := range stats {
		out[name] = ByteCounters{In: s.ReadBytes, Out: s.WriteBytes}
	}
	return out, nil
}
