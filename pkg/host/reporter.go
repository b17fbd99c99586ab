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
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/iorstat/iorstat/pkg/defaults"
	"github.com/iorstat/iorstat/pkg/ioreport"
)

// Channel groups, names and unit served by Reporter.
const (
	GroupNetwork = "Network"
	GroupDisk    = "Disk"

	ChannelUpload   = "Upload"
	ChannelDownload = "Download"
	ChannelRead     = "Read"
	ChannelWrite    = "Write"

	UnitBytes = "B"
)

// IsGroup reports whether name is a host channel group.
func IsGroup(name string) bool {
	return name == GroupNetwork || name == GroupDisk
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithCounters replaces the system counters.
func WithCounters(c Counters) Option {
	return func(r *Reporter) {
		r.counters = c
	}
}

// WithReadTimeout bounds every counter read.
func WithReadTimeout(d time.Duration) Option {
	return func(r *Reporter) {
		r.timeout = d
	}
}

// Reporter serves the host groups and delegates the rest to a base reporter.
type Reporter struct {
	base     ioreport.Reporter
	counters Counters
	timeout  time.Duration
}

var _ ioreport.Reporter = (*Reporter)(nil)

// NewReporter wraps base. base may be nil when only host groups are used.
func NewReporter(base ioreport.Reporter, opts ...Option) *Reporter {
	r := &Reporter{
		base:     base,
		counters: SystemCounters{},
		timeout:  defaults.HostReadTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// channelSet is a set of host channels.
type channelSet struct {
	channels []ioreport.ChannelInfo
}

func (s *channelSet) Channels() []ioreport.ChannelInfo {
	return s.channels
}

// CopyChannelsInGroup implements ioreport.Reporter. For host groups the
// subgroup selects one device; empty selects every device.
func (r *Reporter) CopyChannelsInGroup(group, subGroup string) (ioreport.ChannelSet, error) {
	if !IsGroup(group) {
		if r.base == nil {
			return nil, ioreport.ErrUnsupported
		}
		return r.base.CopyChannelsInGroup(group, subGroup)
	}

	counters, err := r.read(group)
	if err != nil {
		return nil, err
	}

	devices := make([]string, 0, len(counters))
	for name := range counters {
		if subGroup == "" || name == subGroup {
			devices = append(devices, name)
		}
	}
	if len(devices) == 0 {
		return nil, ioreport.ErrNoChannels
	}
	sort.Strings(devices)

	in, out := channelNames(group)
	set := &channelSet{channels: make([]ioreport.ChannelInfo, 0, 2*len(devices))}
	for _, dev := range devices {
		for _, name := range []string{in, out} {
			set.channels = append(set.channels, ioreport.ChannelInfo{
				Group:    group,
				SubGroup: dev,
				Name:     name,
				Unit:     UnitBytes,
				Format:   ioreport.FormatSimple,
			})
		}
	}
	return set, nil
}

// MergeChannels implements ioreport.Reporter.
func (r *Reporter) MergeChannels(dst, src ioreport.ChannelSet) (ioreport.ChannelSet, error) {
	d, dHost := dst.(*channelSet)
	s, sHost := src.(*channelSet)
	switch {
	case dHost && sHost:
		merged := &channelSet{channels: append(append([]ioreport.ChannelInfo(nil), d.channels...), s.channels...)}
		return merged, nil
	case !dHost && !sHost && r.base != nil:
		return r.base.MergeChannels(dst, src)
	default:
		return nil, fmt.Errorf("host: cannot merge host channels with %T", otherSet(dst, src))
	}
}

func otherSet(a, b ioreport.ChannelSet) ioreport.ChannelSet {
	if _, ok := a.(*channelSet); ok {
		return b
	}
	return a
}

// CreateSubscription implements ioreport.Reporter.
func (r *Reporter) CreateSubscription(set ioreport.ChannelSet) (ioreport.Subscription, error) {
	hs, ok := set.(*channelSet)
	if !ok {
		if r.base == nil {
			return nil, ioreport.ErrUnsupported
		}
		return r.base.CreateSubscription(set)
	}
	return &subscription{
		reporter: r,
		channels: append([]ioreport.ChannelInfo(nil), hs.channels...),
	}, nil
}

func (r *Reporter) read(group string) (map[string]ByteCounters, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if group == GroupNetwork {
		return r.counters.Network(ctx)
	}
	return r.counters.Disk(ctx)
}

func channelNames(group string) (in, out string) {
	if group == GroupNetwork {
		return ChannelDownload, ChannelUpload
	}
	return ChannelRead, ChannelWrite
}

type subscription struct {
	reporter *Reporter
	channels []ioreport.ChannelInfo

	mu       sync.Mutex
	released bool
}

func (s *subscription) Channels() []ioreport.ChannelInfo {
	return s.channels
}

// Sample reads the counters of every subscribed device. A device that has
// gone away makes the subscription stale.
func (s *subscription) Sample() (*ioreport.RawSample, error) {
	s.mu.Lock()
	released := s.released
	s.mu.Unlock()
	if released {
		return nil, ioreport.ErrReleased
	}

	readings := make(map[string]map[string]ByteCounters, 2)
	out := &ioreport.RawSample{Values: make([]ioreport.RawValue, 0, len(s.channels))}
	for _, ch := range s.channels {
		counters, ok := readings[ch.Group]
		if !ok {
			c, err := s.reporter.read(ch.Group)
			if err != nil {
				return nil, err
			}
			readings[ch.Group], counters = c, c
		}

		dev, ok := counters[ch.SubGroup]
		if !ok {
			return nil, fmt.Errorf("%w: device %s is gone", ioreport.ErrStale, ch.SubGroup)
		}
		v := dev.Out
		if in, _ := channelNames(ch.Group); ch.Name == in {
			v = dev.In
		}
		out.Values = append(out.Values, ioreport.RawValue{Channel: ch, Value: clampInt64(v)})
	}
	return out, nil
}

func (s *subscription) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
