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

package ioreport

import (
	"errors"
	"strings"
)

var (
	// ErrStale is returned by Subscription.Sample when the OS no longer
	// honors the subscription (for example after sleep/wake).
	ErrStale = errors.New("ioreport: subscription is stale")

	// ErrNoChannels is returned when a group query yields no channels.
	ErrNoChannels = errors.New("ioreport: no channels in group")

	// ErrUnsupported is returned on platforms without a reporting facility.
	ErrUnsupported = errors.New("ioreport: not supported on this platform")

	// ErrReleased is returned when sampling a released subscription.
	ErrReleased = errors.New("ioreport: subscription released")
)

// Format is the value layout reported by a channel.
type Format int

const (
	// FormatUnknown covers formats the engine does not interpret.
	FormatUnknown Format = iota
	// FormatSimple carries one integer counter.
	FormatSimple
	// FormatState carries a residency counter per named state.
	FormatState
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatSimple:
		return "simple"
	case FormatState:
		return "state"
	default:
		return "unknown"
	}
}

// ChannelInfo identifies one channel as reported by the OS.
type ChannelInfo struct {
	Group    string
	SubGroup string
	Name     string
	Unit     string
	Format   Format
}

// Key returns the channel identity used for deduplication.
func (c ChannelInfo) Key() string {
	return Key(c.Group, c.SubGroup, c.Name)
}

// Key joins group, subgroup and channel name into a channel identity.
func Key(group, subGroup, name string) string {
	return strings.Join([]string{group, subGroup, name}, "/")
}

// StateValue is the cumulative residency of one named state.
type StateValue struct {
	Name      string
	Residency int64
}

// RawValue is the raw reading of one channel in a sample.
type RawValue struct {
	Channel ChannelInfo
	// Value is set for FormatSimple channels.
	Value int64
	// States is set for FormatState channels, in OS order.
	States []StateValue
}

// RawSample holds one reading per subscribed channel, in the order the OS
// reports them.
type RawSample struct {
	Values []RawValue
}

// ChannelSet is an enumerated set of channels owned by a Reporter. Sets may
// only be passed back to the Reporter that produced them.
type ChannelSet interface {
	Channels() []ChannelInfo
}

// Releaser is implemented by channel sets that hold OS memory.
type Releaser interface {
	Release()
}

// Subscription is an open OS subscription. It is not safe for concurrent use.
type Subscription interface {
	// Channels returns the normalized channel list of the subscription.
	Channels() []ChannelInfo
	// Sample captures the current value of every subscribed channel.
	Sample() (*RawSample, error)
	// Release frees the OS resource. Calling it more than once is a
	// programming error the caller must prevent.
	Release()
}

// Reporter enumerates channels and opens subscriptions.
type Reporter interface {
	// CopyChannelsInGroup enumerates the channels of group and optional subgroup.
	CopyChannelsInGroup(group, subGroup string) (ChannelSet, error)
	// MergeChannels returns a set holding the channels of both sets.
	MergeChannels(dst, src ChannelSet) (ChannelSet, error)
	// CreateSubscription opens a subscription on set.
	CreateSubscription(set ChannelSet) (Subscription, error)
}
