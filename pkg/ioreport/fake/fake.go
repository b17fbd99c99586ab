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

// Package fake provides a deterministic in-memory ioreport.Reporter.
//
// Counters advance by a fixed step on every sample, so tests can predict
// deltas exactly. The reporter can invalidate live subscriptions, refuse new
// ones, and reset counters to exercise staleness and counter-reset handling.
// The CLI uses Simulated to run the engine on machines without IOReport.
package fake

import (
	"errors"
	"fmt"
	"sync"

	"github.com/iorstat/iorstat/pkg/ioreport"
)

// ErrRefused is returned by CreateSubscription while refusals are queued.
var ErrRefused = errors.New("fake: subscription refused")

// Channel describes one simulated channel.
type Channel struct {
	Group    string
	SubGroup string
	Name     string
	Unit     string

	// States makes the channel a state residency channel.
	States []string

	// Step is added to a simple channel's counter on every sample.
	Step int64
	// StateSteps is added to each state's residency on every sample.
	StateSteps []int64
}

func (c Channel) info() ioreport.ChannelInfo {
	f := ioreport.FormatSimple
	if len(c.States) > 0 {
		f = ioreport.FormatState
	}
	return ioreport.ChannelInfo{
		Group:    c.Group,
		SubGroup: c.SubGroup,
		Name:     c.Name,
		Unit:     c.Unit,
		Format:   f,
	}
}

type counter struct {
	ch     Channel
	value  int64
	states []int64
}

// Reporter is an in-memory ioreport.Reporter. It is safe for concurrent use.
type Reporter struct {
	mu sync.Mutex

	order    []string
	counters map[string]*counter

	generation   int
	refuse       int
	opened       int
	released     int
	releaseCalls int
	samples      int
}

// NewReporter returns a reporter serving the given channels.
func NewReporter(channels ...Channel) *Reporter {
	r := &Reporter{counters: make(map[string]*counter)}
	for _, ch := range channels {
		r.Add(ch)
	}
	return r
}

// Add registers a channel. Re-adding a key replaces its definition and
// resets its counters.
func (r *Reporter) Add(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := ch.info().Key()
	if _, ok := r.counters[key]; !ok {
		r.order = append(r.order, key)
	}
	r.counters[key] = &counter{ch: ch, states: make([]int64, len(ch.States))}
}

// Set overwrites the counter of a simple channel.
func (r *Reporter) Set(key string, value int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[key]; ok {
		c.value = value
	}
}

// SetStates overwrites the residencies of a state channel.
func (r *Reporter) SetStates(key string, residencies ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[key]; ok {
		copy(c.states, residencies)
	}
}

// Reset zeroes every counter, as a hardware counter reset would.
func (r *Reporter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.counters {
		c.value = 0
		for i := range c.states {
			c.states[i] = 0
		}
	}
}

// Invalidate makes every live subscription stale.
func (r *Reporter) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
}

// RefuseSubscriptions makes the next n CreateSubscription calls fail.
func (r *Reporter) RefuseSubscriptions(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refuse = n
}

// Opened returns the number of subscriptions created.
func (r *Reporter) Opened() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opened
}

// Released returns the number of subscriptions released.
func (r *Reporter) Released() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

// Live returns the number of subscriptions not yet released.
func (r *Reporter) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opened - r.released
}

// ReleaseCalls returns the number of Release calls, including repeated ones.
func (r *Reporter) ReleaseCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.releaseCalls
}

// Samples returns the number of successful samples taken.
func (r *Reporter) Samples() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samples
}

type channelSet struct {
	keys  []string
	infos []ioreport.ChannelInfo
}

func (s *channelSet) Channels() []ioreport.ChannelInfo {
	return append([]ioreport.ChannelInfo(nil), s.infos...)
}

// CopyChannelsInGroup implements ioreport.Reporter.
func (r *Reporter) CopyChannelsInGroup(group, subGroup string) (ioreport.ChannelSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := &channelSet{}
	for _, key := range r.order {
		c := r.counters[key]
		if c.ch.Group != group {
			continue
		}
		if subGroup != "" && c.ch.SubGroup != subGroup {
			continue
		}
		set.keys = append(set.keys, key)
		set.infos = append(set.infos, c.ch.info())
	}
	if len(set.keys) == 0 {
		return nil, fmt.Errorf("%w: %s", ioreport.ErrNoChannels, ioreport.Key(group, subGroup, ""))
	}
	return set, nil
}

// MergeChannels implements ioreport.Reporter. Like IOReport it does not
// deduplicate.
func (r *Reporter) MergeChannels(dst, src ioreport.ChannelSet) (ioreport.ChannelSet, error) {
	d, ok := dst.(*channelSet)
	if !ok {
		return nil, fmt.Errorf("fake: foreign channel set %T", dst)
	}
	s, ok := src.(*channelSet)
	if !ok {
		return nil, fmt.Errorf("fake: foreign channel set %T", src)
	}
	return &channelSet{
		keys:  append(append([]string(nil), d.keys...), s.keys...),
		infos: append(append([]ioreport.ChannelInfo(nil), d.infos...), s.infos...),
	}, nil
}

// CreateSubscription implements ioreport.Reporter.
func (r *Reporter) CreateSubscription(set ioreport.ChannelSet) (ioreport.Subscription, error) {
	cs, ok := set.(*channelSet)
	if !ok {
		return nil, fmt.Errorf("fake: foreign channel set %T", set)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.refuse > 0 {
		r.refuse--
		return nil, ErrRefused
	}
	r.opened++
	return &subscription{
		r:          r,
		keys:       append([]string(nil), cs.keys...),
		infos:      append([]ioreport.ChannelInfo(nil), cs.infos...),
		generation: r.generation,
	}, nil
}

type subscription struct {
	r          *Reporter
	keys       []string
	infos      []ioreport.ChannelInfo
	generation int
	released   bool
}

func (s *subscription) Channels() []ioreport.ChannelInfo {
	return append([]ioreport.ChannelInfo(nil), s.infos...)
}

func (s *subscription) Sample() (*ioreport.RawSample, error) {
	r := s.r
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.released {
		return nil, ioreport.ErrReleased
	}
	if s.generation != r.generation {
		return nil, ioreport.ErrStale
	}

	// advance each counter once even if the set lists it twice
	advanced := make(map[string]bool, len(s.keys))
	out := &ioreport.RawSample{Values: make([]ioreport.RawValue, 0, len(s.keys))}
	for _, key := range s.keys {
		c, ok := r.counters[key]
		if !ok {
			continue
		}
		if !advanced[key] {
			advanced[key] = true
			c.value += c.ch.Step
			for i := range c.states {
				if i < len(c.ch.StateSteps) {
					c.states[i] += c.ch.StateSteps[i]
				}
			}
		}

		v := ioreport.RawValue{Channel: c.ch.info(), Value: c.value}
		if len(c.ch.States) > 0 {
			v.Value = 0
			v.States = make([]ioreport.StateValue, len(c.ch.States))
			for i, name := range c.ch.States {
				v.States[i] = ioreport.StateValue{Name: name, Residency: c.states[i]}
			}
		}
		out.Values = append(out.Values, v)
	}
	r.samples++
	return out, nil
}

func (s *subscription) Release() {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.releaseCalls++
	if s.released {
		return
	}
	s.released = true
	s.r.released++
}
