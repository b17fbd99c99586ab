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

package subscription

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/iorstat/iorstat/pkg/channel"
	"github.com/iorstat/iorstat/pkg/errors"
	"github.com/iorstat/iorstat/pkg/ioreport"
	"github.com/iorstat/iorstat/pkg/measurement"
)

// Option configures a Handle.
type Option func(*Handle)

// WithClock sets the clock used to timestamp samples.
func WithClock(c clock.PassiveClock) Option {
	return func(h *Handle) {
		h.clock = c
	}
}

// WithID overrides the generated handle ID.
func WithID(id string) Option {
	return func(h *Handle) {
		h.id = id
	}
}

// Handle is an open subscription on a channel set.
type Handle struct {
	id    string
	set   *channel.Set
	sub   ioreport.Subscription
	clock clock.PassiveClock

	mu       sync.Mutex
	inFlight bool
	closed   bool
	released bool
}

// Open subscribes to every channel of set. The set must stay alive until the
// handle is closed.
func Open(r ioreport.Reporter, set *channel.Set, opts ...Option) (*Handle, error) {
	if r == nil {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "reporter is required")
	}
	if set == nil || set.Len() == 0 {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "channel set is empty")
	}

	h := &Handle{
		id:    uuid.New().String(),
		set:   set,
		clock: clock.RealClock{},
	}
	for _, opt := range opts {
		opt(h)
	}

	sub, err := r.CreateSubscription(set.Native())
	if err != nil {
		return nil, errors.WrapWithContext(errors.ErrCodeSubscription,
			"failed to create subscription", err,
			map[string]any{"fingerprint": set.Fingerprint()})
	}
	h.sub = sub

	if missing := missingChannels(set, sub.Channels()); len(missing) > 0 {
		slog.Warn("subscription does not cover every channel",
			"handle", h.id, "missing", missing)
	}

	slog.Debug("subscription opened",
		"handle", h.id,
		"channels", set.Len(),
		"fingerprint", set.Fingerprint())
	return h, nil
}

func missingChannels(set *channel.Set, subscribed []ioreport.ChannelInfo) []string {
	have := make(map[string]struct{}, len(subscribed))
	for _, c := range subscribed {
		have[c.Key()] = struct{}{}
	}
	var missing []string
	for _, d := range set.Descriptors {
		if _, ok := have[d.Key()]; !ok {
			missing = append(missing, d.Key())
		}
	}
	return missing
}

// ID returns the handle identifier stamped on every sample.
func (h *Handle) ID() string {
	return h.id
}

// Set returns the channel set the handle subscribes to.
func (h *Handle) Set() *channel.Set {
	return h.set
}

// Closed reports whether Close was called.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Close releases the subscription. Repeated calls are no-ops. If a sample is
// in flight, the release is deferred until it returns.
func (h *Handle) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	if h.inFlight {
		h.mu.Unlock()
		slog.Debug("subscription release deferred to in-flight sample", "handle", h.id)
		return
	}
	h.released = true
	h.mu.Unlock()

	h.sub.Release()
	slog.Debug("subscription released", "handle", h.id)
}

// Sample captures every channel in descriptor order. It fails with
// STALE_SUBSCRIPTION when the OS no longer honors the subscription and never
// retries.
func (h *Handle) Sample(ctx context.Context) (*measurement.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sample canceled: %w", err)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, errors.NewWithContext(errors.ErrCodeUnavailable,
			"subscription handle is closed", map[string]any{"handle": h.id})
	}
	if h.inFlight {
		h.mu.Unlock()
		return nil, errors.NewWithContext(errors.ErrCodeLogicInvariant,
			"concurrent sample on subscription handle", map[string]any{"handle": h.id})
	}
	h.inFlight = true
	h.mu.Unlock()

	raw, err := h.sub.Sample()
	ts := h.clock.Now()

	h.mu.Lock()
	h.inFlight = false
	closedMeanwhile := h.closed && !h.released
	if closedMeanwhile {
		h.released = true
	}
	h.mu.Unlock()

	if closedMeanwhile {
		h.sub.Release()
		slog.Debug("subscription released after in-flight sample", "handle", h.id)
		return nil, errors.NewWithContext(errors.ErrCodeUnavailable,
			"subscription handle closed during sample", map[string]any{"handle": h.id})
	}

	if err != nil {
		if stderrors.Is(err, ioreport.ErrStale) {
			return nil, errors.WrapWithContext(errors.ErrCodeStaleSubscription,
				"subscription is no longer valid", err, map[string]any{"handle": h.id})
		}
		return nil, errors.WrapWithContext(errors.ErrCodeInternal,
			"failed to sample subscription", err, map[string]any{"handle": h.id})
	}

	readings, err := h.readings(raw)
	if err != nil {
		return nil, err
	}

	return &measurement.Sample{
		Fingerprint: h.set.Fingerprint(),
		Handle:      h.id,
		Timestamp:   ts,
		Readings:    readings,
	}, nil
}

// readings orders raw values by descriptor. Values for channels outside the
// set, and repeats, are ignored.
func (h *Handle) readings(raw *ioreport.RawSample) ([]measurement.Reading, error) {
	out := make([]measurement.Reading, h.set.Len())
	filled := make([]bool, h.set.Len())

	for _, v := range raw.Values {
		i, ok := h.set.Index(v.Channel.Key())
		if !ok || filled[i] {
			continue
		}
		d := h.set.Descriptors[i]
		r := measurement.Reading{Descriptor: d}
		switch d.Kind {
		case channel.KindSimple:
			r.Value = v.Value
		case channel.KindStateResidency:
			r.States = make([]measurement.StateReading, len(v.States))
			for j, s := range v.States {
				r.States[j] = measurement.StateReading{Name: s.Name, Residency: s.Residency}
			}
		}
		out[i] = r
		filled[i] = true
	}

	for i, ok := range filled {
		if !ok {
			return nil, errors.NewWithContext(errors.ErrCodeInternal,
				"sample is missing a subscribed channel",
				map[string]any{"handle": h.id, "channel": h.set.Descriptors[i].Key()})
		}
	}
	return out, nil
}
