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

package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/clock"

	"github.com/iorstat/iorstat/pkg/channel"
	"github.com/iorstat/iorstat/pkg/convert"
	"github.com/iorstat/iorstat/pkg/delta"
	"github.com/iorstat/iorstat/pkg/errors"
	"github.com/iorstat/iorstat/pkg/ioreport"
	"github.com/iorstat/iorstat/pkg/measurement"
	"github.com/iorstat/iorstat/pkg/subscription"
)

// poller owns the handle and sample history of one source.
type poller struct {
	source      Source
	catalog     *channel.Catalog
	reporter    ioreport.Reporter
	converter   *convert.Converter
	consumer    Consumer
	clock       clock.WithTicker
	maxAttempts int
	backoff     wait.Backoff

	mu     sync.Mutex
	state  State
	set    *channel.Set
	handle *subscription.Handle
	prev   *measurement.Sample
	closed bool
	// stale counts resubscriptions since the last successful sample.
	stale int
}

func newPoller(src Source, cfg Config, reporter ioreport.Reporter, consumer Consumer) *poller {
	p := &poller{
		source:      src,
		catalog:     channel.NewCatalog(reporter),
		reporter:    reporter,
		converter:   convert.New(convert.WithScales(src.Scales)),
		consumer:    consumer,
		clock:       cfg.Clock,
		maxAttempts: cfg.MaxResubscribeAttempts,
		backoff:     cfg.Backoff,
	}
	p.setState(StateIdle)
	return p
}

func (p *poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *poller) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	sourceState.WithLabelValues(p.source.Name).Set(float64(s))
}

// subscribe resolves the source groups and opens a fresh handle, replacing
// any previous one. History is reset.
func (p *poller) subscribe() error {
	set, err := p.catalog.Resolve(p.source.Groups...)
	if err != nil {
		return err
	}
	h, err := subscription.Open(p.reporter, set, subscription.WithClock(p.clock))
	if err != nil {
		set.Release()
		return err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		h.Close()
		set.Release()
		return errors.NewWithContext(errors.ErrCodeUnavailable,
			"source stopped while subscribing", map[string]any{"source": p.source.Name})
	}
	oldHandle, oldSet := p.handle, p.set
	p.handle, p.set, p.prev = h, set, nil
	p.state = StateSubscribed
	p.mu.Unlock()

	if oldHandle != nil {
		oldHandle.Close()
	}
	if oldSet != nil {
		oldSet.Release()
	}

	sourceState.WithLabelValues(p.source.Name).Set(float64(StateSubscribed))
	sourceChannels.WithLabelValues(p.source.Name).Set(float64(set.Len()))
	slog.Info("source subscribed",
		"source", p.source.Name,
		"handle", h.ID(),
		"channels", set.Len())
	return nil
}

// close releases the handle and channel set. Safe to call more than once and
// concurrently with a running poll.
func (p *poller) close() {
	p.mu.Lock()
	p.closed = true
	h, set := p.handle, p.set
	p.handle, p.set, p.prev = nil, nil, nil
	p.state = StateStopped
	p.mu.Unlock()

	if h != nil {
		h.Close()
	}
	if set != nil {
		set.Release()
	}
	sourceState.WithLabelValues(p.source.Name).Set(float64(StateStopped))
}

// dropHandle closes the current handle ahead of a resubscription.
func (p *poller) dropHandle() {
	p.mu.Lock()
	h, set := p.handle, p.set
	p.handle, p.set, p.prev = nil, nil, nil
	p.mu.Unlock()

	if h != nil {
		h.Close()
	}
	if set != nil {
		set.Release()
	}
}

// run polls on every tick until ctx is done or the source fails terminally.
func (p *poller) run(ctx context.Context, interval time.Duration) {
	ticker := p.clock.NewTicker(interval)
	defer ticker.Stop()

	if !p.poll(ctx) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			slog.Debug("poll loop canceled", "source", p.source.Name)
			return
		case <-ticker.C():
			if !p.poll(ctx) {
				return
			}
		}
	}
}

// poll runs one cycle. It returns false when the loop must end.
func (p *poller) poll(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	p.mu.Lock()
	h := p.handle
	p.mu.Unlock()
	if h == nil {
		return false
	}

	start := p.clock.Now()
	defer func() {
		pollDuration.WithLabelValues(p.source.Name).Observe(p.clock.Since(start).Seconds())
	}()

	cur, err := h.Sample(ctx)
	if err != nil {
		return p.handleSampleError(ctx, err)
	}

	p.mu.Lock()
	if p.handle != h {
		// replaced or closed while sampling
		p.mu.Unlock()
		return !p.isClosed()
	}
	prev := p.prev
	p.prev = cur
	p.stale = 0
	p.state = StateSampling
	p.mu.Unlock()
	sourceState.WithLabelValues(p.source.Name).Set(float64(StateSampling))

	if prev == nil {
		pollTotal.WithLabelValues(p.source.Name, "primed").Inc()
		slog.Debug("stored first sample", "source", p.source.Name, "handle", cur.Handle)
		return true
	}

	d, err := delta.Compute(prev, cur)
	if err != nil {
		p.terminate(err)
		return false
	}

	p.consumer.OnMetrics(ctx, measurement.MetricSet{
		Source:    p.source.Name,
		Timestamp: cur.Timestamp,
		Elapsed:   d.Elapsed,
		Metrics:   p.converter.Convert(d),
	})
	pollTotal.WithLabelValues(p.source.Name, "published").Inc()
	return true
}

func (p *poller) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *poller) handleSampleError(ctx context.Context, err error) bool {
	switch {
	case ctx.Err() != nil || p.isClosed():
		return false

	case errors.IsCode(err, errors.ErrCodeStaleSubscription):
		pollTotal.WithLabelValues(p.source.Name, "stale").Inc()
		p.mu.Lock()
		p.stale++
		streak := p.stale
		p.mu.Unlock()
		if streak > p.maxAttempts {
			p.terminate(errors.WrapWithContext(errors.ErrCodeStaleSubscription,
				"subscription stays stale after resubscribing", err,
				map[string]any{"source": p.source.Name, "attempts": p.maxAttempts}))
			return false
		}
		slog.Warn("subscription went stale, resubscribing",
			"source", p.source.Name,
			"attempt", streak,
			"max", p.maxAttempts,
			"error", err)
		if rerr := p.resubscribe(ctx); rerr != nil {
			if ctx.Err() != nil || p.isClosed() {
				return false
			}
			p.terminate(rerr)
			return false
		}
		return true

	case errors.IsCode(err, errors.ErrCodeLogicInvariant):
		p.terminate(err)
		return false

	default:
		pollTotal.WithLabelValues(p.source.Name, "skipped").Inc()
		slog.Warn("sample failed, skipping cycle",
			"source", p.source.Name, "error", err)
		return true
	}
}

// resubscribe replaces a stale handle, retrying with backoff.
func (p *poller) resubscribe(ctx context.Context) error {
	p.setState(StateResubscribing)
	p.dropHandle()

	backoff := p.backoff
	backoff.Steps = p.maxAttempts

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := p.subscribe()
		if err == nil {
			resubscribeTotal.WithLabelValues(p.source.Name, "success").Inc()
			return nil
		}
		lastErr = err
		resubscribeTotal.WithLabelValues(p.source.Name, "error").Inc()
		slog.Warn("resubscription attempt failed",
			"source", p.source.Name,
			"attempt", attempt,
			"max", p.maxAttempts,
			"error", err)

		if p.isClosed() {
			return err
		}
		if attempt == p.maxAttempts {
			break
		}
		if d := backoff.Step(); d > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-p.clock.After(d):
			}
		}
	}

	return errors.WrapWithContext(errors.ErrCodeStaleSubscription,
		"resubscription attempts exhausted", lastErr,
		map[string]any{"source": p.source.Name, "attempts": p.maxAttempts})
}

// terminate stops the source and notifies the consumer.
func (p *poller) terminate(err error) {
	p.close()
	pollTotal.WithLabelValues(p.source.Name, "terminal").Inc()
	slog.Error("source stopped",
		"source", p.source.Name,
		"code", string(errors.CodeOf(err)),
		"error", err)
	p.consumer.OnTerminal(p.source.Name, err)
}
