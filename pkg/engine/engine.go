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

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/iorstat/iorstat/pkg/errors"
	"github.com/iorstat/iorstat/pkg/ioreport"
)

// Engine polls every configured source on its own goroutine.
type Engine struct {
	cfg      Config
	reporter ioreport.Reporter
	consumer Consumer

	mu      sync.Mutex
	pollers map[string]*poller
	order   []string
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns an Engine. The config is validated; the reporter is not
// touched until Start.
func New(cfg Config, reporter ioreport.Reporter, consumer Consumer) (*Engine, error) {
	if reporter == nil {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "reporter is required")
	}
	if consumer == nil {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "consumer is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}

	e := &Engine{
		cfg:      cfg,
		reporter: reporter,
		consumer: consumer,
		pollers:  make(map[string]*poller, len(cfg.Sources)),
	}
	for _, src := range cfg.Sources {
		e.pollers[src.Name] = newPoller(src, cfg, reporter, consumer)
		e.order = append(e.order, src.Name)
	}
	return e, nil
}

// Sources returns the configured source names in config order.
func (e *Engine) Sources() []string {
	return append([]string(nil), e.order...)
}

// State returns the state of a source.
func (e *Engine) State(source string) (State, bool) {
	p, ok := e.pollers[source]
	if !ok {
		return StateIdle, false
	}
	return p.State(), true
}

// Start subscribes every source and launches the poll loops. Resolution and
// subscription failures are returned after closing every handle opened so
// far. Canceling ctx stops the loops; Stop must still be called to release
// handles.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return errors.New(errors.ErrCodeInvalidRequest, "engine already started")
	}
	if e.stopped {
		return errors.New(errors.ErrCodeInvalidRequest, "engine already stopped")
	}

	for i, name := range e.order {
		if err := ctx.Err(); err != nil {
			e.closeFirst(i)
			return errors.Wrap(errors.ErrCodeTimeout, "engine start canceled", err)
		}
		if err := e.pollers[name].subscribe(); err != nil {
			e.closeFirst(i)
			slog.Error("failed to start source", "source", name, "error", err)
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	for _, name := range e.order {
		p := e.pollers[name]
		g.Go(func() error {
			p.run(gctx, e.cfg.Interval)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	e.started = true
	e.cancel = cancel
	e.done = done

	slog.Info("engine started",
		"sources", len(e.order),
		"interval", e.cfg.Interval.String())
	return nil
}

// closeFirst closes the pollers subscribed before a failed start.
func (e *Engine) closeFirst(n int) {
	for _, name := range e.order[:n] {
		e.pollers[name].close()
	}
}

// Stop cancels the poll loops, waits for in-flight polls up to the configured
// stop timeout (or ctx), then closes every handle regardless. Stop is
// idempotent.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	started, cancel, done := e.started, e.cancel, e.done
	e.mu.Unlock()

	if !started {
		e.closeAll()
		return nil
	}

	cancel()

	var err error
	timer := e.cfg.Clock.NewTimer(e.cfg.StopTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C():
		err = errors.NewWithContext(errors.ErrCodeTimeout,
			"timed out waiting for poll loops", map[string]any{"timeout": e.cfg.StopTimeout.String()})
	case <-ctx.Done():
		err = errors.Wrap(errors.ErrCodeTimeout, "stop canceled before poll loops finished", ctx.Err())
	}

	e.closeAll()

	if err != nil {
		slog.Warn("engine stopped with polls still in flight", "error", err)
		return err
	}
	slog.Info("engine stopped")
	return nil
}

func (e *Engine) closeAll() {
	for _, name := range e.order {
		e.pollers[name].close()
	}
}

// Done is closed when every poll loop has exited. It is nil before Start.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}
