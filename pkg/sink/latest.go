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

package sink

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/iorstat/iorstat/pkg/engine"
	"github.com/iorstat/iorstat/pkg/measurement"
)

// Fanout forwards every call to each consumer in order.
type Fanout []engine.Consumer

// OnMetrics implements engine.Consumer.
func (f Fanout) OnMetrics(ctx context.Context, set measurement.MetricSet) {
	for _, c := range f {
		c.OnMetrics(ctx, set)
	}
}

// OnTerminal implements engine.Consumer.
func (f Fanout) OnTerminal(source string, err error) {
	for _, c := range f {
		c.OnTerminal(source, err)
	}
}

// Latest keeps the most recent metric set and terminal error of every
// source. It is safe for concurrent use.
type Latest struct {
	mu       sync.RWMutex
	sets     map[string]measurement.MetricSet
	terminal map[string]error
}

// NewLatest returns an empty store.
func NewLatest() *Latest {
	return &Latest{
		sets:     make(map[string]measurement.MetricSet),
		terminal: make(map[string]error),
	}
}

// OnMetrics implements engine.Consumer.
func (l *Latest) OnMetrics(_ context.Context, set measurement.MetricSet) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sets[set.Source] = set
}

// OnTerminal implements engine.Consumer.
func (l *Latest) OnTerminal(source string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.terminal[source] = err
	slog.Debug("source marked terminal", "source", source, "error", err)
}

// Get returns the latest metric set of source.
func (l *Latest) Get(source string) (measurement.MetricSet, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.sets[source]
	return s, ok
}

// All returns the latest metric set of every live source, ordered by
// source. Sources that failed terminally are left out.
func (l *Latest) All() []measurement.MetricSet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]measurement.MetricSet, 0, len(l.sets))
	for name, s := range l.sets {
		if _, failed := l.terminal[name]; failed {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Err returns the terminal error of source, if any.
func (l *Latest) Err(source string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.terminal[source]
}

// Ready reports whether at least one source has published metrics and no
// source has failed terminally.
func (l *Latest) Ready() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sets) > 0 && len(l.terminal) == 0
}

// Errors returns the terminal error of every failed source.
func (l *Latest) Errors() map[string]error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]error, len(l.terminal))
	for k, v := range l.terminal {
		out[k] = v
	}
	return out
}
