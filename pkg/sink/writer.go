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
	"sync"

	"github.com/iorstat/iorstat/pkg/measurement"
	"github.com/iorstat/iorstat/pkg/serializer"
)

// Writer serializes every metric set it receives. Sets of concurrent
// sources are written one at a time.
type Writer struct {
	mu         sync.Mutex
	serializer serializer.Serializer
	include    []string
	exclude    []string
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithInclude keeps only metrics whose key matches one of the patterns.
func WithInclude(patterns ...string) WriterOption {
	return func(w *Writer) {
		w.include = append(w.include, patterns...)
	}
}

// WithExclude drops metrics whose key matches one of the patterns.
func WithExclude(patterns ...string) WriterOption {
	return func(w *Writer) {
		w.exclude = append(w.exclude, patterns...)
	}
}

// NewWriter returns a Writer using s.
func NewWriter(s serializer.Serializer, opts ...WriterOption) *Writer {
	w := &Writer{serializer: s}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Filter applies the include and exclude patterns to set.
func (w *Writer) Filter(set measurement.MetricSet) measurement.MetricSet {
	if len(w.include) > 0 {
		set = set.FilterIn(w.include)
	}
	if len(w.exclude) > 0 {
		set = set.FilterOut(w.exclude)
	}
	return set
}

// OnMetrics implements engine.Consumer.
func (w *Writer) OnMetrics(ctx context.Context, set measurement.MetricSet) {
	set = w.Filter(set)
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.serializer.Serialize(ctx, set); err != nil {
		slog.Error("failed to write metrics", "source", set.Source, "error", err)
	}
}

// OnTerminal implements engine.Consumer.
func (w *Writer) OnTerminal(source string, err error) {
	slog.Error("source stopped, no more metrics will be written", "source", source, "error", err)
}
