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

// Package sink provides engine consumers: an in-memory store of the latest
// metric set per source, a Prometheus exporter, a serializing writer, and a
// fanout that forwards to several consumers.
//
// Usage:
//
//	latest := sink.NewLatest()
//	prom, err := sink.NewPrometheus(registry, summarizer)
//	if err != nil {
//	    return err
//	}
//	eng, err := engine.New(cfg, reporter, sink.Fanout{latest, prom})
package sink
