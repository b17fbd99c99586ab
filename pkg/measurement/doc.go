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

// Package measurement defines the values that flow through the sampling
// pipeline: raw samples, deltas between samples, and converted metrics.
//
// # Core Types
//
//   - Sample: one timestamped capture of every channel in a channel set
//   - Delta: non-negative per-channel differences between two samples of the
//     same channel set, plus the elapsed time between them
//   - Metric: a converted, time-normalized value (watts, percent or count)
//   - MetricSet: every metric produced by one poll cycle of one source
//
// Samples and deltas are immutable once built. At most two samples per source
// are retained by the engine.
//
// # Filtering
//
// Metric sets can be narrowed by wildcard patterns matched against metric
// keys ("group/subgroup/channel" or "group/subgroup/channel/state"):
//
//	power := set.FilterIn([]string{"Energy Model/*"})
//	noIdle := set.FilterOut([]string{"*/IDLE"})
//
// Supported patterns:
//   - "prefix*" matches keys starting with "prefix"
//   - "*suffix" matches keys ending with "suffix"
//   - "*contains*" matches keys containing "contains"
//   - "exact" matches keys exactly
//
// # Averaging
//
// Average combines consecutive metric sets of the same source into one set,
// the way a multi-sample window smooths noisy counters:
//
//	avg, err := measurement.Average(sets)
package measurement
