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

// Package host reads host-level counters and gauges that sit outside
// IOReport.
//
// Reporter serves two extra channel groups through the ioreport.Reporter
// interface, so they flow through the same catalog, sampler, delta and
// conversion path as IOReport channels:
//
//   - "Network": one subgroup per interface with Upload and Download byte
//     counters.
//   - "Disk": one subgroup per drive with Read and Write byte counters.
//
// Every other group is delegated to the wrapped reporter. A source may not mix
// host groups with IOReport groups.
//
// Gauges (memory, swap, and on Apple silicon the SMC system power reading)
// are levels rather than counters and are read on demand through
// GaugeReader.
//
// Usage:
//
//	reporter := host.NewReporter(ioreport.NewReporter())
//	eng, err := engine.New(cfg, reporter, consumer)
//
//	gauges, err := host.NewSystem().ReadGauges(ctx)
package host
