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

// Package convert turns channel deltas into time-normalized metrics.
//
// Conversion depends only on the channel kind and unit label:
//   - simple channels with an energy unit (J, mJ, uJ, µJ, nJ) become average
//     power in watts over the delta's elapsed time
//   - state residency channels become a percentage per state
//   - any other simple channel becomes a count, multiplied by an optional
//     scale keyed by channel key or channel name
//
// A Converter is pure: the same delta always yields the same metrics.
package convert
