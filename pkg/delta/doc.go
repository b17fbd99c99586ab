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

// Package delta computes the change between two samples of the same channel
// set.
//
// Compute enforces the preconditions that make a delta meaningful: both
// samples must come from the same channel set (equal fingerprints) and the
// current sample must be strictly newer than the previous one. A violation is
// a LOGIC_INVARIANT error, which callers treat as fatal for the source.
//
// Counters are monotonic, so a negative difference can only mean a counter
// reset or wraparound. Such differences are clamped to zero.
package delta
