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

// Package subscription owns open hardware report subscriptions and takes
// samples from them.
//
// A Handle is the single owner of one OS subscription. It is released exactly
// once: Close is idempotent and never waits for an in-flight Sample; when a
// sample is running, the release happens as soon as that sample returns.
//
// Handles are not safe for concurrent sampling. A second Sample issued while
// one is running fails with LOGIC_INVARIANT instead of racing the OS call.
//
// Usage:
//
//	h, err := subscription.Open(reporter, set)
//	if err != nil {
//	    return err // SUBSCRIPTION
//	}
//	defer h.Close()
//
//	s, err := h.Sample(ctx)
//	if errors.IsCode(err, errors.ErrCodeStaleSubscription) {
//	    // close and re-open
//	}
package subscription
