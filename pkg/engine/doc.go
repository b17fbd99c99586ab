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

// Package engine runs the periodic sampling loop for one or more sources.
//
// A source is a named list of channel groups. For every source the engine
// resolves the groups, opens a subscription handle, and runs its own poll
// loop on a ticker. Each cycle samples the handle, computes the delta against
// the previous sample, converts it to metrics and publishes one MetricSet to
// the Consumer. The first poll after a (re)subscription only stores the
// sample.
//
// # States
//
//	Idle -> Subscribed -> Sampling -> Resubscribing -> Sampling
//	                                 \-> Stopped (shutdown or terminal error)
//
// # Failure handling
//
//   - STALE_SUBSCRIPTION: the handle is closed and the source resubscribes
//     with exponential backoff, up to Config.MaxResubscribeAttempts
//     consecutive attempts. The previous sample is discarded. When attempts
//     run out the Consumer is notified through OnTerminal and the source stops.
//   - LOGIC_INVARIANT: terminal for the source.
//   - Any other sample error is logged and the cycle is skipped.
//
// Startup resolution and subscription errors are returned from Start, after
// every handle opened so far has been closed.
//
// Usage:
//
//	eng, err := engine.New(engine.DefaultConfig(), ioreport.NewReporter(), consumer)
//	if err != nil {
//	    return err
//	}
//	if err := eng.Start(ctx); err != nil {
//	    return err
//	}
//	defer eng.Stop(context.Background())
package engine
