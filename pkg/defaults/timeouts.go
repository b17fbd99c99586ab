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

package defaults

import "time"

// Sampling defaults for the polling engine.
const (
	// PollInterval is the default time between two samples of a source.
	PollInterval = 1 * time.Second

	// MinPollInterval is the smallest interval accepted from configuration.
	MinPollInterval = 50 * time.Millisecond

	// SampleWindow is the number of consecutive metric sets averaged by
	// the sample command.
	SampleWindow = 4

	// SampleWindowInterval is the poll interval used by the sample command.
	SampleWindowInterval = 500 * time.Millisecond
)

// Resubscription defaults applied when a subscription goes stale.
const (
	// MaxResubscribeAttempts caps consecutive resubscribe attempts before the
	// source is stopped with a terminal error.
	MaxResubscribeAttempts = 5

	// ResubscribeInitialBackoff is the wait before the first resubscribe attempt.
	ResubscribeInitialBackoff = 250 * time.Millisecond

	// ResubscribeBackoffFactor multiplies the wait after each failed attempt.
	ResubscribeBackoffFactor = 2.0

	// ResubscribeMaxBackoff caps the wait between attempts.
	ResubscribeMaxBackoff = 10 * time.Second
)

// Engine lifecycle timeouts.
const (
	// EngineStopTimeout bounds how long Stop waits for an in-flight poll
	// before closing subscriptions regardless.
	EngineStopTimeout = 5 * time.Second

	// EngineStartTimeout bounds channel resolution and subscription at startup.
	EngineStartTimeout = 10 * time.Second

	// HostReadTimeout bounds one read of the host network and disk counters.
	HostReadTimeout = 2 * time.Second
)

// Server timeouts for HTTP server configuration.
const (
	// ServerReadTimeout is the maximum duration for reading request headers.
	ServerReadTimeout = 10 * time.Second

	// ServerReadHeaderTimeout prevents slow header attacks.
	ServerReadHeaderTimeout = 5 * time.Second

	// ServerWriteTimeout is the maximum duration for writing a response.
	ServerWriteTimeout = 30 * time.Second

	// ServerIdleTimeout is the maximum duration to wait for the next request.
	ServerIdleTimeout = 120 * time.Second

	// ServerShutdownTimeout is the maximum duration for graceful shutdown.
	ServerShutdownTimeout = 30 * time.Second
)
