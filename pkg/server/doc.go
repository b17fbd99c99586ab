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

// Package server exposes the latest hardware report metrics over HTTP.
//
// # Architecture
//
// The server reads from a sink.Latest store filled by the polling engine.
// It never samples on request. Key components:
//
//   - Rate limiting using a token bucket (golang.org/x/time/rate)
//   - Request ID tracking
//   - Panic recovery
//   - Graceful shutdown
//   - Health and readiness probes
//
// # Usage
//
//	latest := sink.NewLatest()
//	srv, err := server.New(server.NewConfig(), latest,
//	    server.WithSummarizer(summarizer),
//	    server.WithGatherer(registry))
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx)
//
// # API Endpoints
//
// GET /v1/metrics - Latest converted metric sets
//
//	Query parameters:
//	  - source: limit to one source (default: all)
//	  - include: key patterns to keep, comma separated (e.g. */CPU Energy)
//	  - exclude: key patterns to drop, comma separated (e.g. *GPU*)
//
//	Example:
//	  curl "http://localhost:9090/v1/metrics?source=soc&include=Energy%20Model/*"
//
// GET /v1/summary - SoC summary (cluster usage, frequency, power)
//
//	Returns 503 when DVFS frequency tables are not available.
//
// GET /metrics - Prometheus exposition
//
// GET /health - Liveness probe, always 200
//
// GET /ready - Readiness probe
//
//	Returns 503 until the first metric set is published, and after any
//	source stopped. A source without usable channels reports "no data".
//
// # Error Handling
//
// All errors return a consistent JSON structure:
//
//	{
//	  "code": "SERVICE_UNAVAILABLE",
//	  "message": "no metrics have been collected yet",
//	  "requestId": "550e8400-e29b-41d4-a716-446655440000",
//	  "timestamp": "2026-01-02T12:00:00Z",
//	  "retryable": true
//	}
//
// Error codes:
//   - INVALID_REQUEST: Invalid request parameter (400)
//   - NOT_FOUND: Unknown source (404)
//   - METHOD_NOT_ALLOWED: Only GET is served (405)
//   - RATE_LIMIT_EXCEEDED: Too many requests (429)
//   - SERVICE_UNAVAILABLE, CHANNEL_RESOLUTION, STALE_SUBSCRIPTION: No data (503)
//   - INTERNAL: Server error (500)
package server
