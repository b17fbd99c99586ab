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

// Package cli implements the iorstat command line.
//
// # Commands
//
// channels - List the channels of the configured groups:
//
//	iorstat channels --group "Energy Model" --format json
//
// sample - Average a short window of metric sets:
//
//	iorstat sample --window 4 --interval 500ms
//	iorstat sample --summary
//
// watch - Print every metric set until interrupted:
//
//	iorstat watch --include "Energy Model/*"
//
// serve - Export the latest metric sets over HTTP (see pkg/server):
//
//	iorstat serve --port 9090
//
// # Global Flags
//
//	--config, -c   YAML config file (env IORSTAT_CONFIG)
//	--log-level    Log level: debug, info, warn, error (env LOG_LEVEL)
//	--simulate     Use a simulated SoC instead of the hardware
//
// # Output Formats
//
// Table (default) prints aligned columns, JSON and YAML print the full
// structures. --output writes to a file instead of stdout.
//
// # Environment Variables
//
//	LOG_LEVEL                 Logging verbosity
//	IORSTAT_INTERVAL          Poll interval (e.g. 500ms)
//	IORSTAT_MAX_RESUBSCRIBE   Resubscribe attempts before a source stops
//	PORT                      Server port
//
// Variables are also read from a .env file in the working directory.
//
// # Exit Codes
//
//	0  Success
//	1  General error (invalid arguments, execution failure)
//	2  Context canceled or timeout
//	3  No data: hardware report channels are not available
//
// Version information is embedded at build time using ldflags:
//
//	go build -ldflags="-X 'github.com/iorstat/iorstat/pkg/cli.version=1.0.0'"
package cli
