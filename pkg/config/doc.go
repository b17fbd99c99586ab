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

// Package config loads iorstat configuration from a YAML file, a .env file
// and environment variables, in that order of increasing precedence.
//
// Example file:
//
//	interval: 1s
//	maxResubscribeAttempts: 5
//	backoff:
//	  initial: 250ms
//	  factor: 2
//	  max: 10s
//	sources:
//	  - name: soc
//	    groups:
//	      - Energy Model
//	      - CPU Stats/CPU Core Performance States
//	server:
//	  port: 9090
//
// Environment overrides: IORSTAT_INTERVAL, IORSTAT_MAX_RESUBSCRIBE, PORT and
// LOG_LEVEL.
package config
