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

// Package header provides the common header of iorstat output documents.
//
// Every document written by the CLI in JSON or YAML starts with a header:
//
//	{
//	  "kind": "MetricReport",
//	  "apiVersion": "iorstat.io/v1",
//	  "metadata": {
//	    "created": "2026-01-02T10:30:00Z",
//	    "version": "v1.0.0"
//	  },
//	  "items": [...]
//	}
//
// Create one with functional options:
//
//	h := header.New(header.KindMetricReport, header.WithVersion(version))
package header
