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

// Package soc derives an Apple silicon system summary from converted
// metrics: per-cluster CPU usage and average frequency, GPU usage and
// frequency, and CPU, GPU, ANE and total power.
//
// Frequencies come from the DVFS tables of the power manager. Residency
// percentages of active states weight the table entries of the matching
// index; the states IDLE, DOWN and OFF are inactive. The GPU table starts
// with an entry for the OFF state, which is dropped.
//
// Usage:
//
//	tables, err := soc.ReadFrequencyTables()
//	if err != nil {
//	    return err
//	}
//	sum, err := soc.NewSummarizer(tables)
//	if err != nil {
//	    return err
//	}
//	s := sum.Summarize(metricSet)
package soc
