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

package measurement

import "strings"

// FilterOut returns a copy of the set without metrics whose key matches any
// of the patterns.
func (s MetricSet) FilterOut(patterns []string) MetricSet {
	return s.filter(patterns, false)
}

// FilterIn returns a copy of the set with only the metrics whose key matches
// one of the patterns. This is the complement of FilterOut.
func (s MetricSet) FilterIn(patterns []string) MetricSet {
	return s.filter(patterns, true)
}

func (s MetricSet) filter(patterns []string, keep bool) MetricSet {
	out := s
	out.Metrics = make([]Metric, 0, len(s.Metrics))
	for _, m := range s.Metrics {
		if matchesAny(m.Key(), patterns) == keep {
			out.Metrics = append(out.Metrics, m)
		}
	}
	return out
}

func matchesAny(key string, patterns []string) bool {
	for _, pattern := range patterns {
		if matchesPattern(key, pattern) {
			return true
		}
	}
	return false
}

// matchesPattern checks if a key matches a wildcard pattern.
// Supports multiple wildcard segments, e.g., "a*b*c" matches "aXbYc".
func matchesPattern(key, pattern string) bool {
	if !strings.Contains(pattern, "*") {
		return key == pattern
	}

	segments := strings.Split(pattern, "*")

	pos := 0
	for i, segment := range segments {
		if segment == "" {
			continue
		}

		// first segment is anchored unless the pattern starts with *
		if i == 0 && pattern[0] != '*' {
			if !strings.HasPrefix(key, segment) {
				return false
			}
			pos = len(segment)
			continue
		}

		// last segment is anchored unless the pattern ends with *
		if i == len(segments)-1 && pattern[len(pattern)-1] != '*' {
			return len(key[pos:]) >= len(segment) && strings.HasSuffix(key[pos:], segment)
		}

		idx := strings.Index(key[pos:], segment)
		if idx == -1 {
			return false
		}
		pos += idx + len(segment)
	}

	return true
}
