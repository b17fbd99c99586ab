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

package server

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/iorstat/iorstat/pkg/errors"
	"github.com/iorstat/iorstat/pkg/host"
	"github.com/iorstat/iorstat/pkg/measurement"
	"github.com/iorstat/iorstat/pkg/serializer"
	"github.com/iorstat/iorstat/pkg/soc"
)

// MetricsResponse is the body of GET /v1/metrics.
type MetricsResponse struct {
	Sources []measurement.MetricSet `json:"sources"`
}

// SummaryResponse is the body of GET /v1/summary.
type SummaryResponse struct {
	Sources []soc.Summary `json:"sources"`
}

// handleMetrics handles GET /v1/metrics?source=&include=&exclude=
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}

	sets, err := s.selectSets(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	q := r.URL.Query()
	include := splitPatterns(q["include"])
	exclude := splitPatterns(q["exclude"])
	for i := range sets {
		if len(include) > 0 {
			sets[i] = sets[i].FilterIn(include)
		}
		if len(exclude) > 0 {
			sets[i] = sets[i].FilterOut(exclude)
		}
	}

	serializer.RespondJSON(w, http.StatusOK, MetricsResponse{Sources: sets})
}

// handleSummary handles GET /v1/summary?source=
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}

	if s.summarizer == nil {
		writeDomainError(w, r, errors.New(errors.ErrCodeUnavailable,
			"frequency tables are not available on this machine"))
		return
	}

	sets, err := s.selectSets(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var gauges *host.Gauges
	if s.gauges != nil {
		g, err := s.gauges.ReadGauges(r.Context())
		if err != nil {
			slog.Warn("failed to read host gauges", "error", err)
		} else {
			gauges = &g
		}
	}

	resp := SummaryResponse{Sources: make([]soc.Summary, 0, len(sets))}
	for _, set := range sets {
		sum := s.summarizer.Summarize(set)
		if gauges != nil {
			sum.AttachHost(*gauges)
		}
		resp.Sources = append(resp.Sources, sum)
	}

	serializer.RespondJSON(w, http.StatusOK, resp)
}

// selectSets returns the latest set of the requested source, or of every
// source when none is named.
func (s *Server) selectSets(r *http.Request) ([]measurement.MetricSet, error) {
	source := r.URL.Query().Get("source")
	if source == "" {
		sets := s.latest.All()
		if len(sets) > 0 {
			return sets, nil
		}
		if failed := s.latest.Errors(); len(failed) > 0 {
			names := make([]string, 0, len(failed))
			for name := range failed {
				names = append(names, name)
			}
			sort.Strings(names)
			return nil, failed[names[0]]
		}
		return nil, errors.New(errors.ErrCodeUnavailable, "no metrics have been collected yet")
	}

	if err := s.latest.Err(source); err != nil {
		return nil, err
	}
	set, ok := s.latest.Get(source)
	if !ok {
		return nil, errors.NewWithContext(errors.ErrCodeNotFound,
			"no metrics for source", map[string]any{"source": source})
	}
	return []measurement.MetricSet{set}, nil
}

// splitPatterns accepts repeated and comma separated query values.
func splitPatterns(values []string) []string {
	var out []string
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
