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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iorstat/iorstat/pkg/errors"
	"github.com/iorstat/iorstat/pkg/host"
	"github.com/iorstat/iorstat/pkg/measurement"
	"github.com/iorstat/iorstat/pkg/sink"
	"github.com/iorstat/iorstat/pkg/soc"
)

func testSet(source string, cpuWatts float64) measurement.MetricSet {
	return measurement.MetricSet{
		Source:    source,
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Elapsed:   time.Second,
		Metrics: []measurement.Metric{
			{Group: soc.GroupEnergy, Channel: soc.ChannelCPUEnergy, Value: cpuWatts, Unit: measurement.UnitWatts},
			{Group: soc.GroupEnergy, Channel: soc.ChannelGPUEnergy, Value: 0.25, Unit: measurement.UnitWatts},
		},
	}
}

func newTestServer(t *testing.T, latest *sink.Latest, opts ...Option) *Server {
	t.Helper()
	s, err := New(NewConfig(), latest, opts...)
	require.NoError(t, err)
	s.SetReady(true)
	return s
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestNew(t *testing.T) {
	_, err := New(nil, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidRequest))

	s, err := New(nil, sink.NewLatest())
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Addr(), s.Addr())
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, sink.NewLatest())

	rec := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[HealthResponse](t, rec).Status)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		ready      bool
		setup      func(l *sink.Latest)
		wantStatus int
		wantReason string
	}{
		{
			name:       "initializing",
			ready:      false,
			setup:      func(l *sink.Latest) { l.OnMetrics(context.Background(), testSet("soc", 1)) },
			wantStatus: http.StatusServiceUnavailable,
			wantReason: "service is initializing",
		},
		{
			name:       "no sample yet",
			ready:      true,
			setup:      func(*sink.Latest) {},
			wantStatus: http.StatusServiceUnavailable,
			wantReason: "waiting for the first sample",
		},
		{
			name:       "publishing",
			ready:      true,
			setup:      func(l *sink.Latest) { l.OnMetrics(context.Background(), testSet("soc", 1)) },
			wantStatus: http.StatusOK,
		},
		{
			name:  "no usable channels",
			ready: true,
			setup: func(l *sink.Latest) {
				l.OnTerminal("soc", errors.New(errors.ErrCodeChannelResolution, "no channels"))
			},
			wantStatus: http.StatusServiceUnavailable,
			wantReason: "no data: source soc has no usable channels",
		},
		{
			name:  "source stopped",
			ready: true,
			setup: func(l *sink.Latest) {
				l.OnMetrics(context.Background(), testSet("soc", 1))
				l.OnTerminal("soc", errors.New(errors.ErrCodeStaleSubscription, "gone"))
			},
			wantStatus: http.StatusServiceUnavailable,
			wantReason: "source soc stopped",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			latest := sink.NewLatest()
			tt.setup(latest)
			s := newTestServer(t, latest)
			s.SetReady(tt.ready)

			rec := get(t, s, "/ready")
			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decode[HealthResponse](t, rec)
			assert.Contains(t, resp.Reason, tt.wantReason)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("no data", func(t *testing.T) {
		s := newTestServer(t, sink.NewLatest())
		rec := get(t, s, "/v1/metrics")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		resp := decode[ErrorResponse](t, rec)
		assert.Equal(t, errors.ErrCodeUnavailable, resp.Code)
		assert.True(t, resp.Retryable)
		assert.NotEmpty(t, resp.RequestID)
	})

	t.Run("every source stopped", func(t *testing.T) {
		latest := sink.NewLatest()
		latest.OnMetrics(context.Background(), testSet("soc", 1.5))
		latest.OnTerminal("soc", errors.New(errors.ErrCodeStaleSubscription, "gone"))
		s := newTestServer(t, latest)

		rec := get(t, s, "/v1/metrics")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, errors.ErrCodeStaleSubscription, decode[ErrorResponse](t, rec).Code)
	})

	latest := sink.NewLatest()
	latest.OnMetrics(context.Background(), testSet("soc", 1.5))
	latest.OnMetrics(context.Background(), testSet("aux", 3))
	latest.OnTerminal("gpu", errors.New(errors.ErrCodeChannelResolution, "no channels"))
	s := newTestServer(t, latest)

	tests := []struct {
		name        string
		target      string
		wantStatus  int
		wantSources []string
		wantMetrics int
		wantCode    errors.ErrorCode
	}{
		{name: "all sources", target: "/v1/metrics", wantStatus: http.StatusOK, wantSources: []string{"aux", "soc"}, wantMetrics: 2},
		{name: "one source", target: "/v1/metrics?source=soc", wantStatus: http.StatusOK, wantSources: []string{"soc"}, wantMetrics: 2},
		{name: "include", target: "/v1/metrics?source=soc&include=*/CPU+Energy", wantStatus: http.StatusOK, wantSources: []string{"soc"}, wantMetrics: 1},
		{name: "exclude", target: "/v1/metrics?source=soc&exclude=*GPU*,*ANE*", wantStatus: http.StatusOK, wantSources: []string{"soc"}, wantMetrics: 1},
		{name: "unknown source", target: "/v1/metrics?source=nope", wantStatus: http.StatusNotFound, wantCode: errors.ErrCodeNotFound},
		{name: "failed source", target: "/v1/metrics?source=gpu", wantStatus: http.StatusServiceUnavailable, wantCode: errors.ErrCodeChannelResolution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, tt.target)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, rec).Code)
				return
			}
			resp := decode[MetricsResponse](t, rec)
			require.Len(t, resp.Sources, len(tt.wantSources))
			for i, src := range tt.wantSources {
				assert.Equal(t, src, resp.Sources[i].Source)
			}
			assert.Len(t, resp.Sources[0].Metrics, tt.wantMetrics)
		})
	}
}

func TestSummaryEndpoint(t *testing.T) {
	latest := sink.NewLatest()
	latest.OnMetrics(context.Background(), testSet("soc", 1.5))

	t.Run("without tables", func(t *testing.T) {
		s := newTestServer(t, latest)
		rec := get(t, s, "/v1/summary")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("with tables", func(t *testing.T) {
		summarizer, err := soc.NewSummarizer(soc.FrequencyTables{
			ECPU: []uint32{600, 1000},
			PCPU: []uint32{700, 3000},
			GPU:  []uint32{0, 400, 1000},
		})
		require.NoError(t, err)
		s := newTestServer(t, latest, WithSummarizer(summarizer))

		rec := get(t, s, "/v1/summary")
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[SummaryResponse](t, rec)
		require.Len(t, resp.Sources, 1)
		assert.Equal(t, "soc", resp.Sources[0].Source)
		assert.InDelta(t, 1.5, resp.Sources[0].Power.CPU, 1e-9)
		assert.InDelta(t, 1.75, resp.Sources[0].Power.Total, 1e-9)
		assert.Nil(t, resp.Sources[0].Host)
	})

	t.Run("with host gauges", func(t *testing.T) {
		summarizer, err := soc.NewSummarizer(soc.FrequencyTables{
			ECPU: []uint32{600, 1000},
			PCPU: []uint32{700, 3000},
		})
		require.NoError(t, err)
		watts := 22.0
		s := newTestServer(t, latest,
			WithSummarizer(summarizer),
			WithHostGauges(host.Static{SystemPower: &watts, Memory: host.Memory{Used: 3, Total: 8}}))

		rec := get(t, s, "/v1/summary")
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[SummaryResponse](t, rec)
		require.Len(t, resp.Sources, 1)
		assert.InDelta(t, 22.0, resp.Sources[0].Power.System, 1e-9)
		require.NotNil(t, resp.Sources[0].Host)
		assert.Equal(t, uint64(8), resp.Sources[0].Host.Memory.Total)
	})
}

func TestPrometheusEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	exporter, err := sink.NewPrometheus(reg, nil)
	require.NoError(t, err)
	exporter.OnMetrics(context.Background(), testSet("soc", 1.5))

	s := newTestServer(t, sink.NewLatest(), WithGatherer(reg))
	rec := get(t, s, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `iorstat_channel_value{channel="CPU Energy"`)
}

func TestDefaultRootHandler(t *testing.T) {
	s := newTestServer(t, sink.NewLatest())

	rec := get(t, s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[struct {
		Name   string   `json:"name"`
		Ready  bool     `json:"ready"`
		Routes []string `json:"routes"`
	}](t, rec)
	assert.Equal(t, name, resp.Name)
	assert.False(t, resp.Ready)
	assert.Contains(t, resp.Routes, "GET /v1/summary")

	assert.Equal(t, http.StatusNotFound, get(t, s, "/nope").Code)
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   errors.ErrorCode
	}{
		{errors.New(errors.ErrCodeInvalidRequest, "bad"), http.StatusBadRequest, errors.ErrCodeInvalidRequest},
		{errors.New(errors.ErrCodeNotFound, "gone"), http.StatusNotFound, errors.ErrCodeNotFound},
		{errors.New(errors.ErrCodeTimeout, "slow"), http.StatusGatewayTimeout, errors.ErrCodeTimeout},
		{errors.New(errors.ErrCodeStaleSubscription, "stale"), http.StatusServiceUnavailable, errors.ErrCodeStaleSubscription},
		{fmt.Errorf("plain"), http.StatusInternalServerError, errors.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.wantCode), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeDomainError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestGracefulShutdown(t *testing.T) {
	cfg := NewConfig()
	cfg.Address = "127.0.0.1"
	cfg.Port = 0
	cfg.ShutdownTimeout = time.Second

	s, err := New(cfg, sink.NewLatest())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.NotEmpty(t, s.notReadyReason())
}
