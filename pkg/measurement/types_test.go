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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iorstat/iorstat/pkg/errors"
)

func TestMetricKey(t *testing.T) {
	tests := []struct {
		name   string
		metric Metric
		want   string
	}{
		{"simple", Metric{Group: "Energy Model", Channel: "CPU Energy"}, "Energy Model//CPU Energy"},
		{"state", Metric{Group: "GPU Stats", SubGroup: "GPU Performance States", Channel: "GPUPH", State: "P1"},
			"GPU Stats/GPU Performance States/GPUPH/P1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.metric.Key())
		})
	}
}

func TestMetricSetFind(t *testing.T) {
	s := testSet()

	m, ok := s.Find("CPU Energy", "")
	require.True(t, ok)
	assert.InDelta(t, 1.5, m.Value, 1e-9)

	m, ok = s.Find("GPUPH", "P1")
	require.True(t, ok)
	assert.Equal(t, UnitPercent, m.Unit)

	_, ok = s.Find("GPUPH", "")
	assert.False(t, ok)
}

func TestMetricSetByChannel(t *testing.T) {
	got := testSet().ByChannel("GPU Stats", "GPU Performance States")
	require.Len(t, got, 1)
	require.Len(t, got["GPUPH"], 2)
	assert.Equal(t, "OFF", got["GPUPH"][0].State)
}

func TestChannelDeltaResidencyTotal(t *testing.T) {
	d := ChannelDelta{States: []StateDelta{{"A", 3}, {"B", 7}}}
	assert.Equal(t, int64(10), d.ResidencyTotal())
	assert.Equal(t, int64(0), ChannelDelta{}.ResidencyTotal())
}

func TestAverage(t *testing.T) {
	t0 := time.Unix(1000, 0)
	a := MetricSet{Source: "soc", Timestamp: t0, Elapsed: time.Second, Metrics: []Metric{
		{Group: "g", Channel: "x", Value: 2, Unit: UnitWatts},
		{Group: "g", Channel: "y", Value: 10, Unit: UnitCount},
	}}
	b := MetricSet{Source: "soc", Timestamp: t0.Add(time.Second), Elapsed: time.Second, Metrics: []Metric{
		{Group: "g", Channel: "x", Value: 4, Unit: UnitWatts},
	}}

	t.Run("averages per key", func(t *testing.T) {
		got, err := Average([]MetricSet{a, b})
		require.NoError(t, err)
		assert.Equal(t, "soc", got.Source)
		assert.Equal(t, t0.Add(time.Second), got.Timestamp)
		assert.Equal(t, 2*time.Second, got.Elapsed)
		require.Len(t, got.Metrics, 2)
		assert.InDelta(t, 3.0, got.Metrics[0].Value, 1e-9)
		assert.InDelta(t, 10.0, got.Metrics[1].Value, 1e-9)
	})

	t.Run("single set", func(t *testing.T) {
		got, err := Average([]MetricSet{a})
		require.NoError(t, err)
		assert.Equal(t, a, got)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Average(nil)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidRequest))
	})

	t.Run("mixed sources", func(t *testing.T) {
		c := b
		c.Source = "other"
		_, err := Average([]MetricSet{a, c})
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidRequest))
	})
}

func TestMetricSetTable(t *testing.T) {
	s := testSet()
	assert.Len(t, s.TableHeader(), 6)

	rows := s.TableRows()
	require.Len(t, rows, len(s.Metrics))
	assert.Equal(t, []string{"Energy Model", "", "CPU Energy", "", "1.500", "watts"}, rows[0])
	assert.Equal(t, "P1", rows[3][3])
}
