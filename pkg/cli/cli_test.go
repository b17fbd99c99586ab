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

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iorstat/iorstat/pkg/channel"
	"github.com/iorstat/iorstat/pkg/config"
	"github.com/iorstat/iorstat/pkg/errors"
	"github.com/iorstat/iorstat/pkg/header"
	"github.com/iorstat/iorstat/pkg/host"
	"github.com/iorstat/iorstat/pkg/ioreport/fake"
	"github.com/iorstat/iorstat/pkg/measurement"
	"github.com/iorstat/iorstat/pkg/soc"
)

// run executes the root command and decodes the items of the JSON document
// written to --output.
func run[T any](t *testing.T, args ...string) T {
	t.Helper()
	chdir(t, t.TempDir())
	for _, k := range []string{config.EnvInterval, config.EnvMaxResubscribe, config.EnvPort} {
		t.Setenv(k, "")
	}

	out := filepath.Join(t.TempDir(), "out.json")
	argv := append([]string{name, "--simulate", "--log-level", "error"}, args...)
	argv = append(argv, "--format", "json", "--output", out)

	require.NoError(t, newRootCmd().Run(context.Background(), argv))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var doc struct {
		Kind       header.Kind       `json:"kind"`
		APIVersion string            `json:"apiVersion"`
		Metadata   map[string]string `json:"metadata"`
		Items      T                 `json:"items"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.True(t, doc.Kind.IsValid(), "kind %q", doc.Kind)
	require.Equal(t, header.APIVersion, doc.APIVersion)
	require.Equal(t, version, doc.Metadata[header.MetadataVersion])
	return doc.Items
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0, len(root.Commands))
	for _, c := range root.Commands {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"channels", "sample", "watch", "serve"}, names)
}

func TestChannelsCommand(t *testing.T) {
	all := run[[]map[string]any](t, "channels")
	assert.Len(t, all, 16)

	energy := run[[]map[string]any](t, "channels", "--group", "Energy Model")
	require.Len(t, energy, 5)
	assert.Equal(t, "CPU Energy", energy[0]["name"])
}

func TestSampleCommand(t *testing.T) {
	sets := run[[]measurement.MetricSet](t, "sample", "--window", "1", "--interval", "50ms")
	require.Len(t, sets, 1)
	assert.Equal(t, "soc", sets[0].Source)

	m, ok := sets[0].Find("CPU Energy", "")
	require.True(t, ok)
	assert.Equal(t, measurement.UnitWatts, m.Unit)
	assert.Greater(t, m.Value, 0.0)
}

func TestSampleCommandFiltered(t *testing.T) {
	sets := run[[]measurement.MetricSet](t, "sample", "--window", "1", "--interval", "50ms",
		"--include", "Energy Model/*")
	require.Len(t, sets, 1)
	assert.Len(t, sets[0].Metrics, 5)
}

func TestSampleCommandSummary(t *testing.T) {
	summaries := run[[]soc.Summary](t, "sample", "--window", "2", "--interval", "50ms", "--summary")
	require.Len(t, summaries, 1)
	s := summaries[0]
	assert.Greater(t, s.Power.Total, 0.0)
	assert.Greater(t, s.ECPU.FrequencyMHz, 0.0)
	assert.Len(t, s.PCPU.Cores, 4)

	require.NotNil(t, s.Host)
	assert.InDelta(t, *simulatedGauges.SystemPower, s.Power.System, 1e-9)
	assert.Equal(t, simulatedGauges.Memory.Total, s.Host.Memory.Total)
}

func TestSampleCommandRejectsWindow(t *testing.T) {
	chdir(t, t.TempDir())
	err := newRootCmd().Run(context.Background(), []string{name, "--simulate", "sample", "--window", "0"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidRequest))
}

type oneInterface struct{}

func (oneInterface) Network(context.Context) (map[string]host.ByteCounters, error) {
	return map[string]host.ByteCounters{"en0": {In: 1, Out: 2}}, nil
}

func (oneInterface) Disk(context.Context) (map[string]host.ByteCounters, error) {
	return map[string]host.ByteCounters{}, nil
}

func TestResolveChannels(t *testing.T) {
	catalog := channel.NewCatalog(host.NewReporter(fake.Simulated(), host.WithCounters(oneInterface{})))
	energy := channel.Group{Name: fake.GroupEnergy}
	network := channel.Group{Name: host.GroupNetwork}
	disk := channel.Group{Name: host.GroupDisk}

	tests := []struct {
		name     string
		groups   []channel.Group
		wantLen  int
		wantLast string
		wantErr  bool
	}{
		{name: "ioreport only", groups: []channel.Group{energy}, wantLen: 5, wantLast: "Energy Model"},
		{name: "host only", groups: []channel.Group{network}, wantLen: 2, wantLast: host.GroupNetwork},
		{name: "mixed", groups: []channel.Group{network, energy}, wantLen: 7, wantLast: host.GroupNetwork},
		{name: "no disks", groups: []channel.Group{disk}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			descs, err := resolveChannels(catalog, tt.groups)
			if tt.wantErr {
				assert.True(t, errors.IsCode(err, errors.ErrCodeChannelResolution), "got %v", err)
				return
			}
			require.NoError(t, err)
			require.Len(t, descs, tt.wantLen)
			assert.Equal(t, tt.wantLast, descs[len(descs)-1].Group)
		})
	}
}

func TestKindLabel(t *testing.T) {
	assert.Equal(t, "Simple", kindLabel(channel.KindSimple))
	assert.Equal(t, "State Residency", kindLabel(channel.KindStateResidency))
}

func TestChannelTable(t *testing.T) {
	table := channelTable{
		{Group: "Energy Model", Name: "CPU Energy", Unit: "mJ", Kind: channel.KindSimple},
		{Group: "GPU Stats", SubGroup: "GPU Performance States", Name: "GPUPH", Unit: "24Mticks", Kind: channel.KindStateResidency},
	}

	assert.Equal(t, []string{"GROUP", "SUBGROUP", "CHANNEL", "UNIT", "KIND"}, table.TableHeader())
	assert.Equal(t, [][]string{
		{"Energy Model", "", "CPU Energy", "mJ", "Simple"},
		{"GPU Stats", "GPU Performance States", "GPUPH", "24Mticks", "State Residency"},
	}, table.TableRows())
}

func TestMetricTable(t *testing.T) {
	table := metricTable{
		{Source: "a", Metrics: []measurement.Metric{{Group: "g", Channel: "x", Value: 1, Unit: measurement.UnitWatts}}},
		{Source: "b", Metrics: []measurement.Metric{{Group: "g", Channel: "y", Value: 2, Unit: measurement.UnitCount}}},
	}

	assert.Equal(t, "SOURCE", table.TableHeader()[0])
	rows := table.TableRows()
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0][0])
	assert.Equal(t, "b", rows[1][0])
	assert.Len(t, rows[0], len(table.TableHeader()))
}

func TestSummaryTable(t *testing.T) {
	table := summaryTable{{Source: "soc", Power: soc.Power{Total: 1.5}}}
	rows := table.TableRows()
	require.Len(t, rows, 6)
	assert.Equal(t, []string{"soc", "TOTAL", "-", "-", "1.50"}, rows[5])

	withHost := summaryTable{{Source: "soc"}}
	withHost[0].AttachHost(host.Gauges{Memory: host.Memory{Used: 1, Total: 4}, Swap: host.Memory{Used: 1, Total: 2}})
	rows = withHost.TableRows()
	require.Len(t, rows, 9)
	assert.Equal(t, []string{"soc", "SYSTEM", "-", "-", "-"}, rows[6])
	assert.Equal(t, []string{"soc", "MEMORY", "-", "25.00", "-"}, rows[7])
	assert.Equal(t, []string{"soc", "SWAP", "-", "50.00", "-"}, rows[8])
}

func TestWindowCollector(t *testing.T) {
	set := func(src string, v float64) measurement.MetricSet {
		return measurement.MetricSet{
			Source:    src,
			Timestamp: time.Now(),
			Elapsed:   time.Second,
			Metrics:   []measurement.Metric{{Group: "g", Channel: "c", Value: v, Unit: measurement.UnitWatts}},
		}
	}
	ctx := context.Background()

	t.Run("averages full windows", func(t *testing.T) {
		c := newWindowCollector(2, []string{"a", "b"})
		c.OnMetrics(ctx, set("a", 1))
		c.OnMetrics(ctx, set("a", 3))
		c.OnMetrics(ctx, set("a", 100))
		select {
		case <-c.done:
			t.Fatal("done before every source completed")
		default:
		}
		c.OnMetrics(ctx, set("b", 4))
		c.OnMetrics(ctx, set("b", 4))
		<-c.done

		sets, err := c.result()
		require.NoError(t, err)
		require.Len(t, sets, 2)
		assert.InDelta(t, 2.0, sets[0].Metrics[0].Value, 1e-9)
		assert.Equal(t, 2*time.Second, sets[0].Elapsed)
		assert.Equal(t, "b", sets[1].Source)
	})

	t.Run("stopped source keeps partial window", func(t *testing.T) {
		c := newWindowCollector(3, []string{"a", "b"})
		c.OnMetrics(ctx, set("a", 5))
		c.OnTerminal("a", errors.New(errors.ErrCodeStaleSubscription, "gone"))
		c.OnTerminal("b", errors.New(errors.ErrCodeChannelResolution, "none"))
		<-c.done

		sets, err := c.result()
		require.NoError(t, err)
		require.Len(t, sets, 1)
		assert.Equal(t, "a", sets[0].Source)
	})

	t.Run("no data", func(t *testing.T) {
		c := newWindowCollector(1, []string{"a"})
		c.OnTerminal("a", errors.New(errors.ErrCodeChannelResolution, "none"))
		c.OnTerminal("a", errors.New(errors.ErrCodeInternal, "ignored"))
		<-c.done

		_, err := c.result()
		assert.True(t, errors.IsCode(err, errors.ErrCodeChannelResolution))
		assert.Equal(t, exitNoData, exitCode(noData(err)))
	})
}

func TestSelectSources(t *testing.T) {
	cfg := config.Default()
	cfg.Sources = append(cfg.Sources, config.Source{Name: "gpu", Groups: []string{"GPU Stats"}})

	got, err := selectSources(cfg, nil)
	require.NoError(t, err)
	assert.Len(t, got.Sources, 2)

	got, err = selectSources(cfg, []string{"gpu"})
	require.NoError(t, err)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, "gpu", got.Sources[0].Name)
	assert.Len(t, cfg.Sources, 2, "input is not modified")

	_, err = selectSources(cfg, []string{"nope"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain", fmt.Errorf("boom"), exitError},
		{"canceled", fmt.Errorf("run: %w", context.Canceled), exitCanceled},
		{"no data", noData(errors.New(errors.ErrCodeChannelResolution, "none")), exitNoData},
		{"other structured", noData(errors.New(errors.ErrCodeInternal, "x")), exitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

// chdir changes the working directory for the duration of the test,
// equivalent to testing.T.Chdir on Go 1.24+.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
