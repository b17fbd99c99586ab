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
	"fmt"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/iorstat/iorstat/pkg/channel"
	"github.com/iorstat/iorstat/pkg/config"
	"github.com/iorstat/iorstat/pkg/errors"
	"github.com/iorstat/iorstat/pkg/header"
	"github.com/iorstat/iorstat/pkg/host"
	"github.com/iorstat/iorstat/pkg/ioreport"
	"github.com/iorstat/iorstat/pkg/ioreport/fake"
	"github.com/iorstat/iorstat/pkg/serializer"
	"github.com/iorstat/iorstat/pkg/soc"
)

var (
	outputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output file path (default: stdout)",
	}

	formatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"t"},
		Value:   string(serializer.FormatTable),
		Usage:   fmt.Sprintf("Output format (supported values: %s)", strings.Join(serializer.SupportedFormats(), ", ")),
	}

	sourceFlag = &cli.StringSliceFlag{
		Name:    "source",
		Aliases: []string{"s"},
		Usage:   "Limit to the named configured sources (can be repeated)",
	}
)

// document is the output of a command: a header followed by the items,
// printed as columns in table format.
type document struct {
	header.Header `json:",inline" yaml:",inline"`
	Items         serializer.Tabular `json:"items" yaml:"items"`
}

func newDocument(kind header.Kind, items serializer.Tabular) *document {
	return &document{
		Header: header.New(kind, header.WithVersion(version)),
		Items:  items,
	}
}

func (d *document) TableHeader() []string { return d.Items.TableHeader() }

func (d *document) TableRows() [][]string { return d.Items.TableRows() }

// parseOutputFormat validates the --format flag.
func parseOutputFormat(cmd *cli.Command) (serializer.Format, error) {
	f := serializer.Format(cmd.String("format"))
	if f.IsUnknown() {
		return "", fmt.Errorf("unknown output format: %q", f)
	}
	return f, nil
}

// newReporter returns the OS reporter, or the simulated one, wrapped to
// serve the host network and disk groups.
func newReporter(cmd *cli.Command) ioreport.Reporter {
	if cmd.Bool("simulate") {
		return host.NewReporter(fake.Simulated())
	}
	return host.NewReporter(ioreport.NewReporter())
}

// simulatedGauges are the host gauges reported with --simulate.
var simulatedGauges = host.Static{
	SystemPower: func() *float64 { w := 9.5; return &w }(),
	Memory:      host.Memory{Used: 9 << 30, Total: 16 << 30},
	Swap:        host.Memory{Used: 1 << 30, Total: 2 << 30},
}

// newGaugeReader returns the host gauge reader, or fixed gauges when
// simulating.
func newGaugeReader(cmd *cli.Command) host.GaugeReader {
	if cmd.Bool("simulate") {
		return simulatedGauges
	}
	return host.NewSystem()
}

// newSummarizer builds the SoC summarizer from configured, simulated or
// registry frequency tables. It returns nil when no tables are available.
func newSummarizer(cmd *cli.Command, cfg *config.Config) *soc.Summarizer {
	var tables soc.FrequencyTables
	switch {
	case cfg.Frequencies != nil:
		tables = *cfg.Frequencies
	case cmd.Bool("simulate"):
		tables.ECPU, tables.PCPU, tables.GPU = fake.SimulatedFrequencies()
	default:
		t, err := soc.ReadFrequencyTables()
		if err != nil {
			slog.Warn("frequency tables unavailable, summary disabled", "error", err)
			return nil
		}
		tables = t
	}

	s, err := soc.NewSummarizer(tables)
	if err != nil {
		slog.Warn("invalid frequency tables, summary disabled", "error", err)
		return nil
	}
	return s
}

// selectSources keeps the configured sources named by --source.
func selectSources(cfg *config.Config, names []string) (*config.Config, error) {
	if len(names) == 0 {
		return cfg, nil
	}

	byName := make(map[string]config.Source, len(cfg.Sources))
	for _, s := range cfg.Sources {
		byName[s.Name] = s
	}

	out := *cfg
	out.Sources = make([]config.Source, 0, len(names))
	for _, n := range names {
		s, ok := byName[n]
		if !ok {
			return nil, errors.NewWithContext(errors.ErrCodeNotFound,
				"unknown source", map[string]any{"source": n})
		}
		out.Sources = append(out.Sources, s)
	}
	return &out, nil
}

// noData turns a channel resolution failure into the fallback message and
// exit code. Other errors are returned unchanged.
func noData(err error) error {
	if !errors.IsCode(err, errors.ErrCodeChannelResolution) {
		return err
	}
	slog.Debug("channel resolution failed", "error", err)
	return cli.Exit("No data: hardware report channels are not available on this machine "+
		"(unsupported hardware or insufficient privilege). Try --simulate.", exitNoData)
}

// groupsOf parses the channel groups of every configured source.
func groupsOf(cfg *config.Config) ([]channel.Group, error) {
	var out []channel.Group
	for _, s := range cfg.Sources {
		groups, err := channel.ParseGroups(s.Groups)
		if err != nil {
			return nil, err
		}
		out = append(out, groups...)
	}
	return out, nil
}

func closeWriter(w *serializer.Writer) {
	if err := w.Close(); err != nil {
		slog.Warn("failed to close serializer", "error", err)
	}
}
