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
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/iorstat/iorstat/pkg/config"
	"github.com/iorstat/iorstat/pkg/defaults"
	"github.com/iorstat/iorstat/pkg/engine"
	"github.com/iorstat/iorstat/pkg/errors"
	"github.com/iorstat/iorstat/pkg/header"
	"github.com/iorstat/iorstat/pkg/ioreport"
	"github.com/iorstat/iorstat/pkg/measurement"
	"github.com/iorstat/iorstat/pkg/serializer"
	"github.com/iorstat/iorstat/pkg/soc"
)

// metricTable renders metric sets as columns with a leading source.
type metricTable []measurement.MetricSet

func (t metricTable) TableHeader() []string {
	return append([]string{"SOURCE"}, measurement.MetricSet{}.TableHeader()...)
}

func (t metricTable) TableRows() [][]string {
	var rows [][]string
	for _, set := range t {
		for _, r := range set.TableRows() {
			rows = append(rows, append([]string{set.Source}, r...))
		}
	}
	return rows
}

// summaryTable renders SoC summaries as columns.
type summaryTable []soc.Summary

func (t summaryTable) TableHeader() []string {
	return []string{"SOURCE", "UNIT", "FREQUENCY_MHZ", "USAGE_PCT", "POWER_W"}
}

func (t summaryTable) TableRows() [][]string {
	const none = "-"
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

	var rows [][]string
	for _, s := range t {
		rows = append(rows,
			[]string{s.Source, "ECPU", f(s.ECPU.FrequencyMHz), f(s.ECPU.Percent), none},
			[]string{s.Source, "PCPU", f(s.PCPU.FrequencyMHz), f(s.PCPU.Percent), none},
			[]string{s.Source, "CPU", none, f(s.CPUPercent), f(s.Power.CPU)},
			[]string{s.Source, "GPU", f(s.GPU.FrequencyMHz), f(s.GPU.Percent), f(s.Power.GPU)},
			[]string{s.Source, "ANE", none, none, f(s.Power.ANE)},
			[]string{s.Source, "TOTAL", none, none, f(s.Power.Total)},
		)
		if s.Host == nil {
			continue
		}
		system := none
		if s.Host.SystemPower != nil {
			system = f(s.Power.System)
		}
		rows = append(rows,
			[]string{s.Source, "SYSTEM", none, none, system},
			[]string{s.Source, "MEMORY", none, f(s.Host.Memory.Percent()), none},
			[]string{s.Source, "SWAP", none, f(s.Host.Swap.Percent()), none},
		)
	}
	return rows
}

// windowCollector keeps the first size metric sets of every source and
// signals once each source is complete or stopped.
type windowCollector struct {
	mu      sync.Mutex
	size    int
	order   []string
	pending map[string]struct{}
	sets    map[string][]measurement.MetricSet
	errs    map[string]error
	done    chan struct{}
}

func newWindowCollector(size int, sources []string) *windowCollector {
	c := &windowCollector{
		size:    size,
		order:   sources,
		pending: make(map[string]struct{}, len(sources)),
		sets:    make(map[string][]measurement.MetricSet, len(sources)),
		errs:    make(map[string]error),
		done:    make(chan struct{}),
	}
	for _, s := range sources {
		c.pending[s] = struct{}{}
	}
	return c
}

// OnMetrics implements engine.Consumer.
func (c *windowCollector) OnMetrics(_ context.Context, set measurement.MetricSet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[set.Source]; !ok {
		return
	}
	c.sets[set.Source] = append(c.sets[set.Source], set)
	if len(c.sets[set.Source]) >= c.size {
		c.complete(set.Source)
	}
}

// OnTerminal implements engine.Consumer.
func (c *windowCollector) OnTerminal(source string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[source]; !ok {
		return
	}
	c.errs[source] = err
	c.complete(source)
}

// complete must be called with mu held.
func (c *windowCollector) complete(source string) {
	delete(c.pending, source)
	if len(c.pending) == 0 {
		close(c.done)
	}
}

// result averages the window of every source with data. Sources that stopped
// early contribute the sets they published. It fails only when no source
// produced anything.
func (c *windowCollector) result() ([]measurement.MetricSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		out  []measurement.MetricSet
		errs []error
	)
	for _, src := range c.order {
		if err := c.errs[src]; err != nil {
			slog.Warn("source stopped during window", "source", src, "error", err)
			errs = append(errs, err)
		}
		sets := c.sets[src]
		if len(sets) == 0 {
			continue
		}
		avg, err := measurement.Average(sets)
		if err != nil {
			return nil, err
		}
		out = append(out, avg)
	}

	if len(out) == 0 {
		if len(errs) > 0 {
			return nil, errs[0]
		}
		return nil, errors.New(errors.ErrCodeUnavailable, "no samples collected")
	}
	return out, nil
}

// collectWindow runs an engine until every source published window metric
// sets, then stops it.
func collectWindow(ctx context.Context, reporter ioreport.Reporter, cfg *config.Config, window int) ([]measurement.MetricSet, error) {
	ecfg, err := cfg.Engine(nil)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(ecfg.Sources))
	for i, s := range ecfg.Sources {
		names[i] = s.Name
	}
	collector := newWindowCollector(window, names)

	eng, err := engine.New(ecfg, reporter, collector)
	if err != nil {
		return nil, err
	}

	// one priming sample plus the window, with slack for startup
	timeout := time.Duration(window+2)*ecfg.Interval + defaults.EngineStartTimeout
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := eng.Start(runCtx); err != nil {
		return nil, err
	}
	defer func() {
		if err := eng.Stop(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("engine did not stop cleanly", "error", err)
		}
	}()

	select {
	case <-collector.done:
	case <-runCtx.Done():
		if stderrors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		slog.Warn("sample window incomplete", "timeout", timeout.String())
	}

	return collector.result()
}

func sampleCmd() *cli.Command {
	return &cli.Command{
		Name:  "sample",
		Usage: "Average a short window of samples and print it",
		Description: `Poll the configured sources, average the first --window metric sets of each
and print the result. With --summary, print the SoC view instead: cluster
frequency and usage, GPU frequency and usage, and power.

Examples:
  iorstat sample
  iorstat sample --window 8 --interval 250ms --format json
  iorstat --simulate sample --summary`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "window",
				Aliases: []string{"n"},
				Value:   defaults.SampleWindow,
				Usage:   "Number of metric sets to average",
			},
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Value:   defaults.SampleWindowInterval,
				Usage:   "Time between samples",
			},
			&cli.BoolFlag{
				Name:  "summary",
				Usage: "Print the SoC summary instead of every channel",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Keep only metrics whose key matches (wildcards allowed, can be repeated)",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Drop metrics whose key matches (wildcards allowed, can be repeated)",
			},
			sourceFlag,
			outputFlag,
			formatFlag,
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			outFormat, err := parseOutputFormat(cmd)
			if err != nil {
				return err
			}

			window := int(cmd.Int("window"))
			if window < 1 {
				return errors.NewWithContext(errors.ErrCodeInvalidRequest,
					"window must be at least 1", map[string]any{"window": window})
			}

			cfg, err := selectSources(configFrom(ctx), cmd.StringSlice("source"))
			if err != nil {
				return err
			}
			// a configured interval wins over the flag default
			if cmd.IsSet("interval") || cfg.Interval == defaults.PollInterval {
				sampled := *cfg
				sampled.Interval = cmd.Duration("interval")
				cfg = &sampled
			}

			var summarizer *soc.Summarizer
			if cmd.Bool("summary") {
				if summarizer = newSummarizer(cmd, cfg); summarizer == nil {
					return errors.New(errors.ErrCodeUnavailable, "frequency tables are not available on this machine")
				}
			}

			sets, err := collectWindow(ctx, newReporter(cmd), cfg, window)
			if err != nil {
				return noData(err)
			}

			w := serializer.NewFileWriterOrStdout(outFormat, cmd.String("output"))
			defer closeWriter(w)

			if summarizer != nil {
				gauges, gerr := newGaugeReader(cmd).ReadGauges(ctx)
				if gerr != nil {
					slog.Warn("host gauges unavailable", "error", gerr)
				}
				summaries := make(summaryTable, 0, len(sets))
				for _, set := range sets {
					sum := summarizer.Summarize(set)
					if gerr == nil {
						sum.AttachHost(gauges)
					}
					summaries = append(summaries, sum)
				}
				return w.Serialize(ctx, newDocument(header.KindSummaryReport, summaries))
			}

			include, exclude := cmd.StringSlice("include"), cmd.StringSlice("exclude")
			for i := range sets {
				if len(include) > 0 {
					sets[i] = sets[i].FilterIn(include)
				}
				if len(exclude) > 0 {
					sets[i] = sets[i].FilterOut(exclude)
				}
			}
			if err := w.Serialize(ctx, newDocument(header.KindMetricReport, metricTable(sets))); err != nil {
				return fmt.Errorf("failed to write metrics: %w", err)
			}
			return nil
		},
	}
}
