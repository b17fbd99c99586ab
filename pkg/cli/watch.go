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
	"fmt"
	"log/slog"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/iorstat/iorstat/pkg/engine"
	"github.com/iorstat/iorstat/pkg/serializer"
	"github.com/iorstat/iorstat/pkg/sink"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Print every sample until interrupted",
		Description: `Poll the configured sources and print each metric set as it is produced.
Stops on interrupt or when every source has stopped.

Examples:
  iorstat watch --include "Energy Model/*"
  iorstat watch --interval 2s --format json --output metrics.jsonl`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Time between samples (default: configured interval)",
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

			cfg, err := selectSources(configFrom(ctx), cmd.StringSlice("source"))
			if err != nil {
				return err
			}
			if cmd.IsSet("interval") {
				watched := *cfg
				watched.Interval = cmd.Duration("interval")
				cfg = &watched
			}
			ecfg, err := cfg.Engine(nil)
			if err != nil {
				return err
			}

			w := serializer.NewFileWriterOrStdout(outFormat, cmd.String("output"))
			defer closeWriter(w)

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			var (
				mu      sync.Mutex
				stopped int
				lastErr error
			)
			consumer := sink.Fanout{
				sink.NewWriter(w,
					sink.WithInclude(cmd.StringSlice("include")...),
					sink.WithExclude(cmd.StringSlice("exclude")...)),
				engine.ConsumerFuncs{
					Terminal: func(_ string, err error) {
						mu.Lock()
						defer mu.Unlock()
						lastErr = err
						if stopped++; stopped == len(ecfg.Sources) {
							cancel()
						}
					},
				},
			}

			eng, err := engine.New(ecfg, newReporter(cmd), consumer)
			if err != nil {
				return err
			}
			if err := eng.Start(runCtx); err != nil {
				return noData(err)
			}

			<-runCtx.Done()
			if err := eng.Stop(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("engine did not stop cleanly", "error", err)
			}

			mu.Lock()
			defer mu.Unlock()
			if stopped == len(ecfg.Sources) {
				return noData(fmt.Errorf("every source stopped: %w", lastErr))
			}
			return nil
		},
	}
}
