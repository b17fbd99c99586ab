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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/iorstat/iorstat/pkg/config"
	"github.com/iorstat/iorstat/pkg/defaults"
	"github.com/iorstat/iorstat/pkg/engine"
	"github.com/iorstat/iorstat/pkg/errors"
	"github.com/iorstat/iorstat/pkg/server"
	"github.com/iorstat/iorstat/pkg/sink"
)

// serverConfig maps the file configuration and flags onto the server config.
func serverConfig(cmd *cli.Command, cfg *config.Config) *server.Config {
	sc := server.NewConfig()
	sc.Version = version
	sc.Address = cfg.Server.Address
	sc.Port = cfg.Server.Port
	sc.RateLimit = cfg.RateLimit()
	sc.RateLimitBurst = cfg.Server.RateLimitBurst

	if cmd.IsSet("address") {
		sc.Address = cmd.String("address")
	}
	if cmd.IsSet("port") {
		sc.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("rate-limit") {
		sc.RateLimit = rate.Limit(cmd.Float("rate-limit"))
	}
	return sc
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Export the latest samples over HTTP",
		Description: `Poll the configured sources in the background and serve the latest values:

  GET /v1/metrics   converted metric sets (JSON)
  GET /v1/summary   SoC summary with host memory, swap and system power (JSON)
  GET /metrics      Prometheus exposition
  GET /health       liveness
  GET /ready        readiness, 503 until the first sample or when a source stopped

If no channel resolves the server still starts and reports "no data" on /ready.

Examples:
  iorstat serve
  iorstat --config iorstat.yaml serve --port 8080`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "address",
				Usage: "Listen address (default: all interfaces)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (default: configured port)",
			},
			&cli.FloatFlag{
				Name:  "rate-limit",
				Usage: "API requests per second (default: configured limit)",
			},
			sourceFlag,
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := selectSources(configFrom(ctx), cmd.StringSlice("source"))
			if err != nil {
				return err
			}
			ecfg, err := cfg.Engine(nil)
			if err != nil {
				return err
			}

			summarizer := newSummarizer(cmd, cfg)
			reg := prometheus.NewRegistry()
			exporter, err := sink.NewPrometheus(reg, summarizer)
			if err != nil {
				return err
			}
			latest := sink.NewLatest()

			gaugeReader := newGaugeReader(cmd)
			if err := reg.Register(sink.NewHostCollector(gaugeReader, defaults.HostReadTimeout)); err != nil {
				return fmt.Errorf("failed to register host collector: %w", err)
			}

			srv, err := server.New(serverConfig(cmd, cfg), latest,
				server.WithSummarizer(summarizer),
				server.WithHostGauges(gaugeReader),
				server.WithGatherer(prometheus.Gatherers{reg, prometheus.DefaultGatherer}))
			if err != nil {
				return err
			}

			eng, err := engine.New(ecfg, newReporter(cmd), sink.Fanout{latest, exporter})
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)

			if err := eng.Start(gctx); err != nil {
				if !errors.IsCode(err, errors.ErrCodeChannelResolution) {
					return err
				}
				slog.Error("no usable channels, serving without data", "error", err)
				for _, s := range ecfg.Sources {
					latest.OnTerminal(s.Name, err)
				}
			}

			g.Go(func() error {
				return srv.Start(gctx)
			})
			g.Go(func() error {
				<-gctx.Done()
				if err := eng.Stop(context.WithoutCancel(gctx)); err != nil {
					slog.Warn("engine did not stop cleanly", "error", err)
				}
				return nil
			})

			if err := g.Wait(); err != nil {
				return err
			}
			slog.Info("server stopped gracefully")
			return nil
		},
	}
}
