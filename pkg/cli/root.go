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
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/iorstat/iorstat/pkg/config"
	"github.com/iorstat/iorstat/pkg/logging"
)

const (
	name           = "iorstat"
	versionDefault = "dev"
)

// Exit codes.
const (
	exitError    = 1
	exitCanceled = 2
	exitNoData   = 3
)

var (
	// overridden during build with ldflags
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

type configKey struct{}

// Execute runs the root command with os.Args and exits on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var ec cli.ExitCoder
	switch {
	case stderrors.As(err, &ec):
		return ec.ExitCode()
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return exitCanceled
	default:
		return exitError
	}
}

func newRootCmd() *cli.Command {
	return &cli.Command{
		Name:                  name,
		Version:               fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		EnableShellCompletion: true,
		Usage:                 "Apple silicon power, residency and frequency sampler",
		Description: `iorstat samples the IOReport hardware counters of Apple silicon and turns
them into power (watts), state residency (percent) and event counts.

Commands:
  channels - list the channels of the configured groups
  sample   - average a short window of samples and print it
  watch    - print every sample until interrupted
  serve    - export the latest samples over HTTP`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file",
				Sources: cli.EnvVars("IORSTAT_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error)",
				Sources: cli.EnvVars(logging.EnvVarLogLevel),
			},
			&cli.BoolFlag{
				Name:  "simulate",
				Usage: "Use a simulated SoC instead of the hardware",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return ctx, err
			}
			if lvl := cmd.String("log-level"); lvl != "" {
				cfg.LogLevel = lvl
			}
			logging.SetDefaultStructuredLoggerWithLevel(name, version, cfg.LogLevel)
			slog.Debug("starting",
				"name", name,
				"version", version,
				"commit", commit,
				"date", date,
				"logLevel", cfg.LogLevel,
				"simulate", cmd.Bool("simulate"))
			return context.WithValue(ctx, configKey{}, cfg), nil
		},
		// Exit codes are mapped by Execute.
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Commands: []*cli.Command{
			channelsCmd(),
			sampleCmd(),
			watchCmd(),
			serveCmd(),
		},
	}
}

// configFrom returns the configuration loaded by the root command.
func configFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return config.Default()
}
