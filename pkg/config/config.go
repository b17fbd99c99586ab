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

package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/clock"

	"github.com/iorstat/iorstat/pkg/channel"
	"github.com/iorstat/iorstat/pkg/defaults"
	"github.com/iorstat/iorstat/pkg/engine"
	"github.com/iorstat/iorstat/pkg/errors"
	"github.com/iorstat/iorstat/pkg/host"
	"github.com/iorstat/iorstat/pkg/logging"
	"github.com/iorstat/iorstat/pkg/soc"
)

// Environment variables read by ApplyEnv.
const (
	EnvInterval       = "IORSTAT_INTERVAL"
	EnvMaxResubscribe = "IORSTAT_MAX_RESUBSCRIBE"
	EnvPort           = "PORT"
	EnvLogLevel       = logging.EnvVarLogLevel

	// DefaultDotEnv is loaded when present.
	DefaultDotEnv = ".env"
)

// Backoff spaces resubscription attempts.
type Backoff struct {
	Initial time.Duration `yaml:"initial"`
	Factor  float64       `yaml:"factor"`
	Jitter  float64       `yaml:"jitter"`
	Max     time.Duration `yaml:"max"`
}

// Source is a named list of channel groups ("Name" or "Name/SubGroup").
type Source struct {
	Name   string             `yaml:"name"`
	Groups []string           `yaml:"groups"`
	Scales map[string]float64 `yaml:"scales,omitempty"`
}

// Server configures the HTTP exporter.
type Server struct {
	Address        string  `yaml:"address"`
	Port           int     `yaml:"port"`
	RateLimit      float64 `yaml:"rateLimit"`
	RateLimitBurst int     `yaml:"rateLimitBurst"`
}

// Config is the complete iorstat configuration.
type Config struct {
	Interval               time.Duration `yaml:"interval"`
	MaxResubscribeAttempts int           `yaml:"maxResubscribeAttempts"`
	Backoff                Backoff       `yaml:"backoff"`
	StopTimeout            time.Duration `yaml:"stopTimeout"`
	Sources                []Source      `yaml:"sources"`
	// Frequencies overrides the DVFS tables read from the power manager.
	Frequencies *soc.FrequencyTables `yaml:"frequencies,omitempty"`
	Server      Server               `yaml:"server"`
	LogLevel    string               `yaml:"logLevel"`
}

// Default returns the built-in configuration.
func Default() *Config {
	groups := channel.DefaultGroups()
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.String()
	}
	return &Config{
		Interval:               defaults.PollInterval,
		MaxResubscribeAttempts: defaults.MaxResubscribeAttempts,
		Backoff: Backoff{
			Initial: defaults.ResubscribeInitialBackoff,
			Factor:  defaults.ResubscribeBackoffFactor,
			Jitter:  0.1,
			Max:     defaults.ResubscribeMaxBackoff,
		},
		StopTimeout: defaults.EngineStopTimeout,
		Sources:     []Source{{Name: engine.DefaultSource, Groups: names}},
		Server: Server{
			Port:           defaults.ServerPort,
			RateLimit:      defaults.ServerRateLimit,
			RateLimitBurst: defaults.ServerRateLimitBurst,
		},
		LogLevel: "info",
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then the .env file, then environment variables. The result is
// validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapWithContext(errors.ErrCodeInvalidRequest,
				"failed to read config file", err, map[string]any{"path": path})
		}
		if err := cfg.Decode(data); err != nil {
			return nil, errors.WrapWithContext(errors.ErrCodeInvalidRequest,
				"failed to parse config file", err, map[string]any{"path": path})
		}
	}

	if err := LoadDotEnv(DefaultDotEnv); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode overlays YAML data onto c. Unknown fields are rejected.
func (c *Config) Decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to decode yaml: %w", err)
	}
	return nil
}

// LoadDotEnv loads variables from the given .env files without overriding
// variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				continue
			}
			return errors.WrapWithContext(errors.ErrCodeInvalidRequest,
				"failed to load env file", err, map[string]any{"path": p})
		}
		slog.Debug("loaded env file", "path", p)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvInterval)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.WrapWithContext(errors.ErrCodeInvalidRequest,
				"invalid poll interval", err, map[string]any{"env": EnvInterval, "value": v})
		}
		c.Interval = d
	}
	if v := strings.TrimSpace(os.Getenv(EnvMaxResubscribe)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.WrapWithContext(errors.ErrCodeInvalidRequest,
				"invalid max resubscribe attempts", err, map[string]any{"env": EnvMaxResubscribe, "value": v})
		}
		c.MaxResubscribeAttempts = n
	}
	if v := strings.TrimSpace(os.Getenv(EnvPort)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.WrapWithContext(errors.ErrCodeInvalidRequest,
				"invalid port", err, map[string]any{"env": EnvPort, "value": v})
		}
		c.Server.Port = n
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := c.Engine(nil); err != nil {
		return err
	}
	for _, src := range c.Sources {
		if err := validateGroupMix(src); err != nil {
			return err
		}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.NewWithContext(errors.ErrCodeInvalidRequest,
			"server port out of range", map[string]any{"port": c.Server.Port})
	}
	if c.Server.RateLimit <= 0 || c.Server.RateLimitBurst <= 0 {
		return errors.New(errors.ErrCodeInvalidRequest, "server rate limit must be positive")
	}
	if c.Frequencies != nil {
		if err := c.Frequencies.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// validateGroupMix rejects a source that combines host groups with IOReport
// groups, since they cannot share one subscription.
func validateGroupMix(src Source) error {
	hostGroups := 0
	for _, g := range src.Groups {
		name, _, _ := strings.Cut(g, "/")
		if host.IsGroup(strings.TrimSpace(name)) {
			hostGroups++
		}
	}
	if hostGroups > 0 && hostGroups < len(src.Groups) {
		return errors.NewWithContext(errors.ErrCodeInvalidRequest,
			"source mixes host and IOReport channel groups",
			map[string]any{"source": src.Name, "groups": src.Groups})
	}
	return nil
}

// Engine converts the configuration to an engine config. clk may be nil for
// the real clock.
func (c *Config) Engine(clk clock.WithTicker) (engine.Config, error) {
	sources := make([]engine.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		groups, err := channel.ParseGroups(s.Groups)
		if err != nil {
			return engine.Config{}, err
		}
		sources = append(sources, engine.Source{Name: s.Name, Groups: groups, Scales: s.Scales})
	}

	ec := engine.Config{
		Sources:                sources,
		Interval:               c.Interval,
		MaxResubscribeAttempts: c.MaxResubscribeAttempts,
		Backoff: wait.Backoff{
			Duration: c.Backoff.Initial,
			Factor:   c.Backoff.Factor,
			Jitter:   c.Backoff.Jitter,
			Steps:    c.MaxResubscribeAttempts,
			Cap:      c.Backoff.Max,
		},
		StopTimeout: c.StopTimeout,
		Clock:       clk,
	}
	if err := ec.Validate(); err != nil {
		return engine.Config{}, err
	}
	return ec, nil
}

// RateLimit returns the server rate limit.
func (c *Config) RateLimit() rate.Limit {
	return rate.Limit(c.Server.RateLimit)
}
