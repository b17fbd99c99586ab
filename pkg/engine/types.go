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

package engine

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/clock"

	"github.com/iorstat/iorstat/pkg/channel"
	"github.com/iorstat/iorstat/pkg/defaults"
	"github.com/iorstat/iorstat/pkg/errors"
	"github.com/iorstat/iorstat/pkg/measurement"
)

// DefaultSource is the name of the source built from the default groups.
const DefaultSource = "soc"

// State is the lifecycle state of a source.
type State int

const (
	StateIdle State = iota
	StateSubscribed
	StateSampling
	StateResubscribing
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribed:
		return "subscribed"
	case StateSampling:
		return "sampling"
	case StateResubscribing:
		return "resubscribing"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Consumer receives engine output. Calls for one source are sequential;
// calls for different sources may be concurrent.
type Consumer interface {
	// OnMetrics is called once per completed poll cycle.
	OnMetrics(ctx context.Context, set measurement.MetricSet)
	// OnTerminal is called when a source stops because of an error.
	OnTerminal(source string, err error)
}

// ConsumerFuncs adapts functions to a Consumer. Nil functions are skipped.
type ConsumerFuncs struct {
	Metrics  func(ctx context.Context, set measurement.MetricSet)
	Terminal func(source string, err error)
}

// OnMetrics implements Consumer.
func (f ConsumerFuncs) OnMetrics(ctx context.Context, set measurement.MetricSet) {
	if f.Metrics != nil {
		f.Metrics(ctx, set)
	}
}

// OnTerminal implements Consumer.
func (f ConsumerFuncs) OnTerminal(source string, err error) {
	if f.Terminal != nil {
		f.Terminal(source, err)
	}
}

// Source is a named group of channels polled together.
type Source struct {
	Name   string
	Groups []channel.Group
	// Scales multiplies count metrics, keyed by channel key or name.
	Scales map[string]float64
}

// Config configures an Engine.
type Config struct {
	Sources []Source

	// Interval is the poll period of every source.
	Interval time.Duration

	// MaxResubscribeAttempts caps consecutive resubscription attempts after a
	// stale subscription.
	MaxResubscribeAttempts int

	// Backoff spaces resubscription attempts. Steps is ignored in favor of
	// MaxResubscribeAttempts.
	Backoff wait.Backoff

	// StopTimeout bounds how long Stop waits for in-flight polls.
	StopTimeout time.Duration

	// Clock drives tickers and sample timestamps. Defaults to the real clock.
	Clock clock.WithTicker
}

// DefaultConfig returns a config polling the default groups once a second.
func DefaultConfig() Config {
	return Config{
		Sources: []Source{{
			Name:   DefaultSource,
			Groups: channel.DefaultGroups(),
		}},
		Interval:               defaults.PollInterval,
		MaxResubscribeAttempts: defaults.MaxResubscribeAttempts,
		Backoff:                DefaultBackoff(),
		StopTimeout:            defaults.EngineStopTimeout,
	}
}

// DefaultBackoff returns the resubscription backoff.
func DefaultBackoff() wait.Backoff {
	return wait.Backoff{
		Duration: defaults.ResubscribeInitialBackoff,
		Factor:   defaults.ResubscribeBackoffFactor,
		Jitter:   0.1,
		Steps:    defaults.MaxResubscribeAttempts,
		Cap:      defaults.ResubscribeMaxBackoff,
	}
}

// Validate checks the config.
func (c Config) Validate() error {
	if len(c.Sources) == 0 {
		return errors.New(errors.ErrCodeInvalidRequest, "at least one source is required")
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for _, s := range c.Sources {
		if s.Name == "" {
			return errors.New(errors.ErrCodeInvalidRequest, "source name is required")
		}
		if _, dup := seen[s.Name]; dup {
			return errors.NewWithContext(errors.ErrCodeInvalidRequest,
				"duplicate source name", map[string]any{"source": s.Name})
		}
		seen[s.Name] = struct{}{}
		if len(s.Groups) == 0 {
			return errors.NewWithContext(errors.ErrCodeInvalidRequest,
				"source has no channel groups", map[string]any{"source": s.Name})
		}
	}
	if c.Interval < defaults.MinPollInterval {
		return errors.NewWithContext(errors.ErrCodeInvalidRequest,
			"poll interval is too short",
			map[string]any{"interval": c.Interval.String(), "minimum": defaults.MinPollInterval.String()})
	}
	if c.MaxResubscribeAttempts < 1 {
		return errors.NewWithContext(errors.ErrCodeInvalidRequest,
			"max resubscribe attempts must be at least 1",
			map[string]any{"attempts": c.MaxResubscribeAttempts})
	}
	if c.Backoff.Duration < 0 || c.Backoff.Factor < 0 || c.Backoff.Jitter < 0 {
		return errors.New(errors.ErrCodeInvalidRequest, "resubscribe backoff must not be negative")
	}
	if c.StopTimeout <= 0 {
		return errors.New(errors.ErrCodeInvalidRequest, "stop timeout must be positive")
	}
	return nil
}
