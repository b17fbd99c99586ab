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
	"testing"
	"time"

	"github.com/iorstat/iorstat/pkg/defaults"
)

func TestParseConfig(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "")
		cfg := parseConfig()

		if cfg.Port != defaults.ServerPort {
			t.Errorf("expected port %d, got %d", defaults.ServerPort, cfg.Port)
		}
		if cfg.RateLimit != defaults.ServerRateLimit {
			t.Errorf("expected rate limit %d, got %v", defaults.ServerRateLimit, cfg.RateLimit)
		}
		if cfg.RateLimitBurst != defaults.ServerRateLimitBurst {
			t.Errorf("expected rate limit burst %d, got %d", defaults.ServerRateLimitBurst, cfg.RateLimitBurst)
		}
		if cfg.ReadHeaderTimeout != defaults.ServerReadHeaderTimeout {
			t.Errorf("expected read header timeout %v, got %v", defaults.ServerReadHeaderTimeout, cfg.ReadHeaderTimeout)
		}
		if cfg.ShutdownTimeout != defaults.ServerShutdownTimeout {
			t.Errorf("expected shutdown timeout %v, got %v", defaults.ServerShutdownTimeout, cfg.ShutdownTimeout)
		}
		if cfg.Addr() != ":9090" {
			t.Errorf("expected addr :9090, got %s", cfg.Addr())
		}
	})

	t.Run("shutdown timeout from environment", func(t *testing.T) {
		t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "45")

		cfg := parseConfig()

		if cfg.ShutdownTimeout != 45*time.Second {
			t.Errorf("expected shutdown timeout 45s, got %v", cfg.ShutdownTimeout)
		}
	})

	t.Run("invalid shutdown timeout uses default", func(t *testing.T) {
		t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "-3")

		cfg := parseConfig()

		if cfg.ShutdownTimeout != defaults.ServerShutdownTimeout {
			t.Errorf("expected default shutdown timeout, got %v", cfg.ShutdownTimeout)
		}
	})
}
