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

package channel

import (
	stderrors "errors"
	"log/slog"

	"github.com/iorstat/iorstat/pkg/errors"
	"github.com/iorstat/iorstat/pkg/ioreport"
)

// Catalog resolves channel groups against a Reporter.
type Catalog struct {
	reporter ioreport.Reporter
}

// NewCatalog returns a Catalog backed by reporter.
func NewCatalog(reporter ioreport.Reporter) *Catalog {
	return &Catalog{reporter: reporter}
}

// Reporter returns the reporter the catalog resolves against.
func (c *Catalog) Reporter() ioreport.Reporter {
	return c.reporter
}

// ResolveGroup enumerates the channels of one group. The returned OS set is
// owned by the caller.
func (c *Catalog) ResolveGroup(g Group) ([]Descriptor, ioreport.ChannelSet, error) {
	if g.Name == "" {
		return nil, nil, errors.New(errors.ErrCodeInvalidRequest, "channel group name is empty")
	}

	native, err := c.reporter.CopyChannelsInGroup(g.Name, g.SubGroup)
	if err != nil {
		return nil, nil, errors.WrapWithContext(errors.ErrCodeChannelResolution,
			"failed to enumerate channel group", err, map[string]any{"group": g.String()})
	}

	var descs []Descriptor
	seen := make(map[string]struct{})
	skipped := 0
	for _, info := range native.Channels() {
		d, ok := descriptorFrom(info)
		if !ok {
			skipped++
			continue
		}
		if _, dup := seen[d.Key()]; dup {
			continue
		}
		seen[d.Key()] = struct{}{}
		descs = append(descs, d)
	}
	if skipped > 0 {
		slog.Debug("skipped channels with unsupported format",
			"group", g.String(), "count", skipped)
	}

	if len(descs) == 0 {
		release(native)
		return nil, nil, errors.NewWithContext(errors.ErrCodeChannelResolution,
			"channel group has no usable channels", map[string]any{"group": g.String()})
	}
	return descs, native, nil
}

// Resolve resolves every group and merges them into one Set. Groups that
// cannot be resolved are skipped with a warning; Resolve fails only when no
// group resolves.
func (c *Catalog) Resolve(groups ...Group) (*Set, error) {
	if len(groups) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "at least one channel group is required")
	}

	var (
		merged   ioreport.ChannelSet
		descs    []Descriptor
		resolved []Group
		failures []error
	)

	for _, g := range groups {
		gd, native, err := c.ResolveGroup(g)
		if err != nil {
			if !errors.IsCode(err, errors.ErrCodeChannelResolution) {
				release(merged)
				return nil, err
			}
			slog.Warn("skipping unavailable channel group",
				"group", g.String(), "error", err)
			failures = append(failures, err)
			continue
		}

		if merged == nil {
			merged = native
		} else {
			m, err := c.reporter.MergeChannels(merged, native)
			if err != nil {
				release(native)
				release(merged)
				return nil, errors.WrapWithContext(errors.ErrCodeChannelResolution,
					"failed to merge channel group", err, map[string]any{"group": g.String()})
			}
			merged = m
		}
		descs = append(descs, gd...)
		resolved = append(resolved, g)
	}

	if merged == nil {
		return nil, errors.WrapWithContext(errors.ErrCodeChannelResolution,
			"no channel group could be resolved", stderrors.Join(failures...),
			map[string]any{"groups": len(groups)})
	}

	set := NewSet(resolved, descs, merged)
	slog.Debug("resolved channel set",
		"groups", len(resolved),
		"channels", set.Len(),
		"fingerprint", set.Fingerprint())
	return set, nil
}

func release(set ioreport.ChannelSet) {
	if r, ok := set.(ioreport.Releaser); ok {
		r.Release()
	}
}
