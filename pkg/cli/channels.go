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
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/iorstat/iorstat/pkg/channel"
	"github.com/iorstat/iorstat/pkg/header"
	"github.com/iorstat/iorstat/pkg/host"
	"github.com/iorstat/iorstat/pkg/serializer"
)

// channelTable renders descriptors as columns.
type channelTable []channel.Descriptor

// kindLabel returns "Simple" or "State Residency".
func kindLabel(k channel.Kind) string {
	return cases.Title(language.English).String(strings.ReplaceAll(k.String(), "-", " "))
}

func (t channelTable) TableHeader() []string {
	return []string{"GROUP", "SUBGROUP", "CHANNEL", "UNIT", "KIND"}
}

func (t channelTable) TableRows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, d := range t {
		rows = append(rows, []string{d.Group, d.SubGroup, d.Name, d.Unit, kindLabel(d.Kind)})
	}
	return rows
}

func channelsCmd() *cli.Command {
	return &cli.Command{
		Name:  "channels",
		Usage: "List the channels of the configured groups",
		Description: `Resolve the channel groups of the configured sources and list every
channel with its unit and kind. Groups that do not resolve are skipped.
The host groups "Network" and "Disk" list byte counters per interface and
per drive.

Examples:
  iorstat channels
  iorstat channels --group "Energy Model" --format json
  iorstat --simulate channels --group "CPU Stats/CPU Core Performance States"
  iorstat channels --group Network --group Disk`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "group",
				Aliases: []string{"g"},
				Usage:   `Channel group to list, "Name" or "Name/SubGroup" (default: configured sources)`,
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

			groups, err := channel.ParseGroups(cmd.StringSlice("group"))
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				cfg, err := selectSources(configFrom(ctx), cmd.StringSlice("source"))
				if err != nil {
					return err
				}
				if groups, err = groupsOf(cfg); err != nil {
					return err
				}
			}

			descs, err := resolveChannels(channel.NewCatalog(newReporter(cmd)), groups)
			if err != nil {
				return noData(err)
			}

			w := serializer.NewFileWriterOrStdout(outFormat, cmd.String("output"))
			defer closeWriter(w)

			if err := w.Serialize(ctx, newDocument(header.KindChannelList, channelTable(descs))); err != nil {
				return fmt.Errorf("failed to write channels: %w", err)
			}
			return nil
		},
	}
}

// resolveChannels resolves host and IOReport groups separately, since their
// channels cannot be merged into one set, and lists IOReport channels first.
func resolveChannels(catalog *channel.Catalog, groups []channel.Group) ([]channel.Descriptor, error) {
	var native, hosted []channel.Group
	for _, g := range groups {
		if host.IsGroup(g.Name) {
			hosted = append(hosted, g)
		} else {
			native = append(native, g)
		}
	}

	var (
		descs []channel.Descriptor
		errs  []error
	)
	for _, batch := range [][]channel.Group{native, hosted} {
		if len(batch) == 0 {
			continue
		}
		set, err := catalog.Resolve(batch...)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		descs = append(descs, set.Descriptors...)
		set.Release()
	}
	if len(descs) == 0 {
		return nil, stderrors.Join(errs...)
	}
	return descs, nil
}
