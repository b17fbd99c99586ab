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
	"fmt"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/iorstat/iorstat/pkg/errors"
	"github.com/iorstat/iorstat/pkg/ioreport"
)

// Kind is the value layout of a channel.
type Kind int

const (
	// KindSimple channels carry a single scalar counter.
	KindSimple Kind = iota + 1
	// KindStateResidency channels carry a residency counter per named state.
	KindStateResidency
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindStateResidency:
		return "state-residency"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Group identifies a channel group and optional subgroup.
type Group struct {
	Name     string `json:"name" yaml:"name"`
	SubGroup string `json:"subGroup,omitempty" yaml:"subGroup,omitempty"`
}

// String renders the group as "Name" or "Name/SubGroup".
func (g Group) String() string {
	if g.SubGroup == "" {
		return g.Name
	}
	return g.Name + "/" + g.SubGroup
}

// ParseGroup parses "Name" or "Name/SubGroup".
func ParseGroup(s string) (Group, error) {
	name, sub, _ := strings.Cut(s, "/")
	name = strings.TrimSpace(name)
	sub = strings.TrimSpace(sub)
	if name == "" {
		return Group{}, errors.NewWithContext(errors.ErrCodeInvalidRequest,
			"channel group name is empty", map[string]any{"group": s})
	}
	return Group{Name: name, SubGroup: sub}, nil
}

// ParseGroups parses a list of group expressions.
func ParseGroups(items []string) ([]Group, error) {
	groups := make([]Group, 0, len(items))
	for _, item := range items {
		g, err := ParseGroup(item)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// DefaultGroups returns the groups needed for SoC power and residency metrics.
func DefaultGroups() []Group {
	return []Group{
		{Name: "Energy Model"},
		{Name: "CPU Stats", SubGroup: "CPU Complex Performance States"},
		{Name: "CPU Stats", SubGroup: "CPU Core Performance States"},
		{Name: "GPU Stats", SubGroup: "GPU Performance States"},
	}
}

// Descriptor is one addressable counter stream.
type Descriptor struct {
	Group    string `json:"group" yaml:"group"`
	SubGroup string `json:"subGroup,omitempty" yaml:"subGroup,omitempty"`
	Name     string `json:"name" yaml:"name"`
	Unit     string `json:"unit,omitempty" yaml:"unit,omitempty"`
	Kind     Kind   `json:"kind" yaml:"kind"`
}

// Key returns the descriptor identity.
func (d Descriptor) Key() string {
	return ioreport.Key(d.Group, d.SubGroup, d.Name)
}

// descriptorFrom maps an OS channel to a descriptor. Channels in formats the
// engine does not interpret are skipped.
func descriptorFrom(info ioreport.ChannelInfo) (Descriptor, bool) {
	d := Descriptor{
		Group:    info.Group,
		SubGroup: info.SubGroup,
		Name:     info.Name,
		Unit:     strings.TrimSpace(info.Unit),
	}
	switch info.Format {
	case ioreport.FormatSimple:
		d.Kind = KindSimple
	case ioreport.FormatState:
		d.Kind = KindStateResidency
	default:
		return Descriptor{}, false
	}
	return d, true
}

// Set is an ordered, deduplicated channel set bound to the OS channel set it
// was resolved from.
type Set struct {
	Groups      []Group
	Descriptors []Descriptor

	native      ioreport.ChannelSet
	index       map[string]int
	fingerprint string
	release     sync.Once
}

// NewSet builds a Set. Descriptors are deduplicated by key, first wins.
func NewSet(groups []Group, descriptors []Descriptor, native ioreport.ChannelSet) *Set {
	s := &Set{
		Groups: append([]Group(nil), groups...),
		native: native,
		index:  make(map[string]int, len(descriptors)),
	}

	h := xxhash.New()
	for _, d := range descriptors {
		key := d.Key()
		if _, dup := s.index[key]; dup {
			continue
		}
		s.index[key] = len(s.Descriptors)
		s.Descriptors = append(s.Descriptors, d)
		_, _ = h.WriteString(key)
		_, _ = h.WriteString("\x00")
	}
	s.fingerprint = fmt.Sprintf("%016x", h.Sum64())
	return s
}

// Fingerprint identifies the ordered channel set. Samples are comparable only
// when their fingerprints match.
func (s *Set) Fingerprint() string {
	return s.fingerprint
}

// Native returns the OS channel set used to open subscriptions.
func (s *Set) Native() ioreport.ChannelSet {
	return s.native
}

// Index returns the position of the descriptor with the given key.
func (s *Set) Index(key string) (int, bool) {
	i, ok := s.index[key]
	return i, ok
}

// Len returns the number of descriptors.
func (s *Set) Len() int {
	return len(s.Descriptors)
}

// Release frees the OS channel set. Safe to call more than once.
func (s *Set) Release() {
	s.release.Do(func() {
		if r, ok := s.native.(ioreport.Releaser); ok {
			r.Release()
		}
	})
}
