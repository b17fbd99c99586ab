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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iorstat/iorstat/pkg/errors"
	"github.com/iorstat/iorstat/pkg/ioreport"
	"github.com/iorstat/iorstat/pkg/ioreport/fake"
)

func TestParseGroup(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Group
		wantErr bool
	}{
		{name: "group only", input: "Energy Model", want: Group{Name: "Energy Model"}},
		{name: "group and subgroup", input: "CPU Stats/CPU Core Performance States",
			want: Group{Name: "CPU Stats", SubGroup: "CPU Core Performance States"}},
		{name: "trims spaces", input: " GPU Stats / GPU Performance States ",
			want: Group{Name: "GPU Stats", SubGroup: "GPU Performance States"}},
		{name: "empty", input: "", wantErr: true},
		{name: "subgroup only", input: "/x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGroup(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) Group {
	t.Helper()
	g, err := ParseGroup(s)
	require.NoError(t, err)
	return g
}

func TestResolveGroup(t *testing.T) {
	cat := NewCatalog(fake.Simulated())

	descs, native, err := cat.ResolveGroup(Group{Name: fake.GroupEnergy})
	require.NoError(t, err)
	require.NotNil(t, native)
	require.Len(t, descs, 5)
	for _, d := range descs {
		assert.Equal(t, KindSimple, d.Kind)
		assert.Equal(t, fake.GroupEnergy, d.Group)
	}

	descs, _, err = cat.ResolveGroup(Group{Name: fake.GroupGPU, SubGroup: fake.SubGroupGPU})
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, KindStateResidency, descs[0].Kind)

	_, _, err = cat.ResolveGroup(Group{Name: "Missing"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeChannelResolution))
	assert.ErrorIs(t, err, ioreport.ErrNoChannels)
}

func TestResolve(t *testing.T) {
	t.Run("all default groups", func(t *testing.T) {
		cat := NewCatalog(fake.Simulated())
		set, err := cat.Resolve(DefaultGroups()...)
		require.NoError(t, err)
		defer set.Release()

		// 5 energy + 2 cluster + 8 core + 1 gpu
		assert.Equal(t, 16, set.Len())
		assert.Len(t, set.Groups, 4)
		assert.Len(t, set.Native().Channels(), 16)
		assert.NotEmpty(t, set.Fingerprint())
	})

	t.Run("skips unavailable groups", func(t *testing.T) {
		cat := NewCatalog(fake.Simulated())
		set, err := cat.Resolve(Group{Name: "Missing"}, Group{Name: fake.GroupEnergy})
		require.NoError(t, err)
		assert.Equal(t, 5, set.Len())
		assert.Equal(t, []Group{{Name: fake.GroupEnergy}}, set.Groups)
	})

	t.Run("deduplicates overlapping groups", func(t *testing.T) {
		cat := NewCatalog(fake.Simulated())
		set, err := cat.Resolve(
			Group{Name: fake.GroupCPU},
			Group{Name: fake.GroupCPU, SubGroup: fake.SubGroupClust},
		)
		require.NoError(t, err)
		assert.Equal(t, 10, set.Len())

		seen := map[string]bool{}
		for _, d := range set.Descriptors {
			assert.False(t, seen[d.Key()], "duplicate %s", d.Key())
			seen[d.Key()] = true
		}
	})

	t.Run("none resolve", func(t *testing.T) {
		cat := NewCatalog(fake.Simulated())
		_, err := cat.Resolve(Group{Name: "A"}, Group{Name: "B"})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeChannelResolution))
	})

	t.Run("no groups", func(t *testing.T) {
		_, err := NewCatalog(fake.Simulated()).Resolve()
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidRequest))
	})
}

func TestSetFingerprint(t *testing.T) {
	a := []Descriptor{
		{Group: "g", Name: "a", Kind: KindSimple},
		{Group: "g", Name: "b", Kind: KindSimple},
	}
	b := []Descriptor{a[1], a[0]}

	s1 := NewSet(nil, a, nil)
	s2 := NewSet(nil, a, nil)
	s3 := NewSet(nil, b, nil)

	assert.Equal(t, s1.Fingerprint(), s2.Fingerprint())
	assert.NotEqual(t, s1.Fingerprint(), s3.Fingerprint())

	i, ok := s3.Index(a[0].Key())
	require.True(t, ok)
	assert.Equal(t, 1, i)

	dup := NewSet(nil, append(a, a[0]), nil)
	assert.Equal(t, 2, dup.Len())
	assert.Equal(t, s1.Fingerprint(), dup.Fingerprint())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "simple", KindSimple.String())
	assert.Equal(t, "state-residency", KindStateResidency.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
