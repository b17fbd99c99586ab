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

package header

import "time"

// APIVersion is the schema version of every iorstat document.
const APIVersion = "iorstat.io/v1"

// Kind represents the type of an iorstat document.
type Kind string

// Valid Kind constants for all iorstat document types.
const (
	KindChannelList   Kind = "ChannelList"
	KindMetricReport  Kind = "MetricReport"
	KindSummaryReport Kind = "SummaryReport"
)

// Metadata keys set by New.
const (
	MetadataCreated = "created"
	MetadataVersion = "version"
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid checks if the Kind is one of the recognized kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindChannelList, KindMetricReport, KindSummaryReport:
		return true
	default:
		return false
	}
}

// Option is a functional option for configuring Header instances.
type Option func(*Header)

// WithMetadata adds a metadata key-value pair.
func WithMetadata(key, value string) Option {
	return func(h *Header) {
		if h.Metadata == nil {
			h.Metadata = make(map[string]string)
		}
		h.Metadata[key] = value
	}
}

// WithVersion records the tool version.
func WithVersion(version string) Option {
	return WithMetadata(MetadataVersion, version)
}

// WithCreated overrides the creation time.
func WithCreated(t time.Time) Option {
	return WithMetadata(MetadataCreated, t.UTC().Format(time.RFC3339))
}

// New creates a header of kind stamped with the current time.
func New(kind Kind, opts ...Option) Header {
	h := Header{
		Kind:       kind,
		APIVersion: APIVersion,
		Metadata: map[string]string{
			MetadataCreated: time.Now().UTC().Format(time.RFC3339),
		},
	}

	for _, opt := range opts {
		opt(&h)
	}

	return h
}

// Header identifies a document with Kubernetes-style Kind, APIVersion and
// Metadata fields.
type Header struct {
	Kind       Kind              `json:"kind,omitempty" yaml:"kind,omitempty"`
	APIVersion string            `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}
