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

//go:build !darwin || !cgo

package ioreport

import "fmt"

type reporter struct{}

// NewReporter returns a Reporter for which no channel group is available.
func NewReporter() Reporter {
	return reporter{}
}

func (reporter) CopyChannelsInGroup(group, subGroup string) (ChannelSet, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, Key(group, subGroup, ""))
}

func (reporter) MergeChannels(_, _ ChannelSet) (ChannelSet, error) {
	return nil, ErrUnsupported
}

func (reporter) CreateSubscription(_ ChannelSet) (Subscription, error) {
	return nil, ErrUnsupported
}
