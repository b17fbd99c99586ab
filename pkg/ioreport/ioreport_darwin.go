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

//go:build darwin && cgo

package ioreport

/*
#cgo LDFLAGS: -framework CoreFoundation -framework IOKit -lIOReport
#include <CoreFoundation/CoreFoundation.h>
#include <stdint.h>
#include <stdlib.h>

typedef struct IOReportSubscriptionRef* IOReportSubscriptionRef;

extern CFDictionaryRef IOReportCopyChannelsInGroup(CFStringRef group, CFStringRef subgroup, uint64_t a, uint64_t b, uint64_t c);
extern void IOReportMergeChannels(CFDictionaryRef a, CFDictionaryRef b, CFTypeRef unused);
extern IOReportSubscriptionRef IOReportCreateSubscription(void* a, CFMutableDictionaryRef channels, CFMutableDictionaryRef* out, uint64_t d, CFTypeRef e);
extern CFDictionaryRef IOReportCreateSamples(IOReportSubscriptionRef sub, CFMutableDictionaryRef channels, CFTypeRef unused);
extern int32_t IOReportChannelGetFormat(CFDictionaryRef item);
extern int64_t IOReportSimpleGetIntegerValue(CFDictionaryRef item, int32_t idx);
extern CFStringRef IOReportChannelGetGroup(CFDictionaryRef item);
extern CFStringRef IOReportChannelGetSubGroup(CFDictionaryRef item);
extern CFStringRef IOReportChannelGetChannelName(CFDictionaryRef item);
extern CFStringRef IOReportChannelGetUnitLabel(CFDictionaryRef item);
extern int32_t IOReportStateGetCount(CFDictionaryRef item);
extern CFStringRef IOReportStateGetNameForIndex(CFDictionaryRef item, int32_t idx);
extern int64_t IOReportStateGetResidency(CFDictionaryRef item, int32_t idx);

static CFStringRef ior_cfstring(const char *s) {
	if (s == NULL) {
		return NULL;
	}
	return CFStringCreateWithCString(kCFAllocatorDefault, s, kCFStringEncodingUTF8);
}

// ior_cstring returns a malloc'd UTF-8 copy of s or NULL.
static char *ior_cstring(CFStringRef s) {
	if (s == NULL) {
		return NULL;
	}
	CFIndex max = CFStringGetMaximumSizeForEncoding(CFStringGetLength(s), kCFStringEncodingUTF8) + 1;
	char *buf = malloc(max);
	if (buf == NULL) {
		return NULL;
	}
	if (!CFStringGetCString(s, buf, max, kCFStringEncodingUTF8)) {
		free(buf);
		return NULL;
	}
	return buf;
}

static CFMutableDictionaryRef ior_copy_group(const char *group, const char *subgroup) {
	CFStringRef g = ior_cfstring(group);
	CFStringRef sg = ior_cfstring(subgroup);
	CFDictionaryRef chan = IOReportCopyChannelsInGroup(g, sg, 0, 0, 0);
	if (g != NULL) {
		CFRelease(g);
	}
	if (sg != NULL) {
		CFRelease(sg);
	}
	if (chan == NULL) {
		return NULL;
	}
	CFMutableDictionaryRef copy = CFDictionaryCreateMutableCopy(kCFAllocatorDefault, CFDictionaryGetCount(chan), chan);
	CFRelease(chan);
	return copy;
}

static void ior_merge(CFMutableDictionaryRef dst, CFMutableDictionaryRef src) {
	IOReportMergeChannels(dst, src, NULL);
}

static CFArrayRef ior_items(CFDictionaryRef d) {
	if (d == NULL) {
		return NULL;
	}
	CFTypeRef v = CFDictionaryGetValue(d, CFSTR("IOReportChannels"));
	if (v == NULL || CFGetTypeID(v) != CFArrayGetTypeID()) {
		return NULL;
	}
	return (CFArrayRef)v;
}

static int ior_item_count(CFDictionaryRef d) {
	CFArrayRef a = ior_items(d);
	return a == NULL ? 0 : (int)CFArrayGetCount(a);
}

static CFDictionaryRef ior_item_at(CFDictionaryRef d, int i) {
	return (CFDictionaryRef)CFArrayGetValueAtIndex(ior_items(d), i);
}

static void ior_item_info(CFDictionaryRef item, char **group, char **subgroup, char **name, char **unit, int32_t *format) {
	*group = ior_cstring(IOReportChannelGetGroup(item));
	*subgroup = ior_cstring(IOReportChannelGetSubGroup(item));
	*name = ior_cstring(IOReportChannelGetChannelName(item));
	*unit = ior_cstring(IOReportChannelGetUnitLabel(item));
	*format = IOReportChannelGetFormat(item);
}

static int64_t ior_simple_value(CFDictionaryRef item) {
	return IOReportSimpleGetIntegerValue(item, 0);
}

static int32_t ior_state_count(CFDictionaryRef item) {
	return IOReportStateGetCount(item);
}

static char *ior_state_name(CFDictionaryRef item, int32_t i) {
	return ior_cstring(IOReportStateGetNameForIndex(item, i));
}

static int64_t ior_state_residency(CFDictionaryRef item, int32_t i) {
	return IOReportStateGetResidency(item, i);
}

static IOReportSubscriptionRef ior_subscribe(CFMutableDictionaryRef chan, CFMutableDictionaryRef *out) {
	return IOReportCreateSubscription(NULL, chan, out, 0, NULL);
}

static CFDictionaryRef ior_sample(IOReportSubscriptionRef sub, CFMutableDictionaryRef chan) {
	return IOReportCreateSamples(sub, chan, NULL);
}

static void ior_release_dict(CFDictionaryRef d) {
	if (d != NULL) {
		CFRelease(d);
	}
}

static void ior_release_mdict(CFMutableDictionaryRef d) {
	if (d != NULL) {
		CFRelease(d);
	}
}

static void ior_release_sub(IOReportSubscriptionRef s) {
	if (s != NULL) {
		CFRelease((CFTypeRef)s);
	}
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

const (
	kIOReportFormatSimple = 1
	kIOReportFormatState  = 2
)

type reporter struct{}

// NewReporter returns the IOReport-backed Reporter.
func NewReporter() Reporter {
	return &reporter{}
}

// channelSet owns a mutable IOReport channel dictionary.
type channelSet struct {
	ref   C.CFMutableDictionaryRef
	infos []ChannelInfo
}

func (s *channelSet) Channels() []ChannelInfo {
	return append([]ChannelInfo(nil), s.infos...)
}

// Release frees the channel dictionary.
func (s *channelSet) Release() {
	if s.ref != 0 {
		C.ior_release_mdict(s.ref)
		s.ref = 0
	}
}

func (r *reporter) CopyChannelsInGroup(group, subGroup string) (ChannelSet, error) {
	cGroup := C.CString(group)
	defer C.free(unsafe.Pointer(cGroup))

	var cSubGroup *C.char
	if subGroup != "" {
		cSubGroup = C.CString(subGroup)
		defer C.free(unsafe.Pointer(cSubGroup))
	}

	ref := C.ior_copy_group(cGroup, cSubGroup)
	if ref == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoChannels, Key(group, subGroup, ""))
	}

	set := &channelSet{ref: ref, infos: readInfos(C.CFDictionaryRef(ref))}
	if len(set.infos) == 0 {
		set.Release()
		return nil, fmt.Errorf("%w: %s", ErrNoChannels, Key(group, subGroup, ""))
	}
	return set, nil
}

// MergeChannels merges src into dst in place and returns dst. src is
// released because IOReport retains the merged entries.
func (r *reporter) MergeChannels(dst, src ChannelSet) (ChannelSet, error) {
	d, ok := dst.(*channelSet)
	if !ok {
		return nil, fmt.Errorf("ioreport: foreign channel set %T", dst)
	}
	s, ok := src.(*channelSet)
	if !ok {
		return nil, fmt.Errorf("ioreport: foreign channel set %T", src)
	}

	C.ior_merge(d.ref, s.ref)
	s.Release()
	d.infos = readInfos(C.CFDictionaryRef(d.ref))
	return d, nil
}

func (r *reporter) CreateSubscription(set ChannelSet) (Subscription, error) {
	cs, ok := set.(*channelSet)
	if !ok {
		return nil, fmt.Errorf("ioreport: foreign channel set %T", set)
	}
	if cs.ref == 0 {
		return nil, fmt.Errorf("ioreport: channel set already released")
	}

	var out C.CFMutableDictionaryRef
	sub := C.ior_subscribe(cs.ref, &out)
	if sub == nil {
		C.ior_release_mdict(out)
		return nil, fmt.Errorf("ioreport: IOReportCreateSubscription refused %d channels", len(cs.infos))
	}
	if out == 0 {
		C.ior_release_sub(sub)
		return nil, fmt.Errorf("ioreport: IOReportCreateSubscription returned no channels")
	}

	return &subscription{
		sub:   sub,
		chans: out,
		infos: readInfos(C.CFDictionaryRef(out)),
	}, nil
}

type subscription struct {
	sub   C.IOReportSubscriptionRef
	chans C.CFMutableDictionaryRef
	infos []ChannelInfo
}

func (s *subscription) Channels() []ChannelInfo {
	return append([]ChannelInfo(nil), s.infos...)
}

func (s *subscription) Sample() (*RawSample, error) {
	if s.sub == nil {
		return nil, ErrReleased
	}

	ref := C.ior_sample(s.sub, s.chans)
	if ref == 0 {
		return nil, ErrStale
	}
	defer C.ior_release_dict(ref)

	n := int(C.ior_item_count(ref))
	out := &RawSample{Values: make([]RawValue, 0, n)}
	for i := 0; i < n; i++ {
		item := C.ior_item_at(ref, C.int(i))
		v := RawValue{Channel: readInfo(item)}

		switch v.Channel.Format {
		case FormatSimple:
			v.Value = int64(C.ior_simple_value(item))
		case FormatState:
			count := int(C.ior_state_count(item))
			v.States = make([]StateValue, 0, count)
			for j := 0; j < count; j++ {
				v.States = append(v.States, StateValue{
					Name:      goString(C.ior_state_name(item, C.int32_t(j))),
					Residency: int64(C.ior_state_residency(item, C.int32_t(j))),
				})
			}
		case FormatUnknown:
		}
		out.Values = append(out.Values, v)
	}
	return out, nil
}

func (s *subscription) Release() {
	if s.sub != nil {
		C.ior_release_sub(s.sub)
		s.sub = nil
	}
	if s.chans != 0 {
		C.ior_release_mdict(s.chans)
		s.chans = 0
	}
}

func readInfos(d C.CFDictionaryRef) []ChannelInfo {
	n := int(C.ior_item_count(d))
	infos := make([]ChannelInfo, 0, n)
	for i := 0; i < n; i++ {
		infos = append(infos, readInfo(C.ior_item_at(d, C.int(i))))
	}
	return infos
}

func readInfo(item C.CFDictionaryRef) ChannelInfo {
	var group, subGroup, name, unit *C.char
	var format C.int32_t
	C.ior_item_info(item, &group, &subGroup, &name, &unit, &format)

	info := ChannelInfo{
		Group:    goString(group),
		SubGroup: goString(subGroup),
		Name:     goString(name),
		Unit:     goString(unit),
	}
	switch int(format) {
	case kIOReportFormatSimple:
		info.Format = FormatSimple
	case kIOReportFormatState:
		info.Format = FormatState
	default:
		info.Format = FormatUnknown
	}
	return info
}

// goString copies and frees a malloc'd C string.
func goString(p *C.char) string {
	if p == nil {
		return ""
	}
	defer C.free(unsafe.Pointer(p))
	return C.GoString(p)
}
