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

package soc

/*
#cgo LDFLAGS: -framework IOKit -framework CoreFoundation
#include <stdlib.h>
#include <string.h>
#include <CoreFoundation/CoreFoundation.h>
#include <IOKit/IOKitLib.h>

// soc_pmgr_prop copies a data property of the "pmgr" AppleARMIODevice entry.
// Returns 0 on success, 1 when the entry is missing, 2 when the property is.
static int soc_pmgr_prop(const char *key, void **out, long *len) {
	io_iterator_t iter;
	CFMutableDictionaryRef match = IOServiceMatching("AppleARMIODevice");
	if (IOServiceGetMatchingServices(kIOMainPortDefault, match, &iter) != KERN_SUCCESS) {
		return 1;
	}

	int rc = 1;
	io_object_t entry;
	while ((entry = IOIteratorNext(iter)) != 0) {
		io_name_t name;
		if (IORegistryEntryGetName(entry, name) == KERN_SUCCESS && strcmp(name, "pmgr") == 0) {
			rc = 2;
			CFStringRef cfKey = CFStringCreateWithCString(kCFAllocatorDefault, key, kCFStringEncodingUTF8);
			CFTypeRef prop = IORegistryEntryCreateCFProperty(entry, cfKey, kCFAllocatorDefault, 0);
			CFRelease(cfKey);
			if (prop != NULL && CFGetTypeID(prop) == CFDataGetTypeID()) {
				CFIndex n = CFDataGetLength((CFDataRef)prop);
				void *buf = malloc(n > 0 ? n : 1);
				CFDataGetBytes((CFDataRef)prop, CFRangeMake(0, n), (UInt8 *)buf);
				*out = buf;
				*len = n;
				rc = 0;
			}
			if (prop != NULL) {
				CFRelease(prop);
			}
			IOObjectRelease(entry);
			break;
		}
		IOObjectRelease(entry);
	}
	IOObjectRelease(iter);
	return rc;
}
*/
import "C"

import (
	"unsafe"

	"github.com/iorstat/iorstat/pkg/errors"
)

// ReadFrequencyTables reads the DVFS tables from the power manager registry
// entry.
func ReadFrequencyTables() (FrequencyTables, error) {
	ecpu, err := readTable(KeyECPUStates, 0)
	if err != nil {
		return FrequencyTables{}, err
	}
	pcpu, err := readTable(KeyPCPUStates, 0)
	if err != nil {
		return FrequencyTables{}, err
	}
	// the GPU table is always reported in Hz
	gpu, err := readTable(KeyGPUStates, ScaleHz)
	if err != nil {
		return FrequencyTables{}, err
	}

	t := FrequencyTables{ECPU: ecpu, PCPU: pcpu, GPU: gpu}
	if err := t.Validate(); err != nil {
		return FrequencyTables{}, err
	}
	return t, nil
}

func readTable(key string, scale uint32) ([]uint32, error) {
	cKey := C.CString(key)
	defer C.free(unsafe.Pointer(cKey))

	var (
		buf unsafe.Pointer
		n   C.long
	)
	switch rc := C.soc_pmgr_prop(cKey, &buf, &n); rc {
	case 0:
	case 1:
		return nil, errors.New(errors.ErrCodeNotFound, "power manager registry entry not found")
	default:
		return nil, errors.NewWithContext(errors.ErrCodeNotFound,
			"power manager property not found", map[string]any{"key": key})
	}
	defer C.free(buf)

	data := C.GoBytes(buf, C.int(n))
	if scale == 0 {
		return ParseVoltageStates(data)
	}
	return ParseVoltageStatesScale(data, scale)
}
