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

package host

/*
#cgo LDFLAGS: -framework IOKit
#include <string.h>
#include <mach/mach.h>
#include <IOKit/IOKitLib.h>

typedef struct {
	unsigned char major;
	unsigned char minor;
	unsigned char build;
	unsigned char reserved;
	unsigned short release;
} smc_vers_t;

typedef struct {
	unsigned short version;
	unsigned short length;
	unsigned int cpuPLimit;
	unsigned int gpuPLimit;
	unsigned int memPLimit;
} smc_plimit_t;

typedef struct {
	unsigned int dataSize;
	unsigned int dataType;
	unsigned char dataAttributes;
} smc_keyinfo_t;

typedef struct {
	unsigned int key;
	smc_vers_t vers;
	smc_plimit_t pLimitData;
	smc_keyinfo_t keyInfo;
	unsigned char result;
	unsigned char status;
	unsigned char data8;
	unsigned int data32;
	unsigned char bytes[32];
} smc_keydata_t;

enum {
	SMC_HANDLE_EVENT = 2,
	SMC_READ_BYTES = 5,
	SMC_READ_KEYINFO = 9,
	SMC_TYPE_FLT = 0x666c7420,
};

static kern_return_t smc_call(io_connect_t conn, smc_keydata_t *in, smc_keydata_t *out) {
	size_t outSize = sizeof(smc_keydata_t);
	return IOConnectCallStructMethod(conn, SMC_HANDLE_EVENT, in, sizeof(smc_keydata_t), out, &outSize);
}

// smc_read_float reads a 4 byte float key.
// Returns 0 on success, 1 when the SMC cannot be opened, 2 when a call
// fails, 3 when the key is missing or not a float.
static int smc_read_float(unsigned int key, float *value) {
	io_service_t svc = IOServiceGetMatchingService(kIOMainPortDefault, IOServiceMatching("AppleSMC"));
	if (svc == 0) {
		return 1;
	}
	io_connect_t conn = 0;
	kern_return_t kr = IOServiceOpen(svc, mach_task_self(), 0, &conn);
	IOObjectRelease(svc);
	if (kr != KERN_SUCCESS) {
		return 1;
	}

	int rc = 0;
	smc_keyinfo_t info;
	smc_keydata_t in, out;
	memset(&in, 0, sizeof(in));
	memset(&out, 0, sizeof(out));
	in.key = key;
	in.data8 = SMC_READ_KEYINFO;
	if (smc_call(conn, &in, &out) != KERN_SUCCESS) {
		rc = 2;
		goto done;
	}
	if (out.result != 0 || out.keyInfo.dataSize != 4 || out.keyInfo.dataType != SMC_TYPE_FLT) {
		rc = 3;
		goto done;
	}

	info = out.keyInfo;
	memset(&in, 0, sizeof(in));
	memset(&out, 0, sizeof(out));
	in.key = key;
	in.keyInfo.dataSize = info.dataSize;
	in.data8 = SMC_READ_BYTES;
	if (smc_call(conn, &in, &out) != KERN_SUCCESS) {
		rc = 2;
		goto done;
	}
	if (out.result != 0) {
		rc = 3;
		goto done;
	}
	memcpy(value, out.bytes, sizeof(float));

done:
	IOServiceClose(conn);
	return rc;
}
*/
import "C"

import (
	"fmt"

	"github.com/iorstat/iorstat/pkg/errors"
)

// KeySystemPower is the SMC key of the whole-system power reading.
const KeySystemPower = "PSTR"

// smcKey packs a four character SMC key, first character in the high byte.
func smcKey(key string) uint32 {
	var k uint32
	for i := 0; i < len(key) && i < 4; i++ {
		k = k<<8 | uint32(key[i])
	}
	return k
}

// ReadSystemPower reads the whole-system power draw in watts from the SMC.
func ReadSystemPower() (float64, error) {
	var v C.float
	switch rc := C.smc_read_float(C.uint(smcKey(KeySystemPower)), &v); rc {
	case 0:
		return float64(v), nil
	case 1:
		return 0, errors.New(errors.ErrCodeUnavailable, "failed to open the SMC")
	case 3:
		return 0, errors.NewWithContext(errors.ErrCodeNotFound,
			"SMC key is missing or not a float", map[string]any{"key": KeySystemPower})
	default:
		return 0, errors.Wrap(errors.ErrCodeInternal, "SMC call failed",
			fmt.Errorf("smc_read_float returned %d", int(rc)))
	}
}
