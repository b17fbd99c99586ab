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

package fake

// Group and subgroup names used by the simulated SoC.
const (
	GroupEnergy   = "Energy Model"
	GroupCPU      = "CPU Stats"
	GroupGPU      = "GPU Stats"
	SubGroupCore  = "CPU Core Performance States"
	SubGroupClust = "CPU Complex Performance States"
	SubGroupGPU   = "GPU Performance States"
)

var (
	eCoreStates = []string{"IDLE", "V0P5", "V1P4", "V2P3", "V3P2", "V4P1"}
	pCoreStates = []string{"IDLE", "DOWN", "V0P8", "V1P7", "V2P6", "V3P5", "V4P4", "V5P3", "V6P2", "V7P1"}
	gpuStates   = []string{"OFF", "P1", "P2", "P3", "P4", "P5", "P6"}
)

// Simulated returns a reporter shaped like a four efficiency plus four
// performance core Apple silicon SoC. Steps are per sample.
func Simulated() *Reporter {
	r := NewReporter(
		Channel{Group: GroupEnergy, Name: "CPU Energy", Unit: "mJ", Step: 1850},
		Channel{Group: GroupEnergy, Name: "GPU Energy", Unit: "mJ", Step: 420},
		Channel{Group: GroupEnergy, Name: "ANE0", Unit: "mJ", Step: 35},
		Channel{Group: GroupEnergy, Name: "DRAM", Unit: "nJ", Step: 310_000_000},
		Channel{Group: GroupEnergy, Name: "GPU SRAM0", Unit: "uJ", Step: 26_000},
	)

	for i, name := range []string{"ECPU0", "ECPU1", "ECPU2", "ECPU3"} {
		r.Add(Channel{
			Group:      GroupCPU,
			SubGroup:   SubGroupCore,
			Name:       name,
			Unit:       "24Mticks",
			States:     eCoreStates,
			StateSteps: []int64{9000 + int64(i)*500, 4000, 3000, 2000, 1000, 500},
		})
	}
	for i, name := range []string{"PCPU0", "PCPU1", "PCPU2", "PCPU3"} {
		r.Add(Channel{
			Group:      GroupCPU,
			SubGroup:   SubGroupCore,
			Name:       name,
			Unit:       "24Mticks",
			States:     pCoreStates,
			StateSteps: []int64{14000 + int64(i)*1000, 2000, 500, 500, 1000, 1000, 2000, 1500, 1000, 500},
		})
	}
	r.Add(Channel{
		Group:      GroupCPU,
		SubGroup:   SubGroupClust,
		Name:       "ECPU",
		Unit:       "24Mticks",
		States:     eCoreStates,
		StateSteps: []int64{8000, 4500, 3500, 2500, 1000, 500},
	})
	r.Add(Channel{
		Group:      GroupCPU,
		SubGroup:   SubGroupClust,
		Name:       "PCPU",
		Unit:       "24Mticks",
		States:     pCoreStates,
		StateSteps: []int64{12000, 3000, 1000, 1000, 1000, 1000, 2000, 1500, 1000, 500},
	})
	r.Add(Channel{
		Group:      GroupGPU,
		SubGroup:   SubGroupGPU,
		Name:       "GPUPH",
		Unit:       "24Mticks",
		States:     gpuStates,
		StateSteps: []int64{16000, 4000, 2000, 1000, 500, 300, 200},
	})
	return r
}

// SimulatedFrequencies returns DVFS tables in MHz matching Simulated's
// state layout: efficiency cores, performance cores, and GPU (the GPU table
// starts with the OFF entry).
func SimulatedFrequencies() (ecpu, pcpu, gpu []uint32) {
	return []uint32{744, 1044, 1476, 2004, 2424},
		[]uint32{660, 924, 1188, 1452, 1704, 1968, 2208, 3204},
		[]uint32{0, 444, 612, 808, 968, 1110, 1296}
}
