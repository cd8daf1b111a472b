// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package system describes the accelerator machine shapes xpk can provision
// queueing for, and the GKE node labels that select them.
package system

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Accelerator identifies the accelerator family a device type belongs to.
type Accelerator string

const (
	AcceleratorTPU Accelerator = "tpu"
	AcceleratorGPU Accelerator = "gpu"
	AcceleratorCPU Accelerator = "cpu"
)

// GKE node labels used in flavor node selectors.
const (
	tpuAcceleratorLabel = "cloud.google.com/gke-tpu-accelerator"
	tpuTopologyLabel    = "cloud.google.com/gke-tpu-topology"
	gpuAcceleratorLabel = "cloud.google.com/gke-accelerator"
)

// Label is one node-selector key/value pair. A slice keeps selector rendering
// deterministic.
type Label struct {
	Key   string
	Value string
}

// Characteristics describes one provisionable device type.
type Characteristics struct {
	// DeviceType is the user-facing name, e.g. "v5p-8" or "h100-80gb-8".
	DeviceType string
	// Accelerator is the family the device belongs to.
	Accelerator Accelerator
	// GKEAccelerator is the accelerator node label value, e.g. "tpu-v5p-slice".
	GKEAccelerator string
	// Topology is the chip mesh as "<X>x<Y>" or "<X>x<Y>x<Z>". Empty for
	// GPU and CPU devices, which have no mesh topology.
	Topology string
	// ChipsPerVM is the number of chips attached to a single VM.
	ChipsPerVM int
}

// ResourceType returns the Kueue resource name covered by this device.
func (c Characteristics) ResourceType() string {
	switch c.Accelerator {
	case AcceleratorTPU:
		return "google.com/tpu"
	case AcceleratorGPU:
		return "nvidia.com/gpu"
	default:
		return "cpu"
	}
}

// NodeSelectorLabels returns the node labels a resource flavor must match to
// land on this device type.
func (c Characteristics) NodeSelectorLabels() []Label {
	switch c.Accelerator {
	case AcceleratorTPU:
		return []Label{
			{Key: tpuAcceleratorLabel, Value: c.GKEAccelerator},
			{Key: tpuTopologyLabel, Value: c.Topology},
		}
	case AcceleratorGPU:
		return []Label{
			{Key: gpuAcceleratorLabel, Value: c.GKEAccelerator},
		}
	default:
		return nil
	}
}

// ChipsPerSlice returns the total number of chips in one slice of this
// device type.
func (c Characteristics) ChipsPerSlice() (int, error) {
	if c.Accelerator != AcceleratorTPU {
		return c.ChipsPerVM, nil
	}

	return chipsInTopology(c.Topology)
}

// VMsPerSlice returns the number of VMs backing one slice.
func (c Characteristics) VMsPerSlice() (int, error) {
	chips, err := c.ChipsPerSlice()
	if err != nil {
		return 0, err
	}
	if c.ChipsPerVM <= 0 {
		return 0, errors.Errorf("device type %q has no chips per VM", c.DeviceType)
	}

	return chips / c.ChipsPerVM, nil
}

// chipsInTopology multiplies out a "<X>x<Y>" or "<X>x<Y>x<Z>" mesh.
func chipsInTopology(topology string) (int, error) {
	parts := strings.Split(topology, "x")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, errors.Errorf("invalid topology %q: expected <X>x<Y> or <X>x<Y>x<Z>", topology)
	}

	product := 1
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid topology %q", topology)
		}
		if n <= 0 {
			return 0, errors.Errorf("invalid topology %q: dimensions must be positive", topology)
		}
		product *= n
	}

	return product, nil
}

// supportedDevices is the static table of device types xpk knows how to
// provision queueing for.
var supportedDevices = map[string]Characteristics{
	"v4-8": {
		DeviceType:     "v4-8",
		Accelerator:    AcceleratorTPU,
		GKEAccelerator: "tpu-v4-podslice",
		Topology:       "2x2x1",
		ChipsPerVM:     4,
	},
	"v4-16": {
		DeviceType:     "v4-16",
		Accelerator:    AcceleratorTPU,
		GKEAccelerator: "tpu-v4-podslice",
		Topology:       "2x2x2",
		ChipsPerVM:     4,
	},
	"v5p-8": {
		DeviceType:     "v5p-8",
		Accelerator:    AcceleratorTPU,
		GKEAccelerator: "tpu-v5p-slice",
		Topology:       "2x2x1",
		ChipsPerVM:     4,
	},
	"v5p-16": {
		DeviceType:     "v5p-16",
		Accelerator:    AcceleratorTPU,
		GKEAccelerator: "tpu-v5p-slice",
		Topology:       "2x2x2",
		ChipsPerVM:     4,
	},
	"v6e-16": {
		DeviceType:     "v6e-16",
		Accelerator:    AcceleratorTPU,
		GKEAccelerator: "tpu-v6e-slice",
		Topology:       "4x4",
		ChipsPerVM:     4,
	},
	"v6e-256": {
		DeviceType:     "v6e-256",
		Accelerator:    AcceleratorTPU,
		GKEAccelerator: "tpu-v6e-slice",
		Topology:       "16x16",
		ChipsPerVM:     4,
	},
	"a100-40gb-8": {
		DeviceType:     "a100-40gb-8",
		Accelerator:    AcceleratorGPU,
		GKEAccelerator: "nvidia-tesla-a100",
		ChipsPerVM:     8,
	},
	"h100-80gb-8": {
		DeviceType:     "h100-80gb-8",
		Accelerator:    AcceleratorGPU,
		GKEAccelerator: "nvidia-h100-80gb",
		ChipsPerVM:     8,
	},
	"n2-standard-32-1": {
		DeviceType:  "n2-standard-32-1",
		Accelerator: AcceleratorCPU,
		ChipsPerVM:  1,
	},
}

// Get returns the characteristics for a supported device type.
func Get(deviceType string) (Characteristics, error) {
	c, ok := supportedDevices[deviceType]
	if !ok {
		return Characteristics{}, errors.Errorf("unsupported device type %q", deviceType)
	}

	return c, nil
}
