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

package kueue

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"

	"xpk/pkg/system"
)

// Config is the immutable desired Kueue state for a single install or
// upgrade invocation. Construct it once per call; never mutate it after.
type Config struct {
	// System describes the accelerator machine shape of the cluster.
	System system.Characteristics
	// TotalChips is the accelerator chip quota across all slices.
	TotalChips int
	// NumSlices is the number of accelerator slices in the cluster.
	NumSlices int
	// Pathways indicates Pathways mode, which runs CPU-only worker pods
	// with independent quota accounting.
	Pathways bool
	// Autoprovisioning indicates node auto-provisioning is enabled on the
	// cluster.
	Autoprovisioning bool
	// FlexStart requests DWS flex-start capacity admission.
	FlexStart bool
	// CPULimit and MemoryLimit are the nominal quotas for the cpu and
	// memory resources, as Kubernetes quantities.
	CPULimit    string
	MemoryLimit string
	// Tolerations are optionally patched onto the controller deployment
	// after a fresh install.
	Tolerations []corev1.Toleration
}

// Validate rejects invalid configs before any command is issued.
func (c Config) Validate() error {
	if c.System.DeviceType == "" {
		return fmt.Errorf("kueue config: system characteristics are required")
	}
	if c.TotalChips <= 0 {
		return fmt.Errorf("kueue config: total chips must be positive, got %d", c.TotalChips)
	}
	if c.NumSlices <= 0 {
		return fmt.Errorf("kueue config: number of slices must be positive, got %d", c.NumSlices)
	}
	if _, err := resource.ParseQuantity(c.CPULimit); err != nil {
		return fmt.Errorf("kueue config: invalid cpu limit %q: %w", c.CPULimit, err)
	}
	if _, err := resource.ParseQuantity(c.MemoryLimit); err != nil {
		return fmt.Errorf("kueue config: invalid memory limit %q: %w", c.MemoryLimit, err)
	}

	return nil
}
