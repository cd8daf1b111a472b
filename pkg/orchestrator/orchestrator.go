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

package orchestrator

// ClusterDefinition holds all the necessary parameters to prepare a cluster
// for accelerator workloads. This struct is intended to be general enough to
// support various orchestrators, with specific orchestrator implementations
// extracting the fields relevant to them.
type ClusterDefinition struct {
	ProjectID       string
	ClusterName     string
	ClusterLocation string
	OutputManifest  string

	// Accelerator and Kueue related options
	DeviceType       string
	NumSlices        int
	Pathways         bool
	Autoprovisioning bool
	FlexStart        bool
	CPULimit         string
	MemoryLimit      string
	// Tolerations for the Kueue controller, as "key[=value]:effect" strings.
	Tolerations []string
}

// Orchestrator defines the interface for preparing a cluster's queueing and
// admission stack.
type Orchestrator interface {
	// PrepareCluster takes a ClusterDefinition and drives the cluster to it.
	PrepareCluster(def ClusterDefinition) error
}
