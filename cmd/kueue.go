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

package cmd

import (
	"github.com/spf13/cobra"

	"xpk/pkg/logging"
	"xpk/pkg/orchestrator"
	"xpk/pkg/orchestrator/gke"
)

var (
	clusterName     string
	clusterLocation string
	projectID       string
	outputManifest  string

	// Accelerator and Kueue related options
	deviceType       string
	numSlices        int
	pathways         bool
	autoprovisioning bool
	flexStart        bool
	cpuLimit         string
	memoryLimit      string
	tolerations      []string
)

func init() {
	rootCmd.AddCommand(kueueCmd)
	kueueCmd.AddCommand(kueueInstallCmd)

	kueueInstallCmd.Flags().StringVar(&clusterName, "cluster-name", "", "Name of the GKE cluster to prepare. Required.")
	kueueInstallCmd.Flags().StringVar(&clusterLocation, "cluster-location", "", "Location (zone or region) of the GKE cluster. Required.")
	kueueInstallCmd.Flags().StringVarP(&projectID, "project", "p", "", "Google Cloud Project ID. If not provided, it will be inferred from your gcloud configuration.")
	kueueInstallCmd.Flags().StringVarP(&outputManifest, "output-manifest", "o", "", "Path to output the generated queueing manifest instead of applying it.")

	// Accelerator and Kueue flags
	kueueInstallCmd.Flags().StringVarP(&deviceType, "device-type", "d", "", "Accelerator device type of the cluster (e.g., 'v5p-8', 'h100-80gb-8'). Required.")
	kueueInstallCmd.Flags().IntVar(&numSlices, "num-slices", 1, "Number of accelerator slices in the cluster.")
	kueueInstallCmd.Flags().BoolVar(&pathways, "pathways", false, "Enable Pathways mode, adding a CPU worker flavor and quota.")
	kueueInstallCmd.Flags().BoolVar(&autoprovisioning, "autoprovisioning", false, "Mark the queueing configuration for node auto-provisioning.")
	kueueInstallCmd.Flags().BoolVar(&flexStart, "flex-start", false, "Request DWS flex-start capacity through an admission check.")
	kueueInstallCmd.Flags().StringVar(&cpuLimit, "cpu-limit", "100", "Nominal CPU quota for the cluster queue, as a Kubernetes quantity.")
	kueueInstallCmd.Flags().StringVar(&memoryLimit, "memory-limit", "1000Gi", "Nominal memory quota for the cluster queue, as a Kubernetes quantity.")
	kueueInstallCmd.Flags().StringArrayVar(&tolerations, "toleration", nil, "Toleration to patch onto the Kueue controller, as 'key[=value]:effect'. Repeatable.")

	// Mark required flags
	_ = kueueInstallCmd.MarkFlagRequired("cluster-name")
	_ = kueueInstallCmd.MarkFlagRequired("cluster-location")
	_ = kueueInstallCmd.MarkFlagRequired("device-type")
}

var kueueCmd = &cobra.Command{
	Use:   "kueue",
	Short: "Manages the Kueue installation of a GKE cluster.",
}

var kueueInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Installs or upgrades Kueue and configures the cluster's queues.",
	Long: `The 'kueue install' command drives a GKE cluster's Kueue installation to the
bundled target version, running the ordered migrations breaking Kueue releases
require, and applies the queueing configuration (resource flavors, cluster
queue and local queue) derived from the cluster's accelerator shape.

The command is idempotent: re-running it against a current cluster issues no
manifest changes.`,
	Run:          runKueueInstallCmd,
	SilenceUsage: true,
}

func runKueueInstallCmd(cmd *cobra.Command, args []string) {
	logging.Info("Executing xpk kueue install command...")

	if numSlices <= 0 {
		logging.Fatal("--num-slices must be positive, got %d.", numSlices)
	}

	def := orchestrator.ClusterDefinition{
		ProjectID:        projectID,
		ClusterName:      clusterName,
		ClusterLocation:  clusterLocation,
		OutputManifest:   outputManifest,
		DeviceType:       deviceType,
		NumSlices:        numSlices,
		Pathways:         pathways,
		Autoprovisioning: autoprovisioning,
		FlexStart:        flexStart,
		CPULimit:         cpuLimit,
		MemoryLimit:      memoryLimit,
		Tolerations:      tolerations,
	}

	gkeOrchestrator, err := gke.NewGKEOrchestrator()
	if err != nil {
		logging.Fatal("Failed to create GKE orchestrator: %v", err)
	}

	if err := gkeOrchestrator.PrepareCluster(def); err != nil {
		logging.Fatal("xpk kueue install failed: %v", err)
	}
}
