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

package gke

import (
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"

	"xpk/pkg/kueue"
	"xpk/pkg/logging"
	"xpk/pkg/orchestrator"
	"xpk/pkg/shell"
	"xpk/pkg/system"
)

// GKEOrchestrator implements the Orchestrator interface for GKE.
type GKEOrchestrator struct {
	// Add any GKE-specific clients or configurations here if needed.
}

// NewGKEOrchestrator creates and returns a new GKEOrchestrator instance.
func NewGKEOrchestrator() (*GKEOrchestrator, error) {
	return &GKEOrchestrator{}, nil
}

// PrepareCluster configures kubectl for the target GKE cluster and drives its
// Kueue installation and queueing configuration to the desired state.
func (g *GKEOrchestrator) PrepareCluster(def orchestrator.ClusterDefinition) error {
	logging.Info("Starting xpk cluster preparation workflow...")

	projectID, err := g.getProjectID(def.ProjectID)
	if err != nil {
		return err
	}
	def.ProjectID = projectID

	logging.Info("Configuring kubectl for GKE cluster '%s'...", def.ClusterName)
	if err := g.configureKubectl(def.ClusterName, def.ClusterLocation, def.ProjectID); err != nil {
		return err
	}
	logging.Info("kubectl configured successfully.")

	cfg, err := g.buildKueueConfig(def)
	if err != nil {
		return err
	}

	manager := kueue.NewManager(shell.NewExecutor(def.ProjectID, def.ClusterLocation))
	if def.OutputManifest != "" {
		manager.SetOutputManifest(def.OutputManifest)
	}

	if code := manager.InstallOrUpgrade(cfg); code != 0 {
		return fmt.Errorf("kueue installation failed with exit code %d", code)
	}

	logging.Info("xpk cluster preparation workflow completed.")
	return nil
}

func (g *GKEOrchestrator) getProjectID(initialProjectID string) (string, error) {
	if initialProjectID == "" {
		res := shell.ExecuteCommand("gcloud config get-value project")
		if res.ExitCode != 0 {
			return "", fmt.Errorf("failed to get GCP project ID from gcloud config: %s", res.Stderr)
		}
		projectID := strings.TrimSpace(res.Stdout)
		if projectID == "" {
			return "", fmt.Errorf("GCP project ID is empty. Please provide it via --project flag or configure gcloud CLI.")
		}
		logging.Info("Using GCP Project ID inferred from gcloud config: %s", projectID)
		return projectID, nil
	}
	logging.Info("Using provided GCP Project ID: %s", initialProjectID)
	return initialProjectID, nil
}

func (g *GKEOrchestrator) configureKubectl(clusterName, clusterLocation, projectID string) error {
	credsCmd := fmt.Sprintf(
		"gcloud container clusters get-credentials %s --zone %s --project %s",
		clusterName, clusterLocation, projectID,
	)
	credsRes := shell.ExecuteCommand(credsCmd)
	if credsRes.ExitCode != 0 {
		return fmt.Errorf("failed to get GKE cluster credentials: %s\n%s", credsRes.Stderr, credsRes.Stdout)
	}
	return nil
}

// buildKueueConfig resolves the device type and derives the chip quota the
// queueing configuration grants.
func (g *GKEOrchestrator) buildKueueConfig(def orchestrator.ClusterDefinition) (kueue.Config, error) {
	sys, err := system.Get(def.DeviceType)
	if err != nil {
		return kueue.Config{}, err
	}

	chipsPerSlice, err := sys.ChipsPerSlice()
	if err != nil {
		return kueue.Config{}, err
	}

	tolerations, err := parseTolerations(def.Tolerations)
	if err != nil {
		return kueue.Config{}, err
	}

	return kueue.Config{
		System:           sys,
		TotalChips:       chipsPerSlice * def.NumSlices,
		NumSlices:        def.NumSlices,
		Pathways:         def.Pathways,
		Autoprovisioning: def.Autoprovisioning,
		FlexStart:        def.FlexStart,
		CPULimit:         def.CPULimit,
		MemoryLimit:      def.MemoryLimit,
		Tolerations:      tolerations,
	}, nil
}

// parseTolerations converts "key[=value]:effect" strings into tolerations. A
// value selects the Equal operator, its absence the Exists operator.
func parseTolerations(specs []string) ([]corev1.Toleration, error) {
	var tolerations []corev1.Toleration
	for _, spec := range specs {
		keyValue, effect, found := strings.Cut(spec, ":")
		if !found || effect == "" {
			return nil, fmt.Errorf("invalid toleration %q: expected \"key[=value]:effect\"", spec)
		}

		key, value, hasValue := strings.Cut(keyValue, "=")
		if key == "" {
			return nil, fmt.Errorf("invalid toleration %q: key must not be empty", spec)
		}

		toleration := corev1.Toleration{
			Key:      key,
			Operator: corev1.TolerationOpExists,
			Effect:   corev1.TaintEffect(effect),
		}
		if hasValue {
			toleration.Operator = corev1.TolerationOpEqual
			toleration.Value = value
		}
		tolerations = append(tolerations, toleration)
	}
	return tolerations, nil
}
