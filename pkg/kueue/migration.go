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

	"xpk/pkg/logging"
)

// CommandRunner is the narrow command-execution capability this package
// consumes. *shell.Executor satisfies it; tests substitute a recorder.
type CommandRunner interface {
	// RunCommandWithUpdatesRetry runs a command, retrying transient
	// failures, and returns the final exit code.
	RunCommandWithUpdatesRetry(command, task string) int
	// RunCommandForValue runs a command once and returns its exit code and
	// captured stdout.
	RunCommandForValue(command, task string) (int, string)
}

// commandSpec is one migration step: a shell invocation, run through the
// value-returning executor when its output matters.
type commandSpec struct {
	task    string
	command string
	capture bool
}

// migrationHandler holds the ordered side effects that bracket one breaking
// release's manifest apply. Handlers are idempotent when the prior state
// needs no migration, but the manager guarantees each runs at most once per
// cluster by comparing installed and target versions.
type migrationHandler struct {
	preInstall  []commandSpec
	postInstall []commandSpec
}

// cohortsMigration handles the v0.13.0 move of cohorts.kueue.x-k8s.io from
// v1alpha1 to v1beta1. The cohort objects must be dumped and the CRD deleted
// while the old API group is still served; the rewritten objects are
// re-applied once the new manifest has recreated the CRD.
func cohortsMigration() *migrationHandler {
	return &migrationHandler{
		preInstall: []commandSpec{
			{
				task:    "Dump cohorts",
				command: "kubectl get cohorts.kueue.x-k8s.io -o yaml > /tmp/xpk-cohorts.yaml",
			},
			{
				task:    "Rewrite cohorts API group version",
				command: "sed -i 's|kueue.x-k8s.io/v1alpha1|kueue.x-k8s.io/v1beta1|g' /tmp/xpk-cohorts.yaml",
			},
			{
				task:    "Delete cohorts CRD",
				command: "kubectl delete crd cohorts.kueue.x-k8s.io",
			},
		},
		postInstall: []commandSpec{
			{
				task:    "Re-apply cohorts",
				command: "kubectl apply -f /tmp/xpk-cohorts.yaml",
			},
		},
	}
}

// topologiesMigration handles the v0.14.0 move of topologies.kueue.x-k8s.io
// from v1alpha1 to v1beta1, following the same dump/rewrite/delete pattern.
// It additionally probes for topology objects still referencing the old
// group before the new manifest is applied; the probe's exit code gates
// continuation and its output is only logged.
func topologiesMigration() *migrationHandler {
	return &migrationHandler{
		preInstall: []commandSpec{
			{
				task:    "Dump topologies",
				command: "kubectl get topologies.kueue.x-k8s.io -o yaml > /tmp/xpk-topologies.yaml",
			},
			{
				task:    "Rewrite topologies API group version",
				command: "sed -i 's|kueue.x-k8s.io/v1alpha1|kueue.x-k8s.io/v1beta1|g' /tmp/xpk-topologies.yaml",
			},
			{
				task:    "Delete topologies CRD",
				command: "kubectl delete crd topologies.kueue.x-k8s.io",
			},
			{
				task:    "Check for stale topology objects",
				command: "kubectl get topology.kueue.x-k8s.io -o jsonpath='{.items[*].apiVersion}'",
				capture: true,
			},
		},
		postInstall: []commandSpec{
			{
				task:    "Re-apply topologies",
				command: "kubectl apply -f /tmp/xpk-topologies.yaml",
			},
		},
	}
}

// installManifestUpgrading applies every release between from (exclusive)
// and to (inclusive) in ascending order, running each release's migration
// around its manifest apply. Breaking releases are installed individually,
// never skipped: each handler assumes the immediately preceding schema is
// live when it runs. The first failing step aborts the whole operation with
// its exit code.
func (m *Manager) installManifestUpgrading(from *Version, to Version) int {
	for _, entry := range entriesInRange(from, to) {
		if entry.migration != nil {
			if code := m.runCommandSpecs(entry.migration.preInstall); code != 0 {
				logging.Error("Upgrade stopped at version %s.", entry.version)
				return code
			}
		}

		applyCmd := fmt.Sprintf("kubectl apply --server-side -f %s", entry.manifestURL)
		task := fmt.Sprintf("Install Kueue %s manifest", entry.version)
		if code := m.runner.RunCommandWithUpdatesRetry(applyCmd, task); code != 0 {
			logging.Error("Upgrade stopped at version %s.", entry.version)
			return code
		}

		if entry.migration != nil {
			if code := m.runCommandSpecs(entry.migration.postInstall); code != 0 {
				logging.Error("Upgrade stopped at version %s.", entry.version)
				return code
			}
		}
	}

	return 0
}

// runCommandSpecs executes migration steps sequentially, aborting on the
// first non-zero exit code.
func (m *Manager) runCommandSpecs(specs []commandSpec) int {
	for _, spec := range specs {
		if spec.capture {
			code, out := m.runner.RunCommandForValue(spec.command, spec.task)
			if code != 0 {
				logging.Error("Migration step `%s` failed with exit code %d.", spec.task, code)
				return code
			}
			if out != "" {
				logging.Info("%s: %s", spec.task, out)
			}
			continue
		}

		if code := m.runner.RunCommandWithUpdatesRetry(spec.command, spec.task); code != 0 {
			logging.Error("Migration step `%s` failed with exit code %d.", spec.task, code)
			return code
		}
	}

	return 0
}
