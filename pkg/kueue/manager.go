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

// Package kueue installs, upgrades and configures the Kueue admission
// controller on a cluster, including the ordered migrations that breaking
// Kueue releases require.
package kueue

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"

	"xpk/pkg/logging"
	"xpk/pkg/shell"
)

const (
	// namespace is where the upstream manifests install the controller.
	namespace            = "kueue-system"
	controllerDeployment = "kueue-controller-manager"
	controllerContainer  = "manager"

	// controllerCPURequest is the fixed CPU request for the controller; only
	// its memory scales with cluster size.
	controllerCPURequest = "2"

	// minControllerMemoryMiB is the controller's baseline working set; the
	// per-node factor anticipates bookkeeping growth with cluster size.
	minControllerMemoryMiB = 4096
	perNodeMemoryFactor    = 1.2
)

// Manager orchestrates Kueue installation, upgrade and configuration on one
// cluster. It holds no cluster state; every invocation re-derives it through
// the command runner.
type Manager struct {
	runner CommandRunner
	fs     afero.Fs
	target Version

	// outputManifest, when set, diverts the rendered queueing manifest to a
	// file instead of applying it.
	outputManifest string
}

// NewManager creates a Manager that drives the cluster to the bundled target
// Kueue version.
func NewManager(runner CommandRunner) *Manager {
	return &Manager{
		runner: runner,
		fs:     afero.NewOsFs(),
		target: targetVersion,
	}
}

// SetOutputManifest makes the configure step write the rendered queueing
// manifest to path instead of applying it.
func (m *Manager) SetOutputManifest(path string) {
	m.outputManifest = path
}

// DetectResult is the parsed outcome of the version-report command, decoded
// exactly once at the boundary.
type DetectResult struct {
	Installed bool
	Version   Version
}

// detectInstalledVersion reports whether Kueue is installed and at which
// version. The report prints a Client Version and a Manager Version line;
// only the manager line is authoritative. A failing command or absent output
// means not installed.
func (m *Manager) detectInstalledVersion() DetectResult {
	code, out := m.runner.RunCommandForValue("kubectl kueue version", "Detect installed Kueue version")
	if code != 0 || out == "" {
		return DetectResult{}
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Manager Version:") {
			continue
		}

		raw := strings.TrimSpace(strings.TrimPrefix(line, "Manager Version:"))
		v, err := ParseVersion(raw)
		if err != nil {
			logging.Warn("Ignoring unparsable manager version %q: %v", raw, err)
			return DetectResult{}
		}

		return DetectResult{Installed: true, Version: v}
	}

	return DetectResult{}
}

// InstallOrUpgrade drives Kueue to the bundled target version and applies
// the queueing configuration derived from cfg. It is idempotent: repeated
// invocations against a current cluster issue no manifest applies. Returns a
// process exit code; any failing step aborts the call with that step's code
// and no rollback is attempted.
func (m *Manager) InstallOrUpgrade(cfg Config) int {
	if err := cfg.Validate(); err != nil {
		logging.Error("Invalid Kueue configuration: %v", err)
		return 1
	}

	detected := m.detectInstalledVersion()
	switch {
	case !detected.Installed:
		logging.Info("Kueue is not installed. Installing %s...", m.target)
		if code := m.install(cfg); code != 0 {
			return code
		}
	case detected.Version.LessThan(m.target):
		logging.Info("Upgrading Kueue from %s to %s...", detected.Version, m.target)
		from := detected.Version
		if code := m.installManifestUpgrading(&from, m.target); code != 0 {
			return code
		}
	default:
		logging.Info("Kueue %s is already installed. Nothing to do.", detected.Version)
		return 0
	}

	return m.configure(cfg)
}

// install applies the target manifest directly (no prior state, so no
// migrations), waits for the controller to come up and optionally patches in
// tolerations.
func (m *Manager) install(cfg Config) int {
	if code := m.installManifestUpgrading(nil, m.target); code != 0 {
		return code
	}

	waitCmd := fmt.Sprintf(
		"kubectl wait deploy/%s -n %s --for=condition=available --timeout=300s",
		controllerDeployment, namespace,
	)
	if code := m.runner.RunCommandWithUpdatesRetry(waitCmd, "Wait for Kueue controller availability"); code != 0 {
		return code
	}

	if len(cfg.Tolerations) > 0 {
		return m.patchTolerations(cfg.Tolerations)
	}

	return 0
}

func (m *Manager) patchTolerations(tolerations []corev1.Toleration) int {
	var patch struct {
		Spec struct {
			Template struct {
				Spec struct {
					Tolerations []corev1.Toleration `json:"tolerations"`
				} `json:"spec"`
			} `json:"template"`
		} `json:"spec"`
	}
	patch.Spec.Template.Spec.Tolerations = tolerations

	payload, err := json.Marshal(patch)
	if err != nil {
		logging.Error("Failed to encode tolerations patch: %v", err)
		return 1
	}

	cmd := fmt.Sprintf(
		"kubectl patch deployment %s -n %s --type merge -p '%s'",
		controllerDeployment, namespace, payload,
	)

	return m.runner.RunCommandWithUpdatesRetry(cmd, "Patch Kueue controller tolerations")
}

// configure renders the queueing manifest from the config, applies it (or
// writes it to the output path) and reconciles the controller's resource
// requests against the live node count.
func (m *Manager) configure(cfg Config) int {
	ctx, err := buildTemplateContext(cfg)
	if err != nil {
		logging.Error("Failed to build queueing configuration: %v", err)
		return 1
	}

	manifest, err := renderClusterQueueManifest(ctx)
	if err != nil {
		logging.Error("Failed to render queueing manifest: %v", err)
		return 1
	}

	if m.outputManifest != "" {
		if err := afero.WriteFile(m.fs, m.outputManifest, []byte(manifest), 0644); err != nil {
			logging.Error("Failed to write queueing manifest to %s: %v", m.outputManifest, err)
			return 1
		}
		logging.Info("Queueing manifest written to %s.", m.outputManifest)
		return 0
	}

	if code := m.applyManifest(manifest); code != 0 {
		return code
	}

	return m.reconcileControllerResources()
}

// applyManifest writes the rendered manifest to a temp file and applies it.
func (m *Manager) applyManifest(manifest string) int {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("kueue-config-%s.yaml", shell.RandomString(8)))
	if err := afero.WriteFile(m.fs, path, []byte(manifest), 0644); err != nil {
		logging.Error("Failed to write queueing manifest to temporary file: %v", err)
		return 1
	}
	defer func() { _ = m.fs.Remove(path) }()

	cmd := fmt.Sprintf("kubectl apply -f %s", path)

	return m.runner.RunCommandWithUpdatesRetry(cmd, "Apply queueing configuration")
}

// reconcileControllerResources scales the controller's memory request with
// the cluster's node count: max(4096, round(nodes * 1.2)) MiB, applied as a
// JSON merge patch against the controller deployment.
func (m *Manager) reconcileControllerResources() int {
	code, out := m.runner.RunCommandForValue("kubectl get nodes --no-headers | wc -l", "Count cluster nodes")
	if code != 0 {
		return code
	}

	nodeCount, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		logging.Error("Unparsable node count %q: %v", out, err)
		return 1
	}

	memoryMiB := int(math.Round(float64(nodeCount) * perNodeMemoryFactor))
	if memoryMiB < minControllerMemoryMiB {
		memoryMiB = minControllerMemoryMiB
	}

	resources := corev1.ResourceList{
		corev1.ResourceCPU:    resource.MustParse(controllerCPURequest),
		corev1.ResourceMemory: resource.MustParse(fmt.Sprintf("%dMi", memoryMiB)),
	}

	payload, err := json.Marshal(controllerResourcePatch(resources))
	if err != nil {
		logging.Error("Failed to encode controller resource patch: %v", err)
		return 1
	}

	logging.Info("Setting Kueue controller memory request to %dMi for %d nodes.", memoryMiB, nodeCount)
	cmd := fmt.Sprintf(
		"kubectl patch deployment %s -n %s --type merge -p '%s'",
		controllerDeployment, namespace, payload,
	)

	return m.runner.RunCommandWithUpdatesRetry(cmd, "Reconcile Kueue controller resources")
}

// controllerResourcePatch builds the merge-patch body for the controller's
// replicas and manager-container resources.
func controllerResourcePatch(resources corev1.ResourceList) any {
	type containerPatch struct {
		Name      string                      `json:"name"`
		Resources corev1.ResourceRequirements `json:"resources"`
	}
	var patch struct {
		Spec struct {
			Replicas int32 `json:"replicas"`
			Template struct {
				Spec struct {
					Containers []containerPatch `json:"containers"`
				} `json:"spec"`
			} `json:"template"`
		} `json:"spec"`
	}
	patch.Spec.Replicas = 1
	patch.Spec.Template.Spec.Containers = []containerPatch{
		{
			Name: controllerContainer,
			Resources: corev1.ResourceRequirements{
				Requests: resources,
				Limits:   resources,
			},
		},
	}

	return patch
}
